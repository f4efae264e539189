package overlay

import (
	"math"

	"github.com/go-spatial/geom"

	"github.com/pdok/facsimile/mapper"
)

// FocusPadding is added to every side of a region, relative to its width and height
const FocusPadding = 0.4

// Focus returns the view showing a region with some surroundings:
// the finest zoom at which the padded region fits the host viewport, and the projected centroid.
// When it does not fit at any zoom the minimum zoom is returned.
func Focus(m *mapper.Mapper, r Region) (zoom int, center geom.Point, err error) {
	padX := (r.LRX - r.ULX) * FocusPadding
	padY := (r.LRY - r.ULY) * FocusPadding
	upperLeft := geom.Point{r.ULX - padX, r.ULY - padY}
	lowerRight := geom.Point{r.LRX + padX, r.LRY + padY}

	host := m.Host()
	vw, vh := host.ViewportSize()
	p := m.Pyramid()
	zoom = int(p.MinZoom())
	for z := int(p.MaxZoom()); z > int(p.MinZoom()); z-- {
		w, h, err := screenSize(m, upperLeft, lowerRight, z)
		if err != nil {
			return 0, geom.Point{}, err
		}
		if w <= vw && h <= vh {
			zoom = z
			break
		}
	}
	center, err = m.PixelToProjected(r.Centroid(), zoom)
	return zoom, center, err
}

// screenSize is the size in host pixels of a pixel rectangle at zoom
func screenSize(m *mapper.Mapper, upperLeft, lowerRight geom.Point, zoom int) (float64, float64, error) {
	ul, err := m.PixelToProjected(upperLeft, zoom)
	if err != nil {
		return 0, 0, err
	}
	lr, err := m.PixelToProjected(lowerRight, zoom)
	if err != nil {
		return 0, 0, err
	}
	host := m.Host()
	a := host.Project(ul, zoom)
	b := host.Project(lr, zoom)
	return math.Abs(b.X() - a.X()), math.Abs(b.Y() - a.Y()), nil
}
