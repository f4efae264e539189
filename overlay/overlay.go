// Package overlay places rectangular regions of the facsimile, such as the bounding boxes of measures,
// in the projected space of the map host.
package overlay

import (
	"math"
	"strconv"

	"github.com/go-spatial/geom"

	"github.com/pdok/facsimile/geomhelp"
	"github.com/pdok/facsimile/mapper"
)

// Region is a rectangle in full resolution pixels, y pointing down
type Region struct {
	ULX   float64 `json:"ulx" yaml:"ulx" validate:"gte=0"`
	ULY   float64 `json:"uly" yaml:"uly" validate:"gte=0"`
	LRX   float64 `json:"lrx" yaml:"lrx" validate:"gtefield=ULX"`
	LRY   float64 `json:"lry" yaml:"lry" validate:"gtefield=ULY"`
	Label string  `json:"label,omitempty" yaml:"label,omitempty"`
	// Number of the measure, shown when there is no label
	N int `json:"n,omitempty" yaml:"n,omitempty" validate:"gte=0"`
}

// Title is the label, or the number when the region has no label
func (r Region) Title() string {
	if r.Label != "" || r.N == 0 {
		return r.Label
	}
	return strconv.Itoa(r.N)
}

// Scale multiplies the corners, for regions measured on a differently sized copy of the image
func (r Region) Scale(factor float64) Region {
	r.ULX *= factor
	r.ULY *= factor
	r.LRX *= factor
	r.LRY *= factor
	return r
}

func (r Region) Centroid() geom.Point {
	return geom.Point{(r.ULX + r.LRX) / 2, (r.ULY + r.LRY) / 2}
}

// Contains is inclusive on all edges
func (r Region) Contains(pixel geom.Point) bool {
	return r.ULX <= pixel.X() && pixel.X() <= r.LRX && r.ULY <= pixel.Y() && pixel.Y() <= r.LRY
}

// Placement is a region in projected space
type Placement struct {
	UpperLeft  geom.Point `json:"upperLeft"`
	LowerRight geom.Point `json:"lowerRight"`
	Centroid   geom.Point `json:"centroid"`
	Label      string     `json:"label,omitempty"`
}

// Extent orders the corners, as projected y may point up while pixel y points down
func (p Placement) Extent() geom.Extent {
	return geom.Extent{
		math.Min(p.UpperLeft.X(), p.LowerRight.X()),
		math.Min(p.UpperLeft.Y(), p.LowerRight.Y()),
		math.Max(p.UpperLeft.X(), p.LowerRight.X()),
		math.Max(p.UpperLeft.Y(), p.LowerRight.Y()),
	}
}

// Polygon is the outline of the placement, used for rendering and WKT output
func (p Placement) Polygon() geom.Polygon {
	return geomhelp.ExtentToPolygon(p.Extent())
}

// Place converts the corners and the centroid of a region through the mapper
func Place(m *mapper.Mapper, r Region, zoom int) (Placement, error) {
	upperLeft, err := m.PixelToProjected(geom.Point{r.ULX, r.ULY}, zoom)
	if err != nil {
		return Placement{}, err
	}
	lowerRight, err := m.PixelToProjected(geom.Point{r.LRX, r.LRY}, zoom)
	if err != nil {
		return Placement{}, err
	}
	centroid, err := m.PixelToProjected(r.Centroid(), zoom)
	if err != nil {
		return Placement{}, err
	}
	return Placement{
		UpperLeft:  upperLeft,
		LowerRight: lowerRight,
		Centroid:   centroid,
		Label:      r.Title(),
	}, nil
}

func PlaceAll(m *mapper.Mapper, regions []Region, zoom int) ([]Placement, error) {
	placements := make([]Placement, 0, len(regions))
	for _, r := range regions {
		p, err := Place(m, r, zoom)
		if err != nil {
			return nil, err
		}
		placements = append(placements, p)
	}
	return placements, nil
}
