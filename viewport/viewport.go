package viewport

import (
	"errors"
	"fmt"

	"github.com/pdok/facsimile/pyramid"
)

// DefaultTolerance lets an image fill the viewport up to 125% before a coarser level is chosen
const DefaultTolerance = 0.8

var ErrInvalidTolerance = errors.New("invalid tolerance")

// BestFitZoom returns the finest level whose image, scaled by tolerance, is smaller than the viewport.
// When no level fits, the coarsest level (0) is returned.
// The scan starts at the finest level, also under retina where it lies above MaxZoom.
func BestFitZoom(p *pyramid.Pyramid, width, height float64, tolerance float64) (uint, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("%w: viewport of %vx%v", pyramid.ErrInvalidDimension, width, height)
	}
	if tolerance <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidTolerance, tolerance)
	}
	for zoom := uint(p.NumLevels() - 1); zoom > p.MinZoom(); zoom-- {
		l, _ := p.Level(zoom)
		if float64(l.ImageSize.W)*tolerance < width && float64(l.ImageSize.H)*tolerance < height {
			return zoom, nil
		}
	}
	return p.MinZoom(), nil
}
