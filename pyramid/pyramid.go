// Package pyramid derives the zoom levels of a tiled image pyramid from the dimensions of a facsimile.
// Level 0 is the coarsest level, the last level is the full resolution image.
package pyramid

import (
	"errors"
	"fmt"

	"github.com/pdok/facsimile/mapslicehelp"
	"github.com/pdok/facsimile/mathhelp"
)

var (
	ErrInvalidDimension     = errors.New("invalid dimension")
	ErrInvalidTileSize      = errors.New("invalid tile size")
	ErrCoordinateOutOfRange = errors.New("tile coordinate out of range")
	ErrZoomOutOfRange       = errors.New("zoom out of range")
)

// Size is a width and height, either in pixels or in tiles
type Size struct {
	W uint `json:"w"`
	H uint `json:"h"`
}

func (s Size) fitsIn(edge uint) bool {
	return s.W <= edge && s.H <= edge
}

func (s Size) half() Size {
	return Size{W: s.W / 2, H: s.H / 2}
}

// Count is the number of cells, e.g. the number of tiles in a grid
func (s Size) Count() uint {
	return s.W * s.H
}

// Level is one resolution of the image
type Level struct {
	Index     uint `json:"index"`
	ImageSize Size `json:"imageSize"`
	GridSize  Size `json:"gridSize"`
}

// Retina controls the compensation for high density displays
type Retina struct {
	Active bool
	// Lower the maximum zoom by one so the full resolution is not upscaled
	AdjustMaxZoom bool
}

// Pyramid is immutable after Build and safe for concurrent use
type Pyramid struct {
	levels     []Level
	tileSize   uint
	zoomOffset uint
	maxZoom    uint
	retina     Retina
}

// Build halves the full image size until it fits in a single tile.
func Build(width, height, tileSize int, retina Retina) (*Pyramid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: image of %dx%d pixels", ErrInvalidDimension, width, height)
	}
	if tileSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTileSize, tileSize)
	}

	edge := uint(tileSize)
	maxZoomAdjust := uint(0)
	if retina.Active {
		edge /= 2
		if edge == 0 {
			return nil, fmt.Errorf("%w: %d cannot be halved for retina", ErrInvalidTileSize, tileSize)
		}
		maxZoomAdjust = uint(mathhelp.Bool2int(retina.AdjustMaxZoom))
	}

	imageSize := Size{W: uint(width), H: uint(height)}
	levels := []Level{{ImageSize: imageSize, GridSize: gridSize(imageSize, edge)}}
	for !imageSize.fitsIn(edge) {
		imageSize = imageSize.half()
		levels = append(levels, Level{ImageSize: imageSize, GridSize: gridSize(imageSize, edge)})
	}
	levels = mapslicehelp.ReverseClone(levels)
	for i := range levels {
		levels[i].Index = uint(i)
	}

	maxZoom := uint(len(levels) - 1)
	if maxZoom >= maxZoomAdjust {
		maxZoom -= maxZoomAdjust
	}

	return &Pyramid{
		levels:     levels,
		tileSize:   edge,
		zoomOffset: uint(mathhelp.Bool2int(retina.Active)),
		maxZoom:    maxZoom,
		retina:     retina,
	}, nil
}

func gridSize(imageSize Size, tileSize uint) Size {
	return Size{
		W: mathhelp.CeilDiv(imageSize.W, tileSize),
		H: mathhelp.CeilDiv(imageSize.H, tileSize),
	}
}

// Levels returns a copy of the levels, coarsest first
func (p *Pyramid) Levels() []Level {
	levels := make([]Level, len(p.levels))
	copy(levels, p.levels)
	return levels
}

func (p *Pyramid) NumLevels() int {
	return len(p.levels)
}

// Level returns the level with the given index
func (p *Pyramid) Level(zoom uint) (Level, bool) {
	if zoom >= uint(len(p.levels)) {
		return Level{}, false
	}
	return p.levels[zoom], true
}

// Finest returns the full resolution level
func (p *Pyramid) Finest() Level {
	return *mapslicehelp.LastElement(p.levels)
}

// TileSize is the effective tile edge in pixels, halved when retina is active
func (p *Pyramid) TileSize() uint {
	return p.tileSize
}

// ZoomOffset is added by a map host to a display zoom to request tiles, 1 when retina is active
func (p *Pyramid) ZoomOffset() uint {
	return p.zoomOffset
}

func (p *Pyramid) Retina() Retina {
	return p.retina
}

func (p *Pyramid) MinZoom() uint {
	return 0
}

func (p *Pyramid) MaxZoom() uint {
	return p.maxZoom
}

// CheckZoom fails with ErrZoomOutOfRange when zoom is not in [MinZoom, MaxZoom]
func (p *Pyramid) CheckZoom(zoom int) error {
	if zoom < int(p.MinZoom()) || zoom > int(p.MaxZoom()) {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrZoomOutOfRange, zoom, p.MinZoom(), p.MaxZoom())
	}
	return nil
}

// Equal reports whether both pyramids consist of the same levels and zoom parameters
func (p *Pyramid) Equal(o *Pyramid) bool {
	if p == nil || o == nil {
		return p == o
	}
	if p.tileSize != o.tileSize || p.zoomOffset != o.zoomOffset || p.maxZoom != o.maxZoom {
		return false
	}
	if len(p.levels) != len(o.levels) {
		return false
	}
	for i := range p.levels {
		if p.levels[i] != o.levels[i] {
			return false
		}
	}
	return true
}
