package tilegroup

import (
	"fmt"
	"math"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/slippy"

	"github.com/pdok/facsimile/pyramid"
)

// Range is an inclusive range of tiles on one level
type Range struct {
	Zoom       uint
	MinX, MinY uint
	MaxX, MaxY uint
	Empty      bool
}

// Count is the number of tiles in the range
func (r Range) Count() uint {
	if r.Empty {
		return 0
	}
	return (r.MaxX - r.MinX + 1) * (r.MaxY - r.MinY + 1)
}

// Tiles enumerates the range row-major, the same order as Index
func (r Range) Tiles() []*slippy.Tile {
	if r.Empty {
		return nil
	}
	tiles := make([]*slippy.Tile, 0, r.Count())
	for y := r.MinY; y <= r.MaxY; y++ {
		for x := r.MinX; x <= r.MaxX; x++ {
			tiles = append(tiles, slippy.NewTile(r.Zoom, x, y))
		}
	}
	return tiles
}

// Visible returns the tiles of a level covering an extent in full resolution pixels.
// The extent is clipped to the image; an extent that misses the image gives an empty range.
func Visible(p *pyramid.Pyramid, zoom uint, extent geom.Extent) (Range, error) {
	grid, ok := p.Size(zoom)
	if !ok {
		return Range{}, fmt.Errorf("%w: level %d not in [0, %d]", pyramid.ErrZoomOutOfRange, zoom, p.NumLevels()-1)
	}
	empty := Range{Zoom: zoom, Empty: true}
	tileSizeNative := float64(p.TileSize()) * p.Downscale(zoom)

	minX := math.Floor(extent.MinX() / tileSizeNative)
	minY := math.Floor(extent.MinY() / tileSizeNative)
	// maxX and maxY are exclusive
	maxX := math.Ceil(extent.MaxX()/tileSizeNative) - 1
	maxY := math.Ceil(extent.MaxY()/tileSizeNative) - 1

	minX = math.Max(minX, 0)
	minY = math.Max(minY, 0)
	maxX = math.Min(maxX, float64(grid.X)-1)
	maxY = math.Min(maxY, float64(grid.Y)-1)
	if minX > maxX || minY > maxY {
		return empty, nil
	}
	return Range{
		Zoom: zoom,
		MinX: uint(minX),
		MinY: uint(minY),
		MaxX: uint(maxX),
		MaxY: uint(maxY),
	}, nil
}
