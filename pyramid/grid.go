package pyramid

import (
	"fmt"
	"math"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/slippy"

	"github.com/pdok/facsimile/mathhelp"
)

// Size returns the dimensions of the tile grid of a level as a tile (X = columns, Y = rows)
func (p *Pyramid) Size(zoom uint) (*slippy.Tile, bool) {
	l, ok := p.Level(zoom)
	if !ok {
		return nil, false
	}
	return slippy.NewTile(zoom, l.GridSize.W, l.GridSize.H), true
}

// Downscale is the factor between the full resolution and the given level
func (p *Pyramid) Downscale(zoom uint) float64 {
	return mathhelp.Pow2f(len(p.levels) - 1 - int(zoom))
}

// FromNative returns the tile of a level containing a full resolution pixel.
// Pixels outside the image have no tile.
func (p *Pyramid) FromNative(zoom uint, pt geom.Point) (*slippy.Tile, bool) {
	l, ok := p.Level(zoom)
	if !ok {
		return nil, false
	}
	tileSizeNative := float64(p.tileSize) * p.Downscale(zoom)
	x := math.Floor(pt.X() / tileSizeNative)
	y := math.Floor(pt.Y() / tileSizeNative)
	if x < 0 || y < 0 || x >= float64(l.GridSize.W) || y >= float64(l.GridSize.H) {
		return nil, false
	}
	return slippy.NewTile(zoom, uint(x), uint(y)), true
}

// ToNative returns the full resolution pixel of the upper left corner of a tile
func (p *Pyramid) ToNative(tile *slippy.Tile) (geom.Point, bool) {
	if err := p.CheckTile(tile); err != nil {
		return geom.Point{}, false
	}
	tileSizeNative := float64(p.tileSize) * p.Downscale(tile.Z)
	return geom.Point{float64(tile.X) * tileSizeNative, float64(tile.Y) * tileSizeNative}, true
}

// CheckTile fails when the level does not exist or the column or row is not in its grid
func (p *Pyramid) CheckTile(tile *slippy.Tile) error {
	if tile == nil {
		return fmt.Errorf("%w: no tile", ErrCoordinateOutOfRange)
	}
	l, ok := p.Level(tile.Z)
	if !ok {
		return fmt.Errorf("%w: level %d not in [0, %d]", ErrZoomOutOfRange, tile.Z, len(p.levels)-1)
	}
	if tile.X >= l.GridSize.W || tile.Y >= l.GridSize.H {
		return fmt.Errorf("%w: %d-%d-%d outside grid of %dx%d", ErrCoordinateOutOfRange,
			tile.Z, tile.X, tile.Y, l.GridSize.W, l.GridSize.H)
	}
	return nil
}

// TileImageSize returns the pixels a tile covers at its own level.
// Tiles in the last column and row only hold what is left of the image.
func (p *Pyramid) TileImageSize(tile *slippy.Tile) (Size, bool) {
	if err := p.CheckTile(tile); err != nil {
		return Size{}, false
	}
	l := p.levels[tile.Z]
	return Size{
		W: min(p.tileSize, l.ImageSize.W-tile.X*p.tileSize),
		H: min(p.tileSize, l.ImageSize.H-tile.Y*p.tileSize),
	}, true
}
