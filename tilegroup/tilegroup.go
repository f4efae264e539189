// Package tilegroup addresses the tiles of a pyramid the way Zoomify style tile sets are stored on disk:
// tiles are numbered coarsest level first and row-major within a level,
// and every 256 consecutive tiles share a TileGroup directory.
package tilegroup

import (
	"fmt"

	"github.com/go-spatial/geom/slippy"

	"github.com/pdok/facsimile/pyramid"
)

// TilesPerGroup must match the tool that generated the tile set
const TilesPerGroup = 256

// Index is the sequence number of a tile across all levels up to and including its own
func Index(p *pyramid.Pyramid, tile *slippy.Tile) (uint, error) {
	if err := p.CheckTile(tile); err != nil {
		return 0, err
	}
	var num uint
	for z := uint(0); z < tile.Z; z++ {
		l, _ := p.Level(z)
		num += l.GridSize.Count()
	}
	l, _ := p.Level(tile.Z)
	num += tile.Y*l.GridSize.W + tile.X
	return num, nil
}

// Number is the tile group a tile is stored in
func Number(p *pyramid.Pyramid, tile *slippy.Tile) (uint, error) {
	num, err := Index(p, tile)
	if err != nil {
		return 0, err
	}
	return num / TilesPerGroup, nil
}

// Path is the location of a tile relative to the root of the tile set, e.g. TileGroup0/2-3-1.jpg
func Path(p *pyramid.Pyramid, tile *slippy.Tile) (string, error) {
	group, err := Number(p, tile)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("TileGroup%d/%d-%d-%d.jpg", group, tile.Z, tile.X, tile.Y), nil
}

// URL appends the tile path to baseURL as is, so baseURL should end with a slash
func URL(baseURL string, p *pyramid.Pyramid, tile *slippy.Tile) (string, error) {
	path, err := Path(p, tile)
	if err != nil {
		return "", err
	}
	return baseURL + path, nil
}
