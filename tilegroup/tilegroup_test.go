package tilegroup

import (
	"fmt"
	"testing"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/slippy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdok/facsimile/pyramid"
)

func mustBuild(t *testing.T, width, height int) *pyramid.Pyramid {
	t.Helper()
	p, err := pyramid.Build(width, height, 256, pyramid.Retina{})
	require.NoError(t, err)
	return p
}

func TestIndexAndNumber(t *testing.T) {
	// tiles per level: 1, 4, 12, 48, 192
	p := mustBuild(t, 4096, 3072)
	tests := []struct {
		tile  *slippy.Tile
		index uint
		group uint
	}{
		{tile: &slippy.Tile{Z: 0, X: 0, Y: 0}, index: 0, group: 0},
		{tile: &slippy.Tile{Z: 1, X: 1, Y: 1}, index: 4, group: 0},
		{tile: &slippy.Tile{Z: 2, X: 3, Y: 1}, index: 1 + 4 + 1*4 + 3, group: 0},
		{tile: &slippy.Tile{Z: 3, X: 0, Y: 0}, index: 17, group: 0},
		{tile: &slippy.Tile{Z: 4, X: 14, Y: 11}, index: 255, group: 0},
		{tile: &slippy.Tile{Z: 4, X: 15, Y: 11}, index: 256, group: 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d-%d-%d", tt.tile.Z, tt.tile.X, tt.tile.Y), func(t *testing.T) {
			index, err := Index(p, tt.tile)
			require.NoError(t, err)
			assert.Equal(t, tt.index, index)
			group, err := Number(p, tt.tile)
			require.NoError(t, err)
			assert.Equal(t, tt.group, group)
		})
	}
}

func TestNumberAcrossGroups(t *testing.T) {
	// 40000x30000: tiles per level 1, 2, 6, 20, 80, 300, 1200, 4661, 18526
	p := mustBuild(t, 40000, 30000)
	levels := p.Levels()
	var before uint
	for _, l := range levels[:6] {
		before += l.GridSize.Count()
	}
	require.Equal(t, uint(409), before)
	l6 := levels[6]
	tile := &slippy.Tile{Z: 6, X: 3, Y: 1}
	group, err := Number(p, tile)
	require.NoError(t, err)
	assert.Equal(t, (before+1*l6.GridSize.W+3)/TilesPerGroup, group)
	assert.Equal(t, uint(1), group)
}

func TestNumberIsMonotonic(t *testing.T) {
	for _, dims := range [][2]int{{4096, 3072}, {40000, 30000}, {5000, 7013}, {300, 200}} {
		t.Run(fmt.Sprintf("%dx%d", dims[0], dims[1]), func(t *testing.T) {
			p := mustBuild(t, dims[0], dims[1])
			var lastIndex, lastGroup uint
			first := true
			for _, l := range p.Levels() {
				levelFirstGroup := true
				for y := uint(0); y < l.GridSize.H; y++ {
					for x := uint(0); x < l.GridSize.W; x++ {
						tile := slippy.NewTile(l.Index, x, y)
						index, err := Index(p, tile)
						require.NoError(t, err)
						group, err := Number(p, tile)
						require.NoError(t, err)
						if !first {
							require.Equal(t, lastIndex+1, index)
							require.GreaterOrEqual(t, group, lastGroup)
						}
						if levelFirstGroup {
							// the first group of a level is never before the last group of the coarser level
							require.GreaterOrEqual(t, group, lastGroup)
							levelFirstGroup = false
						}
						lastIndex, lastGroup, first = index, group, false
					}
				}
			}
		})
	}
}

func TestURL(t *testing.T) {
	p := mustBuild(t, 4096, 3072)
	url, err := URL("https://example.org/facsimiles/page1/", p, &slippy.Tile{Z: 4, X: 15, Y: 11})
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/facsimiles/page1/TileGroup1/4-15-11.jpg", url)

	path, err := Path(p, &slippy.Tile{Z: 2, X: 3, Y: 1})
	require.NoError(t, err)
	assert.Equal(t, "TileGroup0/2-3-1.jpg", path)
}

func TestOutOfRange(t *testing.T) {
	p := mustBuild(t, 4096, 3072)
	tests := []struct {
		tile *slippy.Tile
		err  error
	}{
		{tile: &slippy.Tile{Z: 2, X: 4, Y: 0}, err: pyramid.ErrCoordinateOutOfRange},
		{tile: &slippy.Tile{Z: 2, X: 0, Y: 3}, err: pyramid.ErrCoordinateOutOfRange},
		{tile: &slippy.Tile{Z: 0, X: 1, Y: 0}, err: pyramid.ErrCoordinateOutOfRange},
		{tile: &slippy.Tile{Z: 5, X: 0, Y: 0}, err: pyramid.ErrZoomOutOfRange},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d-%d-%d", tt.tile.Z, tt.tile.X, tt.tile.Y), func(t *testing.T) {
			_, err := Number(p, tt.tile)
			assert.ErrorIs(t, err, tt.err)
			url, err := URL("base/", p, tt.tile)
			assert.ErrorIs(t, err, tt.err)
			assert.Empty(t, url)
		})
	}
}

func TestVisible(t *testing.T) {
	p := mustBuild(t, 4096, 3072)
	tests := []struct {
		name   string
		zoom   uint
		extent geom.Extent
		want   Range
	}{
		{name: "whole image at full resolution",
			zoom:   4,
			extent: geom.Extent{0, 0, 4096, 3072},
			want:   Range{Zoom: 4, MinX: 0, MinY: 0, MaxX: 15, MaxY: 11}},
		{name: "whole image on the coarsest level",
			zoom:   0,
			extent: geom.Extent{0, 0, 4096, 3072},
			want:   Range{Zoom: 0}},
		{name: "viewport inside the image",
			zoom:   4,
			extent: geom.Extent{300, 600, 1000, 700},
			want:   Range{Zoom: 4, MinX: 1, MinY: 2, MaxX: 3, MaxY: 2}},
		{name: "viewport larger than the image is clipped",
			zoom:   2,
			extent: geom.Extent{-5000, -5000, 10000, 10000},
			want:   Range{Zoom: 2, MinX: 0, MinY: 0, MaxX: 3, MaxY: 2}},
		{name: "viewport right of the image",
			zoom:   3,
			extent: geom.Extent{5000, 0, 6000, 100},
			want:   Range{Zoom: 3, Empty: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Visible(p, tt.zoom, tt.extent)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Visible(p, 5, geom.Extent{0, 0, 1, 1})
	assert.ErrorIs(t, err, pyramid.ErrZoomOutOfRange)
}

func TestRange_Tiles(t *testing.T) {
	r := Range{Zoom: 3, MinX: 2, MinY: 4, MaxX: 3, MaxY: 5}
	assert.Equal(t, uint(4), r.Count())
	assert.Equal(t, []*slippy.Tile{
		{Z: 3, X: 2, Y: 4}, {Z: 3, X: 3, Y: 4},
		{Z: 3, X: 2, Y: 5}, {Z: 3, X: 3, Y: 5},
	}, r.Tiles())

	empty := Range{Zoom: 3, Empty: true}
	assert.Equal(t, uint(0), empty.Count())
	assert.Nil(t, empty.Tiles())
}
