package tms20

import (
	"encoding/json"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdok/facsimile/pyramid"
)

func TestFromPyramid(t *testing.T) {
	p, err := pyramid.Build(4096, 3072, 256, pyramid.Retina{})
	require.NoError(t, err)
	tms, err := FromPyramid(p, "page1", 300)
	require.NoError(t, err)

	require.Len(t, tms.TileMatrices, 5)
	assert.Equal(t, "ImageCRS", tms.CRS.AuthorityCode())
	assert.Equal(t, "OGC", tms.CRS.AuthorityName())
	assert.Equal(t, TwoDPoint{4096, 3072}, tms.BoundingBox.UpperRight)

	tests := []struct {
		zoom                      int
		cellSize                  float64
		matrixWidth, matrixHeight uint
	}{
		{zoom: 0, cellSize: 16, matrixWidth: 1, matrixHeight: 1},
		{zoom: 2, cellSize: 4, matrixWidth: 4, matrixHeight: 3},
		{zoom: 4, cellSize: 1, matrixWidth: 16, matrixHeight: 12},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.zoom), func(t *testing.T) {
			tm := tms.TileMatrices[tt.zoom]
			assert.Equal(t, fmt.Sprint(tt.zoom), tm.ID)
			assert.Equal(t, tt.cellSize, tm.CellSize)
			assert.Equal(t, tt.matrixWidth, tm.MatrixWidth)
			assert.Equal(t, tt.matrixHeight, tm.MatrixHeight)
			assert.Equal(t, uint(256), tm.TileWidth)
			// 300 dpi pixels are smaller than the standardized rendering pixel of 0.28 mm
			assert.InDelta(t, tt.cellSize*0.0254/300/0.00028, tm.ScaleDenominator, 1e-12)
		})
	}
}

func TestMarshalJSON(t *testing.T) {
	p, err := pyramid.Build(300, 200, 256, pyramid.Retina{})
	require.NoError(t, err)
	tms, err := FromPyramid(p, "page", 0)
	require.NoError(t, err)

	got, err := json.Marshal(&tms)
	require.NoError(t, err)
	want, err := os.ReadFile("testdata/page.json")
	require.NoError(t, err)
	require.JSONEq(t, string(want), string(got))
}

func TestLoadJSONTileMatrixSet(t *testing.T) {
	tms, err := LoadJSONTileMatrixSet("testdata/page.json")
	require.NoError(t, err)
	assert.Equal(t, "page", tms.ID)
	assert.Equal(t, []string{"X", "Y"}, tms.OrderedAxes)
	assert.Equal(t, ImageCRS, tms.CRS.URI())
	require.Len(t, tms.TileMatrices, 2)
	assert.Equal(t, uint(2), tms.TileMatrices[1].MatrixWidth)

	remarshalled, err := json.Marshal(&tms)
	require.NoError(t, err)
	raw, err := os.ReadFile("testdata/page.json")
	require.NoError(t, err)
	require.JSONEq(t, string(raw), string(remarshalled))
}

func TestToPyramid(t *testing.T) {
	for _, dims := range [][2]int{{300, 200}, {4096, 3072}, {5000, 7013}} {
		t.Run(fmt.Sprintf("%dx%d", dims[0], dims[1]), func(t *testing.T) {
			p, err := pyramid.Build(dims[0], dims[1], 256, pyramid.Retina{})
			require.NoError(t, err)
			tms, err := FromPyramid(p, "page", 600)
			require.NoError(t, err)

			data, err := json.Marshal(&tms)
			require.NoError(t, err)
			var decoded TileMatrixSet
			require.NoError(t, json.Unmarshal(data, &decoded))

			rebuilt, err := decoded.ToPyramid()
			require.NoError(t, err)
			assert.True(t, p.Equal(rebuilt))
		})
	}
}

func TestToPyramidMismatch(t *testing.T) {
	tms, err := LoadJSONTileMatrixSet("testdata/mismatch.json")
	require.NoError(t, err)
	_, err = tms.ToPyramid()
	assert.ErrorIs(t, err, ErrMismatch)
	assert.NotErrorIs(t, err, pyramid.ErrCoordinateOutOfRange)

	// 300x200 has two levels
	var single TileMatrixSet
	require.NoError(t, json.Unmarshal([]byte(`{"crs": "urn:ogc:def:crs:OGC::ImageCRS",
		"boundingBox": {"lowerLeft": [0, 0], "upperRight": [300, 200]},
		"tileMatrices": [{"id": "0", "scaleDenominator": 1, "cellSize": 1, "pointOfOrigin": [0, 0],
		 "tileWidth": 256, "tileHeight": 256, "matrixWidth": 1, "matrixHeight": 1}]}`), &single))
	_, err = single.ToPyramid()
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestUnmarshalJSONErrors(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{name: "no crs", json: `{"tileMatrices": []}`},
		{name: "crs object", json: `{"crs": {"uri": "urn:ogc:def:crs:OGC::ImageCRS"}, "tileMatrices": []}`},
		{name: "unparsable crs", json: `{"crs": "pixels", "tileMatrices": []}`},
		{name: "no tile matrices", json: `{"crs": "urn:ogc:def:crs:OGC::ImageCRS"}`},
		{name: "empty tile matrices", json: `{"crs": "urn:ogc:def:crs:OGC::ImageCRS", "tileMatrices": []}`},
		{name: "non numeric id", json: `{"crs": "urn:ogc:def:crs:OGC::ImageCRS", "tileMatrices": [
			{"id": "a", "scaleDenominator": 1, "cellSize": 1, "pointOfOrigin": [0, 0],
			 "tileWidth": 256, "tileHeight": 256, "matrixWidth": 1, "matrixHeight": 1}]}`},
		{name: "duplicate level", json: `{"crs": "urn:ogc:def:crs:OGC::ImageCRS", "tileMatrices": [
			{"id": "0", "scaleDenominator": 1, "cellSize": 1, "pointOfOrigin": [0, 0],
			 "tileWidth": 256, "tileHeight": 256, "matrixWidth": 1, "matrixHeight": 1},
			{"id": "0", "scaleDenominator": 1, "cellSize": 1, "pointOfOrigin": [0, 0],
			 "tileWidth": 256, "tileHeight": 256, "matrixWidth": 1, "matrixHeight": 1}]}`},
		{name: "http crs", json: `{"crs": "http://www.opengis.net/def/crs/OGC/0/ImageCRS", "tileMatrices": []}`},
		{name: "zero matrix width", json: `{"crs": "urn:ogc:def:crs:OGC::ImageCRS", "tileMatrices": [
			{"id": "0", "scaleDenominator": 1, "cellSize": 1, "pointOfOrigin": [0, 0],
			 "tileWidth": 256, "tileHeight": 256, "matrixWidth": 0, "matrixHeight": 1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tms TileMatrixSet
			assert.Error(t, json.Unmarshal([]byte(tt.json), &tms))
		})
	}
}
