// Package tms20 describes a facsimile pyramid as an OGC Tile Matrix Set (v2.0)
// See https://www.ogc.org/standard/tms/
//
// The CRS is the pixel space of the full resolution image: origin in the top left corner,
// y pointing down, one unit per pixel.
package tms20

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strconv"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/perimeterx/marshmallow"

	"github.com/pdok/facsimile/pyramid"
)

const (
	// ImageCRS identifies the pixel space of the full resolution image
	ImageCRS = "urn:ogc:def:crs:OGC::ImageCRS"

	standardizedRenderingPixelSize = 0.00028 // meters
	metersPerInch                  = 0.0254
)

// ErrMismatch means a tile matrix set does not describe the pyramid of its bounding box
var ErrMismatch = errors.New("tile matrix set does not match the image")

// TileMatrixSet is a definition of a tile matrix set following the Tile Matrix Set standard.
type TileMatrixSet struct {
	// Tile matrix set identifier. Implementation of 'identifier'
	ID string `json:"id,omitempty"`
	// Title of this tile matrix set, normally used for display to a human
	Title string `json:"title,omitempty"`
	// Brief narrative description of this tile matrix set, normally available for display to a human
	Description string `json:"description,omitempty"`
	// Reference to an official source for this TileMatrixSet
	URI         string   `validate:"omitempty,uri" json:"uri,omitempty"`
	OrderedAxes []string `default:"[\"X\",\"Y\"]" validate:"omitnil,min=1" json:"orderedAxes"`
	// Coordinate Reference System (CRS)
	CRS URICRS `validate:"required" json:"-"`
	// Minimum bounding rectangle surrounding the tile matrix set, in the supported CRS
	BoundingBox *TwoDBoundingBox `json:"boundingBox,omitempty"`
	// Describes scale levels and its tile matrices
	TileMatrices map[int]TileMatrix `validate:"required,min=1,dive" json:"-"`
}

// A tile matrix, corresponding to a level of the pyramid
type TileMatrix struct {
	// Identifier of the tile matrix, the level index. Implementation of 'identifier'
	ID string `validate:"required" json:"id"`
	// Scale denominator of this tile matrix
	ScaleDenominator float64 `validate:"required,gt=0" json:"scaleDenominator"`
	// Cell size of this tile matrix, full resolution pixels per pixel of this level
	CellSize float64 `validate:"required,gt=0" json:"cellSize"`
	// The corner of the tile matrix used as the origin for numbering tile rows and columns.
	CornerOfOrigin string `default:"topLeft" validate:"oneof=topLeft" json:"cornerOfOrigin,omitempty"`
	// Position in CRS coordinates of the corner of origin
	PointOfOrigin TwoDPoint `json:"pointOfOrigin"`
	// Width of each tile of this tile matrix in pixels
	TileWidth uint `validate:"required,min=1" json:"tileWidth"`
	// Height of each tile of this tile matrix in pixels
	TileHeight uint `validate:"required,min=1" json:"tileHeight"`
	// Width of the matrix (number of tiles in width)
	MatrixWidth uint `validate:"required,min=1" json:"matrixWidth"`
	// Height of the matrix (number of tiles in height)
	MatrixHeight uint `validate:"required,min=1" json:"matrixHeight"`
}

// A 2D Point in the CRS indicated elsewhere
type TwoDPoint [2]float64

// Minimum bounding rectangle surrounding a 2D resource in the CRS indicated elsewhere
type TwoDBoundingBox struct {
	LowerLeft  TwoDPoint `json:"lowerLeft"`
	UpperRight TwoDPoint `json:"upperRight"`
}

var crsURN = regexp.MustCompile(`^urn:ogc:def:crs:([^:]+):[^:]*:([^:]+)$`)

// URICRS is a coordinate reference system referenced by its OGC URN, e.g. urn:ogc:def:crs:OGC::ImageCRS
type URICRS struct {
	uri       string
	authority string
	code      string
}

func NewURICRS(uri string) (URICRS, error) {
	parts := crsURN.FindStringSubmatch(uri)
	if parts == nil {
		return URICRS{}, fmt.Errorf(`could not parse crs urn "%v"`, uri)
	}
	return URICRS{uri: uri, authority: parts[1], code: parts[2]}, nil
}

func (crs URICRS) URI() string {
	return crs.uri
}

func (crs URICRS) AuthorityName() string {
	return crs.authority
}

func (crs URICRS) AuthorityCode() string {
	return crs.code
}

// FromPyramid describes every level of p as a tile matrix.
// The dpi is used for the scale denominators; without one a pixel counts as a standardized rendering pixel.
func FromPyramid(p *pyramid.Pyramid, id string, dpi float64) (TileMatrixSet, error) {
	crs, err := NewURICRS(ImageCRS)
	if err != nil {
		return TileMatrixSet{}, err
	}
	metersPerPixel := standardizedRenderingPixelSize
	if dpi > 0 {
		metersPerPixel = metersPerInch / dpi
	}
	finest := p.Finest()
	tms := TileMatrixSet{
		ID:          id,
		Title:       id,
		OrderedAxes: []string{"X", "Y"},
		CRS:         crs,
		BoundingBox: &TwoDBoundingBox{
			LowerLeft:  TwoDPoint{0, 0},
			UpperRight: TwoDPoint{float64(finest.ImageSize.W), float64(finest.ImageSize.H)},
		},
		TileMatrices: make(map[int]TileMatrix, p.NumLevels()),
	}
	for _, l := range p.Levels() {
		cellSize := p.Downscale(l.Index)
		tms.TileMatrices[int(l.Index)] = TileMatrix{
			ID:               strconv.FormatUint(uint64(l.Index), 10),
			ScaleDenominator: cellSize * metersPerPixel / standardizedRenderingPixelSize,
			CellSize:         cellSize,
			CornerOfOrigin:   "topLeft",
			PointOfOrigin:    TwoDPoint{0, 0},
			TileWidth:        p.TileSize(),
			TileHeight:       p.TileSize(),
			MatrixWidth:      l.GridSize.W,
			MatrixHeight:     l.GridSize.H,
		}
	}
	return tms, nil
}

// ToPyramid rebuilds the pyramid of a tile matrix set written by FromPyramid and checks that every matrix matches it
func (tms *TileMatrixSet) ToPyramid() (*pyramid.Pyramid, error) {
	if tms.BoundingBox == nil {
		return nil, fmt.Errorf(`tile matrix set %v has no bounding box`, tms.ID)
	}
	tm0, ok := tms.TileMatrices[0]
	if !ok {
		return nil, fmt.Errorf(`tile matrix set %v has no tile matrix 0`, tms.ID)
	}
	width := tms.BoundingBox.UpperRight[0] - tms.BoundingBox.LowerLeft[0]
	height := tms.BoundingBox.UpperRight[1] - tms.BoundingBox.LowerLeft[1]
	p, err := pyramid.Build(int(width), int(height), int(tm0.TileWidth), pyramid.Retina{})
	if err != nil {
		return nil, err
	}
	if p.NumLevels() != len(tms.TileMatrices) {
		return nil, fmt.Errorf(`%w: tile matrix set %v has %d tile matrices, the image has %d levels`,
			ErrMismatch, tms.ID, len(tms.TileMatrices), p.NumLevels())
	}
	for _, l := range p.Levels() {
		tm, ok := tms.TileMatrices[int(l.Index)]
		if !ok {
			return nil, fmt.Errorf(`%w: tile matrix set %v has no tile matrix %d`, ErrMismatch, tms.ID, l.Index)
		}
		if tm.MatrixWidth != l.GridSize.W || tm.MatrixHeight != l.GridSize.H {
			return nil, fmt.Errorf(`%w: tile matrix %d of %v is %dx%d, level is %dx%d`, ErrMismatch, l.Index, tms.ID,
				tm.MatrixWidth, tm.MatrixHeight, l.GridSize.W, l.GridSize.H)
		}
	}
	return p, nil
}

func LoadJSONTileMatrixSet(path string) (TileMatrixSet, error) {
	var tms TileMatrixSet
	tmsJSON, err := os.ReadFile(path)
	if err != nil {
		return tms, err
	}
	err = json.Unmarshal(tmsJSON, &tms)
	return tms, err
}

// MarshalJSON writes the crs as a URN string and the tile matrices as an array, coarsest level first
func (tms *TileMatrixSet) MarshalJSON() ([]byte, error) {
	levels := make([]int, 0, len(tms.TileMatrices))
	for level := range tms.TileMatrices {
		levels = append(levels, level)
	}
	slices.Sort(levels)
	tileMatrices := make([]TileMatrix, 0, len(levels))
	for _, level := range levels {
		tileMatrices = append(tileMatrices, tms.TileMatrices[level])
	}
	// plain has no MarshalJSON, its CRS and TileMatrices are hidden by the outer fields
	type plain TileMatrixSet
	return json.Marshal(struct {
		plain
		CRS          string       `json:"crs"`
		TileMatrices []TileMatrix `json:"tileMatrices"`
	}{
		plain:        plain(*tms),
		CRS:          tms.CRS.uri,
		TileMatrices: tileMatrices,
	})
}

func (tms *TileMatrixSet) UnmarshalJSON(data []byte) error {
	if err := defaults.Set(tms); err != nil {
		return err
	}
	rest, err := marshmallow.Unmarshal(data, tms, marshmallow.WithExcludeKnownFieldsFromMap(true))
	if err != nil {
		return err
	}

	crs, ok := rest["crs"].(string)
	if !ok {
		return fmt.Errorf(`"crs" should be a urn string, got %T`, rest["crs"])
	}
	if tms.CRS, err = NewURICRS(crs); err != nil {
		return err
	}
	rawMatrices, ok := rest["tileMatrices"].([]interface{})
	if !ok {
		return fmt.Errorf(`"tileMatrices" should be an array, got %T`, rest["tileMatrices"])
	}
	if tms.TileMatrices, err = decodeTileMatrices(rawMatrices); err != nil {
		return err
	}
	return validator.New(validator.WithRequiredStructEnabled()).Struct(tms)
}

// decodeTileMatrices keys the tile matrices by level, taken from their id
func decodeTileMatrices(raw []interface{}) (map[int]TileMatrix, error) {
	tileMatrices := make(map[int]TileMatrix, len(raw))
	for i, r := range raw {
		obj, ok := r.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf(`tile matrix %d should be an object`, i)
		}
		var tm TileMatrix
		if err := defaults.Set(&tm); err != nil {
			return nil, err
		}
		if _, err := marshmallow.UnmarshalFromJSONMap(obj, &tm); err != nil {
			return nil, err
		}
		level, err := strconv.Atoi(tm.ID)
		if err != nil {
			return nil, fmt.Errorf("tile matrix id %q is not a level: %w", tm.ID, err)
		}
		if _, dup := tileMatrices[level]; dup {
			return nil, fmt.Errorf("duplicate tile matrix %d", level)
		}
		tileMatrices[level] = tm
	}
	return tileMatrices, nil
}
