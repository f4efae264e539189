// Package descriptor reads the description of a facsimile image: its size, resolution and tile set location.
package descriptor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/perimeterx/marshmallow"
	"gopkg.in/yaml.v3"

	"github.com/pdok/facsimile/pyramid"
)

// ImageDescriptor describes a scanned page and its tile set
type ImageDescriptor struct {
	// Width of the full resolution image in pixels
	Width int `validate:"gt=0" json:"width" yaml:"width"`
	// Height of the full resolution image in pixels
	Height int `validate:"gt=0" json:"height" yaml:"height"`
	// Resolution of the scan in dots per inch, 0 when unknown (no scale bar)
	DPI float64 `validate:"gte=0" json:"dpi,omitempty" yaml:"dpi,omitempty"`
	// Edge of a tile in pixels, must match the tile set
	TileSize int `default:"256" validate:"gt=0" json:"tileSize" yaml:"tileSize"`
	// Compensate for high density displays
	Retina bool `json:"retina,omitempty" yaml:"retina,omitempty"`
	// Lower the maximum zoom by one under retina
	RetinaAdjustMaxZoom bool `default:"true" json:"retinaAdjustMaxZoom" yaml:"retinaAdjustMaxZoom"`
	// Location of the tile set, the TileGroup directories are appended to it
	BaseURL string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	// Best fit tolerance
	Tolerance float64 `default:"0.8" validate:"gt=0" json:"tolerance" yaml:"tolerance"`
}

// New returns a descriptor with defaults for everything but the dimensions
func New(width, height int) (ImageDescriptor, error) {
	var d ImageDescriptor
	if err := defaults.Set(&d); err != nil {
		return d, err
	}
	d.Width = width
	d.Height = height
	return d, d.Validate()
}

func (d *ImageDescriptor) UnmarshalJSON(data []byte) error {
	err := defaults.Set(d)
	if err != nil {
		return err
	}
	unknown, err := marshmallow.Unmarshal(data, d, marshmallow.WithExcludeKnownFieldsFromMap(true))
	if err != nil {
		return err
	}
	if len(unknown) > 0 {
		keys := make([]string, 0, len(unknown))
		for k := range unknown {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Errorf(`unknown image descriptor keys: %v`, keys)
	}
	return d.Validate()
}

func (d *ImageDescriptor) UnmarshalYAML(value *yaml.Node) error {
	err := defaults.Set(d)
	if err != nil {
		return err
	}
	// plain type without the UnmarshalYAML method
	type plain ImageDescriptor
	if err = value.Decode((*plain)(d)); err != nil {
		return err
	}
	return d.Validate()
}

func (d *ImageDescriptor) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(d)
}

// Load reads a descriptor from a JSON or YAML (.yaml, .yml) file
func Load(path string) (ImageDescriptor, error) {
	var d ImageDescriptor
	data, err := os.ReadFile(path)
	if err != nil {
		return d, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &d)
	default:
		err = d.UnmarshalJSON(data)
	}
	if err != nil {
		return d, fmt.Errorf("could not load image descriptor %s: %w", path, err)
	}
	return d, nil
}

func (d *ImageDescriptor) RetinaMode() pyramid.Retina {
	return pyramid.Retina{Active: d.Retina, AdjustMaxZoom: d.RetinaAdjustMaxZoom}
}

// Pyramid builds the tile pyramid of the image
func (d *ImageDescriptor) Pyramid() (*pyramid.Pyramid, error) {
	return pyramid.Build(d.Width, d.Height, d.TileSize, d.RetinaMode())
}

// MaxDimension is the longest side of the full resolution image
func (d *ImageDescriptor) MaxDimension() float64 {
	return float64(max(d.Width, d.Height))
}
