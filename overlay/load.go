package overlay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/perimeterx/marshmallow"
	"gopkg.in/yaml.v3"
)

var ErrInvalidScaleFactor = errors.New("invalid scale factor")

type layersDocument struct {
	Layers []Layer `json:"layers" yaml:"layers" validate:"required,dive"`
}

// LoadLayers reads overlay layers from a JSON or YAML (.yaml, .yml) file.
// Unknown keys are rejected, so a misspelled corner does not silently become 0.
func LoadLayers(path string) ([]Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc layersDocument
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&doc)
	default:
		doc.Layers, err = decodeLayersJSON(data)
	}
	if err != nil {
		return nil, fmt.Errorf("could not decode overlay layers %s: %w", path, err)
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err = validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("invalid overlay layers %s: %w", path, err)
	}
	return doc.Layers, nil
}

// ScaleLayers returns copies of the layers with every region scaled by factor
func ScaleLayers(layers []Layer, factor float64) ([]Layer, error) {
	if factor <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScaleFactor, factor)
	}
	scaled := make([]Layer, 0, len(layers))
	for _, l := range layers {
		regions := make([]Region, 0, len(l.Regions))
		for _, r := range l.Regions {
			regions = append(regions, r.Scale(factor))
		}
		l.Regions = regions
		scaled = append(scaled, l)
	}
	return scaled, nil
}

type rawLayers struct {
	Layers []json.RawMessage `json:"layers"`
}

type rawRegions struct {
	Regions []json.RawMessage `json:"regions"`
}

// layerHeader holds the fields of a layer besides its regions
type layerHeader struct {
	Name      string `json:"name"`
	Exclusive bool   `json:"exclusive"`
}

func decodeLayersJSON(data []byte) ([]Layer, error) {
	if err := strictUnmarshal(data, &struct{}{}, "overlay document", "layers"); err != nil {
		return nil, err
	}
	var doc rawLayers
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	layers := make([]Layer, 0, len(doc.Layers))
	for _, rawLayer := range doc.Layers {
		var header layerHeader
		if err := strictUnmarshal(rawLayer, &header, "layer", "regions"); err != nil {
			return nil, err
		}
		var body rawRegions
		if err := json.Unmarshal(rawLayer, &body); err != nil {
			return nil, err
		}
		l := Layer{Name: header.Name, Exclusive: header.Exclusive, Regions: make([]Region, 0, len(body.Regions))}
		for _, rawRegion := range body.Regions {
			var r Region
			if err := strictUnmarshal(rawRegion, &r, "region of layer "+l.Name); err != nil {
				return nil, err
			}
			l.Regions = append(l.Regions, r)
		}
		layers = append(layers, l)
	}
	return layers, nil
}

// strictUnmarshal decodes a JSON object into v and fails on keys v does not know, apart from the nested ones
func strictUnmarshal(data []byte, v interface{}, what string, nested ...string) error {
	unknown, err := marshmallow.Unmarshal(data, v, marshmallow.WithExcludeKnownFieldsFromMap(true))
	if err != nil {
		return err
	}
	for _, k := range nested {
		delete(unknown, k)
	}
	if len(unknown) > 0 {
		keys := make([]string, 0, len(unknown))
		for k := range unknown {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Errorf(`unknown %s keys: %v`, what, keys)
	}
	return nil
}
