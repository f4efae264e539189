package overlay

import (
	"errors"
	"fmt"

	"github.com/go-spatial/geom"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/pdok/facsimile/mapper"
	"github.com/pdok/facsimile/mapslicehelp"
)

var (
	ErrUnknownLayer   = errors.New("unknown overlay layer")
	ErrDuplicateLayer = errors.New("duplicate overlay layer")
)

// Layer is a named group of regions.
// At most one exclusive layer is active at a time, inclusive layers are toggled independently.
type Layer struct {
	Name      string   `json:"name" yaml:"name" validate:"required"`
	Exclusive bool     `json:"exclusive" yaml:"exclusive"`
	Regions   []Region `json:"regions" yaml:"regions" validate:"dive"`
}

type layerState struct {
	Layer
	active bool
}

type EventType int

const (
	ZoomChanged EventType = iota
	Moved
	LayerAdded
	LayerRemoved
)

// Event is emitted by the map host
type Event struct {
	Type  EventType
	Layer string
	Zoom  int
}

// Hit is a region under a point
type Hit struct {
	Layer  string
	Region Region
}

// Manager owns the overlay selection of a single viewer. It is not safe for concurrent mutation.
type Manager struct {
	layers     *orderedmap.OrderedMap[string, *layerState]
	clickLayer string
}

func NewManager(layers ...Layer) (*Manager, error) {
	mgr := &Manager{layers: orderedmap.New[string, *layerState]()}
	for _, l := range layers {
		if err := mgr.Add(l); err != nil {
			return nil, err
		}
	}
	return mgr, nil
}

// Add registers an inactive layer
func (mgr *Manager) Add(l Layer) error {
	if _, exists := mgr.layers.Get(l.Name); exists {
		return fmt.Errorf("%w: %s", ErrDuplicateLayer, l.Name)
	}
	mgr.layers.Set(l.Name, &layerState{Layer: l})
	return nil
}

func (mgr *Manager) get(name string) (*layerState, error) {
	l, ok := mgr.layers.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLayer, name)
	}
	return l, nil
}

// Enable activates a layer. Enabling an exclusive layer disables the other exclusive layers.
func (mgr *Manager) Enable(name string) error {
	l, err := mgr.get(name)
	if err != nil {
		return err
	}
	if l.Exclusive {
		for p := mgr.layers.Oldest(); p != nil; p = p.Next() {
			if p.Value.Exclusive {
				p.Value.active = false
			}
		}
	}
	l.active = true
	return nil
}

func (mgr *Manager) Disable(name string) error {
	l, err := mgr.get(name)
	if err != nil {
		return err
	}
	l.active = false
	return nil
}

func (mgr *Manager) Toggle(name string) error {
	l, err := mgr.get(name)
	if err != nil {
		return err
	}
	if l.active {
		return mgr.Disable(name)
	}
	return mgr.Enable(name)
}

func (mgr *Manager) IsActive(name string) bool {
	l, ok := mgr.layers.Get(name)
	return ok && l.active
}

// Names returns all layer names in the order they were added
func (mgr *Manager) Names() []string {
	return mapslicehelp.OrderedMapKeys(mgr.layers)
}

// Active returns the names of the active layers in the order they were added
func (mgr *Manager) Active() []string {
	return mapslicehelp.OrderedMapFilter(mgr.layers, func(l *layerState) bool { return l.active })
}

// SetClickLayer restricts hit tests to one layer, an empty name restores all active layers
func (mgr *Manager) SetClickLayer(name string) error {
	if name != "" {
		if _, err := mgr.get(name); err != nil {
			return err
		}
	}
	mgr.clickLayer = name
	return nil
}

func (mgr *Manager) ClickLayer() string {
	return mgr.clickLayer
}

// Handle applies layer events of the host. Zoom and move events do not change the selection.
func (mgr *Manager) Handle(ev Event) error {
	switch ev.Type {
	case LayerAdded:
		return mgr.Enable(ev.Layer)
	case LayerRemoved:
		return mgr.Disable(ev.Layer)
	default:
		return nil
	}
}

func (mgr *Manager) clickable() []*layerState {
	var layers []*layerState
	for p := mgr.layers.Oldest(); p != nil; p = p.Next() {
		if mgr.clickLayer != "" {
			if p.Key == mgr.clickLayer {
				layers = append(layers, p.Value)
			}
			continue
		}
		if p.Value.active {
			layers = append(layers, p.Value)
		}
	}
	return layers
}

// HitTest returns the regions containing a projected point, in layer and region order
func (mgr *Manager) HitTest(m *mapper.Mapper, projected geom.Point, zoom int) ([]Hit, error) {
	pixel, err := m.ProjectedToPixel(projected, zoom)
	if err != nil {
		return nil, err
	}
	var hits []Hit
	for _, l := range mgr.clickable() {
		for _, r := range l.Regions {
			if r.Contains(pixel) {
				hits = append(hits, Hit{Layer: l.Name, Region: r})
			}
		}
	}
	return hits, nil
}

// Placements places the regions of all active layers, keyed by layer name
func (mgr *Manager) Placements(m *mapper.Mapper, zoom int) (*orderedmap.OrderedMap[string, []Placement], error) {
	placements := orderedmap.New[string, []Placement]()
	for p := mgr.layers.Oldest(); p != nil; p = p.Next() {
		if !p.Value.active {
			continue
		}
		layerPlacements, err := PlaceAll(m, p.Value.Regions, zoom)
		if err != nil {
			return nil, err
		}
		placements.Set(p.Key, layerPlacements)
	}
	return placements, nil
}
