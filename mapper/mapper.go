// Package mapper converts between full resolution image pixels and the projected space of a map host.
package mapper

import (
	"github.com/go-spatial/geom"

	"github.com/pdok/facsimile/mathhelp"
	"github.com/pdok/facsimile/pyramid"
)

// Host is the map widget showing the facsimile.
// Project and Unproject convert between projected points and pixel points at a zoom level.
type Host interface {
	CurrentZoom() int
	ViewportSize() (width, height float64)
	Project(pt geom.Point, zoom int) geom.Point
	Unproject(pt geom.Point, zoom int) geom.Point
	Distance(a, b geom.Point) float64
}

// Mapper is read-only and can be shared by concurrent callers as long as the Host can
type Mapper struct {
	pyramid *pyramid.Pyramid
	host    Host
}

func New(p *pyramid.Pyramid, host Host) *Mapper {
	return &Mapper{pyramid: p, host: host}
}

func (m *Mapper) Pyramid() *pyramid.Pyramid {
	return m.pyramid
}

func (m *Mapper) Host() Host {
	return m.host
}

// scale is the number of full resolution pixels per host pixel at zoom.
// Under retina the zoom is lowered by one in both directions.
func (m *Mapper) scale(zoom int) float64 {
	effective := zoom
	if m.pyramid.Retina().Active {
		effective--
	}
	return mathhelp.Pow2f(int(m.pyramid.MaxZoom()) - effective)
}

// PixelToProjected converts a full resolution pixel to a projected point
func (m *Mapper) PixelToProjected(pixel geom.Point, zoom int) (geom.Point, error) {
	if err := m.pyramid.CheckZoom(zoom); err != nil {
		return geom.Point{}, err
	}
	s := m.scale(zoom)
	return m.host.Unproject(geom.Point{pixel.X() / s, pixel.Y() / s}, zoom), nil
}

// ProjectedToPixel converts a projected point to a full resolution pixel
func (m *Mapper) ProjectedToPixel(projected geom.Point, zoom int) (geom.Point, error) {
	if err := m.pyramid.CheckZoom(zoom); err != nil {
		return geom.Point{}, err
	}
	s := m.scale(zoom)
	pt := m.host.Project(projected, zoom)
	return geom.Point{pt.X() * s, pt.Y() * s}, nil
}

func (m *Mapper) PixelToProjectedAtCurrentZoom(pixel geom.Point) (geom.Point, error) {
	return m.PixelToProjected(pixel, m.host.CurrentZoom())
}

func (m *Mapper) ProjectedToPixelAtCurrentZoom(projected geom.Point) (geom.Point, error) {
	return m.ProjectedToPixel(projected, m.host.CurrentZoom())
}

// ImageBounds returns the projected upper left and lower right corners of the full image,
// to be used as the maximum bounds of the host
func (m *Mapper) ImageBounds() (upperLeft, lowerRight geom.Point, err error) {
	finest := m.pyramid.Finest()
	zoom := int(m.pyramid.MaxZoom())
	upperLeft, err = m.PixelToProjected(geom.Point{0, 0}, zoom)
	if err != nil {
		return upperLeft, lowerRight, err
	}
	lowerRight, err = m.PixelToProjected(geom.Point{float64(finest.ImageSize.W), float64(finest.ImageSize.H)}, zoom)
	return upperLeft, lowerRight, err
}

// Center returns the projected center of the image
func (m *Mapper) Center() (geom.Point, error) {
	finest := m.pyramid.Finest()
	return m.PixelToProjected(geom.Point{float64(finest.ImageSize.W) / 2, float64(finest.ImageSize.H) / 2}, int(m.pyramid.MaxZoom()))
}
