// Package simplecrs is a map host on a flat plane: at zoom z a projected unit is 2^z pixels
// and the y axis points up, so image rows map to negative projected y.
package simplecrs

import (
	"math"

	"github.com/go-spatial/geom"

	"github.com/pdok/facsimile/mathhelp"
)

type Host struct {
	Zoom   int
	Width  float64
	Height float64
}

func New(zoom int, width, height float64) *Host {
	return &Host{Zoom: zoom, Width: width, Height: height}
}

func (h *Host) CurrentZoom() int {
	return h.Zoom
}

func (h *Host) ViewportSize() (width, height float64) {
	return h.Width, h.Height
}

func (h *Host) Project(pt geom.Point, zoom int) geom.Point {
	s := mathhelp.Pow2f(zoom)
	return geom.Point{pt.X() * s, -pt.Y() * s}
}

func (h *Host) Unproject(pt geom.Point, zoom int) geom.Point {
	s := mathhelp.Pow2f(zoom)
	return geom.Point{pt.X() / s, -pt.Y() / s}
}

func (h *Host) Distance(a, b geom.Point) float64 {
	return math.Hypot(b.X()-a.X(), b.Y()-a.Y())
}
