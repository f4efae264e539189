// Package scale turns distances in image pixels into physical lengths on the scanned original.
package scale

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-spatial/geom"

	"github.com/pdok/facsimile/mapper"
	"github.com/pdok/facsimile/mathhelp"
)

const (
	inchPerCm = 0.3937
	decimals  = 2
)

// Scale is what a scale bar shows for a distance
type Scale struct {
	Metric   string  `json:"metric"`
	Imperial string  `json:"imperial"`
	Fraction float64 `json:"fraction"`
	// full resolution pixels covered by the bar
	PixelDistance float64 `json:"pixelDistance"`
}

// Label converts pixelDistance into cm and inches, truncated to 2 decimals.
// Fraction is pixelDistance relative to maxDimension (the longest side of the image).
// No scale can be derived without a dpi, ok is false then.
func Label(pixelDistance, dpi, maxDimension float64) (Scale, bool) {
	if dpi <= 0 {
		return Scale{}, false
	}
	inches := pixelDistance / dpi
	s := Scale{
		Metric:        format(mathhelp.Truncate(inches/inchPerCm, decimals), "cm"),
		Imperial:      format(mathhelp.Truncate(inches, decimals), "in"),
		PixelDistance: pixelDistance,
	}
	if maxDimension > 0 {
		s.Fraction = pixelDistance / maxDimension
	}
	return s, true
}

func format(v float64, unit string) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s + " " + unit
}

// Measure returns the full resolution pixels covered by a horizontal bar of barWidth host pixels at zoom.
func Measure(m *mapper.Mapper, zoom int, barWidth float64) (float64, error) {
	host := m.Host()
	// projected length of a single image pixel at this zoom
	origin, err := m.PixelToProjected(geom.Point{0, 0}, zoom)
	if err != nil {
		return 0, err
	}
	unit, err := m.PixelToProjected(geom.Point{1, 0}, zoom)
	if err != nil {
		return 0, err
	}
	perPixel := host.Distance(origin, unit)
	if perPixel == 0 {
		return 0, fmt.Errorf("host maps image pixels onto a single point at zoom %d", zoom)
	}

	_, height := host.ViewportSize()
	y := height / 2
	left := host.Unproject(geom.Point{0, y}, zoom)
	right := host.Unproject(geom.Point{barWidth, y}, zoom)
	return host.Distance(left, right) / perPixel, nil
}

// Bar measures a bar of barWidth host pixels at the current zoom of the host and labels it
func Bar(m *mapper.Mapper, barWidth, dpi float64) (Scale, bool, error) {
	pixelDistance, err := Measure(m, m.Host().CurrentZoom(), barWidth)
	if err != nil {
		return Scale{}, false, err
	}
	finest := m.Pyramid().Finest()
	maxDimension := float64(max(finest.ImageSize.W, finest.ImageSize.H))
	s, ok := Label(pixelDistance, dpi, maxDimension)
	return s, ok, nil
}
