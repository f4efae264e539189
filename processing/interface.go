package processing

import (
	"github.com/go-spatial/geom/slippy"
)

// Entry is an addressed tile
type Entry struct {
	Tile  *slippy.Tile
	Group uint
	URL   string
}

type Target interface {
	WriteEntries(<-chan Entry) error
}
