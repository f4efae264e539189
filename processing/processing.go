// Package processing takes care of the logistics around addressing many tiles at once and handing them to a Target.
// Not the addressing itself.
package processing

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/pdok/facsimile/pyramid"
	"github.com/pdok/facsimile/tilegroup"
)

// ErrTargetStopped is returned when a target returns before all entries are written
var ErrTargetStopped = errors.New("target stopped reading entries")

// FullRanges returns the complete grid of every level
func FullRanges(p *pyramid.Pyramid) []tilegroup.Range {
	ranges := make([]tilegroup.Range, 0, p.NumLevels())
	for _, l := range p.Levels() {
		if l.GridSize.Count() == 0 {
			ranges = append(ranges, tilegroup.Range{Zoom: l.Index, Empty: true})
			continue
		}
		ranges = append(ranges, tilegroup.Range{
			Zoom: l.Index,
			MaxX: l.GridSize.W - 1,
			MaxY: l.GridSize.H - 1,
		})
	}
	return ranges
}

// addressRange computes the entries of one range
func addressRange(p *pyramid.Pyramid, baseURL string, r tilegroup.Range) ([]Entry, error) {
	tiles := r.Tiles()
	entries := make([]Entry, 0, len(tiles))
	for _, tile := range tiles {
		group, err := tilegroup.Number(p, tile)
		if err != nil {
			return nil, err
		}
		url, err := tilegroup.URL(baseURL, p, tile)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Tile: tile, Group: group, URL: url})
	}
	return entries, nil
}

// Manifest addresses the tiles of the ranges, one goroutine per range,
// and writes them to the target in the order of the ranges.
// The first addressing error aborts the manifest before anything is written.
func Manifest(p *pyramid.Pyramid, baseURL string, ranges []tilegroup.Range, target Target) error {
	results := make([][]Entry, len(ranges))
	errs := make([]error, len(ranges))
	wg := sync.WaitGroup{}
	for i := range ranges {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = addressRange(p, baseURL, ranges[i])
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("could not address tiles of level %d: %w", ranges[i].Zoom, err)
		}
	}

	entries := make(chan Entry)
	done := make(chan error, 1)
	go func() {
		done <- target.WriteEntries(entries)
	}()
	var count, groups uint
	for _, result := range results {
		for _, e := range result {
			select {
			case entries <- e:
			case err := <-done:
				if err == nil {
					err = fmt.Errorf("%w after %d tiles", ErrTargetStopped, count)
				}
				return err
			}
			count++
			if e.Group+1 > groups {
				groups = e.Group + 1
			}
		}
	}
	close(entries)
	if err := <-done; err != nil {
		return err
	}

	log.Printf("    tiles: %d", count)
	log.Printf("   groups: %d", groups)
	return nil
}

// SliceTarget collects the entries
type SliceTarget struct {
	Entries []Entry
}

func (t *SliceTarget) WriteEntries(entries <-chan Entry) error {
	for e := range entries {
		t.Entries = append(t.Entries, e)
	}
	return nil
}

// WriterTarget writes one URL per line
type WriterTarget struct {
	W io.Writer
}

func (t WriterTarget) WriteEntries(entries <-chan Entry) error {
	var err error
	for e := range entries {
		if err != nil {
			// keep draining so the sender is not blocked
			continue
		}
		_, err = fmt.Fprintln(t.W, e.URL)
	}
	return err
}
