// Package progress renders model pull progress as one indicator per layer.
//
// Ollama streams pull events keyed by layer digest. Layers are downloaded one
// after another, so at most one indicator is open at a time: a new digest
// closes the indicator of the previous one.
package progress

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Event is a single pull progress update. Zero Total or Completed means the
// field was absent from the update.
type Event struct {
	Digest    string
	Status    string
	Total     int64
	Completed int64
}

// Indicator displays progress for one layer.
type Indicator interface {
	// Add advances the indicator by n (which may be negative).
	Add(n int64)
	// N returns the current position.
	N() int64
	// Close finalizes the display. Further calls are no-ops.
	Close() error
}

// Factory opens a new indicator sized to total.
type Factory func(label string, total int64) Indicator

// Tracker maps layer digests to indicators. It is owned by a single pull and
// is not safe for concurrent use.
type Tracker struct {
	w       io.Writer
	open    Factory
	bars    map[string]Indicator
	closed  map[string]bool
	current string
}

// NewTracker returns a Tracker writing status lines to w. When f is nil,
// indicators are terminal bars written to w.
func NewTracker(w io.Writer, f Factory) *Tracker {
	if w == nil {
		w = io.Discard
	}
	if f == nil {
		f = func(label string, total int64) Indicator {
			return NewBar(w, label, total)
		}
	}
	return &Tracker{
		w:      w,
		open:   f,
		bars:   make(map[string]Indicator),
		closed: make(map[string]bool),
	}
}

// Handle applies one event.
func (t *Tracker) Handle(ev Event) {
	if ev.Digest != t.current {
		t.closeBar(t.current)
	}

	if ev.Digest == "" {
		fmt.Fprintln(t.w, ev.Status)
		return
	}

	if _, ok := t.bars[ev.Digest]; !ok && ev.Total > 0 {
		t.bars[ev.Digest] = t.open("pulling "+shortDigest(ev.Digest), ev.Total)
	}

	if ev.Completed > 0 {
		bar, ok := t.bars[ev.Digest]
		if !ok {
			// Progress for a layer that never announced its size.
			slog.Debug("pull progress without total", "digest", ev.Digest, "completed", ev.Completed)
		} else {
			bar.Add(ev.Completed - bar.N())
		}
	}

	t.current = ev.Digest
}

// Close finalizes every indicator that is still open.
func (t *Tracker) Close() error {
	var firstErr error
	for digest := range t.bars {
		if err := t.closeBar(digest); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *Tracker) closeBar(digest string) error {
	bar, ok := t.bars[digest]
	if !ok || t.closed[digest] {
		return nil
	}
	t.closed[digest] = true
	return bar.Close()
}

// shortDigest trims "sha256:" and keeps 12 hex characters.
func shortDigest(d string) string {
	if len(d) >= 19 {
		return d[7:19]
	}
	return strings.TrimPrefix(d, "sha256:")
}
