package progress

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/dustin/go-humanize"
)

const barWidth = 40

// Bar is a single-line terminal progress bar redrawn in place with '\r'.
type Bar struct {
	w      io.Writer
	label  string
	total  int64
	n      int64
	closed bool
	view   progress.Model
}

// NewBar draws an empty bar labelled label and sized to total bytes.
func NewBar(w io.Writer, label string, total int64) *Bar {
	b := &Bar{
		w:     w,
		label: label,
		total: total,
		view:  progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth)),
	}
	b.render()
	return b
}

func (b *Bar) Add(n int64) {
	if b.closed {
		return
	}
	b.n += n
	b.render()
}

func (b *Bar) N() int64 { return b.n }

// Percent returns the completed fraction clamped to [0, 1].
func (b *Bar) Percent() float64 {
	if b.total <= 0 {
		return 0
	}
	p := float64(b.n) / float64(b.total)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

func (b *Bar) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.render()
	_, err := fmt.Fprintln(b.w)
	return err
}

func (b *Bar) render() {
	fmt.Fprintf(b.w, "\r%s %s %s/%s",
		b.label,
		b.view.ViewAs(b.Percent()),
		humanize.Bytes(uint64(max(b.n, 0))),
		humanize.Bytes(uint64(b.total)),
	)
}
