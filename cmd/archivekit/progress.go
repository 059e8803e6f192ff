package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"
)

// progressPrinter redraws one status line per operation on a terminal.
type progressPrinter struct {
	mu    sync.Mutex
	w     io.Writer
	label string
	total uint64
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w}
}

func (p *progressPrinter) Start(path string, total uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.label != "" {
		fmt.Fprintln(p.w)
	}
	p.label = filepath.Base(path)
	p.total = total
	p.draw(0)
}

func (p *progressPrinter) Progressed(_ string, done uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.draw(done)
}

// Done terminates the current line.
func (p *progressPrinter) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.label != "" {
		fmt.Fprintln(p.w)
		p.label = ""
	}
}

func (p *progressPrinter) draw(done uint64) {
	if p.total == 0 {
		fmt.Fprintf(p.w, "\r%s: %s", p.label, humanize.IBytes(done))
		return
	}
	pct := float64(done) / float64(p.total) * 100
	fmt.Fprintf(p.w, "\r%s: %s / %s (%3.0f%%)", p.label, humanize.IBytes(done), humanize.IBytes(p.total), pct)
}
