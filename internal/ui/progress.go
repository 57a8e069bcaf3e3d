package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

const progressBarWidth = 30

// ProgressBar renders a single-line progress bar on stderr while a sweep
// runs. It stays silent when stderr is not a terminal, so piped and logged
// invocations see no control characters.
type ProgressBar struct {
	mu      sync.Mutex
	w       io.Writer
	enabled bool

	total   int
	done    int
	desc    string
	started time.Time
}

// NewProgressBar returns a progress bar bound to stderr.
func NewProgressBar() *ProgressBar {
	return &ProgressBar{
		w:       os.Stderr,
		enabled: term.IsTerminal(int(os.Stderr.Fd())),
	}
}

// Start begins a new progress line with the given total step count.
func (p *ProgressBar) Start(total int, desc string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
	p.done = 0
	p.desc = desc
	p.started = time.Now()
	p.render()
}

// Step advances the bar by one step.
func (p *ProgressBar) Step() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	p.render()
}

// Done finishes the progress line.
func (p *ProgressBar) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return
	}
	p.render()
	fmt.Fprintln(p.w)
}

func (p *ProgressBar) render() {
	if !p.enabled || p.total <= 0 {
		return
	}
	filled := p.done * progressBarWidth / p.total
	if filled > progressBarWidth {
		filled = progressBarWidth
	}
	bar := strings.Repeat("█", filled) + strings.Repeat(" ", progressBarWidth-filled)
	percent := p.done * 100 / p.total
	elapsed := time.Since(p.started).Round(time.Second)
	fmt.Fprintf(p.w, "\r%s %3d%% |%s| %d/%d [%s]",
		RenderAccent(p.desc), percent, bar, p.done, p.total, RenderMuted(elapsed.String()))
}
