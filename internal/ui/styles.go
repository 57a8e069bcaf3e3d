package ui

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// ANSI256 color codes.
const (
	colorAccent = 74  // blue
	colorMuted  = 245 // medium gray
	colorGood   = 114 // green
	colorBad    = 203 // red
)

var (
	noColor     bool
	noColorOnce sync.Once
)

// useColor reports whether ANSI colors should be used on stdout. It
// respects NO_COLOR, CLICOLOR_FORCE, CLICOLOR, and TTY detection.
func useColor() bool {
	noColorOnce.Do(func() {
		noColor = !detectColor()
	})
	return !noColor
}

func detectColor() bool {
	// https://no-color.org — any non-empty value disables color.
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	// CLICOLOR_FORCE=1 forces color even without a TTY.
	if strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	// CLICOLOR=0 explicitly disables color.
	if strings.TrimSpace(os.Getenv("CLICOLOR")) == "0" {
		return false
	}
	// Default: color if stdout is a terminal.
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func render(code int, s string) string {
	if !useColor() {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderState colors a run state: green for completed, red for failed,
// accent for anything still moving.
func RenderState(state string) string {
	switch state {
	case "completed":
		return render(colorGood, state)
	case "failed":
		return render(colorBad, state)
	default:
		return render(colorAccent, state)
	}
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColorOnce.Do(func() {})
	noColor = true
}
