package ui

import (
	"strings"
	"testing"
)

func TestRenderStateNoColor(t *testing.T) {
	ForceNoColor()

	for _, state := range []string{"completed", "failed", "running"} {
		got := RenderState(state)
		if got != state {
			t.Fatalf("RenderState(%q) with color off = %q", state, got)
		}
		if strings.Contains(got, "\x1b") {
			t.Fatalf("RenderState(%q) leaked escape codes: %q", state, got)
		}
	}
}
