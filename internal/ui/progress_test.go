package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestProgressBarDisabledWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	p := &ProgressBar{w: &buf, enabled: false}

	p.Start(10, "Sweeping")
	p.Step()
	p.Done()

	if buf.Len() != 0 {
		t.Fatalf("expected no output when disabled, got %q", buf.String())
	}
}

func TestProgressBarRendersCounts(t *testing.T) {
	var buf bytes.Buffer
	p := &ProgressBar{w: &buf, enabled: true}

	p.Start(4, "Sweeping")
	p.Step()
	p.Step()
	p.Done()

	out := buf.String()
	if !strings.Contains(out, "2/4") {
		t.Fatalf("expected 2/4 in output, got %q", out)
	}
	if !strings.Contains(out, "50%") {
		t.Fatalf("expected 50%% in output, got %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Fatalf("expected trailing newline after Done, got %q", out)
	}
}
