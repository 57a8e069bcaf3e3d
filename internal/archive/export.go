// Package archive exports finished runs as JSONL and ships them to
// configured destinations on a schedule.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/condmatlab/gateman/internal/model"
	"github.com/condmatlab/gateman/internal/store"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version   string    `json:"version"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RunCount  int       `json:"run_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// archivedRun is one exported run with its measurements inlined.
type archivedRun struct {
	*model.Run
	Points []model.Point `json:"points,omitempty"`
}

// ExportJSONL writes every finished run (completed or failed) from the
// store as JSONL to w, points included, sorted by run ID.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	runs, _, err := s.ListRuns(ctx, model.RunFilter{
		State: []model.RunState{model.RunCompleted, model.RunFailed},
	})
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].ID < runs[j].ID
	})

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:   "1",
		Type:      "header",
		Timestamp: time.Now().UTC(),
		RunCount:  len(runs),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, r := range runs {
		points, err := s.GetPoints(ctx, r.ID)
		if err != nil {
			return fmt.Errorf("get points for %s: %w", r.ID, err)
		}
		if err := enc.Encode(record{Type: "run", Data: archivedRun{Run: r, Points: points}}); err != nil {
			return fmt.Errorf("encode run %s: %w", r.ID, err)
		}
	}

	return nil
}
