package store

import (
	"context"

	"github.com/condmatlab/gateman/internal/model"
)

// Store defines the persistence interface for gateman runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, filter model.RunFilter) ([]*model.Run, int, error) // returns runs, total count, error
	UpdateRunState(ctx context.Context, id string, state model.RunState, errMsg string) error
	SetRunDataFile(ctx context.Context, id string, dataFile string) error

	// Points
	AppendPoints(ctx context.Context, runID string, points []model.Point) error
	GetPoints(ctx context.Context, runID string) ([]model.Point, error)

	// Events
	RecordEvent(ctx context.Context, event *model.Event) error
	GetEvents(ctx context.Context, runID string) ([]*model.Event, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
