package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/condmatlab/gateman/internal/model"
	"github.com/condmatlab/gateman/internal/store"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

// runRowColumns is the column list for scanRun results.
var runRowColumns = []string{
	"id", "kind", "device", "temperature",
	"x_label", "x_start", "x_stop", "x_step",
	"y_label", "y_start", "y_stop", "y_step",
	"total_time", "time_step", "measured", "voltage_unit", "current_unit",
	"comments", "model", "data_file", "state", "error", "started_at", "finished_at",
}

// addRunRow adds a minimal 1D run row to a sqlmock.Rows.
func addRunRow(rows *sqlmock.Rows, id, state string, now time.Time) *sqlmock.Rows {
	return rows.AddRow(
		id, "1d", "semiqon12", "CT",
		"t_P1", 0.0, 0.8, 0.01,
		nil, nil, nil, nil,
		0.0, 0.0, "drain", "V", "uA",
		nil, nil, nil, state, "", now, nil,
	)
}

func TestCreateRun(t *testing.T) {
	db, mock := newMockDB(t)
	s := &PostgresStore{db: db}
	now := time.Now()

	mock.ExpectExec("INSERT INTO runs").
		WithArgs(
			"run-abc123", "1d", "semiqon12", "CT",
			"t_P1", 0.0, 0.8, 0.01,
			nil, nil, nil, nil,
			0.0, 0.0, "drain", "V", "uA",
			"", nil, nil, "running", "", now, nil,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.CreateRun(context.Background(), &model.Run{
		ID:          "run-abc123",
		Kind:        model.Kind1D,
		Device:      "semiqon12",
		Temperature: "CT",
		X:           model.Axis{Label: "t_P1", Start: 0, Stop: 0.8, Step: 0.01},
		Measured:    "drain",
		VoltageUnit: "V",
		CurrentUnit: "uA",
		State:       model.RunRunning,
		StartedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
}

func TestGetRun(t *testing.T) {
	db, mock := newMockDB(t)
	s := &PostgresStore{db: db}
	now := time.Now()

	mock.ExpectQuery("SELECT .+ FROM runs WHERE id = \\$1").
		WithArgs("run-abc123").
		WillReturnRows(addRunRow(sqlmock.NewRows(runRowColumns), "run-abc123", "completed", now))

	r, err := s.GetRun(context.Background(), "run-abc123")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if r.ID != "run-abc123" || r.Kind != model.Kind1D || r.State != model.RunCompleted {
		t.Errorf("unexpected run: %+v", r)
	}
	if r.Y != nil {
		t.Errorf("Y should be nil for a 1D run, got %+v", r.Y)
	}
	if r.X.Stop != 0.8 {
		t.Errorf("X.Stop = %v", r.X.Stop)
	}
}

func TestGetRunNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	s := &PostgresStore{db: db}

	mock.ExpectQuery("SELECT .+ FROM runs WHERE id = \\$1").
		WithArgs("run-missing").
		WillReturnRows(sqlmock.NewRows(runRowColumns))

	_, err := s.GetRun(context.Background(), "run-missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("error = %v, want sql.ErrNoRows", err)
	}
}

func TestListRunsWithFilter(t *testing.T) {
	db, mock := newMockDB(t)
	s := &PostgresStore{db: db}
	now := time.Now()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM runs WHERE kind IN \\(\\$1\\) AND state IN \\(\\$2\\)").
		WithArgs("1d", "completed").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("SELECT .+ FROM runs WHERE kind IN \\(\\$1\\) AND state IN \\(\\$2\\) ORDER BY started_at DESC LIMIT \\$3").
		WithArgs("1d", "completed", 10).
		WillReturnRows(addRunRow(addRunRow(sqlmock.NewRows(runRowColumns),
			"run-b", "completed", now), "run-a", "completed", now))

	runs, total, err := s.ListRuns(context.Background(), model.RunFilter{
		Kind:  []model.RunKind{model.Kind1D},
		State: []model.RunState{model.RunCompleted},
		Limit: 10,
	})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if total != 2 || len(runs) != 2 {
		t.Errorf("total = %d, len = %d", total, len(runs))
	}
	if runs[0].ID != "run-b" {
		t.Errorf("first run = %q", runs[0].ID)
	}
}

func TestUpdateRunState(t *testing.T) {
	db, mock := newMockDB(t)
	s := &PostgresStore{db: db}

	mock.ExpectExec("UPDATE runs SET state = \\$1, error = \\$2, finished_at = NOW\\(\\) WHERE id = \\$3").
		WithArgs("failed", "instrument timeout", "run-abc123").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpdateRunState(context.Background(), "run-abc123", model.RunFailed, "instrument timeout")
	if err != nil {
		t.Fatalf("UpdateRunState: %v", err)
	}
}

func TestUpdateRunStateMissing(t *testing.T) {
	db, mock := newMockDB(t)
	s := &PostgresStore{db: db}

	mock.ExpectExec("UPDATE runs SET state = \\$1, error = \\$2, finished_at = NOW\\(\\) WHERE id = \\$3").
		WithArgs("completed", "", "run-missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateRunState(context.Background(), "run-missing", model.RunCompleted, "")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("error = %v, want sql.ErrNoRows", err)
	}
}

func TestAppendPoints(t *testing.T) {
	db, mock := newMockDB(t)
	s := &PostgresStore{db: db}
	now := time.Now()

	mock.ExpectExec("INSERT INTO points").
		WithArgs(
			"run-abc123", 0, 0.0, 0.0, 0.001, now,
			"run-abc123", 1, 0.01, 0.0, 0.002, now,
		).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := s.AppendPoints(context.Background(), "run-abc123", []model.Point{
		{Index: 0, X: 0, Value: 0.001, RecordedAt: now},
		{Index: 1, X: 0.01, Value: 0.002, RecordedAt: now},
	})
	if err != nil {
		t.Fatalf("AppendPoints: %v", err)
	}
}

func TestAppendPointsEmpty(t *testing.T) {
	db, _ := newMockDB(t)
	s := &PostgresStore{db: db}

	if err := s.AppendPoints(context.Background(), "run-abc123", nil); err != nil {
		t.Fatalf("AppendPoints(nil): %v", err)
	}
}

func TestGetPoints(t *testing.T) {
	db, mock := newMockDB(t)
	s := &PostgresStore{db: db}
	now := time.Now()

	mock.ExpectQuery("SELECT run_id, idx, x, y, value, recorded_at\\s+FROM points WHERE run_id = \\$1 ORDER BY idx").
		WithArgs("run-abc123").
		WillReturnRows(sqlmock.NewRows([]string{"run_id", "idx", "x", "y", "value", "recorded_at"}).
			AddRow("run-abc123", 0, 0.0, 0.0, 0.001, now).
			AddRow("run-abc123", 1, 0.01, 0.0, 0.002, now))

	points, err := s.GetPoints(context.Background(), "run-abc123")
	if err != nil {
		t.Fatalf("GetPoints: %v", err)
	}
	if len(points) != 2 || points[1].X != 0.01 {
		t.Errorf("unexpected points: %+v", points)
	}
}

func TestRecordEvent(t *testing.T) {
	db, mock := newMockDB(t)
	s := &PostgresStore{db: db}
	stamped := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	// The INSERT carries only four values; created_at comes back from the
	// database default via RETURNING.
	mock.ExpectQuery("INSERT INTO events").
		WithArgs("gateman.run.started", "run-abc123", "cli", []byte(`{"kind":"1d"}`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), stamped))

	// Events arrive from the server without a timestamp.
	e := &model.Event{
		Topic:   "gateman.run.started",
		RunID:   "run-abc123",
		Actor:   "cli",
		Payload: []byte(`{"kind":"1d"}`),
	}
	if err := s.RecordEvent(context.Background(), e); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if e.ID != 7 {
		t.Errorf("event id = %d, want 7", e.ID)
	}
	if e.CreatedAt.IsZero() {
		t.Error("event created_at still zero after insert")
	}
	if !e.CreatedAt.Equal(stamped) {
		t.Errorf("event created_at = %v, want %v", e.CreatedAt, stamped)
	}
}

func TestRunInTransactionCommit(t *testing.T) {
	db, mock := newMockDB(t)
	s := &PostgresStore{db: db}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE runs SET data_file = \\$1 WHERE id = \\$2").
		WithArgs("data/x_run1.txt", "run-abc123").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		return tx.SetRunDataFile(context.Background(), "run-abc123", "data/x_run1.txt")
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
}

func TestRunInTransactionRollback(t *testing.T) {
	db, mock := newMockDB(t)
	s := &PostgresStore{db: db}

	mock.ExpectBegin()
	mock.ExpectRollback()

	sentinel := errors.New("boom")
	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("error = %v, want sentinel", err)
	}
}
