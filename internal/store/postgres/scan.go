package postgres

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/condmatlab/gateman/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanRun scans a single row into a model.Run.
// The row must contain columns in the order defined by runColumns.
func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var (
		device      sql.NullString
		temperature sql.NullString
		yLabel      sql.NullString
		yStart      sql.NullFloat64
		yStop       sql.NullFloat64
		yStep       sql.NullFloat64
		comments    sql.NullString
		modelName   sql.NullString
		dataFile    sql.NullString
		errMsg      sql.NullString
		finishedAt  sql.NullTime
	)

	err := row.Scan(
		&r.ID,
		&r.Kind,
		&device,
		&temperature,
		&r.X.Label,
		&r.X.Start,
		&r.X.Stop,
		&r.X.Step,
		&yLabel,
		&yStart,
		&yStop,
		&yStep,
		&r.TotalTime,
		&r.TimeStep,
		&r.Measured,
		&r.VoltageUnit,
		&r.CurrentUnit,
		&comments,
		&modelName,
		&dataFile,
		&r.State,
		&errMsg,
		&r.StartedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Device = device.String
	r.Temperature = temperature.String
	r.Comments = comments.String
	r.Model = modelName.String
	r.DataFile = dataFile.String
	r.Error = errMsg.String

	if yLabel.Valid {
		r.Y = &model.Axis{
			Label: yLabel.String,
			Start: yStart.Float64,
			Stop:  yStop.Float64,
			Step:  yStep.Float64,
		}
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		r.FinishedAt = &t
	}

	return &r, nil
}

// scanEvent scans a single row into a model.Event.
func scanEvent(row scannable) (*model.Event, error) {
	var e model.Event
	var (
		runID   sql.NullString
		actor   sql.NullString
		payload []byte
	)

	if err := row.Scan(&e.ID, &e.Topic, &runID, &actor, &payload, &e.CreatedAt); err != nil {
		return nil, err
	}

	e.RunID = runID.String
	e.Actor = actor.String
	if len(payload) > 0 {
		e.Payload = json.RawMessage(payload)
	}
	return &e, nil
}

// nullTimePtr converts a *time.Time to a sql.NullTime.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// jsonbBytes converts json.RawMessage to a []byte suitable for JSONB columns.
func jsonbBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return []byte("{}")
	}
	return []byte(m)
}
