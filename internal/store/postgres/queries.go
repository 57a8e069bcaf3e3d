package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/condmatlab/gateman/internal/model"
)

// runColumns is the column list used for SELECT statements on the runs table.
const runColumns = `id, kind, device, temperature,
	x_label, x_start, x_stop, x_step,
	y_label, y_start, y_stop, y_step,
	total_time, time_step, measured, voltage_unit, current_unit,
	comments, model, data_file, state, error, started_at, finished_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryCreateRun(ctx context.Context, db executor, r *model.Run) error {
	var yLabel sql.NullString
	var yStart, yStop, yStep sql.NullFloat64
	if r.Y != nil {
		yLabel = sql.NullString{String: r.Y.Label, Valid: true}
		yStart = sql.NullFloat64{Float64: r.Y.Start, Valid: true}
		yStop = sql.NullFloat64{Float64: r.Y.Stop, Valid: true}
		yStep = sql.NullFloat64{Float64: r.Y.Step, Valid: true}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO runs (
			id, kind, device, temperature,
			x_label, x_start, x_stop, x_step,
			y_label, y_start, y_stop, y_step,
			total_time, time_step, measured, voltage_unit, current_unit,
			comments, model, data_file, state, error, started_at, finished_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12,
			$13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22, $23, $24
		)`,
		r.ID,
		string(r.Kind),
		r.Device,
		r.Temperature,
		r.X.Label,
		r.X.Start,
		r.X.Stop,
		r.X.Step,
		yLabel,
		yStart,
		yStop,
		yStep,
		r.TotalTime,
		r.TimeStep,
		r.Measured,
		r.VoltageUnit,
		r.CurrentUnit,
		r.Comments,
		nullString(r.Model),
		nullString(r.DataFile),
		string(r.State),
		r.Error,
		r.StartedAt,
		nullTimePtr(r.FinishedAt),
	)
	return err
}

func queryGetRun(ctx context.Context, db executor, id string) (*model.Run, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id)
	return scanRun(row)
}

func queryListRuns(ctx context.Context, db executor, filter model.RunFilter) ([]*model.Run, int, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if len(filter.Kind) > 0 {
		placeholders := make([]string, len(filter.Kind))
		for i, k := range filter.Kind {
			placeholders[i] = nextArg()
			args = append(args, string(k))
		}
		whereClauses = append(whereClauses, "kind IN ("+strings.Join(placeholders, ", ")+")")
	}

	if len(filter.State) > 0 {
		placeholders := make([]string, len(filter.State))
		for i, s := range filter.State {
			placeholders[i] = nextArg()
			args = append(args, string(s))
		}
		whereClauses = append(whereClauses, "state IN ("+strings.Join(placeholders, ", ")+")")
	}

	if filter.Device != "" {
		whereClauses = append(whereClauses, "device = "+nextArg())
		args = append(args, filter.Device)
	}

	where := ""
	if len(whereClauses) > 0 {
		where = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + runColumns + ` FROM runs` + where + ` ORDER BY started_at DESC`
	if filter.Limit > 0 {
		query += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, r)
	}
	return runs, total, rows.Err()
}

func queryUpdateRunState(ctx context.Context, db executor, id string, state model.RunState, errMsg string) error {
	finish := "NULL"
	if state == model.RunCompleted || state == model.RunFailed {
		finish = "NOW()"
	}
	res, err := db.ExecContext(ctx,
		`UPDATE runs SET state = $1, error = $2, finished_at = `+finish+` WHERE id = $3`,
		string(state), errMsg, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func querySetRunDataFile(ctx context.Context, db executor, id string, dataFile string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE runs SET data_file = $1 WHERE id = $2`, dataFile, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func queryAppendPoints(ctx context.Context, db executor, runID string, points []model.Point) error {
	if len(points) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO points (run_id, idx, x, y, value, recorded_at) VALUES `)
	args := make([]any, 0, len(points)*6)
	for i, p := range points {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 6
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6)
		args = append(args, runID, p.Index, p.X, p.Y, p.Value, p.RecordedAt)
	}

	_, err := db.ExecContext(ctx, sb.String(), args...)
	return err
}

func queryGetPoints(ctx context.Context, db executor, runID string) ([]model.Point, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, idx, x, y, value, recorded_at
		FROM points WHERE run_id = $1 ORDER BY idx`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []model.Point
	for rows.Next() {
		var p model.Point
		if err := rows.Scan(&p.RunID, &p.Index, &p.X, &p.Y, &p.Value, &p.RecordedAt); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func queryRecordEvent(ctx context.Context, db executor, e *model.Event) error {
	// created_at is stamped by the database so callers never persist a
	// zero timestamp; it is read back alongside the generated id.
	return db.QueryRowContext(ctx, `
		INSERT INTO events (topic, run_id, actor, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		e.Topic,
		nullString(e.RunID),
		e.Actor,
		jsonbBytes(e.Payload),
	).Scan(&e.ID, &e.CreatedAt)
}

func queryGetEvents(ctx context.Context, db executor, runID string) ([]*model.Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, topic, run_id, actor, payload, created_at
		FROM events WHERE run_id = $1 ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
