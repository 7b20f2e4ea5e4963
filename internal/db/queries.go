package db

import (
	"database/sql"
	"fmt"
)

// CheckRun represents a row in the check_runs table.
type CheckRun struct {
	ID         int
	RunID      string
	Stage      string
	Attempt    int
	CheckName  string
	Passed     bool
	DurationMs int64
	Summary    string
}

// PipelineEvent represents a row in the pipeline_events table.
type PipelineEvent struct {
	ID      int
	RunID   string
	Event   string
	Stage   string
	Attempt int
	Detail  string
}

// Placeholders use the $N form, which both drivers accept.

// LogPipelineEvent inserts a pipeline event.
func (d *DB) LogPipelineEvent(runID, event, stage string, attempt int, detail string) error {
	_, err := d.conn.Exec(
		`INSERT INTO pipeline_events (run_id, event, stage, attempt, detail) VALUES ($1, $2, $3, $4, $5)`,
		runID, event, stage, attempt, detail,
	)
	if err != nil {
		return fmt.Errorf("log pipeline event: %w", err)
	}
	return nil
}

// LogCheckRun inserts a check result.
func (d *DB) LogCheckRun(c CheckRun) error {
	_, err := d.conn.Exec(
		`INSERT INTO check_runs (run_id, stage, attempt, check_name, passed, duration_ms, summary)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.RunID, c.Stage, c.Attempt, c.CheckName, c.Passed, c.DurationMs, c.Summary,
	)
	if err != nil {
		return fmt.Errorf("log check run: %w", err)
	}
	return nil
}

// PipelineHistory returns the events of a run in insertion order.
func (d *DB) PipelineHistory(runID string) ([]PipelineEvent, error) {
	rows, err := d.conn.Query(
		`SELECT id, run_id, event, stage, attempt, detail
		 FROM pipeline_events WHERE run_id = $1 ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("get pipeline history: %w", err)
	}
	defer rows.Close()

	var events []PipelineEvent
	for rows.Next() {
		var e PipelineEvent
		var stage, detail sql.NullString
		var attempt sql.NullInt64
		if err := rows.Scan(&e.ID, &e.RunID, &e.Event, &stage, &attempt, &detail); err != nil {
			return nil, fmt.Errorf("scan pipeline event: %w", err)
		}
		e.Stage = stage.String
		e.Attempt = int(attempt.Int64)
		e.Detail = detail.String
		events = append(events, e)
	}
	return events, rows.Err()
}

// CheckRuns returns the check results of a run in insertion order.
func (d *DB) CheckRuns(runID string) ([]CheckRun, error) {
	rows, err := d.conn.Query(
		`SELECT id, run_id, stage, attempt, check_name, passed, duration_ms, summary
		 FROM check_runs WHERE run_id = $1 ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("get check runs: %w", err)
	}
	defer rows.Close()

	var runs []CheckRun
	for rows.Next() {
		var r CheckRun
		var duration sql.NullInt64
		var summary sql.NullString
		if err := rows.Scan(&r.ID, &r.RunID, &r.Stage, &r.Attempt, &r.CheckName, &r.Passed, &duration, &summary); err != nil {
			return nil, fmt.Errorf("scan check run: %w", err)
		}
		r.DurationMs = duration.Int64
		r.Summary = summary.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
