package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// ChunkStatus is the outcome of one chunk.
type ChunkStatus string

const (
	ChunkWritten   ChunkStatus = "written"
	ChunkAbandoned ChunkStatus = "abandoned"
)

// Run is one batch invocation.
type Run struct {
	ID          string
	Model       string
	InputDir    string
	OutputDir   string
	Workers     int
	ChunkLength float64
	Files       int
	Chunks      int
	Written     int
	Abandoned   int
	Rows        int
	Status      RunStatus
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Duration returns how long the run took, or zero while it is running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ChunkOutcome is the ledger entry of one processed chunk.
type ChunkOutcome struct {
	RunID   string
	Source  string
	Start   float64
	End     float64
	Worker  int
	Status  ChunkStatus
	Rows    int
	Elapsed time.Duration
	Error   string
}

// BeginRun inserts a run in the running state.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	return s.exec(ctx,
		`INSERT INTO runs (id, model, input_dir, output_dir, workers, chunk_length, files, chunks, status, started_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Model, run.InputDir, run.OutputDir, run.Workers, run.ChunkLength,
		run.Files, run.Chunks, RunRunning, formatTime(run.StartedAt),
	)
}

// RecordChunk stores one chunk outcome and updates the run counters.
func (s *Store) RecordChunk(ctx context.Context, outcome ChunkOutcome) error {
	if err := s.exec(ctx,
		`INSERT INTO chunks (run_id, source_path, start_seconds, end_seconds, worker, status, row_count, elapsed_ms, error_message, recorded_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		outcome.RunID, outcome.Source, outcome.Start, outcome.End, outcome.Worker, outcome.Status,
		outcome.Rows, outcome.Elapsed.Milliseconds(), nullableString(outcome.Error), formatTime(time.Now()),
	); err != nil {
		return fmt.Errorf("record chunk: %w", err)
	}

	column := "written"
	if outcome.Status == ChunkAbandoned {
		column = "abandoned"
	}
	if err := s.exec(ctx,
		`UPDATE runs SET `+column+` = `+column+` + 1, row_count = row_count + ? WHERE id = ?`,
		outcome.Rows, outcome.RunID,
	); err != nil {
		return fmt.Errorf("update run counters: %w", err)
	}
	return nil
}

// FinishRun marks a run completed, or failed when runErr is non-nil.
func (s *Store) FinishRun(ctx context.Context, id string, runErr error) error {
	status, message := RunCompleted, ""
	if runErr != nil {
		status, message = RunFailed, runErr.Error()
	}
	if err := s.exec(ctx,
		`UPDATE runs SET status = ?, error_message = ?, finished_at = ? WHERE id = ?`,
		status, nullableString(message), formatTime(time.Now()), id,
	); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// Runs returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, model, input_dir, output_dir, workers, chunk_length, files, chunks, written, abandoned, row_count,
                     status, error_message, started_at, finished_at
              FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			run        Run
			status     string
			errMessage sql.NullString
			startedRaw string
			finished   sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.Model, &run.InputDir, &run.OutputDir, &run.Workers, &run.ChunkLength,
			&run.Files, &run.Chunks, &run.Written, &run.Abandoned, &run.Rows,
			&status, &errMessage, &startedRaw, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Status = RunStatus(status)
		run.Error = errMessage.String
		run.StartedAt = parseTime(startedRaw)
		if finished.Valid {
			run.FinishedAt = parseTime(finished.String)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Chunks returns the chunk outcomes of a run in recording order.
func (s *Store) Chunks(ctx context.Context, runID string) ([]ChunkOutcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, source_path, start_seconds, end_seconds, worker, status, row_count, elapsed_ms, error_message
         FROM chunks WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var out []ChunkOutcome
	for rows.Next() {
		var (
			outcome    ChunkOutcome
			status     string
			elapsedMS  int64
			errMessage sql.NullString
		)
		if err := rows.Scan(&outcome.RunID, &outcome.Source, &outcome.Start, &outcome.End, &outcome.Worker,
			&status, &outcome.Rows, &elapsedMS, &errMessage); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		outcome.Status = ChunkStatus(status)
		outcome.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		outcome.Error = errMessage.String
		out = append(out, outcome)
	}
	return out, rows.Err()
}

// timeLayout has fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
