package timing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/fingraph/pkg/graph"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Build run statuses.
const (
	StatusSucceeded = "succeeded"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
)

// BuildRun is one row of graph_build_runs.
type BuildRun struct {
	ID            int64              `json:"id"`
	RunID         string             `json:"run_id"`
	CorrelationID string             `json:"correlation_id,omitempty"`
	Status        string             `json:"status"`
	Report        *graph.BuildReport `json:"report,omitempty"`
	Error         string             `json:"error,omitempty"`
	StartedAt     time.Time          `json:"started_at"`
	DurationMs    int64              `json:"duration_ms"`
	CreatedAt     time.Time          `json:"created_at"`
}

// History reads and writes build run records.
type History interface {
	RecordBuildRun(ctx context.Context, correlationID string, report *graph.BuildReport, buildErr error) (*BuildRun, error)
	ListBuildRuns(ctx context.Context, limit int) ([]BuildRun, error)
}

type dbConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// BuildHistory stores build runs in postgres.
type BuildHistory struct {
	conn dbConn
}

var _ History = (*BuildHistory)(nil)

func NewBuildHistory(conn dbConn) *BuildHistory {
	return &BuildHistory{conn: conn}
}

// Status derives the stored status from a build result.
func Status(report *graph.BuildReport, buildErr error) string {
	switch {
	case buildErr != nil:
		return StatusFailed
	case report != nil && len(report.Failures) > 0:
		return StatusPartial
	}
	return StatusSucceeded
}

// NewBuildRun assembles the row for a finished build. report may be nil when
// the build failed before any stage ran.
func NewBuildRun(correlationID string, report *graph.BuildReport, buildErr error) BuildRun {
	run := BuildRun{
		CorrelationID: correlationID,
		Status:        Status(report, buildErr),
		Report:        report,
		StartedAt:     time.Now(),
	}
	if report != nil {
		run.RunID = report.RunID
		run.StartedAt = report.StartedAt
		run.DurationMs = report.Duration.Milliseconds()
	}
	if buildErr != nil {
		run.Error = buildErr.Error()
	}
	return run
}

func (h *BuildHistory) RecordBuildRun(ctx context.Context, correlationID string, report *graph.BuildReport, buildErr error) (*BuildRun, error) {
	run := NewBuildRun(correlationID, report, buildErr)

	var payload []byte
	if report != nil {
		var err error
		payload, err = json.Marshal(report)
		if err != nil {
			return nil, fmt.Errorf("failed to encode build report: %w", err)
		}
	}

	err := h.conn.QueryRow(ctx, insertBuildRunSQL,
		run.RunID, run.CorrelationID, run.Status, payload, run.Error, run.StartedAt, run.DurationMs,
	).Scan(&run.ID, &run.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record build run: %w", err)
	}
	return &run, nil
}

func (h *BuildHistory) ListBuildRuns(ctx context.Context, limit int) ([]BuildRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.conn.Query(ctx, listBuildRunsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list build runs: %w", err)
	}
	defer rows.Close()

	runs := make([]BuildRun, 0, limit)
	for rows.Next() {
		var (
			run     BuildRun
			payload []byte
		)
		if err := rows.Scan(
			&run.ID, &run.RunID, &run.CorrelationID, &run.Status, &payload,
			&run.Error, &run.StartedAt, &run.DurationMs, &run.CreatedAt,
		); err != nil {
			return nil, err
		}
		if run.Report, err = decodeReport(payload); err != nil {
			return nil, fmt.Errorf("build run %d: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func decodeReport(payload []byte) (*graph.BuildReport, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	var report graph.BuildReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, errors.Join(errors.New("invalid build report"), err)
	}
	return &report, nil
}

const insertBuildRunSQL = `
INSERT INTO graph_build_runs (run_id, correlation_id, status, report, error, started_at, duration_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at;
`

const listBuildRunsSQL = `
SELECT id, run_id, correlation_id, status, report, error, started_at, duration_ms, created_at
FROM graph_build_runs
ORDER BY started_at DESC, id DESC
LIMIT $1;
`
