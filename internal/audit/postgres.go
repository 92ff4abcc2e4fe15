package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DBPool abstracts pgxpool.Pool so the recorder can be tested with pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const (
	pgSchema = `
CREATE TABLE IF NOT EXISTS deskpilot_runs (
    id TEXT PRIMARY KEY,
    goal TEXT NOT NULL,
    mode TEXT NOT NULL,
    started_at TIMESTAMPTZ NOT NULL,
    ended_at TIMESTAMPTZ,
    outcome TEXT
);
CREATE TABLE IF NOT EXISTS deskpilot_transcript (
    seq BIGSERIAL PRIMARY KEY,
    run_id TEXT NOT NULL REFERENCES deskpilot_runs(id),
    line TEXT NOT NULL,
    at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS deskpilot_artifacts (
    run_id TEXT NOT NULL REFERENCES deskpilot_runs(id),
    step INTEGER NOT NULL,
    kind TEXT NOT NULL,
    label TEXT NOT NULL,
    body BYTEA NOT NULL,
    at TIMESTAMPTZ NOT NULL
);`

	sqlInsertRun        = `INSERT INTO deskpilot_runs (id, goal, mode, started_at) VALUES ($1, $2, $3, $4)`
	sqlInsertArtifact   = `INSERT INTO deskpilot_artifacts (run_id, step, kind, label, body, at) VALUES ($1, $2, $3, $4, $5, $6)`
	sqlInsertTranscript = `INSERT INTO deskpilot_transcript (run_id, line, at) VALUES ($1, $2, $3)`
	sqlEndRun           = `UPDATE deskpilot_runs SET ended_at = $1, outcome = $2 WHERE id = $3`
	sqlSelectTranscript = `SELECT line FROM deskpilot_transcript WHERE run_id = $1 ORDER BY seq`
)

// PostgresRecorder stores every artifact, images included, in PostgreSQL.
// Payloads are stored uncompressed so they stay queryable.
type PostgresRecorder struct {
	pool   DBPool
	log    *zap.Logger
	now    func() time.Time
	closer func()
}

// NewPostgresRecorder verifies the connection and applies the schema.
func NewPostgresRecorder(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresRecorder, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		return nil, fmt.Errorf("failed to apply postgres schema: %w", err)
	}
	return &PostgresRecorder{
		pool: pool,
		log:  logger.Named("audit.postgres"),
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (p *PostgresRecorder) BeginRun(ctx context.Context, run RunInfo) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = p.now()
	}
	if _, err := p.pool.Exec(ctx, sqlInsertRun, run.ID, run.Goal, run.Mode, run.StartedAt.UTC()); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func (p *PostgresRecorder) SaveImage(ctx context.Context, runID string, step int, label string, png []byte) error {
	return p.saveArtifact(ctx, runID, step, "image", label, png)
}

func (p *PostgresRecorder) SavePayload(ctx context.Context, runID string, step int, label string, payload []byte) error {
	return p.saveArtifact(ctx, runID, step, "payload", label, payload)
}

func (p *PostgresRecorder) saveArtifact(ctx context.Context, runID string, step int, kind, label string, body []byte) error {
	if _, err := p.pool.Exec(ctx, sqlInsertArtifact, runID, step, kind, sanitizeLabel(label), body, p.now()); err != nil {
		return fmt.Errorf("failed to insert %s artifact: %w", kind, err)
	}
	return nil
}

func (p *PostgresRecorder) AppendTranscript(ctx context.Context, runID string, line string) error {
	if _, err := p.pool.Exec(ctx, sqlInsertTranscript, runID, oneLine(line), p.now()); err != nil {
		return fmt.Errorf("failed to append transcript: %w", err)
	}
	return nil
}

// EndRun updates the run row and appends the outcome line in one transaction.
func (p *PostgresRecorder) EndRun(ctx context.Context, runID string, outcome string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			p.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	now := p.now()
	if _, err := tx.Exec(ctx, sqlEndRun, now, outcome, runID); err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if _, err := tx.Exec(ctx, sqlInsertTranscript, runID, OutcomePrefix+outcome, now); err != nil {
		return fmt.Errorf("failed to append outcome: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (p *PostgresRecorder) Transcript(ctx context.Context, runID string) ([]string, error) {
	rows, err := p.pool.Query(ctx, sqlSelectTranscript, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcript: %w", err)
	}
	lines, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	return lines, nil
}

func (p *PostgresRecorder) Close() error {
	if p.closer != nil {
		p.closer()
	}
	return nil
}
