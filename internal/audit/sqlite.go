package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	goal       TEXT NOT NULL,
	mode       TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	ended_at   INTEGER,
	outcome    TEXT
);
CREATE TABLE IF NOT EXISTS transcript (
	seq    INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	line   TEXT NOT NULL,
	at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transcript_run ON transcript(run_id, seq);
CREATE TABLE IF NOT EXISTS payloads (
	run_id     TEXT NOT NULL,
	step       INTEGER NOT NULL,
	label      TEXT NOT NULL,
	compressed INTEGER NOT NULL,
	body       BLOB NOT NULL,
	at         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_payloads_run ON payloads(run_id, step);
`

// SQLiteRecorder keeps run metadata, transcripts and payloads in a SQLite
// database. Screen images stay on disk under the file recorder layout.
type SQLiteRecorder struct {
	db       *sql.DB
	images   *FileRecorder
	compress bool
	logger   *zap.Logger
	now      func() time.Time
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(ctx context.Context, path, imageDir string, compress bool, logger *zap.Logger) (*SQLiteRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	images, err := NewFileRecorder(imageDir, false, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	rec, err := NewSQLiteRecorder(ctx, db, images, compress, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return rec, nil
}

// NewSQLiteRecorder applies the schema to an open database.
func NewSQLiteRecorder(ctx context.Context, db *sql.DB, images *FileRecorder, compress bool, logger *zap.Logger) (*SQLiteRecorder, error) {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}
	return &SQLiteRecorder{
		db:       db,
		images:   images,
		compress: compress,
		logger:   logger.Named("audit.sqlite"),
		now:      time.Now,
	}, nil
}

func (s *SQLiteRecorder) BeginRun(ctx context.Context, run RunInfo) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = s.now()
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, goal, mode, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Goal, run.Mode, run.StartedAt.UnixMilli()); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return s.images.BeginRun(ctx, run)
}

func (s *SQLiteRecorder) SaveImage(ctx context.Context, runID string, step int, label string, png []byte) error {
	return s.images.SaveImage(ctx, runID, step, label, png)
}

func (s *SQLiteRecorder) SavePayload(ctx context.Context, runID string, step int, label string, payload []byte) error {
	body, compressed := payload, 0
	if s.compress {
		compressed = 1
		var err error
		if body, err = Compress(payload); err != nil {
			return err
		}
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO payloads (run_id, step, label, compressed, body, at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, step, sanitizeLabel(label), compressed, body, s.now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to insert payload: %w", err)
	}
	return nil
}

func (s *SQLiteRecorder) AppendTranscript(ctx context.Context, runID string, line string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO transcript (run_id, line, at) VALUES (?, ?, ?)`,
		runID, oneLine(line), s.now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to append transcript: %w", err)
	}
	return nil
}

func (s *SQLiteRecorder) EndRun(ctx context.Context, runID string, outcome string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
	}()

	now := s.now().UnixMilli()
	if _, err := tx.ExecContext(ctx, `UPDATE runs SET ended_at = ?, outcome = ? WHERE id = ?`, now, outcome, runID); err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO transcript (run_id, line, at) VALUES (?, ?, ?)`, runID, OutcomePrefix+outcome, now); err != nil {
		return fmt.Errorf("failed to append outcome: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteRecorder) Transcript(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT line FROM transcript WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcript: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("failed to scan transcript row: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// Payload returns the decoded payloads stored for a step and label.
func (s *SQLiteRecorder) Payload(ctx context.Context, runID string, step int, label string) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT compressed, body FROM payloads WHERE run_id = ? AND step = ? AND label = ? ORDER BY rowid`,
		runID, step, sanitizeLabel(label))
	if err != nil {
		return nil, fmt.Errorf("failed to query payloads: %w", err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var compressed int
		var body []byte
		if err := rows.Scan(&compressed, &body); err != nil {
			return nil, fmt.Errorf("failed to scan payload row: %w", err)
		}
		if compressed != 0 {
			if body, err = Decompress(body); err != nil {
				return nil, err
			}
		}
		out = append(out, body)
	}
	return out, rows.Err()
}

func (s *SQLiteRecorder) Close() error {
	return s.db.Close()
}
