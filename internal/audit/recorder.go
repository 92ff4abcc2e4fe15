// Package audit records what a run saw, asked and did: screen images,
// collaborator payloads and the step transcript.
package audit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// OutcomePrefix starts the last transcript line of a finished run.
const OutcomePrefix = "outcome: "

// RunInfo describes a run when it begins.
type RunInfo struct {
	ID        string    `json:"id"`
	Goal      string    `json:"goal"`
	Mode      string    `json:"mode"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
}

// Recorder persists run artifacts. Implementations must be safe for use by a
// single run loop; they are not shared across concurrent runs.
type Recorder interface {
	BeginRun(ctx context.Context, run RunInfo) error
	SaveImage(ctx context.Context, runID string, step int, label string, png []byte) error
	SavePayload(ctx context.Context, runID string, step int, label string, payload []byte) error
	AppendTranscript(ctx context.Context, runID string, line string) error
	// EndRun stamps the outcome and appends the final OutcomePrefix line.
	EndRun(ctx context.Context, runID string, outcome string) error
	Close() error
}

// TranscriptReader returns the transcript lines of a stored run.
type TranscriptReader interface {
	Transcript(ctx context.Context, runID string) ([]string, error)
}

// Nop discards everything.
type Nop struct{}

func (Nop) BeginRun(context.Context, RunInfo) error { return nil }
func (Nop) SaveImage(context.Context, string, int, string, []byte) error { return nil }
func (Nop) SavePayload(context.Context, string, int, string, []byte) error { return nil }
func (Nop) AppendTranscript(context.Context, string, string) error { return nil }
func (Nop) EndRun(context.Context, string, string) error { return nil }
func (Nop) Close() error { return nil }
func (Nop) Transcript(context.Context, string) ([]string, error) { return nil, nil }

// New builds the recorder selected by cfg.Backend.
func New(ctx context.Context, cfg config.AuditConfig, logger *zap.Logger) (Recorder, error) {
	switch cfg.Backend {
	case config.AuditNone, "":
		return Nop{}, nil
	case config.AuditFile:
		dir, err := homedir.Expand(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to expand audit dir: %w", err)
		}
		return NewFileRecorder(dir, cfg.Compress, logger)
	case config.AuditSQLite:
		dir, err := homedir.Expand(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to expand audit dir: %w", err)
		}
		path, err := homedir.Expand(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to expand sqlite path: %w", err)
		}
		return OpenSQLite(ctx, path, dir, cfg.Compress, logger)
	case config.AuditPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}
		rec, err := NewPostgresRecorder(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		rec.closer = pool.Close
		return rec, nil
	}
	return nil, fmt.Errorf("unsupported audit backend %q", cfg.Backend)
}

// artifactName is the stable file or row name of a step artifact.
func artifactName(step int, label, ext string) string {
	return fmt.Sprintf("step-%04d-%s%s", step, sanitizeLabel(label), ext)
}

func sanitizeLabel(label string) string {
	label = strings.TrimSpace(strings.ToLower(label))
	if label == "" {
		return "artifact"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, label)
}

// -- Payload compression --

var brotliReaderPool = sync.Pool{
	New: func() interface{} {
		return brotli.NewReader(nil)
	},
}

// Compress brotli-encodes a payload.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress payload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish compressed payload: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	br := brotliReaderPool.Get().(*brotli.Reader)
	defer brotliReaderPool.Put(br)
	if err := br.Reset(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to reset brotli reader: %w", err)
	}
	out, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress payload: %w", err)
	}
	return out, nil
}
