package audit

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidRunID is returned for IDs that are empty or would escape the audit root.
var ErrInvalidRunID = errors.New("audit: invalid run id")

const (
	runFile        = "run.json"
	transcriptFile = "transcript.log"
	screensDir     = "screens"
	requestsDir    = "requests"
)

// FileRecorder writes each run to <root>/runs/<run-id>/: run.json, a
// transcript.log and the screens/ and requests/ artifact folders.
type FileRecorder struct {
	root     string
	compress bool
	mu       sync.Mutex
	logger   *zap.Logger
	now      func() time.Time
}

// NewFileRecorder creates the root directory if needed.
func NewFileRecorder(root string, compress bool, logger *zap.Logger) (*FileRecorder, error) {
	if err := os.MkdirAll(filepath.Join(root, "runs"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	return &FileRecorder{
		root:     root,
		compress: compress,
		logger:   logger.Named("audit.file"),
		now:      time.Now,
	}, nil
}

// RunDir returns the directory holding a run's artifacts.
func (r *FileRecorder) RunDir(runID string) (string, error) {
	if runID == "" || runID == "." || runID == ".." || filepath.Base(runID) != runID || strings.ContainsAny(runID, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRunID, runID)
	}
	return filepath.Join(r.root, "runs", runID), nil
}

// TranscriptPath returns the transcript file of a run.
func (r *FileRecorder) TranscriptPath(runID string) (string, error) {
	dir, err := r.RunDir(runID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, transcriptFile), nil
}

func (r *FileRecorder) BeginRun(ctx context.Context, run RunInfo) error {
	dir, err := r.RunDir(run.ID)
	if err != nil {
		return err
	}
	for _, sub := range []string{screensDir, requestsDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return fmt.Errorf("failed to create run directory: %w", err)
		}
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = r.now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writeRunInfo(dir, run); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, transcriptFile), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create transcript: %w", err)
	}
	r.logger.Debug("Run started.", zap.String("run_id", run.ID), zap.String("dir", dir))
	return f.Close()
}

func (r *FileRecorder) SaveImage(ctx context.Context, runID string, step int, label string, png []byte) error {
	dir, err := r.RunDir(runID)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, screensDir, artifactName(step, label, ".png"))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}

func (r *FileRecorder) SavePayload(ctx context.Context, runID string, step int, label string, payload []byte) error {
	dir, err := r.RunDir(runID)
	if err != nil {
		return err
	}
	ext := ".json"
	if r.compress {
		if payload, err = Compress(payload); err != nil {
			return err
		}
		ext += ".br"
	}
	path := filepath.Join(dir, requestsDir, artifactName(step, label, ext))
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("failed to save payload: %w", err)
	}
	return nil
}

func (r *FileRecorder) AppendTranscript(ctx context.Context, runID string, line string) error {
	dir, err := r.RunDir(runID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return appendLine(filepath.Join(dir, transcriptFile), line)
}

func (r *FileRecorder) EndRun(ctx context.Context, runID string, outcome string) error {
	dir, err := r.RunDir(runID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	run, err := r.readRunInfo(dir)
	if err != nil {
		return err
	}
	run.EndedAt = r.now()
	run.Outcome = outcome
	if err := r.writeRunInfo(dir, run); err != nil {
		return err
	}
	return appendLine(filepath.Join(dir, transcriptFile), OutcomePrefix+outcome)
}

// Transcript reads the lines written so far.
func (r *FileRecorder) Transcript(ctx context.Context, runID string) ([]string, error) {
	path, err := r.TranscriptPath(runID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

// Run loads run.json.
func (r *FileRecorder) Run(runID string) (RunInfo, error) {
	dir, err := r.RunDir(runID)
	if err != nil {
		return RunInfo{}, err
	}
	return r.readRunInfo(dir)
}

func (r *FileRecorder) Close() error { return nil }

func (r *FileRecorder) writeRunInfo(dir string, run RunInfo) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run info: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, runFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write run info: %w", err)
	}
	return nil
}

func (r *FileRecorder) readRunInfo(dir string) (RunInfo, error) {
	var run RunInfo
	data, err := os.ReadFile(filepath.Join(dir, runFile))
	if err != nil {
		return run, fmt.Errorf("failed to read run info: %w", err)
	}
	if err := json.Unmarshal(data, &run); err != nil {
		return run, fmt.Errorf("failed to decode run info: %w", err)
	}
	return run, nil
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open transcript: %w", err)
	}
	if _, err := f.WriteString(oneLine(line) + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("failed to append transcript: %w", err)
	}
	return f.Close()
}

// oneLine keeps a transcript entry on a single line.
func oneLine(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
}
