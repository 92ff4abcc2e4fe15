package audit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func openTestSQLite(t *testing.T, compress bool) (*SQLiteRecorder, string) {
	t.Helper()
	dir := t.TempDir()
	rec, err := OpenSQLite(context.Background(), filepath.Join(dir, "audit.db"), dir, compress, zaptest.NewLogger(t))
	require.NoError(t, err)
	rec.now = func() time.Time { return fixedNow }
	t.Cleanup(func() { rec.Close() })
	return rec, dir
}

func TestSQLiteRecorder_Lifecycle(t *testing.T) {
	ctx := context.Background()
	rec, dir := openTestSQLite(t, false)

	require.NoError(t, rec.BeginRun(ctx, RunInfo{ID: "run-1", Goal: "open settings", Mode: "run"}))
	require.NoError(t, rec.SaveImage(ctx, "run-1", 2, "screen", []byte("png")))
	require.NoError(t, rec.SavePayload(ctx, "run-1", 2, "decide", []byte(`{"type":"click"}`)))
	require.NoError(t, rec.AppendTranscript(ctx, "run-1", "[2] click (10,10) left"))
	require.NoError(t, rec.AppendTranscript(ctx, "other", "[1] unrelated"))
	require.NoError(t, rec.EndRun(ctx, "run-1", "max_steps"))

	lines, err := rec.Transcript(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"[2] click (10,10) left", "outcome: max_steps"}, lines)

	payloads, err := rec.Payload(ctx, "run-1", 2, "decide")
	require.NoError(t, err)
	require.Len(t, payloads, 1)
	assert.JSONEq(t, `{"type":"click"}`, string(payloads[0]))

	img, err := os.ReadFile(filepath.Join(dir, "runs", "run-1", "screens", "step-0002-screen.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(img))

	var outcome string
	var ended int64
	require.NoError(t, rec.db.QueryRowContext(ctx, `SELECT outcome, ended_at FROM runs WHERE id = ?`, "run-1").Scan(&outcome, &ended))
	assert.Equal(t, "max_steps", outcome)
	assert.Equal(t, fixedNow.UnixMilli(), ended)
}

func TestSQLiteRecorder_CompressedPayload(t *testing.T) {
	ctx := context.Background()
	rec, _ := openTestSQLite(t, true)
	require.NoError(t, rec.BeginRun(ctx, RunInfo{ID: "run-c", Goal: "g", Mode: "ask"}))
	require.NoError(t, rec.SavePayload(ctx, "run-c", 1, "locate", []byte(`{"answer_text":"42"}`)))

	var compressed int
	require.NoError(t, rec.db.QueryRowContext(ctx, `SELECT compressed FROM payloads WHERE run_id = ?`, "run-c").Scan(&compressed))
	assert.Equal(t, 1, compressed)

	payloads, err := rec.Payload(ctx, "run-c", 1, "locate")
	require.NoError(t, err)
	require.Len(t, payloads, 1)
	assert.JSONEq(t, `{"answer_text":"42"}`, string(payloads[0]))
}

func TestSQLiteRecorder_DuplicateRun(t *testing.T) {
	ctx := context.Background()
	rec, _ := openTestSQLite(t, false)
	require.NoError(t, rec.BeginRun(ctx, RunInfo{ID: "dup", Goal: "g", Mode: "run"}))
	err := rec.BeginRun(ctx, RunInfo{ID: "dup", Goal: "g", Mode: "run"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert run")
}
