package cmd

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/capture"
	"github.com/xkilldash9x/deskpilot/internal/config"
	"github.com/xkilldash9x/deskpilot/internal/hotkey"
	"github.com/xkilldash9x/deskpilot/internal/input"
	"github.com/xkilldash9x/deskpilot/internal/observability"
)

// resetForTest provides the single source of truth for resetting test state.
// It isolates the config search path and the environment, points the audit
// store at a temp dir and returns that dir.
func resetForTest(t *testing.T) string {
	t.Helper()

	cfgFile = ""

	home := t.TempDir()
	homedir.DisableCache = true
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	for _, key := range []string{"OPENAI_API_KEY", "GEMINI_API_KEY", "MOUSE_ENABLED", "GRID_STEP_PX", "POST_ACTION_DELAY_MS"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("DESKPILOT_LLM_API_KEY", "sk-test")
	t.Setenv("DESKPILOT_PILOT_SETTLE_DELAY", "0s")
	auditDir := t.TempDir()
	t.Setenv("DESKPILOT_AUDIT_DIR", auditDir)

	observability.ResetForTest()
	observability.InitializeLogger(config.LoggerConfig{Level: "fatal", Format: "console", ServiceName: "test"})
	t.Cleanup(func() {
		observability.ResetForTest()
		homedir.DisableCache = false
		cfgFile = ""
	})
	return auditDir
}

// stubBackends replaces the platform and collaborator constructors for one test.
func stubBackends(t *testing.T, client *cannedClient) {
	t.Helper()
	origClient, origRec, origGrab, origSink, origKeys := newLLMClient, newRecorder, newGrabber, newSink, newKeyState
	t.Cleanup(func() {
		newLLMClient, newRecorder, newGrabber, newSink, newKeyState = origClient, origRec, origGrab, origSink, origKeys
	})

	newLLMClient = func(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
		client.setKey(cfg.APIKey)
		return client, nil
	}
	newGrabber = func(config.CaptureConfig, string, *zap.Logger) (capture.Grabber, error) {
		return capture.NewStaticGrabber(solidFrame(320, 200)), nil
	}
	newSink = func(_ config.InputConfig, logger *zap.Logger) (input.Sink, error) {
		return input.NewDryRunSink(logger), nil
	}
	newKeyState = func() (hotkey.KeyState, error) { return releasedKeys{}, nil }
}

// executeCommand runs a fresh command tree with stdin and returns the combined output.
func executeCommand(t *testing.T, stdin string, args ...string) (string, *config.Config, error) {
	t.Helper()
	root, cfgPtr := newRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), *cfgPtr, err
}

// createTempConfig writes content to a YAML file in a temp dir.
func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "deskpilot-*.yaml")
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

func solidFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 30, G: 30, B: 30, A: 255}}, image.Point{}, draw.Src)
	return img
}

type releasedKeys struct{}

func (releasedKeys) Down(uint16) bool { return false }

var errCollaboratorDown = errors.New("collaborator down")

// cannedClient answers collaborator requests by response format.
type cannedClient struct {
	mu      sync.Mutex
	actions []string
	verdict string
	answer  string
	err     error

	formats []string
	apiKey  string
	closed  bool
}

func newCannedClient(actions ...string) *cannedClient {
	return &cannedClient{
		actions: actions,
		verdict: `{"verdict":"YES","reason":"looks right"}`,
		answer:  `{"answer_text":"The gear icon","x":0.5,"y":0.5,"note":null}`,
	}
}

func (c *cannedClient) Generate(ctx context.Context, req schemas.GenerationRequest) (*schemas.GenerationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.formats = append(c.formats, req.Format.Name)
	if c.err != nil {
		return &schemas.GenerationResult{Raw: "upstream failure"}, c.err
	}
	switch req.Format.Name {
	case "VerifyGoal":
		return &schemas.GenerationResult{JSON: c.verdict, Raw: c.verdict}, nil
	case "QaLocate":
		return &schemas.GenerationResult{JSON: c.answer, Raw: c.answer}, nil
	}
	next := `{"type":"done"}`
	if len(c.actions) > 0 {
		next = c.actions[0]
		c.actions = c.actions[1:]
	}
	return &schemas.GenerationResult{JSON: next, Raw: next}, nil
}

func (c *cannedClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *cannedClient) setKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = key
}

func (c *cannedClient) seen() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.formats...)
}
