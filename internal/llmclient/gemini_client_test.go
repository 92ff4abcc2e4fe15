package llmclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/genai"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/config"
)

// -- Test Setup Helpers --

// setupGeminiClient points a GeminiClient at a mock HTTP server.
func setupGeminiClient(t *testing.T, handler http.HandlerFunc) (*GeminiClient, *observer.ObservedLogs) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger, logs := setupTestLogger(t)
	cfg := getValidLLMConfig(config.ProviderGemini)
	cfg.Model = "gemini-2.5-flash"
	cfg.Endpoint = server.URL

	client, err := NewGeminiClient(context.Background(), cfg, logger)
	require.NoError(t, err)
	return client, logs
}

const geminiReply = `{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"verdict\":\"yes\",\"reason\":null}"}]}}],
"usageMetadata":{"promptTokenCount":12,"candidatesTokenCount":5,"totalTokenCount":17}}`

// -- Test Cases: Generate --

func TestGeminiClient_Generate(t *testing.T) {
	var path, body string
	client, logs := setupGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, geminiReply)
	})

	res, err := client.Generate(context.Background(), createTestRequest())
	require.NoError(t, err)
	assert.JSONEq(t, `{"verdict":"yes","reason":null}`, res.JSON)
	assert.NotEmpty(t, res.Raw)

	assert.Contains(t, path, "gemini-2.5-flash:generateContent")
	assert.Contains(t, body, "GOAL: test")
	assert.Contains(t, body, "System prompt instructions.")
	assert.Contains(t, body, "application/json")
	assert.Contains(t, body, "image/png")

	entries := logs.FilterMessage("LLM generation complete (Gemini)").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int32(17), entries[0].ContextMap()["total_tokens"])
}

func TestGeminiClient_NoJSONInReply(t *testing.T) {
	client, _ := setupGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"I cannot tell."}]}}]}`)
	})

	res, err := client.Generate(context.Background(), createTestRequest())
	assert.ErrorIs(t, err, ErrNoStructuredResult)
	require.NotNil(t, res)
	assert.Contains(t, res.Raw, "I cannot tell.")
}

func TestGeminiClient_HTTPError(t *testing.T) {
	var calls atomic.Int32
	client, _ := setupGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":400,"message":"bad schema","status":"INVALID_ARGUMENT"}}`)
	})

	res, err := client.Generate(context.Background(), createTestRequest())
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "gemini generate failed"))
	require.NotNil(t, res, "the error body is kept")
	assert.Contains(t, res.Raw, "bad schema")
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewGeminiClient_MissingKey(t *testing.T) {
	logger, _ := setupTestLogger(t)
	cfg := getValidLLMConfig(config.ProviderGemini)
	cfg.APIKey = ""
	_, err := NewGeminiClient(context.Background(), cfg, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")
}

// -- Test Cases: Schema conversion --

func TestToGenaiSchema_Verify(t *testing.T) {
	s := ToGenaiSchema(schemas.VerifyGoalFormat().Schema)
	require.NotNil(t, s)
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, []string{"verdict", "reason"}, s.Required)
	assert.Equal(t, []string{"reason", "verdict"}, s.PropertyOrdering)

	verdict := s.Properties["verdict"]
	assert.Equal(t, genai.TypeString, verdict.Type)
	assert.Equal(t, []string{"yes", "no"}, verdict.Enum)
	assert.Nil(t, verdict.Nullable)

	reason := s.Properties["reason"]
	assert.Equal(t, genai.TypeString, reason.Type)
	require.NotNil(t, reason.Nullable)
	assert.True(t, *reason.Nullable)
}

func TestToGenaiSchema_SingleAction(t *testing.T) {
	s := ToGenaiSchema(schemas.SingleActionFormat().Schema)
	require.NotNil(t, s)
	assert.Len(t, s.Properties, 13)

	x := s.Properties["x"]
	assert.Equal(t, genai.TypeNumber, x.Type)
	require.NotNil(t, x.Minimum)
	require.NotNil(t, x.Maximum)
	assert.Equal(t, 0.0, *x.Minimum)
	assert.Equal(t, 1.0, *x.Maximum)

	button := s.Properties["button"]
	assert.Equal(t, []string{"left", "right", "middle"}, button.Enum, "null enum member is dropped")
	assert.True(t, *button.Nullable)

	keys := s.Properties["keys"]
	assert.Equal(t, genai.TypeArray, keys.Type)
	require.NotNil(t, keys.Items)
	assert.Equal(t, genai.TypeString, keys.Items.Type)

	wait := s.Properties["wait_seconds"]
	assert.Equal(t, genai.TypeInteger, wait.Type)
	require.NotNil(t, wait.Minimum)
	assert.Equal(t, 0.0, *wait.Minimum)

	bbox := s.Properties["bbox"]
	assert.Equal(t, genai.TypeObject, bbox.Type)
	assert.True(t, *bbox.Nullable)
	assert.Equal(t, []string{"left", "top", "right", "bottom"}, bbox.Required)
}

func TestToGenaiSchema_Nil(t *testing.T) {
	assert.Nil(t, ToGenaiSchema(nil))
	assert.Equal(t, genai.TypeUnspecified, genaiType("tuple"))
}
