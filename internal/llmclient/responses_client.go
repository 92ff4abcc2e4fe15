package llmclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/config"
	"github.com/xkilldash9x/deskpilot/internal/llmutil"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrHTTPStatus marks a non-2xx reply. The concrete error is an *APIError.
	ErrHTTPStatus = errors.New("llm: unexpected HTTP status")
	// ErrNoStructuredResult is returned when a reply carries no JSON object.
	ErrNoStructuredResult = errors.New("llm: no structured result in response")
)

// APIError carries the status and raw body of a failed request.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm: API error: status %d, body: %s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error { return ErrHTTPStatus }

// transient reports whether a retry may succeed.
func (e *APIError) transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// ResponsesClient talks to the OpenAI Responses API with strict json_schema output.
type ResponsesClient struct {
	apiKey      string
	endpoint    string
	model       string
	temperature float32
	maxRetries  int
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// -- Responses API Request/Response Structures (Internal to this file) --

type responsesContent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type responsesMessage struct {
	Role    string             `json:"role"`
	Content []responsesContent `json:"content"`
}

type responsesFormat struct {
	Type   string             `json:"type"`
	Name   string             `json:"name"`
	Strict bool               `json:"strict"`
	Schema schemas.JSONSchema `json:"schema"`
}

type responsesText struct {
	Format responsesFormat `json:"format"`
}

type responsesRequest struct {
	Model       string             `json:"model"`
	Input       []responsesMessage `json:"input"`
	Text        responsesText      `json:"text"`
	Temperature *float32           `json:"temperature,omitempty"`
}

type responsesEnvelope struct {
	OutputParsed jsoniter.RawMessage `json:"output_parsed"`
	Output       []struct {
		Content []struct {
			Type   string              `json:"type"`
			Text   *string             `json:"text"`
			Parsed jsoniter.RawMessage `json:"parsed"`
		} `json:"content"`
	} `json:"output"`
	OutputText *string             `json:"output_text"`
	Text       jsoniter.RawMessage `json:"text"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// NewResponsesClient initializes the client.
func NewResponsesClient(cfg config.LLMConfig, logger *zap.Logger) (*ResponsesClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required (set DESKPILOT_LLM_API_KEY or OPENAI_API_KEY)")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = config.DefaultOpenAIEndpoint
	}
	return &ResponsesClient{
		apiKey:      cfg.APIKey,
		endpoint:    endpoint,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxRetries:  cfg.MaxRetries,
		httpClient:  &http.Client{Timeout: cfg.APITimeout},
		limiter:     newLimiter(cfg.RequestsPerMinute),
		logger:      logger.Named("llm_client.openai"),
	}, nil
}

// newLimiter returns nil, meaning unlimited, for rpm <= 0.
func newLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
}

// supportsTemperature is false for the gpt-5 family, which rejects the parameter.
func supportsTemperature(model string) bool {
	return !strings.HasPrefix(strings.ToLower(model), "gpt-5")
}

// Generate sends one structured-output request. When the reply has no
// extractable JSON, the result still carries Raw alongside ErrNoStructuredResult.
func (c *ResponsesClient) Generate(ctx context.Context, req schemas.GenerationRequest) (*schemas.GenerationResult, error) {
	body, err := json.Marshal(c.buildRequestPayload(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	var raw []byte
	operation := func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		raw, err = c.post(ctx, body)
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.transient() {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		c.logger.Warn("LLM request failed.", zap.Error(err))
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.MaxInterval = 30 * time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxRetries)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		// The error body is kept for the audit trail.
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return &schemas.GenerationResult{Raw: apiErr.Body}, err
		}
		return nil, err
	}

	result := &schemas.GenerationResult{Raw: string(raw)}
	env, obj, err := extractStructured(raw)
	if err != nil {
		c.logger.Error("No parsable JSON in response.", zap.Error(err))
		return result, err
	}
	result.JSON = obj
	c.logger.Info("LLM generation complete (OpenAI)",
		zap.String("format", req.Format.Name),
		zap.Int("input_tokens", env.Usage.InputTokens),
		zap.Int("output_tokens", env.Usage.OutputTokens),
		zap.Int("total_tokens", env.Usage.TotalTokens),
	)
	return result, nil
}

func (c *ResponsesClient) post(ctx context.Context, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	c.logger.Debug("LLM HTTP round trip.", zap.Int("status", resp.StatusCode), zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

func (c *ResponsesClient) buildRequestPayload(req schemas.GenerationRequest) responsesRequest {
	user := []responsesContent{{Type: "input_text", Text: req.UserPrompt}}
	for _, img := range req.Images {
		user = append(user, responsesContent{Type: "input_image", ImageURL: img.DataURL()})
	}

	payload := responsesRequest{
		Model: c.model,
		Input: []responsesMessage{
			{Role: "system", Content: []responsesContent{{Type: "input_text", Text: req.SystemPrompt}}},
			{Role: "user", Content: user},
		},
		Text: responsesText{Format: responsesFormat{
			Type:   "json_schema",
			Name:   req.Format.Name,
			Strict: true,
			Schema: req.Format.Schema,
		}},
	}
	if supportsTemperature(c.model) {
		t := req.Options.Temperature
		if t == 0 {
			t = c.temperature
		}
		payload.Temperature = &t
	}
	return payload
}

// extractStructured finds the JSON object in a Responses API reply. It tries,
// in order: output_parsed, any output[].content[].parsed, the first balanced
// object in an output_text content item, then the root output_text and text
// strings.
func extractStructured(raw []byte) (*responsesEnvelope, string, error) {
	var env responsesEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrNoStructuredResult, err)
	}

	if present(env.OutputParsed) {
		return &env, string(env.OutputParsed), nil
	}
	for _, item := range env.Output {
		for _, c := range item.Content {
			if present(c.Parsed) {
				return &env, string(c.Parsed), nil
			}
		}
	}
	for _, item := range env.Output {
		for _, c := range item.Content {
			if c.Type != "output_text" || c.Text == nil {
				continue
			}
			if obj, ok := llmutil.ExtractJSONObject(*c.Text); ok {
				return &env, obj, nil
			}
		}
	}
	if env.OutputText != nil {
		if obj, ok := llmutil.ExtractJSONObject(*env.OutputText); ok {
			return &env, obj, nil
		}
	}
	// At the root, "text" is usually the echoed format config; only a string counts.
	var text string
	if len(env.Text) > 0 && json.Unmarshal(env.Text, &text) == nil {
		if obj, ok := llmutil.ExtractJSONObject(text); ok {
			return &env, obj, nil
		}
	}
	return &env, "", ErrNoStructuredResult
}

func present(m jsoniter.RawMessage) bool {
	s := strings.TrimSpace(string(m))
	return s != "" && s != "null"
}

// Close releases idle connections.
func (c *ResponsesClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
