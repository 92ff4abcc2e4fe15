package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/config"
	"github.com/xkilldash9x/deskpilot/internal/llmutil"
)

// GeminiClient implements schemas.LLMClient on the Gemini API through the genai SDK.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float32
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// NewGeminiClient initializes the client. An endpoint other than the OpenAI
// default overrides the Gemini base URL.
func NewGeminiClient(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required (set DESKPILOT_LLM_API_KEY or GEMINI_API_KEY)")
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.APITimeout},
	}
	if cfg.Endpoint != "" && cfg.Endpoint != config.DefaultOpenAIEndpoint {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		limiter:     newLimiter(cfg.RequestsPerMinute),
		logger:      logger.Named("llm_client.gemini"),
	}, nil
}

// Generate sends the prompt and images with a JSON response schema.
func (c *GeminiClient) Generate(ctx context.Context, req schemas.GenerationRequest) (*schemas.GenerationResult, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	parts := []*genai.Part{genai.NewPartFromText(req.UserPrompt)}
	for _, img := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	temperature := req.Options.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.SystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(temperature),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    ToGenaiSchema(req.Format.Schema),
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, genConfig)
	if err != nil {
		err = fmt.Errorf("gemini generate failed: %w", err)
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			body, _ := json.Marshal(apiErr)
			return &schemas.GenerationResult{Raw: string(body)}, err
		}
		return nil, err
	}

	rawBytes, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode gemini response: %w", err)
	}
	result := &schemas.GenerationResult{Raw: string(rawBytes)}

	obj, ok := llmutil.ExtractJSONObject(resp.Text())
	if !ok {
		c.logger.Error("No parsable JSON in response.", zap.String("format", req.Format.Name))
		return result, ErrNoStructuredResult
	}
	result.JSON = obj

	fields := []zap.Field{zap.String("format", req.Format.Name), zap.Duration("duration", time.Since(start))}
	if u := resp.UsageMetadata; u != nil {
		fields = append(fields,
			zap.Int32("prompt_tokens", u.PromptTokenCount),
			zap.Int32("completion_tokens", u.CandidatesTokenCount),
			zap.Int32("total_tokens", u.TotalTokenCount))
	}
	c.logger.Info("LLM generation complete (Gemini)", fields...)
	return result, nil
}

// Close is a no-op; the SDK holds no resources beyond its HTTP client.
func (c *GeminiClient) Close() error { return nil }

// ToGenaiSchema converts the JSON Schema subset used by the response formats.
// A ["T", "null"] type becomes T with Nullable set; null enum members are dropped.
func ToGenaiSchema(s schemas.JSONSchema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{}

	switch t := s["type"].(type) {
	case string:
		out.Type = genaiType(t)
	case []any:
		for _, v := range t {
			name, _ := v.(string)
			if name == "null" {
				out.Nullable = genai.Ptr(true)
			} else if name != "" {
				out.Type = genaiType(name)
			}
		}
	}

	if enum, ok := s["enum"].([]any); ok {
		for _, v := range enum {
			if str, ok := v.(string); ok {
				out.Enum = append(out.Enum, str)
			}
		}
	}
	if v, ok := number(s["minimum"]); ok {
		out.Minimum = genai.Ptr(v)
	}
	if v, ok := number(s["maximum"]); ok {
		out.Maximum = genai.Ptr(v)
	}
	if items := asSchema(s["items"]); items != nil {
		out.Items = ToGenaiSchema(items)
	}
	if props, ok := s["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		names := make([]string, 0, len(props))
		for name, p := range props {
			out.Properties[name] = ToGenaiSchema(asSchema(p))
			names = append(names, name)
		}
		sort.Strings(names)
		out.PropertyOrdering = names
	}
	if req, ok := s["required"].([]any); ok {
		for _, v := range req {
			if str, ok := v.(string); ok {
				out.Required = append(out.Required, str)
			}
		}
	}
	return out
}

func asSchema(v any) schemas.JSONSchema {
	switch m := v.(type) {
	case schemas.JSONSchema:
		return m
	case map[string]any:
		return m
	}
	return nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func genaiType(name string) genai.Type {
	switch strings.ToLower(name) {
	case "object":
		return genai.TypeObject
	case "array":
		return genai.TypeArray
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	}
	return genai.TypeUnspecified
}
