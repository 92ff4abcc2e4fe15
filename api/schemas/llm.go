package schemas

import (
	"context"
	"encoding/base64"
)

// -- Collaborator transport contracts --

// JSONSchema is a JSON Schema document expressed as nested maps.
type JSONSchema map[string]any

// ResponseFormat names a strict structured-output schema.
type ResponseFormat struct {
	Name   string
	Schema JSONSchema
}

// ImageInput is one image attached to a request.
type ImageInput struct {
	// Label is a short role name ("screen", "crop", "focus") used for audit and logs.
	Label    string
	MIMEType string
	Data     []byte
}

// PNGImage wraps PNG bytes.
func PNGImage(label string, data []byte) ImageInput {
	return ImageInput{Label: label, MIMEType: "image/png", Data: data}
}

// DataURL renders the image as a base64 data URL.
func (i ImageInput) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// GenerationOptions holds sampling parameters.
type GenerationOptions struct {
	// Temperature is applied only when the model accepts it.
	Temperature float32
}

// GenerationRequest is a single multimodal structured-output request.
type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
	Images       []ImageInput
	Format       ResponseFormat
	Options      GenerationOptions
}

// GenerationResult carries the extracted structured JSON object and the raw response body.
type GenerationResult struct {
	JSON string
	Raw  string
}

// LLMClient is implemented by every collaborator transport.
type LLMClient interface {
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error)
	Close() error
}
