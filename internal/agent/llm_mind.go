// internal/agent/llm_mind.go
package agent

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/capture"
	"github.com/xkilldash9x/deskpilot/internal/llmutil"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LLMMind is the Collaborator backed by a structured-output LLM transport.
// Each round is a single stateless request: system rules, user text and images in,
// one schema-constrained JSON object out.
type LLMMind struct {
	client schemas.LLMClient
	rules  PromptRules
	logger *zap.Logger
}

var _ Collaborator = (*LLMMind)(nil)

// NewLLMMind creates a collaborator over client.
func NewLLMMind(client schemas.LLMClient, rules PromptRules, logger *zap.Logger) *LLMMind {
	return &LLMMind{
		client: client,
		rules:  rules,
		logger: logger.Named("llm_mind"),
	}
}

// Decide runs one decision round and decodes the single action it returns.
func (m *LLMMind) Decide(ctx context.Context, dc DecisionContext) (schemas.Action, Raw, error) {
	req := schemas.GenerationRequest{
		SystemPrompt: BuildSystemRules(m.rules, dc.MouseAllowed),
		UserPrompt:   BuildDecisionPrompt(dc),
		Images:       decisionImages(dc.Shot),
		Format:       schemas.SingleActionFormat(),
	}
	reply, raw, err := m.generate(ctx, req)
	if err != nil {
		return schemas.Action{}, raw, fmt.Errorf("llm generation failed: %w", err)
	}

	dto, err := llmutil.ParseJSONResponse[schemas.ActionDTO](reply)
	if err != nil {
		m.logger.Warn("Failed to unmarshal decision", zap.String("raw_response", raw.Response), zap.Error(err))
		return schemas.Action{}, raw, fmt.Errorf("%w: %w", ErrUnparsableAction, err)
	}
	action, err := dto.ToAction()
	if err != nil {
		return schemas.Action{}, raw, fmt.Errorf("%w: %w", ErrUnparsableAction, err)
	}
	return action, raw, nil
}

// Verify asks whether the goal is visibly achieved on the given frame.
func (m *LLMMind) Verify(ctx context.Context, vr VerifyRequest) (schemas.Verdict, Raw, error) {
	req := schemas.GenerationRequest{
		SystemPrompt: VerifyRules,
		UserPrompt:   BuildVerifyPrompt(vr.Goal, vr.Shot.Frame.Screen),
		Images:       []schemas.ImageInput{schemas.PNGImage("screen", vr.Shot.Frame.PNG)},
		Format:       schemas.VerifyGoalFormat(),
	}
	reply, raw, err := m.generate(ctx, req)
	if err != nil {
		return schemas.Verdict{}, raw, fmt.Errorf("llm verification failed: %w", err)
	}
	dto, err := llmutil.ParseJSONResponse[schemas.VerifyDTO](reply)
	if err != nil {
		return schemas.Verdict{}, raw, fmt.Errorf("failed to parse verification: %w", err)
	}
	return dto.ToVerdict(), raw, nil
}

// Locate answers a question about the screen with optional location metadata.
func (m *LLMMind) Locate(ctx context.Context, qr QARequest) (schemas.QAResult, Raw, error) {
	images := []schemas.ImageInput{schemas.PNGImage("screen", qr.Shot.Frame.PNG)}
	if len(qr.Shot.FocusPNG) > 0 {
		images = append(images, schemas.PNGImage("focus", qr.Shot.FocusPNG))
	}
	req := schemas.GenerationRequest{
		SystemPrompt: BuildQaSystemRules(m.rules),
		UserPrompt:   BuildQAPrompt(qr),
		Images:       images,
		Format:       schemas.QaLocateFormat(),
	}
	reply, raw, err := m.generate(ctx, req)
	if err != nil {
		return schemas.QAResult{}, raw, fmt.Errorf("llm question failed: %w", err)
	}
	dto, err := llmutil.ParseJSONResponse[schemas.QADTO](reply)
	if err != nil {
		return schemas.QAResult{}, raw, fmt.Errorf("failed to parse answer: %w", err)
	}
	return dto.ToResult(), raw, nil
}

func (m *LLMMind) generate(ctx context.Context, req schemas.GenerationRequest) (string, Raw, error) {
	raw := Raw{Request: requestView(req)}
	res, err := m.client.Generate(ctx, req)
	if res != nil {
		raw.Response = res.Raw
	}
	if err != nil {
		return "", raw, err
	}
	m.logger.Debug("Collaborator replied.", zap.String("format", req.Format.Name), zap.Int("images", len(req.Images)))
	return res.JSON, raw, nil
}

// decisionImages orders the attachments: full screen, focus crop, requested crop.
func decisionImages(shot *capture.Shot) []schemas.ImageInput {
	images := []schemas.ImageInput{schemas.PNGImage("screen", shot.Frame.PNG)}
	if len(shot.FocusPNG) > 0 {
		images = append(images, schemas.PNGImage("focus", shot.FocusPNG))
	}
	if len(shot.CropPNG) > 0 {
		images = append(images, schemas.PNGImage("crop", shot.CropPNG))
	}
	return images
}

type imageView struct {
	Label    string `json:"label"`
	MIMEType string `json:"mime_type"`
	Bytes    int    `json:"bytes"`
}

type requestViewDoc struct {
	Format string      `json:"format"`
	System string      `json:"system"`
	User   string      `json:"user"`
	Images []imageView `json:"images"`
}

// requestView is the audit form of a request. Images are saved separately.
func requestView(req schemas.GenerationRequest) []byte {
	doc := requestViewDoc{Format: req.Format.Name, System: req.SystemPrompt, User: req.UserPrompt}
	for _, img := range req.Images {
		doc.Images = append(doc.Images, imageView{Label: img.Label, MIMEType: img.MIMEType, Bytes: len(img.Data)})
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil
	}
	return b
}
