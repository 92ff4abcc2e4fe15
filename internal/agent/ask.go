// internal/agent/ask.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/audit"
	"github.com/xkilldash9x/deskpilot/internal/capture"
	"github.com/xkilldash9x/deskpilot/internal/grounding"
)

const askPrefix = "/ask "

// IsQuestion reports whether an input line is a screen question rather than a
// goal: it starts with "/ask " (any case) or ends with '?'.
func IsQuestion(input string) bool {
	s := strings.TrimSpace(input)
	return hasAskPrefix(s) || strings.HasSuffix(s, "?")
}

// StripAskPrefix removes a leading "/ask " and surrounding whitespace.
func StripAskPrefix(input string) string {
	s := strings.TrimSpace(input)
	if hasAskPrefix(s) {
		s = strings.TrimSpace(s[len(askPrefix):])
	}
	return s
}

func hasAskPrefix(s string) bool {
	return len(s) >= len(askPrefix) && strings.EqualFold(s[:len(askPrefix)], askPrefix)
}

// Ask answers one question about the current screen. No input is synthesized.
// The result's Pixel is the reported location resolved against the screen:
// normalized coordinates first, then the pixel hint.
func (p *Pilot) Ask(ctx context.Context, question string) (*schemas.QAResult, error) {
	q := StripAskPrefix(question)
	if q == "" {
		return nil, errors.New("question must not be empty")
	}

	runID := uuidNewString()
	logger, release := p.loggerFor(runID)
	defer release()
	tr := newTrail(ctx, p.recorder, runID, logger)
	tr.begin(audit.RunInfo{ID: runID, Goal: q, Mode: "ask", StartedAt: time.Now()})

	shot, err := p.shooter.Capture(ctx, nil)
	if err != nil {
		tr.end(OutcomeExecutionError.String())
		return nil, fmt.Errorf("failed to capture screen: %w", err)
	}
	res := grounding.New(shot.Frame.Screen, p.cfg.FocusCropSize)
	tr.shot(1, shot)

	answer, raw, err := p.collab.Locate(ctx, QARequest{
		Question: q,
		Shot:     shot,
		Cursor:   capture.CursorPos(ctx, p.cursor, res),
	})
	tr.exchange(1, "locate", raw)
	if err != nil {
		tr.end(OutcomeCollaboratorFailure.String())
		return nil, err
	}

	if pt, ok := res.ResolvePoint(answer.Location); ok {
		answer.Pixel = &pt
	}
	for _, line := range AnswerLines(answer) {
		tr.line(line)
	}
	logger.Info("Question answered.", zap.String("question", q), zap.Bool("located", answer.Pixel != nil))
	tr.end("answered")
	return &answer, nil
}

// AnswerLines renders an answer for the console and the transcript.
func AnswerLines(a schemas.QAResult) []string {
	lines := []string{"answer: " + a.Answer}
	if a.Pixel != nil {
		lines = append(lines, fmt.Sprintf("location: x=%d, y=%d (px)", a.Pixel.X, a.Pixel.Y))
	}
	if a.BBox != nil {
		lines = append(lines, "bbox: "+a.BBox.String())
	}
	if a.Note != "" {
		lines = append(lines, "note: "+a.Note)
	}
	return lines
}
