// internal/agent/trail.go
package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/internal/audit"
	"github.com/xkilldash9x/deskpilot/internal/capture"
)

// trail writes the artifacts of one run to the audit recorder. Audit failures
// are logged and never interrupt the run.
type trail struct {
	rec    audit.Recorder
	ctx    context.Context
	runID  string
	logger *zap.Logger
	// enabled is false for the no-op recorder, which skips PNG encoding of overlays.
	enabled bool
}

func newTrail(ctx context.Context, rec audit.Recorder, runID string, logger *zap.Logger) *trail {
	_, nop := rec.(audit.Nop)
	return &trail{
		rec: rec,
		// Artifacts of a cancelled run are still written.
		ctx:     context.WithoutCancel(ctx),
		runID:   runID,
		logger:  logger,
		enabled: !nop,
	}
}

func (t *trail) warn(op string, err error) {
	if err != nil {
		t.logger.Warn("Audit write failed.", zap.String("op", op), zap.Error(err))
	}
}

func (t *trail) begin(info audit.RunInfo) {
	t.warn("begin", t.rec.BeginRun(t.ctx, info))
}

func (t *trail) end(outcome string) {
	t.warn("end", t.rec.EndRun(t.ctx, t.runID, outcome))
}

func (t *trail) line(s string) {
	t.warn("transcript", t.rec.AppendTranscript(t.ctx, t.runID, s))
}

func (t *trail) image(step int, label string, png []byte) {
	if !t.enabled || len(png) == 0 {
		return
	}
	t.warn("image", t.rec.SaveImage(t.ctx, t.runID, step, label, png))
}

// shot saves the frame, the crops and, when a crop was sent, the frame with
// the crop outlined.
func (t *trail) shot(step int, s *capture.Shot) {
	if !t.enabled {
		return
	}
	t.image(step, "screen", s.Frame.PNG)
	t.image(step, "focus", s.FocusPNG)
	if s.Crop == nil {
		return
	}
	t.image(step, "crop", s.CropPNG)
	overlay, err := capture.EncodePNG(capture.RenderAimOverlay(s.Frame.Image, *s.Crop))
	if err != nil {
		t.warn("overlay", err)
		return
	}
	t.image(step, "aim_overlay", overlay)
}

func (t *trail) exchange(step int, label string, raw Raw) {
	if !t.enabled {
		return
	}
	if len(raw.Request) > 0 {
		t.warn("payload", t.rec.SavePayload(t.ctx, t.runID, step, label+"_request", raw.Request))
	}
	if raw.Response != "" {
		t.warn("payload", t.rec.SavePayload(t.ctx, t.runID, step, label+"_response", []byte(raw.Response)))
	}
}

func (t *trail) verification(step int, v Verification) {
	if v.Shot != nil {
		t.image(step, "verify", v.Shot.Frame.PNG)
	}
	t.exchange(step, "verify", v.Raw)
}
