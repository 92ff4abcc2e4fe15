// internal/agent/verifier.go
package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/capture"
)

// reasonUnavailable stands in for a missing or failed verification reason.
const reasonUnavailable = "n/a"

// Verification is the result of one verification round.
type Verification struct {
	Verdict schemas.Verdict
	// Shot is the fresh frame that was judged, nil when the capture failed.
	Shot *capture.Shot
	Raw  Raw
}

// Verifier confirms a claimed completion against a freshly captured frame.
type Verifier struct {
	shooter Shooter
	collab  Collaborator
	settle  time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
	logger  *zap.Logger
}

// NewVerifier creates a Verifier that waits settle before capturing.
func NewVerifier(shooter Shooter, collab Collaborator, settle time.Duration, logger *zap.Logger) *Verifier {
	return &Verifier{
		shooter: shooter,
		collab:  collab,
		settle:  settle,
		sleep:   sleepContext,
		logger:  logger.Named("verifier"),
	}
}

// Verify waits for the screen to settle, captures an uncropped frame and asks the
// collaborator for a yes/no verdict. A failed capture wraps ErrVerificationCapture
// and a failed or unparsable round wraps ErrVerificationFailed; both end the run.
func (v *Verifier) Verify(ctx context.Context, goal string) (Verification, error) {
	out := Verification{Verdict: schemas.Verdict{Reason: reasonUnavailable}}
	if err := v.sleep(ctx, v.settle); err != nil {
		return out, err
	}

	shot, err := v.shooter.Capture(ctx, nil)
	if err != nil {
		v.logger.Warn("Verification capture failed.", zap.Error(err))
		return out, fmt.Errorf("%w: %w", ErrVerificationCapture, err)
	}
	out.Shot = shot

	verdict, raw, err := v.collab.Verify(ctx, VerifyRequest{Goal: goal, Shot: shot})
	out.Raw = raw
	if err != nil {
		v.logger.Warn("Verification round failed.", zap.Error(err))
		return out, fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}
	if verdict.Reason == "" {
		verdict.Reason = reasonUnavailable
	}
	out.Verdict = verdict
	v.logger.Info("Verification complete.", zap.Bool("confirmed", verdict.Confirmed), zap.String("reason", verdict.Reason))
	return out, nil
}

// sleepContext pauses for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
