// internal/agent/models.go
package agent

import (
	"context"
	"time"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/capture"
)

// Outcome is how a goal run ended.
type Outcome int

const (
	OutcomeVerified Outcome = iota
	OutcomeCancelled
	OutcomeMaxSteps
	OutcomeCollaboratorFailure
	OutcomeExecutionError
)

var outcomeNames = [...]string{
	OutcomeVerified:            "verified",
	OutcomeCancelled:           "cancelled",
	OutcomeMaxSteps:            "max_steps",
	OutcomeCollaboratorFailure: "collaborator_failure",
	OutcomeExecutionError:      "execution_error",
}

func (o Outcome) String() string {
	if o >= 0 && int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return "unknown"
}

// RunResult summarizes a finished goal run.
type RunResult struct {
	RunID   string
	Goal    string
	Outcome Outcome
	// Steps is the number of decision rounds started.
	Steps   int
	History []string
	Code    ErrorCode
	Err     error
	Started time.Time
	Ended   time.Time
}

// Raw is one collaborator exchange kept for the audit trail. Request is a JSON
// view of the request with image bytes replaced by their labels and sizes.
type Raw struct {
	Request  []byte
	Response string
}

// DecisionContext is everything sent in one decision round.
type DecisionContext struct {
	Goal string
	// History is the history tail followed by the step meta lines.
	History      string
	Shot         *capture.Shot
	Cursor       capture.CursorReport
	MouseAllowed bool
}

// VerifyRequest asks whether a goal is visibly achieved on a fresh frame.
type VerifyRequest struct {
	Goal string
	Shot *capture.Shot
}

// QARequest is a single screen question.
type QARequest struct {
	Question string
	Shot     *capture.Shot
	Cursor   capture.CursorReport
}

// Collaborator is the remote decision maker. LLMMind is the production implementation.
type Collaborator interface {
	Decide(ctx context.Context, dc DecisionContext) (schemas.Action, Raw, error)
	Verify(ctx context.Context, req VerifyRequest) (schemas.Verdict, Raw, error)
	Locate(ctx context.Context, req QARequest) (schemas.QAResult, Raw, error)
}

// Shooter produces Shots. *capture.Capturer implements it.
type Shooter interface {
	Capture(ctx context.Context, crop *schemas.Rect) (*capture.Shot, error)
}
