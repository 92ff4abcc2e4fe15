// internal/agent/errors.go
package agent

import "errors"

// ErrorCode is a string type used for structured failure reporting in run results
// and audit payloads.
type ErrorCode string

const (
	// -- Collaborator Errors --
	ErrCodeCollaboratorFailure ErrorCode = "COLLABORATOR_FAILURE"
	ErrCodeUnparsableAction    ErrorCode = "UNPARSABLE_ACTION"

	// -- Execution Errors --
	ErrCodeExecutionFailure ErrorCode = "EXECUTION_FAILURE"
	ErrCodeCaptureFailure   ErrorCode = "CAPTURE_FAILURE"
	ErrCodeNoRegion         ErrorCode = "NO_REGION"
)

var (
	// ErrNoAimRegion is returned when an aim carries neither a box, a crop nor a point.
	ErrNoAimRegion = errors.New("aim: no valid region (bbox/crop/point)")
	// ErrNoCropRegion is returned when point or request_crop cannot be resolved to a crop.
	ErrNoCropRegion = errors.New("crop: no valid region (bbox/crop/point)")
	// ErrUnparsableAction wraps collaborator replies that decode to no usable action.
	ErrUnparsableAction = errors.New("could not parse action")
	// ErrVerificationFailed wraps a verification round that produced no verdict.
	ErrVerificationFailed = errors.New("verification failed")
	// ErrVerificationCapture wraps a failed capture of the frame to be verified.
	ErrVerificationCapture = errors.New("verification capture failed")
)
