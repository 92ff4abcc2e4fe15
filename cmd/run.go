package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/internal/agent"
)

// Process exit codes for a finished goal.
const (
	exitOK                  = 0
	exitFailure             = 1
	exitMaxSteps            = 2
	exitCollaboratorFailure = 3
	exitExecutionError      = 4
	exitCancelled           = 130
)

// OutcomeError reports a goal run that ended without verification.
type OutcomeError struct {
	Result *agent.RunResult
}

func (e *OutcomeError) Error() string {
	msg := fmt.Sprintf("run %s ended: %s", e.Result.RunID, e.Result.Outcome)
	if e.Result.Err != nil {
		msg += ": " + e.Result.Err.Error()
	}
	return msg
}

func (e *OutcomeError) Unwrap() error { return e.Result.Err }

// ExitCode maps an error returned by Execute to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var oe *OutcomeError
	if !errors.As(err, &oe) {
		return exitFailure
	}
	switch oe.Result.Outcome {
	case agent.OutcomeVerified:
		return exitOK
	case agent.OutcomeCancelled:
		return exitCancelled
	case agent.OutcomeMaxSteps:
		return exitMaxSteps
	case agent.OutcomeCollaboratorFailure:
		return exitCollaboratorFailure
	default:
		return exitExecutionError
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <goal...>",
		Short: "Pursue one goal until it is verified, then exit",
		Long: `Runs the observe, decide, act loop for a single goal. The exit status is 0
when the goal was verified, 130 when it was aborted (Ctrl+C or Ctrl+Alt+Q),
2 when the step budget ran out, 3 on a collaborator failure and 4 on a
capture or input failure.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}
			frame, _ := cmd.Flags().GetString("frame")
			out := cmd.OutOrStdout()

			s, err := newSession(ctx, cfg, frame, out)
			if err != nil {
				return err
			}
			defer func() {
				if err := s.Close(); err != nil {
					s.logger.Warn("Failed to close session.", zap.Error(err))
				}
			}()

			res, err := runGoal(cmd, s, strings.Join(args, " "), out)
			if err != nil {
				return err
			}
			if res.Outcome != agent.OutcomeVerified {
				return &OutcomeError{Result: res}
			}
			return nil
		},
	}
}

// runGoal runs one goal on s and prints its summary.
func runGoal(cmd *cobra.Command, s *session, goal string, out io.Writer) (*agent.RunResult, error) {
	fmt.Fprintln(out, bannerStyle.Render("Goal: "+strings.TrimSpace(goal)))
	fmt.Fprintln(out, hintStyle.Render("Emergency stop: Ctrl+Alt+Q"))

	res, err := s.pilot.Run(cmd.Context(), goal)
	if err != nil {
		return nil, err
	}
	printOutcome(out, res)
	return res, nil
}

func printOutcome(out io.Writer, res *agent.RunResult) {
	summary := fmt.Sprintf("%s after %d step(s) [run %s]", res.Outcome, res.Steps, res.RunID)
	if res.Outcome == agent.OutcomeVerified {
		fmt.Fprintln(out, successStyle.Render("Goal confirmed: "+summary))
		return
	}
	if res.Err != nil {
		summary += ": " + res.Err.Error()
	}
	fmt.Fprintln(out, failureStyle.Render("Goal not reached: "+summary))
}
