package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/internal/agent"
)

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question...>",
		Short: "Answer a question about the current screen without touching it",
		Args:  cobra.MinimumNArgs(1),
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

			return askQuestion(cmd, s, strings.Join(args, " "), out)
		},
	}
}

// askQuestion answers one question on s and prints the answer lines.
func askQuestion(cmd *cobra.Command, s *session, question string, out io.Writer) error {
	fmt.Fprintln(out, bannerStyle.Render("Question: "+agent.StripAskPrefix(question)))
	ans, err := s.pilot.Ask(cmd.Context(), question)
	if err != nil {
		return err
	}
	for _, line := range agent.AnswerLines(*ans) {
		fmt.Fprintln(out, answerStyle.Render(line))
	}
	return nil
}
