package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/internal/audit"
	"github.com/xkilldash9x/deskpilot/internal/config"
	"github.com/xkilldash9x/deskpilot/internal/observability"
)

func newLogsCmd() *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "logs <run-id>",
		Short: "Print the transcript of a run",
		Long: `Prints the step transcript recorded for a run. With --follow the file
transcript is streamed as it grows until the run's outcome line appears,
which lets a second terminal watch a run in progress.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}
			if cfg.Audit().Backend == config.AuditNone {
				return errors.New("audit recording is disabled (audit.backend: none)")
			}
			logger := observability.GetLogger()
			runID := args[0]
			out := cmd.OutOrStdout()

			rec, err := newRecorder(ctx, cfg.Audit(), logger)
			if err != nil {
				return fmt.Errorf("failed to open audit store: %w", err)
			}
			defer func() {
				if err := rec.Close(); err != nil {
					logger.Warn("Failed to close audit store.", zap.Error(err))
				}
			}()

			if follow {
				fr, ok := rec.(*audit.FileRecorder)
				if !ok {
					return fmt.Errorf("--follow needs the file audit backend, not %q", cfg.Audit().Backend)
				}
				path, err := fr.TranscriptPath(runID)
				if err != nil {
					return err
				}
				return audit.Follow(ctx, path, out)
			}

			reader, ok := rec.(audit.TranscriptReader)
			if !ok {
				return fmt.Errorf("audit backend %q cannot read transcripts", cfg.Audit().Backend)
			}
			lines, err := reader.Transcript(ctx, runID)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("no transcript for run %q", runID)
				}
				return err
			}
			for _, line := range lines {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "stream the transcript until the run ends")
	return cmd
}
