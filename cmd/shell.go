package cmd

import (
	"bufio"
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/internal/agent"
	"github.com/xkilldash9x/deskpilot/internal/config"
)

func newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell [goal...]",
		Short: "Interactive session: enter goals or questions one at a time",
		Long: `Reads goals and questions from standard input until an empty line, /exit
or end of input. A line starting with "/ask " or ending in "?" is answered
from the current screen without acting on it; anything else is run as a goal.
Arguments, if any, are used as the first entry.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd, strings.Join(args, " "))
		},
	}
}

func isExitCommand(line string) bool {
	switch strings.ToLower(line) {
	case "/exit", "exit", "quit":
		return true
	}
	return false
}

// runShell is the interactive loop. pending, when not empty, is the first entry.
func runShell(cmd *cobra.Command, pending string) error {
	ctx := cmd.Context()
	cfg, err := configFromContext(ctx)
	if err != nil {
		return err
	}
	in := bufio.NewScanner(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	if cfg.LLM().APIKey == "" {
		fmt.Fprintf(out, "Enter the %s API key: ", cfg.LLM().Provider)
		if in.Scan() {
			cfg.SetAPIKey(strings.TrimSpace(in.Text()))
		}
	}

	frame, _ := cmd.Flags().GetString("frame")
	s, err := newSession(ctx, cfg, frame, out)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			s.logger.Warn("Failed to close session.", zap.Error(err))
		}
	}()
	reloads := watchConfig(cmd, viperFromContext(ctx), s.logger)

	fmt.Fprintln(out, bannerStyle.Render("Interactive mode. Enter goals or questions."))
	fmt.Fprintln(out, hintStyle.Render("Empty input or /exit quits. Prefix '/ask ' forces a question."))
	fmt.Fprintln(out, hintStyle.Render("Emergency stop while running: Ctrl+Alt+Q"))

	for ctx.Err() == nil {
		line := strings.TrimSpace(pending)
		if line != "" {
			pending = ""
		} else {
			fmt.Fprint(out, "deskpilot > ")
			if !in.Scan() {
				break
			}
			line = strings.TrimSpace(in.Text())
		}
		if line == "" || isExitCommand(line) {
			break
		}

		if next := reloads.take(); next != nil {
			s.applyLive(next)
		}

		if agent.IsQuestion(line) {
			if err := askQuestion(cmd, s, line, out); err != nil {
				fmt.Fprintln(out, failureStyle.Render("No answer: "+err.Error()))
			}
		} else if _, err := runGoal(cmd, s, line, out); err != nil {
			fmt.Fprintln(out, failureStyle.Render(err.Error()))
		}
		fmt.Fprintln(out, hintStyle.Render("Done. Enter the next goal (empty line exits)."))
	}

	if err := in.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	fmt.Fprintln(out, "Exiting deskpilot.")
	return nil
}

// configReloader re-reads the config file when it changes on disk and hands
// the result to the shell between goals.
type configReloader struct {
	cmd    *cobra.Command
	v      *viper.Viper
	logger *zap.Logger

	mu   sync.Mutex
	next *config.Config
}

// watchConfig starts watching the file v was loaded from, if any.
func watchConfig(cmd *cobra.Command, v *viper.Viper, logger *zap.Logger) *configReloader {
	r := &configReloader{cmd: cmd, v: v, logger: logger.Named("reload")}
	if v == nil || v.ConfigFileUsed() == "" {
		return r
	}
	v.OnConfigChange(r.reload)
	v.WatchConfig()
	return r
}

func (r *configReloader) reload(e fsnotify.Event) {
	cfg, err := config.NewConfigFromViper(r.v)
	if err != nil {
		r.logger.Warn("Ignoring invalid configuration change.", zap.String("file", e.Name), zap.Error(err))
		return
	}
	if err := applyFlagOverrides(r.cmd, cfg); err != nil {
		r.logger.Warn("Ignoring configuration change.", zap.Error(err))
		return
	}
	r.mu.Lock()
	r.next = cfg
	r.mu.Unlock()
	r.logger.Info("Configuration changed; it applies from the next goal.", zap.String("file", e.Name))
}

// take returns the latest reloaded config once, or nil.
func (r *configReloader) take() *config.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := r.next
	r.next = nil
	return next
}
