package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/internal/config"
	"github.com/xkilldash9x/deskpilot/internal/observability"
)

type contextKey string

const (
	configKey contextKey = "config"
	viperKey  contextKey = "viper"
)

var cfgFile string

// Execute builds the command tree and runs it with ctx. The returned error
// carries an exit code; see ExitCode.
func Execute(ctx context.Context) error {
	rootCmd, _ := newRootCmd()
	return rootCmd.ExecuteContext(ctx)
}

// newRootCmd creates a fresh command tree. The returned pointer is filled in
// by PersistentPreRunE, which lets tests inspect the resolved configuration.
func newRootCmd() (*cobra.Command, **config.Config) {
	var loaded *config.Config

	rootCmd := &cobra.Command{
		Use:   "deskpilot [goal...]",
		Short: "deskpilot drives the desktop toward a goal, one guarded action at a time.",
		Long: `deskpilot captures the screen, asks a vision collaborator for the next
action and performs it through synthetic input until the collaborator
declares the goal done and a separate check confirms it.

Without a subcommand it starts the interactive shell. Any arguments are
treated as the first goal of the session.`,
		Version:       Version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(cmd, v); err != nil {
				basicLogger, _ := zap.NewDevelopment()
				defer basicLogger.Sync()
				basicLogger.Error("Failed to initialize configuration", zap.Error(err))
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "deskpilot"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}
			if err := applyFlagOverrides(cmd, cfg); err != nil {
				return err
			}

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting deskpilot", zap.String("version", Version))

			loaded = cfg
			ctx := context.WithValue(cmd.Context(), configKey, cfg)
			ctx = context.WithValue(ctx, viperKey, v)
			cmd.SetContext(ctx)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd, strings.Join(args, " "))
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			observability.Sync()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "config file (default is ./deskpilot.yaml, then ~/.deskpilot/deskpilot.yaml)")
	pf.Bool("mouse", false, "allow pointer actions for this session")
	pf.Bool("no-mouse", false, "forbid pointer actions for this session")
	pf.Duration("settle", 0, "minimum pause after each action, e.g. 750ms")
	pf.Int("grid", 0, "draw a coordinate grid every N pixels (0 disables)")
	pf.Bool("dry-run", false, "log synthetic input instead of sending it")
	pf.String("frame", "", "use a PNG file as the screen instead of the live display")
	rootCmd.MarkFlagsMutuallyExclusive("mouse", "no-mouse")
	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	rootCmd.AddCommand(
		newRunCmd(),
		newAskCmd(),
		newShellCmd(),
		newLogsCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return rootCmd, &loaded
}

// initializeConfig points v at the config file and the DESKPILOT_ environment.
func initializeConfig(cmd *cobra.Command, v *viper.Viper) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Expand("~/.deskpilot"); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigName("deskpilot")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("DESKPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// applyFlagOverrides copies explicitly set session flags onto cfg. Flags win
// over the config file and the environment.
func applyFlagOverrides(cmd *cobra.Command, cfg config.Interface) error {
	flags := cmd.Flags()
	if flags.Changed("mouse") {
		cfg.SetMouseEnabled(true)
	}
	if flags.Changed("no-mouse") {
		cfg.SetMouseEnabled(false)
	}
	if flags.Changed("settle") {
		d, err := flags.GetDuration("settle")
		if err != nil {
			return err
		}
		if d < 0 {
			return fmt.Errorf("--settle must not be negative")
		}
		cfg.SetSettleDelay(d)
	}
	if flags.Changed("grid") {
		px, err := flags.GetInt("grid")
		if err != nil {
			return err
		}
		if px < 0 {
			return fmt.Errorf("--grid must not be negative")
		}
		cfg.SetGridStep(px)
	}
	if flags.Changed("dry-run") {
		dry, err := flags.GetBool("dry-run")
		if err != nil {
			return err
		}
		cfg.SetDryRun(dry)
	}
	return nil
}

// configFromContext returns the configuration stored by PersistentPreRunE.
func configFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}

func viperFromContext(ctx context.Context) *viper.Viper {
	v, _ := ctx.Value(viperKey).(*viper.Viper)
	return v
}
