// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Pilot() PilotConfig
	Capture() CaptureConfig
	Input() InputConfig
	Hotkey() HotkeyConfig
	LLM() LLMConfig
	Audit() AuditConfig

	// CLI flag overrides
	SetMouseEnabled(bool)
	SetSettleDelay(d time.Duration)
	SetGridStep(px int)
	SetDryRun(bool)
	SetAPIKey(key string)
}

// Config holds the entire application configuration.
// Sections are exported for mapstructure; callers go through the Interface getters.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	PilotCfg   PilotConfig   `mapstructure:"pilot" yaml:"pilot"`
	CaptureCfg CaptureConfig `mapstructure:"capture" yaml:"capture"`
	InputCfg   InputConfig   `mapstructure:"input" yaml:"input"`
	HotkeyCfg  HotkeyConfig  `mapstructure:"hotkey" yaml:"hotkey"`
	LLMCfg     LLMConfig     `mapstructure:"llm" yaml:"llm"`
	AuditCfg   AuditConfig   `mapstructure:"audit" yaml:"audit"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Pilot() PilotConfig     { return c.PilotCfg }
func (c *Config) Capture() CaptureConfig { return c.CaptureCfg }
func (c *Config) Input() InputConfig     { return c.InputCfg }
func (c *Config) Hotkey() HotkeyConfig   { return c.HotkeyCfg }
func (c *Config) LLM() LLMConfig         { return c.LLMCfg }
func (c *Config) Audit() AuditConfig     { return c.AuditCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetMouseEnabled(b bool)         { c.PilotCfg.MouseEnabled = b }
func (c *Config) SetSettleDelay(d time.Duration) { c.PilotCfg.SettleDelay = d }
func (c *Config) SetGridStep(px int)             { c.CaptureCfg.Grid.Step = px }
func (c *Config) SetDryRun(b bool)               { c.InputCfg.DryRun = b }
func (c *Config) SetAPIKey(key string)           { c.LLMCfg.APIKey = key }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// PilotConfig tunes the step loop.
type PilotConfig struct {
	MouseEnabled bool          `mapstructure:"mouse_enabled" yaml:"mouse_enabled"`
	SettleDelay  time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	MaxSteps     int           `mapstructure:"max_steps" yaml:"max_steps"`
	// HistoryTail is the number of trailing history bytes sent each round.
	HistoryTail       int           `mapstructure:"history_tail" yaml:"history_tail"`
	AimExpireDelta    float64       `mapstructure:"aim_expire_delta" yaml:"aim_expire_delta"`
	NoChangeThreshold float64       `mapstructure:"no_change_threshold" yaml:"no_change_threshold"`
	FocusCropSize     int           `mapstructure:"focus_crop_size" yaml:"focus_crop_size"`
	DoubleClickDwell  time.Duration `mapstructure:"double_click_dwell" yaml:"double_click_dwell"`
	Delays            DelayConfig   `mapstructure:"delays" yaml:"delays"`
}

// DelayConfig is the minimum post-action delay per action kind.
type DelayConfig struct {
	Move        time.Duration `mapstructure:"move" yaml:"move"`
	Click       time.Duration `mapstructure:"click" yaml:"click"`
	DoubleClick time.Duration `mapstructure:"double_click" yaml:"double_click"`
	Keys        time.Duration `mapstructure:"keys" yaml:"keys"`
	TypeText    time.Duration `mapstructure:"type_text" yaml:"type_text"`
	Scroll      time.Duration `mapstructure:"scroll" yaml:"scroll"`
	RequestCrop time.Duration `mapstructure:"request_crop" yaml:"request_crop"`
	Point       time.Duration `mapstructure:"point" yaml:"point"`
	Aim         time.Duration `mapstructure:"aim" yaml:"aim"`
	Wait        time.Duration `mapstructure:"wait" yaml:"wait"`
	Done        time.Duration `mapstructure:"done" yaml:"done"`
	Default     time.Duration `mapstructure:"default" yaml:"default"`
}

// For returns the configured delay for an action kind.
func (d DelayConfig) For(kind schemas.ActionKind) time.Duration {
	switch kind {
	case schemas.KindMove:
		return d.Move
	case schemas.KindClick:
		return d.Click
	case schemas.KindDoubleClick:
		return d.DoubleClick
	case schemas.KindKeys:
		return d.Keys
	case schemas.KindTypeText:
		return d.TypeText
	case schemas.KindScroll:
		return d.Scroll
	case schemas.KindRequestCrop:
		return d.RequestCrop
	case schemas.KindPoint:
		return d.Point
	case schemas.KindAim:
		return d.Aim
	case schemas.KindWait:
		return d.Wait
	case schemas.KindDone:
		return d.Done
	default:
		return d.Default
	}
}

// PostActionDelay is the pause after an executed action: none after a wait,
// otherwise the larger of the settle delay and the per-kind delay.
func (p PilotConfig) PostActionDelay(kind schemas.ActionKind) time.Duration {
	if kind == schemas.KindWait {
		return 0
	}
	return max(p.SettleDelay, p.Delays.For(kind))
}

// CaptureConfig controls the annotated frames sent to the collaborator.
type CaptureConfig struct {
	Grid             GridConfig `mapstructure:"grid" yaml:"grid"`
	Ring             RingConfig `mapstructure:"ring" yaml:"ring"`
	SendCrop         bool       `mapstructure:"send_crop" yaml:"send_crop"`
	IncludeFocusCrop bool       `mapstructure:"include_focus_crop" yaml:"include_focus_crop"`
	DPIAware         bool       `mapstructure:"dpi_aware" yaml:"dpi_aware"`
}

// GridConfig draws a coordinate grid. A zero Step disables it.
type GridConfig struct {
	Step       int `mapstructure:"step" yaml:"step"`
	LabelEvery int `mapstructure:"label_every" yaml:"label_every"`
	MajorEvery int `mapstructure:"major_every" yaml:"major_every"`
}

// RingConfig shapes the focus ring.
type RingConfig struct {
	Enabled   bool `mapstructure:"enabled" yaml:"enabled"`
	Padding   int  `mapstructure:"padding" yaml:"padding"`
	Thickness int  `mapstructure:"thickness" yaml:"thickness"`
	Radius    int  `mapstructure:"radius" yaml:"radius"`
}

// InputConfig controls input synthesis.
type InputConfig struct {
	// DryRun logs synthesized events instead of sending them.
	DryRun bool        `mapstructure:"dry_run" yaml:"dry_run"`
	Glide  GlideConfig `mapstructure:"glide" yaml:"glide"`
}

// GlideConfig enables eased pointer movement instead of a cursor jump.
// Duration follows Fitts's law: FittsA + FittsB*log2(1 + distance/TargetWidth) milliseconds.
type GlideConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	FittsA       float64       `mapstructure:"fitts_a" yaml:"fitts_a"`
	FittsB       float64       `mapstructure:"fitts_b" yaml:"fitts_b"`
	TargetWidth  float64       `mapstructure:"target_width" yaml:"target_width"`
	StepInterval time.Duration `mapstructure:"step_interval" yaml:"step_interval"`
}

// HotkeyConfig controls the emergency-stop watcher.
type HotkeyConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// DefaultOpenAIEndpoint is the Responses API URL. The gemini provider treats
// it as unset and talks to the Gemini API's own base URL.
const DefaultOpenAIEndpoint = "https://api.openai.com/v1/responses"

// LLMProvider defines the supported collaborator backends.
type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderGemini LLMProvider = "gemini"
)

// LLMConfig defines the collaborator connection.
type LLMConfig struct {
	Provider          LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model             string        `mapstructure:"model" yaml:"model"`
	APIKey            string        `mapstructure:"api_key" yaml:"-"`
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature       float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxRetries        int           `mapstructure:"max_retries" yaml:"max_retries"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// AuditBackend selects where run artifacts go.
type AuditBackend string

const (
	AuditNone     AuditBackend = "none"
	AuditFile     AuditBackend = "file"
	AuditSQLite   AuditBackend = "sqlite"
	AuditPostgres AuditBackend = "postgres"
)

// AuditConfig configures the run audit store.
type AuditConfig struct {
	Backend AuditBackend `mapstructure:"backend" yaml:"backend"`
	// Dir is the artifact root. Each run gets runs/<id>/ with screens/ and requests/ below it.
	Dir         string `mapstructure:"dir" yaml:"dir"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
	SQLitePath  string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PostgresURL string `mapstructure:"postgres_url" yaml:"-"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "deskpilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Pilot --
	v.SetDefault("pilot.mouse_enabled", false)
	v.SetDefault("pilot.settle_delay", "1s")
	v.SetDefault("pilot.max_steps", 10000)
	v.SetDefault("pilot.history_tail", 2000)
	v.SetDefault("pilot.aim_expire_delta", 0.08)
	v.SetDefault("pilot.no_change_threshold", 0.005)
	v.SetDefault("pilot.focus_crop_size", 320)
	v.SetDefault("pilot.double_click_dwell", "80ms")
	v.SetDefault("pilot.delays.move", "120ms")
	v.SetDefault("pilot.delays.click", "180ms")
	v.SetDefault("pilot.delays.double_click", "250ms")
	v.SetDefault("pilot.delays.keys", "120ms")
	v.SetDefault("pilot.delays.type_text", "80ms")
	v.SetDefault("pilot.delays.scroll", "80ms")
	v.SetDefault("pilot.delays.request_crop", "80ms")
	v.SetDefault("pilot.delays.point", "80ms")
	v.SetDefault("pilot.delays.aim", "80ms")
	v.SetDefault("pilot.delays.wait", "0s")
	v.SetDefault("pilot.delays.done", "80ms")
	v.SetDefault("pilot.delays.default", "120ms")

	// -- Capture --
	v.SetDefault("capture.grid.step", 0)
	v.SetDefault("capture.grid.label_every", 100)
	v.SetDefault("capture.grid.major_every", 100)
	v.SetDefault("capture.ring.enabled", true)
	v.SetDefault("capture.ring.padding", 6)
	v.SetDefault("capture.ring.thickness", 4)
	v.SetDefault("capture.ring.radius", 10)
	v.SetDefault("capture.send_crop", true)
	v.SetDefault("capture.include_focus_crop", true)
	v.SetDefault("capture.dpi_aware", true)

	// -- Input --
	v.SetDefault("input.dry_run", false)
	v.SetDefault("input.glide.enabled", false)
	v.SetDefault("input.glide.fitts_a", 60.0)
	v.SetDefault("input.glide.fitts_b", 90.0)
	v.SetDefault("input.glide.target_width", 24.0)
	v.SetDefault("input.glide.step_interval", "8ms")

	// -- Hotkey --
	v.SetDefault("hotkey.enabled", true)
	v.SetDefault("hotkey.poll_interval", "50ms")

	// -- LLM --
	v.SetDefault("llm.provider", string(ProviderOpenAI))
	v.SetDefault("llm.model", "gpt-5")
	v.SetDefault("llm.endpoint", DefaultOpenAIEndpoint)
	v.SetDefault("llm.api_timeout", "120s")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_retries", 0)
	v.SetDefault("llm.requests_per_minute", 0)

	// -- Audit --
	v.SetDefault("audit.backend", string(AuditFile))
	v.SetDefault("audit.dir", "~/.deskpilot")
	v.SetDefault("audit.compress", false)
	v.SetDefault("audit.sqlite_path", "~/.deskpilot/audit.db")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	v.BindEnv("llm.api_key", "DESKPILOT_LLM_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY")
	v.BindEnv("audit.postgres_url", "DESKPILOT_AUDIT_POSTGRES_URL")
	// Legacy switch names are honoured after the prefixed ones.
	v.BindEnv("pilot.mouse_enabled", "DESKPILOT_PILOT_MOUSE_ENABLED", "MOUSE_ENABLED")
	v.BindEnv("capture.grid.step", "DESKPILOT_CAPTURE_GRID_STEP", "GRID_STEP_PX")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if raw, ok := os.LookupEnv("POST_ACTION_DELAY_MS"); ok {
		ms, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("POST_ACTION_DELAY_MS must be an integer: %w", err)
		}
		cfg.PilotCfg.SettleDelay = time.Duration(ms) * time.Millisecond
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.PilotCfg.Validate(); err != nil {
		return fmt.Errorf("pilot configuration invalid: %w", err)
	}
	if err := c.CaptureCfg.Validate(); err != nil {
		return fmt.Errorf("capture configuration invalid: %w", err)
	}
	if c.HotkeyCfg.Enabled && c.HotkeyCfg.PollInterval <= 0 {
		return fmt.Errorf("hotkey.poll_interval must be a positive duration")
	}
	if err := c.LLMCfg.Validate(); err != nil {
		return fmt.Errorf("llm configuration invalid: %w", err)
	}
	if err := c.AuditCfg.Validate(); err != nil {
		return fmt.Errorf("audit configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the PilotConfig settings.
func (p *PilotConfig) Validate() error {
	if p.MaxSteps <= 0 {
		return fmt.Errorf("max_steps must be a positive integer")
	}
	if p.HistoryTail <= 0 {
		return fmt.Errorf("history_tail must be a positive integer")
	}
	if p.SettleDelay < 0 {
		return fmt.Errorf("settle_delay must not be negative")
	}
	if p.NoChangeThreshold < 0 || p.NoChangeThreshold > 1 {
		return fmt.Errorf("no_change_threshold must be between 0.0 and 1.0")
	}
	if p.AimExpireDelta < 0 || p.AimExpireDelta > 1 {
		return fmt.Errorf("aim_expire_delta must be between 0.0 and 1.0")
	}
	if p.FocusCropSize < 2 {
		return fmt.Errorf("focus_crop_size must be at least 2")
	}
	return nil
}

// Validate checks the CaptureConfig settings.
func (c *CaptureConfig) Validate() error {
	if c.Grid.Step < 0 {
		return fmt.Errorf("grid.step must not be negative")
	}
	if c.Grid.Step > 0 && (c.Grid.LabelEvery <= 0 || c.Grid.MajorEvery <= 0) {
		return fmt.Errorf("grid.label_every and grid.major_every must be positive when the grid is enabled")
	}
	if c.Ring.Enabled && (c.Ring.Thickness <= 0 || c.Ring.Padding < 0 || c.Ring.Radius < 0) {
		return fmt.Errorf("ring.thickness must be positive and ring.padding, ring.radius non-negative")
	}
	return nil
}

// Validate checks the LLMConfig settings. The API key is checked when a client is built.
func (l *LLMConfig) Validate() error {
	switch l.Provider {
	case ProviderOpenAI:
		if l.Endpoint == "" {
			return fmt.Errorf("endpoint is required for the openai provider")
		}
	case ProviderGemini:
	default:
		return fmt.Errorf("unsupported provider %q", l.Provider)
	}
	if l.Model == "" {
		return fmt.Errorf("model is required")
	}
	if l.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if l.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must not be negative")
	}
	return nil
}

// Validate checks the AuditConfig settings.
func (a *AuditConfig) Validate() error {
	switch a.Backend {
	case AuditNone:
	case AuditFile:
		if a.Dir == "" {
			return fmt.Errorf("dir is required for the file backend")
		}
	case AuditSQLite:
		if a.SQLitePath == "" || a.Dir == "" {
			return fmt.Errorf("sqlite_path and dir are required for the sqlite backend")
		}
	case AuditPostgres:
		if a.PostgresURL == "" {
			return fmt.Errorf("postgres_url is required but not found. Ensure DESKPILOT_AUDIT_POSTGRES_URL is set")
		}
	default:
		return fmt.Errorf("unsupported backend %q", a.Backend)
	}
	return nil
}
