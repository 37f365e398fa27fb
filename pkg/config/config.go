package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MaxActionsCeiling is the most actions one confirmation may authorize.
// Config can lower it but never raise it.
const MaxActionsCeiling = 10

type Config struct {
	App       AppConfig                 `mapstructure:"app" json:"app"`
	Gateways  map[string]GatewayConfig  `mapstructure:"gateways" json:"gateways"`
	Providers map[string]ProviderConfig `mapstructure:"providers" json:"providers"`
	Memory    MemoryConfig              `mapstructure:"memory" json:"memory"`
	History   HistoryConfig             `mapstructure:"history" json:"history"`
	Logger    LoggerConfig              `mapstructure:"logger" json:"logger"`
	Executor  ExecutorConfig            `mapstructure:"executor" json:"executor"`
	Grounding GroundingConfig           `mapstructure:"grounding" json:"grounding"`
	Window    WindowConfig              `mapstructure:"window" json:"window"`
	Safety    SafetyConfig              `mapstructure:"safety" json:"safety"`
	// Apps maps a spoken application name to the command that launches it.
	Apps map[string]string `mapstructure:"apps" json:"apps"`
}

type AppConfig struct {
	Name    string `mapstructure:"name" json:"name"`
	Prompts string `mapstructure:"prompts" json:"prompts"`
}

type GatewayConfig struct {
	Token        string  `mapstructure:"token" json:"token"`
	Enabled      bool    `mapstructure:"enabled" json:"enabled"`
	AllowedChats []int64 `mapstructure:"allowed_chats" json:"allowed_chats"`
}

type ProviderConfig struct {
	APIKey      string `mapstructure:"api_key" json:"api_key"`
	Model       string `mapstructure:"model" json:"model"`
	VisionModel string `mapstructure:"vision_model" json:"vision_model,omitempty"`
	BaseURL     string `mapstructure:"base_url" json:"base_url,omitempty"`
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
}

type MemoryConfig struct {
	Path string `mapstructure:"path" json:"path"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Path    string `mapstructure:"path" json:"path"`
}

type LoggerConfig struct {
	Level       string `mapstructure:"level" json:"level"`
	Format      string `mapstructure:"format" json:"format"`
	AddSource   bool   `mapstructure:"add_source" json:"add_source"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	LogFile     string `mapstructure:"log_file" json:"log_file"`
	MaxSize     int    `mapstructure:"max_size" json:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" json:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" json:"max_age"`
	Compress    bool   `mapstructure:"compress" json:"compress"`
}

type ExecutorConfig struct {
	MaxRetries      int           `mapstructure:"max_retries" json:"max_retries"`
	RetryDelay      time.Duration `mapstructure:"retry_delay" json:"retry_delay"`
	ObserverTimeout time.Duration `mapstructure:"observer_timeout" json:"observer_timeout"`
	TypeDelay       time.Duration `mapstructure:"type_delay" json:"type_delay"`
}

type GroundingConfig struct {
	OCRCommand      string        `mapstructure:"ocr_command" json:"ocr_command"`
	Language        string        `mapstructure:"language" json:"language"`
	ConfidenceFloor float64       `mapstructure:"confidence_floor" json:"confidence_floor"`
	FuzzyThreshold  float64       `mapstructure:"fuzzy_threshold" json:"fuzzy_threshold"`
	PollInterval    time.Duration `mapstructure:"poll_interval" json:"poll_interval"`
	Display         string        `mapstructure:"display" json:"display"`
}

type WindowConfig struct {
	FocusAttempts int           `mapstructure:"focus_attempts" json:"focus_attempts"`
	FocusDelay    time.Duration `mapstructure:"focus_delay" json:"focus_delay"`
}

type SafetyConfig struct {
	MaxActions         int      `mapstructure:"max_actions" json:"max_actions"`
	DenyPatterns       []string `mapstructure:"deny_patterns" json:"deny_patterns"`
	AllowAnalyzeScreen bool     `mapstructure:"allow_analyze_screen" json:"allow_analyze_screen"`
}

// SetDefaults registers default values for every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "deskpilot")
	v.SetDefault("app.prompts", "./prompts")

	v.SetDefault("memory.path", filepath.Join(defaultDataDir(), "learned_plans.json"))
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", filepath.Join(defaultDataDir(), "history.db"))

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "deskpilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", false)

	v.SetDefault("executor.max_retries", 2)
	v.SetDefault("executor.retry_delay", "1s")
	v.SetDefault("executor.observer_timeout", "5s")
	v.SetDefault("executor.type_delay", "12ms")

	v.SetDefault("grounding.ocr_command", "tesseract")
	v.SetDefault("grounding.language", "eng")
	v.SetDefault("grounding.confidence_floor", 0.4)
	v.SetDefault("grounding.fuzzy_threshold", 0.8)
	v.SetDefault("grounding.poll_interval", "1s")
	v.SetDefault("grounding.display", ":0.0")

	v.SetDefault("window.focus_attempts", 5)
	v.SetDefault("window.focus_delay", "1s")

	v.SetDefault("safety.max_actions", 10)
	v.SetDefault("safety.deny_patterns", []string{`rm\s+-rf`, `mkfs`, `shutdown`, `reboot`, `format\s+[a-z]:`})
	v.SetDefault("safety.allow_analyze_screen", false)
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "deskpilot")
	}
	return "."
}

// NewDefaultConfig returns a config populated only from defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// LoadConfig reads path (JSON, YAML or TOML by extension) over the defaults.
// A missing file is not an error; environment variables prefixed DESKPILOT_
// override file values.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("DESKPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}
	return NewConfigFromViper(v)
}

// NewConfigFromViper unmarshals and validates v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	_ = v.BindEnv("gateways.telegram.token", "DESKPILOT_TELEGRAM_TOKEN")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	for name, p := range cfg.Providers {
		if p.APIKey == "" {
			p.APIKey = os.Getenv("DESKPILOT_" + strings.ToUpper(name) + "_API_KEY")
			cfg.Providers[name] = p
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks ranges that would otherwise surface as odd runtime behavior.
func (c *Config) Validate() error {
	if c.Executor.MaxRetries < 0 {
		return fmt.Errorf("executor.max_retries must not be negative")
	}
	if c.Executor.RetryDelay < 0 {
		return fmt.Errorf("executor.retry_delay must not be negative")
	}
	if c.Safety.MaxActions <= 0 || c.Safety.MaxActions > MaxActionsCeiling {
		return fmt.Errorf("safety.max_actions must be between 1 and %d", MaxActionsCeiling)
	}
	if c.Grounding.FuzzyThreshold <= 0 || c.Grounding.FuzzyThreshold >= 1 {
		return fmt.Errorf("grounding.fuzzy_threshold must be in (0, 1)")
	}
	if c.Grounding.ConfidenceFloor < 0 || c.Grounding.ConfidenceFloor > 1 {
		return fmt.Errorf("grounding.confidence_floor must be in [0, 1]")
	}
	if c.Grounding.PollInterval <= 0 {
		return fmt.Errorf("grounding.poll_interval must be positive")
	}
	if c.Window.FocusAttempts <= 0 {
		return fmt.Errorf("window.focus_attempts must be a positive integer")
	}
	if c.Memory.Path == "" {
		return fmt.Errorf("memory.path is required")
	}
	return nil
}

// GetDefaultProvider returns the first enabled provider
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if p := c.Providers[name]; p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// GetTelegramConfig returns telegram config if enabled
func (c *Config) GetTelegramConfig() (GatewayConfig, bool) {
	tg, ok := c.Gateways["telegram"]
	if ok && tg.Enabled && tg.Token != "" {
		return tg, true
	}
	return GatewayConfig{}, false
}
