// Package config loads the console configuration from defaults, an optional
// YAML file and JARVIS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/iksnae/jarvis-console/internal/api"
	"github.com/iksnae/jarvis-console/internal/dispatch"
	"github.com/iksnae/jarvis-console/internal/matcher"
	"github.com/iksnae/jarvis-console/internal/windows"
)

// EnvPrefix prefixes every environment override, e.g. JARVIS_BACKEND_BASE_URL
const EnvPrefix = "JARVIS"

// Config holds all configuration for the console
type Config struct {
	Backend     BackendConfig     `mapstructure:"backend"`
	Matcher     MatcherConfig     `mapstructure:"matcher"`
	Presenter   PresenterConfig   `mapstructure:"presenter"`
	Restriction RestrictionConfig `mapstructure:"restriction"`
	Windows     WindowsConfig     `mapstructure:"windows"`
	Speech      SpeechConfig      `mapstructure:"speech"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Log         LogConfig         `mapstructure:"log"`

	// Token is only ever read from JARVIS_TOKEN or --token; it is never
	// written back anywhere.
	Token string `mapstructure:"token"`

	// File is the config file that was read, if any
	File string `mapstructure:"-"`
}

// BackendConfig holds the backend address
type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MatcherConfig tunes the guest system command filter
type MatcherConfig struct {
	Keywords       []string `mapstructure:"keywords"`
	Threshold      float64  `mapstructure:"threshold"`
	MinTokenLength int      `mapstructure:"min_token_length"`
}

// PresenterConfig tunes the typing reveal
type PresenterConfig struct {
	CharsPerSecond float64       `mapstructure:"chars_per_second"`
	MinDuration    time.Duration `mapstructure:"min_duration"`
	LeadTrim       time.Duration `mapstructure:"lead_trim"`
	MinCharDelay   time.Duration `mapstructure:"min_char_delay"`
}

// RestrictionConfig holds the guest restriction banner settings
type RestrictionConfig struct {
	NoticeDuration time.Duration `mapstructure:"notice_duration"`
}

// WindowsConfig holds popup window settings
type WindowsConfig struct {
	TaskbarCap int `mapstructure:"taskbar_cap"`
}

// SpeechConfig selects the speech engines
type SpeechConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Engine        string `mapstructure:"engine"` // "auto", "say", "espeak-ng", ...
	Rate          int    `mapstructure:"rate"`
	ListenCommand string `mapstructure:"listen_command"`
}

// CacheConfig holds the local history cache settings
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
	File   string `mapstructure:"file"`   // used while the console UI owns the terminal
}

// HomeDir is the per-user directory for config, cache and logs
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".jarvis-console"
	}
	return filepath.Join(home, ".jarvis-console")
}

// Load loads configuration from file and environment. An empty path
// looks for ./jarvis.yaml and then ~/.jarvis-console/config.yaml.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath == "" {
		configPath = findConfigFile()
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func findConfigFile() string {
	candidates := []string{
		"jarvis.yaml",
		filepath.Join(HomeDir(), "config.yaml"),
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	home := HomeDir()

	v.SetDefault("backend.base_url", api.DefaultBaseURL)
	v.SetDefault("backend.timeout", api.DefaultTimeout)

	v.SetDefault("matcher.keywords", matcher.DefaultKeywords)
	v.SetDefault("matcher.threshold", matcher.DefaultThreshold)
	v.SetDefault("matcher.min_token_length", matcher.DefaultMinTokenLength)

	p := dispatch.DefaultPresenterConfig()
	v.SetDefault("presenter.chars_per_second", p.CharsPerSecond)
	v.SetDefault("presenter.min_duration", p.MinDuration)
	v.SetDefault("presenter.lead_trim", p.LeadTrim)
	v.SetDefault("presenter.min_char_delay", p.MinCharDelay)

	v.SetDefault("restriction.notice_duration", dispatch.DefaultNoticeDuration)
	v.SetDefault("windows.taskbar_cap", windows.DefaultTaskbarCap)

	v.SetDefault("speech.enabled", true)
	v.SetDefault("speech.engine", "auto")
	v.SetDefault("speech.rate", 0)
	v.SetDefault("speech.listen_command", "")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.dir", home)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", filepath.Join(home, "jarvis.log"))

	v.SetDefault("token", "")
}

// Validate rejects values the console cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.Backend.BaseURL == "" {
		errs = append(errs, errors.New("backend.base_url must be set"))
	} else if !strings.HasPrefix(c.Backend.BaseURL, "http://") && !strings.HasPrefix(c.Backend.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("backend.base_url must be an http(s) URL, got %q", c.Backend.BaseURL))
	}
	if c.Backend.Timeout <= 0 {
		errs = append(errs, errors.New("backend.timeout must be positive"))
	}
	if c.Matcher.Threshold <= 0 || c.Matcher.Threshold > 1 {
		errs = append(errs, fmt.Errorf("matcher.threshold must be in (0, 1], got %v", c.Matcher.Threshold))
	}
	if len(c.Matcher.Keywords) == 0 {
		errs = append(errs, errors.New("matcher.keywords must not be empty"))
	}
	if c.Presenter.CharsPerSecond <= 0 {
		errs = append(errs, errors.New("presenter.chars_per_second must be positive"))
	}
	if c.Restriction.NoticeDuration <= 0 {
		errs = append(errs, errors.New("restriction.notice_duration must be positive"))
	}
	if c.Windows.TaskbarCap <= 0 {
		errs = append(errs, errors.New("windows.taskbar_cap must be positive"))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// MatcherOptions converts the matcher section
func (c *Config) MatcherOptions() matcher.Options {
	return matcher.Options{
		Keywords:       c.Matcher.Keywords,
		Threshold:      c.Matcher.Threshold,
		MinTokenLength: c.Matcher.MinTokenLength,
	}
}

// PresenterSettings converts the presenter section
func (c *Config) PresenterSettings() dispatch.PresenterConfig {
	return dispatch.PresenterConfig{
		CharsPerSecond: c.Presenter.CharsPerSecond,
		MinDuration:    c.Presenter.MinDuration,
		LeadTrim:       c.Presenter.LeadTrim,
		MinCharDelay:   c.Presenter.MinCharDelay,
	}
}
