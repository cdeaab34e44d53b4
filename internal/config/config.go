package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cgast/contr/pkg/sampler"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config represents the runtime configuration from .contr/config.yaml.
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Inline    bool            `yaml:"inline"`
	Logger    LoggerConfig    `yaml:"logger"`
	Sampler   SamplerConfig   `yaml:"sampler"`
	Pools     PoolsConfig     `yaml:"pools"`
	GitHub    GitHubConfig    `yaml:"github"`
	Inspector InspectorConfig `yaml:"inspector"`
}

// LoggerConfig selects where violation records go.
type LoggerConfig struct {
	Kind    string `yaml:"kind"`   // "json", "console", "none"
	Level   string `yaml:"level"`  // slog level name
	Tag     string `yaml:"tag"`    // record message and tag attribute
	Output  string `yaml:"output"` // "stdout", "stderr" or a file path
	NoColor bool   `yaml:"no_color"`
}

// SamplerConfig selects where violation snapshots are persisted.
type SamplerConfig struct {
	Kind         string `yaml:"kind"` // "file", "bolt", "none"
	Folder       string `yaml:"folder"`
	PathTemplate string `yaml:"path_template"`
	Period       string `yaml:"period"` // Go duration, e.g. "10m"
	BoltPath     string `yaml:"bolt_path"`
}

// PoolsConfig defines the pools asynchronous checks run on.
type PoolsConfig struct {
	Main  PoolConfig `yaml:"main"`
	Rules PoolConfig `yaml:"rules"`
}

// PoolConfig defines one pool.
type PoolConfig struct {
	Kind        string `yaml:"kind"` // "fixed", "global_io", "none"
	MaxWorkers  int    `yaml:"max_workers"`
	IdleTimeout string `yaml:"idle_timeout"`
}

// GitHubConfig enables filing an issue for every new sample.
type GitHubConfig struct {
	Token   string   `yaml:"token"`
	Repo    string   `yaml:"repo"` // owner/name; empty disables
	Labels  []string `yaml:"labels"`
	BaseURL string   `yaml:"base_url"`
}

// InspectorConfig defines inspector settings.
type InspectorConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Logger: LoggerConfig{
			Kind:   "json",
			Level:  "debug",
			Tag:    "contract-failed",
			Output: "stdout",
		},
		Sampler: SamplerConfig{
			Kind:         "file",
			PathTemplate: sampler.DefaultPathTemplate,
			Period:       sampler.DefaultPeriod.String(),
		},
		Pools: PoolsConfig{
			Main:  PoolConfig{Kind: "fixed"},
			Rules: PoolConfig{Kind: "none"},
		},
		GitHub: GitHubConfig{
			Token: "${GITHUB_TOKEN}",
		},
		Inspector: InspectorConfig{
			Port: 4200,
		},
	}
}

// LoadConfig reads and parses a runtime config YAML file, interpolating
// environment variables. Returns default config if the file doesn't exist.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.GitHub.Token = interpolateEnvVars(cfg.GitHub.Token)
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	// Interpolate environment variables before parsing.
	interpolated := interpolateEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	// The default token reference survives when the file omits github.token.
	cfg.GitHub.Token = interpolateEnvVars(cfg.GitHub.Token)

	return cfg, nil
}

// Validate checks kinds, durations and levels.
func (c Config) Validate() error {
	var errs []error
	check := func(field, val string, allowed ...string) {
		for _, a := range allowed {
			if val == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%w: %s %q, want one of %s", ErrInvalidConfig, field, val, strings.Join(allowed, ", ")))
	}

	check("log_level", strings.ToLower(c.LogLevel), "debug", "info", "warn", "error")
	check("logger.kind", c.Logger.Kind, "json", "console", "none")
	if c.Logger.Kind != "none" {
		if _, err := ParseLevel(c.Logger.Level); err != nil {
			errs = append(errs, fmt.Errorf("%w: logger.level: %v", ErrInvalidConfig, err))
		}
	}
	check("sampler.kind", c.Sampler.Kind, "file", "bolt", "none")
	if c.Sampler.Kind != "none" {
		if _, err := parseDuration(c.Sampler.Period); err != nil {
			errs = append(errs, fmt.Errorf("%w: sampler.period: %v", ErrInvalidConfig, err))
		}
	}
	check("pools.main.kind", c.Pools.Main.Kind, "fixed", "global_io")
	check("pools.rules.kind", c.Pools.Rules.Kind, "fixed", "global_io", "none")
	for name, p := range map[string]PoolConfig{"main": c.Pools.Main, "rules": c.Pools.Rules} {
		if p.MaxWorkers < 0 {
			errs = append(errs, fmt.Errorf("%w: pools.%s.max_workers must not be negative", ErrInvalidConfig, name))
		}
		if _, err := parseDuration(p.IdleTimeout); err != nil {
			errs = append(errs, fmt.Errorf("%w: pools.%s.idle_timeout: %v", ErrInvalidConfig, name, err))
		}
	}
	if c.GitHub.Repo != "" {
		if c.GitHub.Token == "" || strings.HasPrefix(c.GitHub.Token, "${") {
			errs = append(errs, fmt.Errorf("%w: github.token is required when github.repo is set", ErrInvalidConfig))
		}
	}
	if c.Inspector.Port < 0 || c.Inspector.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w: inspector.port %d out of range", ErrInvalidConfig, c.Inspector.Port))
	}
	return errors.Join(errs...)
}

// ParseLevel converts a level name such as "debug" or "WARN" to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, err
	}
	return level, nil
}

// parseDuration accepts an empty string as "use the default".
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", s)
	}
	return d, nil
}

// openOutput resolves a logger output. The returned closer is nil for the
// standard streams.
func openOutput(output string) (io.Writer, io.Closer, error) {
	switch output {
	case "", "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output %s: %w", output, err)
	}
	return f, f, nil
}

// envVarPattern matches ${VAR_NAME} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// interpolateEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func interpolateEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match // Leave unresolved if not set.
	})
}
