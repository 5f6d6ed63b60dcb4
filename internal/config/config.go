// Package config loads server settings from an optional YAML file and the
// environment. Environment variables always win over the file, so a
// deployment can ship one config.yaml and override secrets per host.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is read when Load is called with an empty path.
const ConfigPath = "config.yaml"

const (
	defaultPort                = 8080
	defaultDBPath              = "data/species.db"
	defaultLogLevel            = "info"
	defaultSessionIdleMinutes  = 30
	defaultMutationRatePerMin  = 30
	minJWTSecretLength         = 16
	defaultGitHubCallbackRoute = "/auth/github/callback"
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                       int    `yaml:"port"`
	DBPath                     string `yaml:"dbPath"`
	LogLevel                   string `yaml:"logLevel"`
	JWTSecret                  string `yaml:"jwtSecret"`
	CookieSecure               bool   `yaml:"cookieSecure"`
	GitHubClientID             string `yaml:"githubClientID"`
	GitHubClientSecret         string `yaml:"githubClientSecret"`
	GitHubCallbackURL          string `yaml:"githubCallbackURL"`
	RedisAddr                  string `yaml:"redisAddr"`
	RedisPassword              string `yaml:"redisPassword"`
	MutationRateLimitPerMinute int    `yaml:"mutationRateLimitPerMinute"`
	SessionIdleMinutes         int    `yaml:"sessionIdleMinutes"`
}

// Load reads config from path (defaults to config.yaml). A missing file is
// not an error: every setting can come from the environment instead.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return cfg, fmt.Errorf("config: invalid PORT %q", v)
		}
		cfg.Port = n
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = strings.TrimSpace(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.TrimSpace(v)
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.CookieSecure = b
		}
	}
	if v := os.Getenv("GITHUB_CLIENT_ID"); v != "" {
		cfg.GitHubClientID = v
	}
	if v := os.Getenv("GITHUB_CLIENT_SECRET"); v != "" {
		cfg.GitHubClientSecret = v
	}
	if v := os.Getenv("GITHUB_CALLBACK_URL"); v != "" {
		cfg.GitHubCallbackURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("MUTATION_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.MutationRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("SESSION_IDLE_MINUTES"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.SessionIdleMinutes = n
		}
	}

	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.SessionIdleMinutes == 0 {
		cfg.SessionIdleMinutes = defaultSessionIdleMinutes
	}
	if cfg.MutationRateLimitPerMinute == 0 {
		cfg.MutationRateLimitPerMinute = defaultMutationRatePerMin
	}
	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d%s", cfg.Port, defaultGitHubCallbackRoute)
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", cfg.Port)
	}
	if len(cfg.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("config: jwtSecret must be at least %d characters (set in config.yaml or JWT_SECRET)", minJWTSecretLength)
	}
	if (cfg.GitHubClientID == "") != (cfg.GitHubClientSecret == "") {
		return errors.New("config: githubClientID and githubClientSecret must be set together")
	}
	if cfg.MutationRateLimitPerMinute < 0 {
		return errors.New("config: mutationRateLimitPerMinute must not be negative")
	}
	if cfg.SessionIdleMinutes < 0 {
		return errors.New("config: sessionIdleMinutes must not be negative")
	}
	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLogLevel maps debug|info|warn|error to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: invalid logLevel %q", s)
	}
	return level, nil
}

// SessionIdle is how long an untouched UI session survives.
func (c FileConfig) SessionIdle() time.Duration {
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}

// RedisEnabled reports whether a Redis address is configured. Without one
// the server runs single-instance: no relay and no rate limiting.
func (c FileConfig) RedisEnabled() bool {
	return strings.TrimSpace(c.RedisAddr) != ""
}
