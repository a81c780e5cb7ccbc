// Package config loads the server settings: defaults first, then an optional
// YAML file named by CONFIG_FILE, then environment variables. Later layers
// win.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSessionSecret is the development session secret. main warns when
// it is still in use.
const DefaultSessionSecret = "dev-session-secret-change-me"

// Config holds runtime settings for the profile server.
type Config struct {
	Port          int           `yaml:"port"`
	DBPath        string        `yaml:"db_path"`
	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	SecureCookies bool          `yaml:"secure_cookies"`
	LogLevel      string        `yaml:"log_level"`

	// OutboundTimeout bounds every call to the verification service,
	// GitHub and Bitbucket.
	OutboundTimeout time.Duration `yaml:"outbound_timeout"`

	Verification VerificationConfig `yaml:"verification"`
	GitHub       GitHubConfig       `yaml:"github"`
	Bitbucket    BitbucketConfig    `yaml:"bitbucket"`
}

// VerificationConfig configures the identity-verification service.
type VerificationConfig struct {
	PrivateKey  string `yaml:"private_key"`
	ServiceName string `yaml:"service_name"`
	APIRoute    string `yaml:"api_route"`
}

// GitHubConfig configures GitHub enrichment.
type GitHubConfig struct {
	Token               string `yaml:"token"`
	APIURL              string `yaml:"api_url"`
	LanguageConcurrency int    `yaml:"language_concurrency"`
}

// BitbucketConfig configures Bitbucket enrichment.
type BitbucketConfig struct {
	Token  string `yaml:"token"`
	APIURL string `yaml:"api_url"`
}

// LoadDefaults populates Config with development defaults.
// NOTE: the session secret and an empty private key are not fit for
// production and should be overridden.
func (c *Config) LoadDefaults() {
	c.Port = 8080
	c.DBPath = "data/profiles.db"
	c.SessionSecret = DefaultSessionSecret
	c.SessionTTL = 24 * time.Hour
	c.SecureCookies = false
	c.LogLevel = "info"
	c.OutboundTimeout = 10 * time.Second
	c.Verification = VerificationConfig{
		ServiceName: "cryptoniteventures",
		APIRoute:    "https://truanon.com/api/",
	}
	c.GitHub = GitHubConfig{
		APIURL:              "https://api.github.com",
		LanguageConcurrency: 4,
	}
	c.Bitbucket = BitbucketConfig{
		APIURL: "https://api.bitbucket.org/2.0",
	}
}

// Load builds a Config from the process environment.
func Load() (*Config, error) {
	return load(os.Getenv)
}

// load is Load with the environment lookup injected, for tests.
func load(getenv func(string) string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if path := getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadEnv(getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile overlays the YAML file at path. Keys missing from the file keep
// their current values.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

// loadEnv overlays the environment variables that are set and non-empty.
func (c *Config) loadEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	var errs []error
	integer := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s=%q is not an integer", key, v))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s=%q is not a duration", key, v))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v := getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s=%q is not a boolean", key, v))
				return
			}
			*dst = b
		}
	}

	integer("PORT", &c.Port)
	str("DB_PATH", &c.DBPath)
	str("SESSION_SECRET", &c.SessionSecret)
	duration("SESSION_TTL", &c.SessionTTL)
	boolean("SECURE_COOKIES", &c.SecureCookies)
	str("LOG_LEVEL", &c.LogLevel)
	duration("OUTBOUND_TIMEOUT", &c.OutboundTimeout)

	str("PRIVATE_KEY", &c.Verification.PrivateKey)
	str("SERVICE_NAME", &c.Verification.ServiceName)
	str("API_ROUTE", &c.Verification.APIRoute)

	str("GITHUB_TOKEN", &c.GitHub.Token)
	str("GITHUB_API_URL", &c.GitHub.APIURL)
	integer("GITHUB_LANGUAGE_CONCURRENCY", &c.GitHub.LanguageConcurrency)

	str("BITBUCKET_TOKEN", &c.Bitbucket.Token)
	str("BITBUCKET_API_URL", &c.Bitbucket.APIURL)

	return errors.Join(errs...)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("config: port %d out of range", c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("config: db path must not be empty"))
	}
	if len(c.SessionSecret) < 16 {
		errs = append(errs, errors.New("config: session secret must be at least 16 characters"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("config: session ttl must be positive"))
	}
	if c.OutboundTimeout <= 0 {
		errs = append(errs, errors.New("config: outbound timeout must be positive"))
	}
	if c.Verification.APIRoute == "" {
		errs = append(errs, errors.New("config: verification api route must not be empty"))
	}
	if c.GitHub.LanguageConcurrency < 1 {
		errs = append(errs, errors.New("config: github language concurrency must be at least 1"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SlogLevel returns LogLevel as a slog.Level. Validate has already
// rejected unknown names, so anything unparsable here means info.
func (c *Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: unknown log level %q", name)
	}
	return level, nil
}
