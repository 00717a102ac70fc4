// Package config loads runtime configuration from the environment and an
// optional TOML file. Environment variables win over file values.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// ErrTokenMissing is returned when no GitHub token is configured. It is a
// fatal configuration error and is surfaced before any network call.
var ErrTokenMissing = errors.New("missing GitHub token, please set the GITHUB_TOKEN environment variable")

// DefaultHost is the public GitHub API host.
const DefaultHost = "api.github.com"

// Config is the resolved runtime configuration.
type Config struct {
	Token         string `toml:"token"`
	Host          string // REST/GraphQL host, e.g. api.github.com or ghe.example.com
	ProxyURL      *url.URL
	CacheDir      string
	CacheDisabled bool

	// File-only settings; flags override them in cmd.
	Org          string   `toml:"organization"`
	Repositories []string `toml:"repositories"`
	Languages    []string `toml:"languages"`
	StartDate    string   `toml:"start_date"`
	EndDate      string   `toml:"end_date"`
}

// Load resolves configuration from a .env file (if present), the process
// environment, and an optional TOML config file at path (empty = none).
func Load(path string) (*Config, error) {
	// Missing .env is fine; explicit config errors below are not.
	_ = godotenv.Load()

	cfg := &Config{Host: DefaultHost}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load configuration file %s: %w", path, err)
		}
		if cfg.Host == "" {
			cfg.Host = DefaultHost
		}
	}

	// An empty env var must not clobber a token from the config file.
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cfg.Token = token
	}

	if host := os.Getenv("GITHUB_HOST"); host != "" {
		cfg.Host = normalizeHost(host)
	}

	proxy := os.Getenv("HTTPS_PROXY")
	if proxy == "" {
		proxy = os.Getenv("https_proxy")
	}
	if proxy != "" {
		u, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", proxy, err)
		}
		cfg.ProxyURL = u
	}

	cfg.CacheDisabled = cacheDisabledFromEnv()
	cfg.CacheDir = os.Getenv("REVIEW_TALLY_CACHE_DIR")
	if cfg.CacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine cache directory: %w", err)
		}
		cfg.CacheDir = filepath.Join(home, ".review-tally", "cache")
	}

	return cfg, nil
}

// RequireToken fails when no GitHub token is configured. Commands that talk
// to the API call this before any network activity.
func (c *Config) RequireToken() error {
	if c.Token == "" {
		return ErrTokenMissing
	}
	return nil
}

// RESTBaseURL returns the base URL for REST calls. Enterprise hosts use the
// /api/v3 prefix convention.
func (c *Config) RESTBaseURL() string {
	if c.Host == DefaultHost {
		return "https://" + DefaultHost
	}
	return "https://" + c.Host + "/api/v3"
}

// GraphQLURL returns the GraphQL endpoint, overridable independently of the
// REST base via GITHUB_GRAPHQL_URL.
func (c *Config) GraphQLURL() string {
	if u := os.Getenv("GITHUB_GRAPHQL_URL"); u != "" {
		return u
	}
	if c.Host == DefaultHost {
		return "https://" + DefaultHost + "/graphql"
	}
	return "https://" + c.Host + "/api/graphql"
}

func normalizeHost(host string) string {
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	return strings.TrimSuffix(host, "/")
}

func cacheDisabledFromEnv() bool {
	switch strings.ToLower(os.Getenv("REVIEW_TALLY_DISABLE_CACHE")) {
	case "1", "true", "yes":
		return true
	}
	return false
}
