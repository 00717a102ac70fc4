package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GITHUB_HOST", "")
	t.Setenv("HTTPS_PROXY", "")
	t.Setenv("https_proxy", "")
	t.Setenv("REVIEW_TALLY_DISABLE_CACHE", "")
	t.Setenv("REVIEW_TALLY_CACHE_DIR", "")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Empty(t, cfg.Token)
	assert.False(t, cfg.CacheDisabled)
	assert.Contains(t, cfg.CacheDir, filepath.Join(".review-tally", "cache"))
}

func TestLoad_ConfigFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
organization = "octocat"
repositories = ["octocat/hello", "octocat/world"]
languages = ["go"]
start_date = "2025-01-01"
end_date = "2025-02-01"
`), 0o644))

	t.Setenv("GITHUB_TOKEN", "tok-123")
	t.Setenv("GITHUB_HOST", "https://ghe.example.com/")
	t.Setenv("REVIEW_TALLY_DISABLE_CACHE", "true")
	t.Setenv("REVIEW_TALLY_CACHE_DIR", "/tmp/rt-cache")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "octocat", cfg.Org)
	assert.Equal(t, []string{"octocat/hello", "octocat/world"}, cfg.Repositories)
	assert.Equal(t, []string{"go"}, cfg.Languages)
	assert.Equal(t, "2025-01-01", cfg.StartDate)
	assert.Equal(t, "tok-123", cfg.Token)
	assert.Equal(t, "ghe.example.com", cfg.Host, "scheme and trailing slash stripped")
	assert.True(t, cfg.CacheDisabled)
	assert.Equal(t, "/tmp/rt-cache", cfg.CacheDir)
}

func TestLoad_TokenFromFileUnlessEnvSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`token = "file-tok"`), 0o644))

	t.Setenv("GITHUB_TOKEN", "")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file-tok", cfg.Token, "empty env must not clobber the file token")

	t.Setenv("GITHUB_TOKEN", "env-tok")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-tok", cfg.Token)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoad_InvalidProxy(t *testing.T) {
	t.Setenv("HTTPS_PROXY", "://bad")

	_, err := Load("")

	assert.Error(t, err)
}

func TestRequireToken(t *testing.T) {
	assert.ErrorIs(t, (&Config{}).RequireToken(), ErrTokenMissing)
	assert.NoError(t, (&Config{Token: "tok"}).RequireToken())
}

func TestRESTBaseURL(t *testing.T) {
	assert.Equal(t, "https://api.github.com", (&Config{Host: DefaultHost}).RESTBaseURL())
	assert.Equal(t, "https://ghe.example.com/api/v3", (&Config{Host: "ghe.example.com"}).RESTBaseURL())
}

func TestGraphQLURL(t *testing.T) {
	t.Setenv("GITHUB_GRAPHQL_URL", "")
	assert.Equal(t, "https://api.github.com/graphql", (&Config{Host: DefaultHost}).GraphQLURL())
	assert.Equal(t, "https://ghe.example.com/api/graphql", (&Config{Host: "ghe.example.com"}).GraphQLURL())

	t.Setenv("GITHUB_GRAPHQL_URL", "http://localhost:9999/graphql")
	assert.Equal(t, "http://localhost:9999/graphql", (&Config{Host: DefaultHost}).GraphQLURL())
}
