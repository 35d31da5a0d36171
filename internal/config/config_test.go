package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"Flawfinder", "Cppcheck", "Infer"}, cfg.EnabledAnalyzers())
	assert.Equal(t, 4, cfg.Workers)
}

func TestParse_OverDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
language: cpp
workers: 8
policy: strong
division: random
seed: 42
max_repo_size_kb: 5000
analyzers: {flawfinder: true, cppcheck: false}
discovery: {source: trending}
timeouts: {clone: 30s}
upload: {endpoint: "minio:9000", bucket: data}
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "cpp", cfg.Language)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, uint64(42), cfg.Seed)
	assert.Equal(t, int64(5000), cfg.MaxRepoSizeKB)
	assert.Equal(t, []string{"Flawfinder"}, cfg.EnabledAnalyzers(), "listed analyzers replace the defaults")
	assert.Equal(t, "trending", cfg.Discovery.Source)
	assert.Equal(t, 10, cfg.Discovery.Pages, "unset nested fields keep defaults")
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Clone)
	assert.Equal(t, 2*time.Minute, cfg.Timeouts.Scan)
	assert.Equal(t, "data", cfg.Upload.Bucket)
	assert.True(t, cfg.Upload.UseSSL)
}

func TestParse_Rejects(t *testing.T) {
	_, err := Parse([]byte("wrkers: 3\n"))
	assert.ErrorIs(t, err, ErrInvalid, "unknown keys are rejected")

	_, err = Parse([]byte("workers: [1]\n"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"bad policy", func(c *Config) { c.Policy = "paranoid" }},
		{"bad division", func(c *Config) { c.Division = "hash" }},
		{"negative size", func(c *Config) { c.MaxRepoSizeKB = -1 }},
		{"unknown analyzer", func(c *Config) { c.Analyzers["clang-tidy"] = true }},
		{"bad source", func(c *Config) { c.Discovery.Source = "gitlab" }},
		{"negative timeout", func(c *Config) { c.Timeouts.Scan = -time.Second }},
		{"no language", func(c *Config) { c.Language = " " }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 2\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Workers)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, ErrInvalid, "an explicit path must exist")

	t.Chdir(dir)
	cfg, err = Load("")
	require.NoError(t, err, "missing default file is fine")
	assert.Equal(t, Default(), cfg)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvGitHubToken: " tok ",
		EnvS3AccessKey: "ak",
		EnvS3SecretKey: "sk",
	}
	cfg := Default()
	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	assert.Equal(t, "tok", cfg.GitHubToken)
	assert.Equal(t, "ak", cfg.Upload.AccessKey)
	assert.Equal(t, "sk", cfg.Upload.SecretKey)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("VCGEN_TEST_DOTENV=from-file\n"), 0o600))
	t.Setenv("VCGEN_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("VCGEN_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("VCGEN_TEST_DOTENV"))
}

func TestSetAnalyzer(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.SetAnalyzer("infer", false))
	require.NoError(t, cfg.SetAnalyzer("CPPCHECK", false))
	assert.Equal(t, []string{"Flawfinder"}, cfg.EnabledAnalyzers())
	assert.Len(t, cfg.Analyzers, 3)

	assert.ErrorIs(t, cfg.SetAnalyzer("pylint", true), ErrInvalid)
}
