package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "auspex.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.DataDir)
	assert.Equal(t, 15, cfg.CacheTTLMinutes)
	assert.Equal(t, 4, cfg.HostConcurrency)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, 45000, cfg.LLM.PromptBudget)
	assert.Equal(t, ":8861", cfg.API.Addr)
	assert.False(t, cfg.AllowActiveProbes)
	assert.False(t, cfg.Extractor.Enabled)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
data_dir: /var/lib/auspex
cache_ttl_min: 30
host_concurrency: 8
allow_active_probes: true
llm:
  provider: gemini
  model: gemini-2.5-flash
extractor:
  enabled: true
  command: facts-extractor
  timeout_sec: 10
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/auspex", cfg.DataDir)
	assert.Equal(t, 30, cfg.CacheTTLMinutes)
	assert.Equal(t, 8, cfg.HostConcurrency)
	assert.True(t, cfg.AllowActiveProbes)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	assert.True(t, cfg.Extractor.Enabled)
	assert.Equal(t, "facts-extractor", cfg.Extractor.Command)
	assert.Equal(t, 10, cfg.Extractor.TimeoutSeconds)
	// untouched keys keep defaults
	assert.Equal(t, 4096, cfg.LLM.MaxTokens)
	assert.Equal(t, "extract_command_facts", cfg.Extractor.Tool)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AUSPEX_DATA_DIR", "/srv/auspex")
	t.Setenv("AUSPEX_CACHE_TTL_MIN", "45")
	t.Setenv("AUSPEX_LLM_PROVIDER", "off")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/srv/auspex", cfg.DataDir)
	assert.Equal(t, 45, cfg.CacheTTLMinutes)
	assert.Equal(t, "off", cfg.LLM.Provider)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"negative ttl", func(c *Config) { c.CacheTTLMinutes = -1 }},
		{"zero concurrency", func(c *Config) { c.HostConcurrency = 0 }},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "olmo" }},
		{"missing model", func(c *Config) { c.LLM.Model = "" }},
		{"extractor without target", func(c *Config) { c.Extractor.Enabled = true }},
		{"tracing without endpoint", func(c *Config) { c.Tracing.Enabled = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var cerr *ConfigError
			assert.ErrorAs(t, err, &cerr)
		})
	}
}

func TestLLMOffNeedsNoModel(t *testing.T) {
	cfg := Default()
	cfg.LLM.Provider = "off"
	cfg.LLM.Model = ""
	assert.NoError(t, cfg.Validate())
}
