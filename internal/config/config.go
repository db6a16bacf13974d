// Package config holds the auspex runtime configuration.
package config

import "fmt"

// Config holds all configuration for the application.
type Config struct {
	// DataDir is the workspace root containing capture/, analysis/ and
	// knowledge/ trees.
	DataDir string `yaml:"data_dir"`

	// LogLevel is the default logging level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// LogFormat selects console or json log output.
	LogFormat string `yaml:"log_format"`

	// CacheTTLMinutes bounds artifact freshness. An artifact older than
	// this is recomputed even when no input changed. Zero disables the
	// TTL check; mtime ordering still applies.
	CacheTTLMinutes int `yaml:"cache_ttl_min"`

	// HostConcurrency caps parallel per-host work in the parse, facts
	// and reason stages.
	HostConcurrency int `yaml:"host_concurrency"`

	// AllowActiveProbes permits ping and traceroute in suggested
	// follow-up commands. Off by default; show commands are always
	// allowed.
	AllowActiveProbes bool `yaml:"allow_active_probes"`

	// TrustFile is an optional YAML list of operator-trusted commands
	// used to partition cross-device follow-up suggestions.
	TrustFile string `yaml:"trust_file"`

	LLM       LLMConfig       `yaml:"llm"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	API       APIConfig       `yaml:"api"`
	Audit     AuditConfig     `yaml:"audit"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// LLMConfig selects and bounds the chat model used by the extraction,
// reasoning and correlation stages.
type LLMConfig struct {
	// Provider is one of anthropic, gemini, off.
	Provider string `yaml:"provider"`

	// Model is the provider model identifier.
	Model string `yaml:"model"`

	// MaxTokens caps the response size per call.
	MaxTokens int `yaml:"max_tokens"`

	// MaxRetries bounds retry attempts per call.
	MaxRetries int `yaml:"max_retries"`

	// PromptBudget truncates facts JSON embedded in prompts, in bytes.
	PromptBudget int `yaml:"prompt_budget"`
}

// ExtractorConfig wires the optional MCP extraction hook between the
// deterministic parser and the LLM fallback.
type ExtractorConfig struct {
	Enabled bool `yaml:"enabled"`

	// Command starts a stdio MCP server when set.
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`

	// URL addresses a streamable HTTP MCP server instead of Command.
	URL string `yaml:"url"`

	// Tool is the extraction tool name on the server.
	Tool string `yaml:"tool"`

	TimeoutSeconds int `yaml:"timeout_sec"`
}

// KnowledgeConfig controls platform doc-snippet enrichment of the
// per-device prompts.
type KnowledgeConfig struct {
	Enabled bool `yaml:"enabled"`

	// CacheTTLHours bounds the snippet cache.
	CacheTTLHours int `yaml:"cache_ttl_hours"`

	// Confirm runs an LLM pass that prunes seed commands invalid for
	// the platform. Seed data is used as-is when off.
	Confirm bool `yaml:"confirm"`
}

// APIConfig configures the HTTP surface.
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// AuditConfig bounds the analysis audit trail.
type AuditConfig struct {
	// MaxBytes rotates the event log when it grows past this size.
	MaxBytes int64 `yaml:"max_bytes"`

	// RotateKeep is how many rotated event logs are retained.
	RotateKeep int `yaml:"rotate_keep"`
}

// TracingConfig configures OTLP trace export.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		DataDir:         ".",
		LogLevel:        "info",
		LogFormat:       "console",
		CacheTTLMinutes: 15,
		HostConcurrency: 4,
		LLM: LLMConfig{
			Provider:     "anthropic",
			Model:        "claude-sonnet-4-5-20250929",
			MaxTokens:    4096,
			MaxRetries:   3,
			PromptBudget: 45000,
		},
		Extractor: ExtractorConfig{
			Tool:           "extract_command_facts",
			TimeoutSeconds: 30,
		},
		Knowledge: KnowledgeConfig{
			CacheTTLHours: 168,
		},
		API: APIConfig{Addr: ":8861"},
		Audit: AuditConfig{
			MaxBytes:   1 << 20,
			RotateKeep: 3,
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return NewConfigError("data_dir must not be empty")
	}
	if c.CacheTTLMinutes < 0 {
		return NewConfigError("cache_ttl_min must not be negative")
	}
	if c.HostConcurrency < 1 {
		return NewConfigError("host_concurrency must be at least 1")
	}
	switch c.LLM.Provider {
	case "anthropic", "gemini", "off":
	default:
		return NewConfigError(fmt.Sprintf("llm.provider %q is not one of anthropic, gemini, off", c.LLM.Provider))
	}
	if c.LLM.Provider != "off" && c.LLM.Model == "" {
		return NewConfigError("llm.model must be set when llm.provider is not off")
	}
	if c.LLM.MaxTokens < 1 {
		return NewConfigError("llm.max_tokens must be at least 1")
	}
	if c.LLM.PromptBudget < 1000 {
		return NewConfigError("llm.prompt_budget must be at least 1000")
	}
	if c.Extractor.Enabled && c.Extractor.Command == "" && c.Extractor.URL == "" {
		return NewConfigError("extractor requires command or url when enabled")
	}
	if c.Extractor.Enabled && c.Extractor.Tool == "" {
		return NewConfigError("extractor.tool must not be empty when enabled")
	}
	if c.Audit.MaxBytes < 4096 {
		return NewConfigError("audit.max_bytes must be at least 4096")
	}
	if c.Audit.RotateKeep < 1 {
		return NewConfigError("audit.rotate_keep must be at least 1")
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return NewConfigError("tracing.endpoint must be set when tracing is enabled")
	}
	return nil
}

// ConfigError represents a configuration error.
type ConfigError struct {
	message string
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string) *ConfigError {
	return &ConfigError{message: message}
}

// Error returns the error message.
func (e *ConfigError) Error() string {
	return e.message
}
