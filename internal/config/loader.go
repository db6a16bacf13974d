package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load reads the configuration file at path, merges it over Default,
// applies environment overrides and validates the result. An empty path
// yields defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		k := koanf.New(".")
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config from %q: %w", path, err)
		}
		if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
			return nil, fmt.Errorf("failed to parse config from %q: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnv overlays the small set of environment overrides. Key material
// (ANTHROPIC_API_KEY, GEMINI_API_KEY) is read by the llm package directly
// and never lives in the config file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("AUSPEX_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("AUSPEX_CACHE_TTL_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.CacheTTLMinutes = n
		}
	}
	if v := os.Getenv("AUSPEX_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("AUSPEX_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("AUSPEX_API_ADDR"); v != "" {
		cfg.API.Addr = v
	}
}
