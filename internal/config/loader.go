package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "AFTERBURNER_"

// FileName is the per-repository config file name.
const FileName = "afterburner.yaml"

// Load reads the YAML file at path (if non-empty), then applies AFTERBURNER_*
// environment overrides on top of the defaults.
// Precedence: environment > file > defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config YAML: %w", err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.PRReviewers == nil {
		cfg.PRReviewers = []string{}
	}
	return &cfg, nil
}

// LoadDefault searches for a config file in standard locations and loads the
// first one found, or just defaults and environment if none exists.
// Search order: <repo>/afterburner.yaml, ~/.afterburner/config.yaml
func LoadDefault(repoPath string) (*Config, error) {
	for _, path := range searchPaths(repoPath) {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return Load("")
}

func searchPaths(repoPath string) []string {
	candidates := []string{filepath.Join(repoPath, FileName)}
	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".afterburner", "config.yaml"))
	}
	return candidates
}

// envValue maps AFTERBURNER_MAX_REFLECTION_RETRIES to max_reflection_retries
// and splits list-valued keys on commas.
func envValue(key, value string) (string, interface{}) {
	k := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if k == "pr_reviewers" {
		var out []string
		for _, v := range strings.Split(value, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
		return k, out
	}
	return k, value
}
