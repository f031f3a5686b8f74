package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variable names.
const (
	EnvPrefix     = "EVAL_"
	EnvConfigFile = "EVAL_CONFIG"
	legacyFile    = "config.json"
)

// platformEnv maps variables set by CI to config keys. Both spellings of
// the platform credentials are accepted.
var platformEnv = map[string]string{ //nolint:gochecknoglobals // fixed mapping
	"DT_ENVIRONMENT_URL": "environment_url",
	"dt_environment_url": "environment_url",
	"DT_API_TOKEN":       "api_token",
	"dt_api_token":       "api_token",
	"GITHUB_OUTPUT":      "github_output",
}

// Load builds a validated Config.
func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, os.Getenv(EnvConfigFile))
}

// LoadFrom is Load with the YAML file given explicitly. An empty path skips
// the file layer.
func LoadFrom(ctx context.Context, path string) (*Config, error) {
	cfg, err := LoadUnvalidatedFrom(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadUnvalidated layers every configuration source without validating.
func LoadUnvalidated(ctx context.Context) (*Config, error) {
	return LoadUnvalidatedFrom(ctx, os.Getenv(EnvConfigFile))
}

// LoadUnvalidatedFrom is LoadUnvalidated with the YAML file given explicitly.
func LoadUnvalidatedFrom(_ context.Context, path string) (*Config, error) {
	base := New()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// Platform variables: only the mapped names are kept.
	for _, prefix := range []string{"DT_", "dt_", "GITHUB_OUTPUT"} {
		p := env.Provider(prefix, ".", func(s string) string { return platformEnv[s] })
		if err := k.Load(p, nil); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// EVAL_HTTP_TIMEOUT -> http_timeout (flat keys, underscores kept).
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	manifestDir := base.ManifestDir
	if k.Exists("manifest_dir") {
		manifestDir = k.String("manifest_dir")
	}
	if err := loadLegacy(k, filepath.Join(manifestDir, legacyFile)); err != nil {
		return nil, err
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	cfg.EnvironmentURL = strings.TrimRight(cfg.EnvironmentURL, "/")
	return &cfg, nil
}

// legacyConfig is the manifest directory's config.json.
type legacyConfig struct {
	DefaultRootURL   string   `json:"defaultRootUrl"   koanf:"defaultRootUrl"`
	DefaultLocations []string `json:"defaultLocations" koanf:"defaultLocations"`
}

// loadLegacy fills root_url and locations from config.json unless another
// source already set them. A missing file is not an error.
func loadLegacy(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil //nolint:nilerr // the legacy file is optional
	}

	var legacy legacyConfig
	lk := koanf.New(".")
	if err := lk.Load(file.Provider(path), yaml.Parser()); err == nil {
		if err := lk.UnmarshalWithConf("", &legacy, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	} else {
		// Tab-indented JSON is not valid YAML.
		raw, readErr := file.Provider(path).ReadBytes()
		if readErr != nil {
			return fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, readErr)
		}
		if jsonErr := json.Unmarshal(raw, &legacy); jsonErr != nil {
			return fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, jsonErr)
		}
	}

	if legacy.DefaultRootURL != "" && !k.Exists("root_url") {
		if err := k.Set("root_url", legacy.DefaultRootURL); err != nil {
			return fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}
	if len(legacy.DefaultLocations) > 0 && !k.Exists("locations") {
		if err := k.Set("locations", legacy.DefaultLocations); err != nil {
			return fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}
	return nil
}
