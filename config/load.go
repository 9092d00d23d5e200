package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every docroute environment variable.
const EnvPrefix = "DOCROUTE_"

// legacyEnv maps the variable names used by the Lambda deployment.
var legacyEnv = map[string]string{
	"PROJECT_ARN":          "extraction_target",
	"S3_BUCKET":            "output_bucket",
	"OUTPUT_PREFIX":        "output_prefix",
	"CONFIDENCE_THRESHOLD": "confidence_threshold",
	"DYNAMODB_TABLE":       "record_table",
	"A2I_FLOW_ARN":         "review_workflow_id",
	"AWS_REGION":           "region",
}

// Load builds a Config from defaults, an optional YAML file, and the environment.
//
// Precedence (highest to lowest):
//  1. DOCROUTE_* variables (DOCROUTE_CONFIDENCE_THRESHOLD -> confidence_threshold,
//     DOCROUTE_SINK_RETRY__MAX_ATTEMPTS -> sink_retry.max_attempts)
//  2. Deployment variables (PROJECT_ARN, S3_BUCKET, A2I_FLOW_ARN, ...)
//  3. YAML file at path, when path is not empty
//  4. DefaultConfig()
//
// The result is validated before it is returned.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		return legacyEnv[s]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load deployment variables: %w", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := DefaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// envKey maps DOCROUTE_SINK_RETRY__MAX_ATTEMPTS to sink_retry.max_attempts.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}
