package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/spf13/afero"
	v1 "github.com/statbridge/statbridge/apis/v1"
)

const (
	DefaultBaseURL       = "https://cswatch.in"
	DefaultPathTemplate  = "/api/players/{id}"
	DefaultTimeout       = 10 * time.Second
	DefaultListenAddress = "127.0.0.1:8765"
	DefaultAllowedOrigin = "https://steamcommunity.com"
)

var (
	defaultValidator = validator.New(validator.WithRequiredStructEnabled())
)

// Default returns the configuration used when no bridge file is given.
func Default() v1.BridgeConfig {
	return v1.BridgeConfig{
		Kind:     v1.BridgeKind,
		Metadata: v1.Metadata{Name: "statbridge"},
		Spec: v1.BridgeSpec{
			Remote: v1.RemoteSpec{
				BaseURL:      DefaultBaseURL,
				PathTemplate: DefaultPathTemplate,
			},
			Server: v1.ServerSpec{
				Listen:         DefaultListenAddress,
				AllowedOrigins: []string{DefaultAllowedOrigin},
			},
		},
	}
}

// Parse decodes a YAML or JSON bridge file on top of the defaults, expands ${VAR}
// references against the allowed environment variables and validates the result.
func Parse(data []byte, allowedEnv []string) (v1.BridgeConfig, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return v1.BridgeConfig{}, fmt.Errorf("failed to unmarshal bridge config: %w", err)
	}

	variables, err := BuildVariables(cfg, allowedEnv)
	if err != nil {
		return v1.BridgeConfig{}, fmt.Errorf("failed to build variables: %w", err)
	}

	if err := ExpandTemplates(&cfg, variables); err != nil {
		return v1.BridgeConfig{}, fmt.Errorf("failed to expand templates: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return v1.BridgeConfig{}, err
	}

	return cfg, nil
}

// Load reads the bridge file at path from fs and parses it.
func Load(fs afero.Fs, path string, allowedEnv []string) (v1.BridgeConfig, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return v1.BridgeConfig{}, fmt.Errorf("failed to read bridge config '%s': %w", path, err)
	}

	return Parse(data, allowedEnv)
}

func Validate(cfg v1.BridgeConfig) error {
	if err := defaultValidator.Struct(cfg); err != nil {
		return fmt.Errorf("failed to validate bridge config: %w", err)
	}
	return nil
}

// Timeout returns the configured remote timeout or DefaultTimeout.
func Timeout(spec v1.RemoteSpec) time.Duration {
	if spec.Timeout == nil {
		return DefaultTimeout
	}
	return time.Duration(*spec.Timeout) * time.Second
}

// BuildVariables returns the variables available to ${VAR} references: the
// built-in BRIDGE_NAME plus every allowed environment variable, which must be set.
func BuildVariables(cfg v1.BridgeConfig, allowedEnv []string) (map[string]string, error) {
	variables := map[string]string{
		"BRIDGE_NAME": cfg.Metadata.Name,
	}

	var errs error
	for _, name := range allowedEnv {
		value, ok := os.LookupEnv(name)
		if !ok {
			errs = errors.Join(errs, fmt.Errorf("environment variable %q is not set", name))
			continue
		}
		variables[name] = value
	}

	if errs != nil {
		return nil, errs
	}

	return variables, nil
}
