package main

import (
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/afero"
	v1 "github.com/statbridge/statbridge/apis/v1"
	"github.com/statbridge/statbridge/internal/config"
	"github.com/urfave/cli/v3"
)

// newConfigFlags returns fresh flag values; urfave/cli flags keep state between runs.
func newConfigFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Bridge config file (YAML or JSON); built-in defaults are used when empty",
			Sources: cli.EnvVars("STATBRIDGE_CONFIG"),
		},
		&cli.StringSliceFlag{
			Name:  "allowed-env",
			Usage: "Environment variables allowed in the bridge config (can be repeated)",
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Override the remote API base URL",
			Sources: cli.EnvVars("STATBRIDGE_BASE_URL"),
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Usage:   "Override the remote round-trip timeout (whole seconds)",
			Sources: cli.EnvVars("STATBRIDGE_TIMEOUT"),
		},
	}
}

func newListenFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "listen",
		Usage:   "Override the RPC listen address",
		Sources: cli.EnvVars("STATBRIDGE_LISTEN"),
	}
}

// loadBridgeConfig reads the config file when one is given and applies flag
// overrides on top before validating.
func loadBridgeConfig(fs afero.Fs, command *cli.Command) (v1.BridgeConfig, error) {
	cfg := config.Default()

	if path := command.String("config"); path != "" {
		var err error
		cfg, err = config.Load(fs, path, command.StringSlice("allowed-env"))
		if err != nil {
			return v1.BridgeConfig{}, err
		}
	}

	if command.IsSet("base-url") {
		cfg.Spec.Remote.BaseURL = command.String("base-url")
	}

	if command.IsSet("timeout") {
		timeout := command.Duration("timeout")
		if timeout%time.Second != 0 {
			return v1.BridgeConfig{}, fmt.Errorf("timeout must be a whole number of seconds, got %s", timeout)
		}
		cfg.Spec.Remote.Timeout = lo.ToPtr(int(timeout / time.Second))
	}

	if command.IsSet("listen") {
		cfg.Spec.Server.Listen = command.String("listen")
	}

	if err := config.Validate(cfg); err != nil {
		return v1.BridgeConfig{}, err
	}

	return cfg, nil
}
