package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/statbridge/statbridge/internal/plugin"
	"github.com/urfave/cli/v3"
)

func newFetchCommand() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Fetch statistics for one player and print the envelope",
		Flags: newConfigFlags(),
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:      "identifier",
				UsageText: "The player identifier, e.g. a SteamID64",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) (err error) {
			logger := getLogger(ctx)

			identifier := command.StringArg("identifier")
			if identifier == "" {
				return fmt.Errorf("no identifier provided")
			}

			cfg, err := loadBridgeConfig(afero.NewOsFs(), command)
			if err != nil {
				return fmt.Errorf("failed to load bridge config: %w", err)
			}

			p := plugin.New(logger.Named("plugin"), cfg)
			if err := p.Load(ctx); err != nil {
				return err
			}

			defer func() {
				unloadCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				err = errors.Join(err, p.Unload(unloadCtx))
			}()

			env := p.GetData(ctx, identifier)
			if err := printEnvelope(command.Root().Writer, env, isInteractive(ctx)); err != nil {
				return err
			}

			if !env.Success {
				return fmt.Errorf("fetch for '%s' failed: %s", identifier, env.Error)
			}

			return nil
		},
	}
}
