package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/statbridge/statbridge/internal/plugin"
	"github.com/statbridge/statbridge/internal/server"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func newServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve get_data to the embedded front-end",
		Flags: append(newConfigFlags(), newListenFlag()),
		Action: func(ctx context.Context, command *cli.Command) (err error) {
			logger := getLogger(ctx)

			cfg, err := loadBridgeConfig(afero.NewOsFs(), command)
			if err != nil {
				return fmt.Errorf("failed to load bridge config: %w", err)
			}

			p := plugin.New(logger.Named("plugin"), cfg)
			if err := p.Load(ctx); err != nil {
				return err
			}

			defer func() {
				unloadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				err = errors.Join(err, p.Unload(unloadCtx))
			}()

			srv := server.New(logger.Named("server"), p, server.Config{
				Listen:         cfg.Spec.Server.Listen,
				AllowedOrigins: cfg.Spec.Server.AllowedOrigins,
				Metrics:        p.Metrics().Handler(),
			})

			logger.Info("serving bridge",
				zap.String("listen", cfg.Spec.Server.Listen),
				zap.Strings("allowed_origins", cfg.Spec.Server.AllowedOrigins),
			)

			return srv.ListenAndServe(ctx)
		},
	}
}
