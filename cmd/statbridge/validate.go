package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"github.com/statbridge/statbridge/internal/config"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func newValidateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Validate a bridge config file",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "allowed-env",
				Usage: "Environment variables allowed in the bridge config (can be repeated)",
			},
		},
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:      "config",
				UsageText: "The bridge config file to validate",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := getLogger(ctx)

			filename := command.StringArg("config")
			if filename == "" {
				return fmt.Errorf("no config file provided")
			}

			logger = logger.With(zap.String("config_filename", filename))
			logger.Debug("validating bridge config")

			if _, err := config.Load(afero.NewOsFs(), filename, command.StringSlice("allowed-env")); err != nil {
				fmt.Fprintln(command.Root().Writer, formatValidationError(err))
				return fmt.Errorf("bridge config '%s' is invalid", filename)
			}

			fmt.Fprintf(command.Root().Writer, "✓ Bridge config '%s' is valid\n", filename)
			return nil
		},
	}
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("bridge config has %d validation error(s):", len(validationErrs)))
		for _, fe := range validationErrs {
			sb.WriteString(fmt.Sprintf("\n  • %s: failed '%s' validation", fe.Namespace(), fe.Tag()))
			if fe.Param() != "" {
				sb.WriteString(fmt.Sprintf(" (param: %s)", fe.Param()))
			}
		}
		return errors.New(sb.String())
	}
	return err
}
