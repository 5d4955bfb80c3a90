package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/statbridge/statbridge/internal/fetcher"
	"golang.org/x/term"
)

type interactiveCtxKeyType struct{}

var interactiveCtxKey = interactiveCtxKeyType{}

// stdoutIsTerminal reports whether a person is likely reading stdout.
// CI runners get machine output even with a pseudo-terminal attached.
func stdoutIsTerminal() bool {
	if os.Getenv("CI") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func withInteractive(ctx context.Context, interactive bool) context.Context {
	return context.WithValue(ctx, interactiveCtxKey, interactive)
}

func isInteractive(ctx context.Context) bool {
	interactive, _ := ctx.Value(interactiveCtxKey).(bool)
	return interactive
}

// printEnvelope writes env as one JSON document, indented for terminals.
func printEnvelope(w io.Writer, env fetcher.Envelope, indent bool) error {
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(env); err != nil {
		return fmt.Errorf("failed to write envelope: %w", err)
	}
	return nil
}
