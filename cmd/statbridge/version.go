package main

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"

	"github.com/statbridge/statbridge/internal/transport"
	"github.com/urfave/cli/v3"
)

type buildInfo struct {
	Version   string
	GoVersion string
	Commit    string
	BuildTime string
	Modified  bool
}

var build = readBuildInfo(debug.ReadBuildInfo)

func init() {
	transport.UserAgent = "statbridge/" + build.Version
}

func readBuildInfo(read func() (*debug.BuildInfo, bool)) buildInfo {
	b := buildInfo{Version: "dev", GoVersion: "unknown"}

	info, ok := read()
	if !ok {
		return b
	}

	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		b.Version = info.Main.Version
	}
	b.GoVersion = info.GoVersion

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			b.Commit = setting.Value
		case "vcs.time":
			b.BuildTime = setting.Value
		case "vcs.modified":
			b.Modified = setting.Value == "true"
		}
	}

	return b
}

func (b buildInfo) print(w io.Writer) {
	fmt.Fprintf(w, "version: %s\n", b.Version)
	fmt.Fprintf(w, "go: %s\n", b.GoVersion)
	if b.Commit != "" {
		if b.Modified {
			fmt.Fprintf(w, "commit: %s (dirty)\n", b.Commit)
		} else {
			fmt.Fprintf(w, "commit: %s\n", b.Commit)
		}
	}
	if b.BuildTime != "" {
		fmt.Fprintf(w, "built: %s\n", b.BuildTime)
	}
}

func newVersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(ctx context.Context, command *cli.Command) error {
			build.print(command.Root().Writer)
			return nil
		},
	}
}
