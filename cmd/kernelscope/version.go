package main

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/urfave/cli/v3"
)

var (
	// Version is the release version (set via -ldflags).
	Version = ""
	// Commit is the git commit hash (set via -ldflags).
	Commit = ""
)

// buildInfo fills in Version and Commit from the module build info when
// they weren't set at link time.
func buildInfo() (version, commit string) {
	version, commit = Version, Commit
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if version == "" {
		version = info.Main.Version
	}
	if commit == "" {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				commit = s.Value
			}
		}
	}
	return
}

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			version, commit := buildInfo()
			if version == "" {
				version = "(devel)"
			}
			w := cmd.Root().Writer
			_, _ = fmt.Fprintf(w, "version: %s\n", version)
			if commit != "" {
				_, _ = fmt.Fprintf(w, "commit:  %s\n", commit)
			}
			return nil
		},
	}
}
