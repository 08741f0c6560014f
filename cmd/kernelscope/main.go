// Command kernelscope inspects compiled program graphs and reports how many
// fused kernels they contain, nested inside conditionals and loops.
//
// Usage:
//
//	kernelscope count forward.json
//	kernelscope describe --format json model.mlpackage
//	kernelscope check --expect expected.yaml forward.yaml
//	kernelscope serve --addr 127.0.0.1:8080
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"github.com/gomlx/kernelscope/inspect"
)

// Exit codes.
const (
	exitMismatch = 1
	exitError    = 2
)

func newApp(stdout, stderr io.Writer) *cli.Command {
	opts := &options{}
	return &cli.Command{
		Name:      "kernelscope",
		Usage:     "Count and check fused kernels in compiled program graphs",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags:     globalFlags(opts),
		Before:    opts.before,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			countCmd(opts),
			describeCmd(opts),
			checkCmd(opts),
			serveCmd(opts),
			versionCmd(),
		},
	}
}

// exitCode maps the error returned by the app to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, inspect.ErrMismatch):
		return exitMismatch
	default:
		return exitError
	}
}

func main() {
	app := newApp(os.Stdout, os.Stderr)
	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}
