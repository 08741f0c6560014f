package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"github.com/gomlx/kernelscope/inspect"
	"github.com/gomlx/kernelscope/internal/logger"
)

func checkCmd(opts *options) *cli.Command {
	var (
		count      int64
		expectPath string
	)
	return &cli.Command{
		Name:      "check",
		Usage:     "Check a program against an expected fused kernel count or structure report",
		ArgsUsage: "<program>",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:        "count",
				Aliases:     []string{"n"},
				Usage:       "expected total number of fused kernels",
				Destination: &count,
			},
			&cli.StringFlag{
				Name:        "expect",
				Aliases:     []string{"e"},
				Usage:       "expected structure report (YAML, or JSON if the file ends in .json)",
				Destination: &expectPath,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			if !cmd.IsSet("count") && expectPath == "" {
				return errors.New("check: --count or --expect is required")
			}
			if count < 0 {
				return errors.Errorf("check: --count must not be negative, got %d", count)
			}
			path, err := programArg(cmd)
			if err != nil {
				return err
			}
			p, err := opts.loadProgram(ctx, path)
			if err != nil {
				return err
			}

			var want *inspect.Report
			if expectPath != "" {
				if want, err = readReport(expectPath); err != nil {
					return err
				}
			}

			w := cmd.Root().Writer
			if cmd.IsSet("count") {
				if err := inspect.CheckProgramFusedKernelCount(p, int(count)); err != nil {
					return err
				}
			}
			if want != nil {
				if err := inspect.CheckProgramStructure(p, want); err != nil {
					var structErr *inspect.StructureMismatchError
					if errors.As(err, &structErr) {
						log.Debug("structure mismatch", "program", p.Name, "differences", len(structErr.Diffs))
						_, _ = fmt.Fprintf(w, "%s: %d differences:\n", path, len(structErr.Diffs))
						printDiff(w, structErr.Diffs)
					}
					return err
				}
			}
			n, err := inspect.CountFusedKernels(p.GlobalBlock())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(w, "ok: %s has %d fused kernels\n", path, n)
			return err
		},
	}
}
