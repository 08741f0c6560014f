package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/gomlx/kernelscope/inspect"
)

func countCmd(opts *options) *cli.Command {
	return &cli.Command{
		Name:      "count",
		Usage:     "Print the total number of fused kernels in a program, including nested blocks",
		ArgsUsage: "<program>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path, err := programArg(cmd)
			if err != nil {
				return err
			}
			p, err := opts.loadProgram(ctx, path)
			if err != nil {
				return err
			}
			n, err := inspect.CountFusedKernels(p.GlobalBlock())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.Root().Writer, n)
			return err
		},
	}
}
