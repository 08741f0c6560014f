package main

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/gomlx/kernelscope/inspect"
)

func describeCmd(opts *options) *cli.Command {
	var format string
	return &cli.Command{
		Name:      "describe",
		Usage:     "Print the per-block fused kernel structure of a program",
		ArgsUsage: "<program>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (yaml, json, text)",
				Value:       "yaml",
				Destination: &format,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path, err := programArg(cmd)
			if err != nil {
				return err
			}
			p, err := opts.loadProgram(ctx, path)
			if err != nil {
				return err
			}
			report, err := inspect.DescribeStructure(p.GlobalBlock())
			if err != nil {
				return err
			}
			return writeReport(cmd.Root().Writer, report, format)
		},
	}
}

func writeReport(w io.Writer, r *inspect.Report, format string) error {
	var out []byte
	switch format {
	case "yaml", "yml":
		data, err := yaml.Marshal(r)
		if err != nil {
			return errors.Wrap(err, "encode report")
		}
		out = data
	case "json":
		data, err := r.MarshalJSON()
		if err != nil {
			return errors.Wrap(err, "encode report")
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err != nil {
			return errors.Wrap(err, "indent report")
		}
		buf.WriteByte('\n')
		out = buf.Bytes()
	case "text":
		out = []byte(r.String() + "\n")
	default:
		return errors.Errorf("unknown format %q, want yaml, json or text", format)
	}
	_, err := w.Write(out)
	return err
}

// printDiff writes one difference per line, indented.
func printDiff(w io.Writer, diffs []string) {
	for _, d := range diffs {
		_, _ = fmt.Fprintf(w, "  %s\n", d)
	}
}
