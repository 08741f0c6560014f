package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/gomlx/kernelscope/inspect"
	"github.com/gomlx/kernelscope/internal/logger"
	"github.com/gomlx/kernelscope/mil"
	"github.com/gomlx/kernelscope/program"
)

// programArg returns the single program path argument of cmd.
func programArg(cmd *cli.Command) (string, error) {
	switch cmd.NArg() {
	case 0:
		return "", errors.Errorf("%s: missing program file", cmd.Name)
	case 1:
		return cmd.Args().First(), nil
	default:
		return "", errors.Errorf("%s: expected one program file, got %d", cmd.Name, cmd.NArg())
	}
}

// loadProgram reads the program at path: an .mlpackage, .mlmodel or MIL .pb
// file, or a program document in JSON or YAML.
func (opts *options) loadProgram(ctx context.Context, path string) (*program.Program, error) {
	log := logger.FromContext(ctx)
	d, err := opts.resolveDialect()
	if err != nil {
		return nil, err
	}

	var p *program.Program
	if mil.IsMILFile(path) {
		p, err = mil.Load(path, opts.function, d)
	} else {
		if opts.function != "" {
			log.Warn("--function only applies to MIL programs, ignored", "file", path)
		}
		p, err = program.ReadFile(path, d)
	}
	if err != nil {
		return nil, err
	}
	log.Debug("loaded program", "file", path, "name", p.Name, "id", p.ID, "dialect", p.Dialect.Name)
	return p, nil
}

// readReport reads an expected structure report. Files ending in .json are
// decoded as JSON, anything else as YAML.
func readReport(path string) (*inspect.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read expected report")
	}
	r := &inspect.Report{}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, r)
	} else {
		err = yaml.Unmarshal(data, r)
	}
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	return r, nil
}
