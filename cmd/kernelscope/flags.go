package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/gomlx/kernelscope/internal/logger"
	"github.com/gomlx/kernelscope/program"
)

// options holds the global flags, after the config file was applied.
type options struct {
	configPath string
	dialect    string
	function   string
	logLevel   string
	logFormat  string

	config Config
	log    logger.Logger
}

func globalFlags(opts *options) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to the config file (default: $XDG_CONFIG_HOME/kernelscope/config.yaml)",
			Destination: &opts.configPath,
		},
		&cli.StringFlag{
			Name:        "dialect",
			Aliases:     []string{"d"},
			Usage:       "operation naming dialect (pir, mil or the custom dialect of the config file); by default the one named by the input",
			Destination: &opts.dialect,
		},
		&cli.StringFlag{
			Name:        "function",
			Aliases:     []string{"f"},
			Usage:       "function to inspect in MIL programs (default: the only function, or main)",
			Destination: &opts.function,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "warn",
			Destination: &opts.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, text, json)",
			Value:       string(logger.FormatPretty),
			Destination: &opts.logFormat,
		},
	}
}

// before loads the config file, applies it to the flags that were not set
// explicitly and installs the logger in the context.
func (opts *options) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := LoadConfig(opts.configPath)
	if err != nil {
		return ctx, err
	}
	opts.config = cfg
	applyGlobalConfig(cmd, cfg, opts)

	format, err := logger.ParseFormat(opts.logFormat)
	if err != nil {
		return ctx, err
	}
	opts.log = logger.NewFormat(cmd.Root().ErrWriter, format, opts.logLevel)
	if cfg.Path != "" {
		opts.log.Debug("loaded config", "path", cfg.Path)
	}
	return logger.WithContext(ctx, opts.log), nil
}

// resolveDialect returns the dialect selected by --dialect or the config, or
// the zero Dialect to let each input decide.
func (opts *options) resolveDialect() (program.Dialect, error) {
	return opts.config.Dialect(opts.dialect)
}
