package main

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/gomlx/kernelscope/program"
)

// Config is the kernelscope configuration file
// (~/.config/kernelscope/config.yaml). Flags given on the command line win
// over its values.
type Config struct {
	DialectName   string `yaml:"dialect"`
	Function      string `yaml:"function"`
	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`
	ServerAddress string `yaml:"server_address"`

	// CustomDialect describes the naming of a framework other than PIR and
	// MIL. It's selected with --dialect <name> or the dialect key.
	CustomDialect *DialectConfig `yaml:"custom_dialect"`

	// Path the config was read from, empty if no file was found.
	Path string `yaml:"-"`
}

// DialectConfig is the config file form of a program.Dialect.
type DialectConfig struct {
	Name              string `yaml:"name"`
	FusedKernelMarker string `yaml:"fused_kernel_marker"`
	CondOp            string `yaml:"cond_op"`
	WhileOp           string `yaml:"while_op"`
}

// Dialect converts the config to a program.Dialect. The marker defaults to
// program.DefaultFusedKernelMarker.
func (dc *DialectConfig) Dialect() (program.Dialect, error) {
	d := program.Dialect{
		Name:              dc.Name,
		FusedKernelMarker: dc.FusedKernelMarker,
		CondName:          dc.CondOp,
		WhileName:         dc.WhileOp,
	}
	if d.FusedKernelMarker == "" {
		d.FusedKernelMarker = program.DefaultFusedKernelMarker
	}
	if d.Name == "" {
		return d, errors.New("config: custom_dialect requires a name")
	}
	if err := d.Validate(); err != nil {
		return d, errors.WithMessage(err, "config: custom_dialect")
	}
	return d, nil
}

// Dialect resolves a dialect name against the custom dialect and the
// built-in ones. An empty name returns the zero Dialect.
func (c Config) Dialect(name string) (program.Dialect, error) {
	if name == "" {
		return program.Dialect{}, nil
	}
	if c.CustomDialect != nil && c.CustomDialect.Name == name {
		return c.CustomDialect.Dialect()
	}
	return program.LookupDialect(name)
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "kernelscope", "config.yaml")
}

// LoadConfig reads the config file at path, or at the default location if
// path is empty. A missing default file yields a zero Config, while a
// missing explicit one is an error.
func LoadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath()
		if path == "" {
			return Config{}, nil
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, errors.Wrap(err, "read config")
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "%s: parse config", path)
	}
	if cfg.CustomDialect != nil {
		if _, err := cfg.CustomDialect.Dialect(); err != nil {
			return Config{}, errors.WithMessage(err, path)
		}
	}
	cfg.Path = path
	return cfg, nil
}

// applyGlobalConfig applies config file values to the global flags that
// were not set on the command line.
func applyGlobalConfig(c *cli.Command, cfg Config, opts *options) {
	if cfg.DialectName != "" && !c.IsSet("dialect") {
		opts.dialect = cfg.DialectName
	}
	if cfg.Function != "" && !c.IsSet("function") {
		opts.function = cfg.Function
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		opts.logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		opts.logFormat = cfg.LogFormat
	}
}

// applyServeConfig applies config file values to the serve command flags.
func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}
