// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/sodaru/somod/lib/compose"
	"github.com/sodaru/somod/lib/config"
	"github.com/sodaru/somod/lib/module"
)

// ProjectFlags holds the flags shared by commands that compose a
// project. Configuration comes from --config, else $SOMOD_CONFIG, else
// the defaults rooted at --root.
//
//	type composeParams struct {
//	    cli.ProjectFlags
//	    Out string `flag:"out" desc:"output path"`
//	}
//
//	project, err := params.Load()
type ProjectFlags struct {
	ConfigFile string
	Root       string
	LogLevel   string
	Verbose    bool

	// LogOutput receives log records. Default: os.Stderr.
	LogOutput io.Writer
}

// AddFlags registers the project flags.
func (p *ProjectFlags) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&p.ConfigFile, "config", "", "path to somod.yaml (default $"+config.ConfigEnv+")")
	flagSet.StringVar(&p.Root, "root", "", "root module directory when no config file is used (default .)")
	flagSet.StringVar(&p.LogLevel, "log-level", "", "log level: debug, info, warn, error (overrides the config file)")
	flagSet.BoolVarP(&p.Verbose, "verbose", "v", false, "log at debug level (shorthand for --log-level debug)")
}

// Project is a loaded configuration with its module list.
type Project struct {
	Config  *config.Config
	Modules module.List
	Logger  *slog.Logger
}

// LoadConfig resolves the configuration the flags select.
func (p *ProjectFlags) LoadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case p.ConfigFile != "":
		cfg, err = config.LoadFile(p.ConfigFile)
	case os.Getenv(config.ConfigEnv) != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
		if p.Root != "" {
			cfg.RootDir = p.Root
		}
		cfg.ResolvePaths()
	}
	if err != nil {
		return nil, err
	}
	switch {
	case p.LogLevel != "":
		cfg.LogLevel = p.LogLevel
	case p.Verbose:
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Load resolves the configuration, reads the module manifest, and
// builds a logger at the configured level.
func (p *ProjectFlags) Load() (*Project, error) {
	cfg, err := p.LoadConfig()
	if err != nil {
		return nil, err
	}
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	output := p.LogOutput
	if output == nil {
		output = os.Stderr
	}
	logger := NewCommandLogger(output, level)

	modules, err := module.LoadManifest(cfg.Manifest)
	if err != nil {
		return nil, err
	}
	logger.Debug("project loaded",
		"root", modules.Root().Name,
		"modules", len(modules),
		"manifest", cfg.Manifest,
	)
	return &Project{Config: cfg, Modules: modules, Logger: logger}, nil
}

// ComposeOptions returns composition options for the project.
func (p *Project) ComposeOptions() compose.Options {
	return compose.Options{
		Modules: p.Modules,
		Config:  p.Config,
		Logger:  p.Logger,
	}
}
