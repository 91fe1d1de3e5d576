// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variable names.
const (
	// ConfigEnv names the configuration file read by [Load].
	ConfigEnv = "SOMOD_CONFIG"
	// NodeJSVersionEnv supplies the default serverless runtime version.
	NodeJSVersionEnv = "SOMOD_SERVERLESS_NODEJS_VERSION"
)

// DefaultNodeJSVersion is used when neither the file nor
// SOMOD_SERVERLESS_NODEJS_VERSION sets a runtime version.
const DefaultNodeJSVersion = "16"

// ManifestFile is the module manifest name looked up under root_dir.
const ManifestFile = "somod.modules.yaml"

// Config is the master configuration for somod.
type Config struct {
	// RootDir is the root module's package directory.
	RootDir string `yaml:"root_dir"`

	// Manifest is the module list produced by dependency resolution.
	// Default: <root_dir>/somod.modules.yaml
	Manifest string `yaml:"manifest"`

	// Serverless configures the generated function defaults.
	Serverless ServerlessConfig `yaml:"serverless"`

	// Output configures where "somod compose" writes the template.
	Output OutputConfig `yaml:"output"`

	// Prune configures removal of unused resources.
	Prune PruneConfig `yaml:"prune"`

	// Snapshot configures composition snapshots.
	Snapshot SnapshotConfig `yaml:"snapshot"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// ServerlessConfig holds the Globals.Function section of the composed
// template.
type ServerlessConfig struct {
	// NodeJSVersion is the major version of the nodejs runtime.
	// Default: $SOMOD_SERVERLESS_NODEJS_VERSION, else "16"
	NodeJSVersion string `yaml:"nodejs_version"`

	// Architectures lists the function instruction set architectures.
	// Default: [arm64]
	Architectures []string `yaml:"architectures"`

	// Handler is the function entry point inside each bundle.
	// Default: index.default
	Handler string `yaml:"handler"`
}

// Runtime returns the SAM runtime identifier, e.g. "nodejs16.x".
func (s ServerlessConfig) Runtime() string {
	return "nodejs" + s.NodeJSVersion + ".x"
}

// OutputConfig configures the composed template file.
type OutputConfig struct {
	// Template is the output path. Default: <root_dir>/template.yaml
	Template string `yaml:"template"`

	// Format is yaml or json. Default: yaml
	Format string `yaml:"format"`
}

// PruneConfig configures dead-resource removal.
type PruneConfig struct {
	// UnreferencedLayers removes function layers of dependency modules
	// that no resource references. Default: true
	UnreferencedLayers bool `yaml:"unreferenced_layers"`
}

// SnapshotConfig configures composition snapshots.
type SnapshotConfig struct {
	// Compression is zstd, lz4 or none. Default: zstd
	Compression string `yaml:"compression"`
}

// Default returns the default configuration rooted at the current
// directory.
func Default() *Config {
	nodeJSVersion := os.Getenv(NodeJSVersionEnv)
	if nodeJSVersion == "" {
		nodeJSVersion = DefaultNodeJSVersion
	}
	return &Config{
		RootDir: ".",
		Serverless: ServerlessConfig{
			NodeJSVersion: nodeJSVersion,
			Architectures: []string{"arm64"},
			Handler:       "index.default",
		},
		Output: OutputConfig{
			Format: "yaml",
		},
		Prune: PruneConfig{
			UnreferencedLayers: true,
		},
		Snapshot: SnapshotConfig{
			Compression: "zstd",
		},
		LogLevel: "info",
	}
}

// Load loads configuration from the file named by SOMOD_CONFIG.
// There is no fallback: if SOMOD_CONFIG is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv(ConfigEnv)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your somod.yaml config file, or use --config flag", ConfigEnv)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. A relative
// root_dir is taken relative to the file's directory.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.expandVariables(filepath.Dir(path))
	cfg.ResolvePaths()

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// ResolvePaths fills in path defaults derived from RootDir and makes
// relative paths relative to it. Call it once RootDir is final.
func (c *Config) ResolvePaths() {
	c.RootDir = filepath.Clean(c.RootDir)
	if c.Manifest == "" {
		c.Manifest = ManifestFile
	}
	if !filepath.IsAbs(c.Manifest) {
		c.Manifest = filepath.Join(c.RootDir, c.Manifest)
	}
	if c.Output.Template == "" {
		c.Output.Template = "template." + c.Output.Format
	}
	if !filepath.IsAbs(c.Output.Template) {
		c.Output.Template = filepath.Join(c.RootDir, c.Output.Template)
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// paths. root_dir is expanded first and anchored at baseDir, so the
// other paths may use ${SOMOD_ROOT}.
func (c *Config) expandVariables(baseDir string) {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.RootDir = expandVars(c.RootDir, vars)
	if !filepath.IsAbs(c.RootDir) {
		c.RootDir = filepath.Join(baseDir, c.RootDir)
	}
	vars["SOMOD_ROOT"] = c.RootDir

	c.Manifest = expandVars(c.Manifest, vars)
	c.Output.Template = expandVars(c.Output.Template, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, consulting
// vars before the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

var (
	outputFormats      = []string{"yaml", "json"}
	compressionFormats = []string{"zstd", "lz4", "none"}
	architectures      = []string{"arm64", "x86_64"}
	nodeJSVersion      = regexp.MustCompile(`^[0-9]+$`)
)

// Validate checks the configuration for errors. Every problem is
// reported.
func (c *Config) Validate() error {
	var errs []error

	if c.RootDir == "" {
		errs = append(errs, errors.New("root_dir is required"))
	}
	if !nodeJSVersion.MatchString(c.Serverless.NodeJSVersion) {
		errs = append(errs, fmt.Errorf("serverless.nodejs_version must be a major version number, got %q", c.Serverless.NodeJSVersion))
	}
	if len(c.Serverless.Architectures) == 0 {
		errs = append(errs, errors.New("serverless.architectures must not be empty"))
	}
	for _, architecture := range c.Serverless.Architectures {
		if !slices.Contains(architectures, architecture) {
			errs = append(errs, fmt.Errorf("serverless.architectures: %q must be one of: %v", architecture, architectures))
		}
	}
	if c.Serverless.Handler == "" {
		errs = append(errs, errors.New("serverless.handler is required"))
	}
	if !slices.Contains(outputFormats, c.Output.Format) {
		errs = append(errs, fmt.Errorf("output.format must be one of: %v", outputFormats))
	}
	if !slices.Contains(compressionFormats, c.Snapshot.Compression) {
		errs = append(errs, fmt.Errorf("snapshot.compression must be one of: %v", compressionFormats))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Level returns LogLevel as a slog level.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("log_level must be one of debug, info, warn, error: %w", err)
	}
	return level, nil
}
