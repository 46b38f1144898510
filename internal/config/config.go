// Package config loads indexing settings from .codeindex.yaml in the
// repository root, with environment overrides on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the repository root.
const FileName = ".codeindex.yaml"

// DefaultIndexVersion is stamped into snapshot metadata when none is configured.
const DefaultIndexVersion = "1.0"

// Environment overrides for the capture toggles.
const (
	EnvIncludeBody       = "INCLUDE_FUNCTION_BODY"
	EnvIncludeDocstrings = "INCLUDE_DOCSTRINGS"
)

// Config holds user-overridable settings. Pointer fields distinguish "unset"
// from an explicit false or zero.
type Config struct {
	// IncludeBody captures function body_text. Default: true.
	IncludeBody *bool `yaml:"include_body"`

	// IncludeDocstrings captures docstrings. Default: true.
	IncludeDocstrings *bool `yaml:"include_docstrings"`

	// Ignore adds gitignore-style patterns on top of the built-in ones.
	Ignore []string `yaml:"ignore"`

	// IgnoreFile is read instead of .codeindexignore. Relative paths are
	// taken from the repository root.
	IgnoreFile string `yaml:"ignore_file"`

	// Workers bounds concurrent extraction. Default: GOMAXPROCS.
	Workers int `yaml:"workers"`

	// MaxFileSize skips parsing of larger files (bytes). 0 disables the limit.
	MaxFileSize int64 `yaml:"max_file_size"`

	// Output is the default JSON snapshot path for the index command.
	Output string `yaml:"output"`

	IndexVersion string `yaml:"index_version"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{}
}

// Load reads FileName from dir and applies environment overrides.
// A missing file yields defaults; malformed YAML is an error.
func Load(dir string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", FileName, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("read %s: %w", FileName, err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv applies the process environment overrides to c.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	for _, o := range []struct {
		key string
		dst **bool
	}{
		{EnvIncludeBody, &c.IncludeBody},
		{EnvIncludeDocstrings, &c.IncludeDocstrings},
	} {
		raw, ok := lookup(o.key)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		v, err := parseBool(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", o.key, err)
		}
		*o.dst = &v
	}
	return nil
}

// parseBool accepts strconv forms plus yes/no and on/off.
func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "on", "y":
		return true, nil
	case "no", "off", "n":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(raw))
}

// EffectiveIncludeBody returns the body toggle, defaulting to true.
func (c *Config) EffectiveIncludeBody() bool {
	if c.IncludeBody != nil {
		return *c.IncludeBody
	}
	return true
}

// EffectiveIncludeDocstrings returns the docstring toggle, defaulting to true.
func (c *Config) EffectiveIncludeDocstrings() bool {
	if c.IncludeDocstrings != nil {
		return *c.IncludeDocstrings
	}
	return true
}

// EffectiveWorkers returns the worker count, at least 1.
func (c *Config) EffectiveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// EffectiveIndexVersion returns the configured index version or DefaultIndexVersion.
func (c *Config) EffectiveIndexVersion() string {
	if c.IndexVersion != "" {
		return c.IndexVersion
	}
	return DefaultIndexVersion
}

// DisableBody and DisableDocstrings apply the --no-body / --no-docstrings flags.
func (c *Config) DisableBody() {
	f := false
	c.IncludeBody = &f
}

func (c *Config) DisableDocstrings() {
	f := false
	c.IncludeDocstrings = &f
}
