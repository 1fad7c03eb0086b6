package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cochaviz/exactiso/internal/command"
	"github.com/cochaviz/exactiso/internal/logging"
)

// DefaultFileName is looked up in the working directory when no config path
// is given.
const DefaultFileName = "exactiso.yaml"

// Config holds the settings that are not part of a single build request.
type Config struct {
	// Interpreter is the PowerShell executable used to run the image tool.
	Interpreter string `yaml:"interpreter"`
	// BaseDir holds the image tool script. Defaults to the working directory.
	BaseDir   string `yaml:"base_dir"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Interpreter: command.DefaultInterpreter(),
		LogLevel:    "info",
		LogFormat:   string(logging.FormatText),
	}
}

// Load reads path on top of the defaults. An empty path falls back to
// DefaultFileName, which is allowed to be missing.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = DefaultFileName
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.merge(fileCfg)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) merge(other Config) {
	if v := strings.TrimSpace(other.Interpreter); v != "" {
		c.Interpreter = v
	}
	if v := strings.TrimSpace(other.BaseDir); v != "" {
		c.BaseDir = v
	}
	if v := strings.TrimSpace(other.LogLevel); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(other.LogFormat); v != "" {
		c.LogFormat = v
	}
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if _, err := logging.ParseFormat(c.LogFormat); err != nil {
		return err
	}
	if strings.TrimSpace(c.Interpreter) == "" {
		return errors.New("interpreter must not be empty")
	}
	return nil
}

// ResolveBaseDir returns BaseDir as an absolute path, defaulting to the
// process working directory.
func (c Config) ResolveBaseDir() (string, error) {
	if strings.TrimSpace(c.BaseDir) == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working directory: %w", err)
		}
		return wd, nil
	}
	abs, err := filepath.Abs(c.BaseDir)
	if err != nil {
		return "", fmt.Errorf("resolve base dir: %w", err)
	}
	return abs, nil
}

// Builder returns the command builder described by the configuration.
func (c Config) Builder() (command.Builder, error) {
	baseDir, err := c.ResolveBaseDir()
	if err != nil {
		return command.Builder{}, err
	}
	return command.Builder{Interpreter: c.Interpreter, BaseDir: baseDir}, nil
}
