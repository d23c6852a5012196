package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/lindiff/internal/harness"
)

// Config is the optional YAML configuration for lindiff run. Every field
// has a matching flag; flags given on the command line win.
//
//	engine:
//	  binary: systemds
//	  args: [-stats]
//	  env: [SYSTEMDS_ROOT=/opt/systemds]
//	  timeout: 2m
//	  strict_exit: false
//	mode: commands
//	temp_dir: ./temp
//	keep_temp: false
type Config struct {
	Engine   EngineConfig `yaml:"engine"`
	Mode     string       `yaml:"mode"`
	TempDir  string       `yaml:"temp_dir"`
	KeepTemp bool         `yaml:"keep_temp"`
}

// EngineConfig configures how the external engine is launched.
type EngineConfig struct {
	Binary     string        `yaml:"binary"`
	Args       []string      `yaml:"args"`
	Env        []string      `yaml:"env"`
	Timeout    time.Duration `yaml:"timeout"`
	StrictExit bool          `yaml:"strict_exit"`
}

// LoadConfig reads a config file. An empty path yields the zero Config.
// Unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values the decoder cannot.
func (c *Config) Validate() error {
	if _, err := harness.ParseMode(c.Mode); err != nil {
		return err
	}
	if c.Engine.Timeout < 0 {
		return fmt.Errorf("engine.timeout must be non-negative, got %s", c.Engine.Timeout)
	}
	return nil
}
