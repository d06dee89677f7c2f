// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/schulte/internal/model"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Test  TestConfig  `toml:"test"`
	Stats StatsConfig `toml:"stats"`
}

// TestConfig maps test-related settings.
type TestConfig struct {
	TableSize *int    `toml:"table-size"`
	Sequence  *string `toml:"sequence"`
	Shuffle   *bool   `toml:"shuffle"`
	Subject   *string `toml:"subject"`
	Seed      *int64  `toml:"seed"`
}

// StatsConfig maps stats-related settings.
type StatsConfig struct {
	CurveWindow *int `toml:"curve-window"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	if cfg.Test.Sequence != nil {
		if _, err := model.ParseSequenceType(*cfg.Test.Sequence); err != nil {
			return FileConfig{}, fmt.Errorf("invalid sequence in config: %w", err)
		}
	}
	return cfg, nil
}

// Apply overlays the values set in the file onto base.
func (c TestConfig) Apply(base model.TestConfiguration) model.TestConfiguration {
	if c.TableSize != nil {
		base.TableSize = *c.TableSize
	}
	if c.Sequence != nil {
		if seq, err := model.ParseSequenceType(*c.Sequence); err == nil {
			base.SequenceType = seq
		}
	}
	if c.Shuffle != nil {
		base.ShuffleAfterEachStep = *c.Shuffle
	}
	return base
}
