package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FileSettings is the optional settings file. Zero values mean "not set".
// TOML files keep the settings under a [project-settings] table; YAML files
// use the same keys at the top level.
type FileSettings struct {
	Source      string `toml:"source" yaml:"source"`
	Destination string `toml:"destination" yaml:"destination"`
	SmallSize   []int  `toml:"small_size" yaml:"small_size"`
	Frames      []int  `toml:"frames" yaml:"frames"`
	Plain       *bool  `toml:"plain" yaml:"plain"`
	Workers     int    `toml:"workers" yaml:"workers"`
}

type tomlDocument struct {
	Settings FileSettings `toml:"project-settings"`
}

// LoadFile reads a settings file, choosing the decoder from its extension.
func LoadFile(path string) (FileSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileSettings{}, fmt.Errorf("read settings: %w", err)
	}

	var fs FileSettings
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		var doc tomlDocument
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return FileSettings{}, fmt.Errorf("decode toml %s: %w", path, err)
		}
		fs = doc.Settings
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fs); err != nil {
			return FileSettings{}, fmt.Errorf("decode yaml %s: %w", path, err)
		}
	default:
		return FileSettings{}, fmt.Errorf("unsupported settings format %q (want .toml, .yaml or .yml)", ext)
	}

	if n := len(fs.SmallSize); n != 0 && n != 2 {
		return FileSettings{}, ValidationError{Field: "small_size", Reason: fmt.Sprintf("want 2 values, got %d", n)}
	}
	if n := len(fs.Frames); n != 0 && n != 4 {
		return FileSettings{}, ValidationError{Field: "frames", Reason: fmt.Sprintf("want 4 values, got %d", n)}
	}
	return fs, nil
}

// Apply overlays the values set in fs onto cfg.
func (fs FileSettings) Apply(cfg *Config) {
	if fs.Source != "" {
		cfg.Source = fs.Source
	}
	if fs.Destination != "" {
		cfg.Destination = fs.Destination
	}
	if len(fs.SmallSize) == 2 {
		cfg.Width, cfg.Height = fs.SmallSize[0], fs.SmallSize[1]
	}
	if len(fs.Frames) == 4 {
		copy(cfg.FramePercents[:], fs.Frames)
	}
	if fs.Plain != nil {
		cfg.Plain = *fs.Plain
	}
	if fs.Workers > 0 {
		cfg.Workers = fs.Workers
	}
}
