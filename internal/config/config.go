// Package config loads optional YAML defaults for the voicepunch CLI.
// Flags always override file values; a missing default file is not an
// error.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up under the user's home directory when no
// --config flag is given.
const DefaultFileName = ".voicepunch.yaml"

// File holds every setting the CLI can read from disk.
type File struct {
	// Server settings
	Listen string `yaml:"listen"`

	// Client settings
	Server       string `yaml:"server"`
	Room         string `yaml:"room"`
	ID           string `yaml:"id"`
	BindIP       string `yaml:"bind_ip"`
	BindPort     int    `yaml:"bind_port"`
	InputDevice  int    `yaml:"input_device"`
	OutputDevice int    `yaml:"output_device"`
}

// Load reads the file at path. An empty path falls back to the default
// location, where a missing file yields zero-value settings; an explicit
// path must exist.
func Load(path string) (*File, error) {
	explicit := path != ""
	if !explicit {
		home, err := os.UserHomeDir()
		if err != nil {
			return &File{}, nil
		}
		path = filepath.Join(home, DefaultFileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return &File{}, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &f, nil
}
