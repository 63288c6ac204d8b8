package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the optional eff configuration file.
type Config struct {
	Defaults DefaultsConfig `toml:"defaults"`
	Case     CaseConfig     `toml:"case"`
	Theme    ThemeConfig    `toml:"theme"`
}

// DefaultsConfig holds persistent flag defaults. Unset keys stay nil so
// the command line defaults apply.
type DefaultsConfig struct {
	OutputDir *string  `toml:"output_dir"`
	ChunkSize *string  `toml:"chunk_size"`
	Digests   []string `toml:"digests"`
	Verify    *bool    `toml:"verify"`
	BWLimit   *string  `toml:"bwlimit"`
	Compress  *string  `toml:"compress"`
	Split     *int     `toml:"split"`
	EWF       *bool    `toml:"ewf"`
	Zstd      *bool    `toml:"zstd"`
	TUI       *bool    `toml:"tui"`
	Ledger    *string  `toml:"ledger"`
}

// CaseConfig holds documentation defaults, typically the examiner.
type CaseConfig struct {
	Examiner *string `toml:"examiner"`
	Notes    *string `toml:"notes"`
}

// ThemeConfig holds optional color overrides.
type ThemeConfig struct {
	Green  *string `toml:"green"`
	Blue   *string `toml:"blue"`
	Yellow *string `toml:"yellow"`
	Red    *string `toml:"red"`
	Muted  *string `toml:"muted"`
	Bright *string `toml:"bright"`
}

// Path returns the resolved path to the config file.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "eff", "config.toml")
}

// Load reads the config file from the XDG path. Returns a zero Config
// (no error) if the file does not exist. Config is always optional.
func Load() (Config, error) {
	path := Path()
	if path == "" {
		return Config{}, nil
	}
	return LoadFile(path)
}

// LoadFile reads the config file at path, treating a missing file as empty.
func LoadFile(path string) (Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}
	return cfg, nil
}
