// Package config loads the runtime tunables that are not protocol
// constants: the control port, the accept backlog, the control-line buffer
// size, and the argv used for directory listing and paging. These follow
// the same env-var-then-candidate-files-then-defaults resolution the
// logging loader (cmd/internal/logcfg) uses, decoded with BurntSushi/toml.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Defaults for every tunable, used when no config file is found.
const (
	DefaultControlPort = 49999
	DefaultBacklog     = 4
	DefaultBufferSize  = 8192
	DefaultMaxLine     = 8192
)

const envConfigPath = "MFTP_CONFIG"

// Config holds the tunables a deployment may override via TOML.
type Config struct {
	ControlPort  int      `toml:"control_port"`
	Backlog      int      `toml:"backlog"`
	BufferSize   int      `toml:"buffer_size"`
	MaxLine      int      `toml:"max_line"`
	ListCommand  []string `toml:"list_command"`
	PagerCommand []string `toml:"pager_command"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ControlPort:  DefaultControlPort,
		Backlog:      DefaultBacklog,
		BufferSize:   DefaultBufferSize,
		MaxLine:      DefaultMaxLine,
		ListCommand:  []string{"ls", "-l"},
		PagerCommand: []string{"more"},
	}
}

// FromFile decodes a TOML file on top of Default(), so a config file only
// needs to specify the fields it wants to override.
func FromFile(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load resolves the config path from MFTP_CONFIG, falling back to a couple
// of candidate paths, and finally to Default().
func Load() Config {
	if path := os.Getenv(envConfigPath); path != "" {
		if cfg, err := FromFile(path); err == nil {
			return cfg
		}
	}

	candidates := []string{
		"./mftp.config.toml",
		"./local/mftp.config.toml",
	}
	for _, path := range candidates {
		if cfg, err := FromFile(path); err == nil {
			return cfg
		}
	}

	return Default()
}
