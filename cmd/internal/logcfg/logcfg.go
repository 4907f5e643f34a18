package logcfg

import (
	"os"

	logs "github.com/danmuck/smplog"
)

const envConfigPath = "MFTP_LOG_CONFIG"

// Load returns file-backed logging configuration when available, otherwise defaults.
func Load() logs.Config {
	if path := os.Getenv(envConfigPath); path != "" {
		if cfg, err := logs.ConfigFromFile(path); err == nil {
			return cfg
		}
	}

	candidates := []string{
		"./smplog.config.toml",
		"./local/smplog.config.toml",
	}

	for _, path := range candidates {
		if cfg, err := logs.ConfigFromFile(path); err == nil {
			return cfg
		}
	}

	return logs.DefaultConfig()
}

// WithDebug raises cfg to debug verbosity when enabled is true, leaving it
// untouched otherwise. Both binaries' -d flag goes through this rather than
// a second, bespoke logging configuration path.
func WithDebug(cfg logs.Config, enabled bool) logs.Config {
	if enabled {
		cfg.Level = logs.DebugLevel
	}
	return cfg
}
