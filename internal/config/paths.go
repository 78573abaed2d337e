package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".glintbot"

// Paths holds resolved filesystem paths for glintbot data.
type Paths struct {
	Base   string // ~/.glintbot
	Config string // ~/.glintbot/config.yaml
	Logs   string // ~/.glintbot/logs
	Data   string // ~/.glintbot/data
}

// ResolvePaths computes all standard paths from the home directory.
// If GLINTBOT_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("GLINTBOT_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:   base,
		Config: filepath.Join(base, "config.yaml"),
		Logs:   filepath.Join(base, "logs"),
		Data:   filepath.Join(base, "data"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Logs, p.Data} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// DBPath resolves the SQLite path: explicit config wins, otherwise the
// standard data directory.
func (p Paths) DBPath(cfg StorageConfig) string {
	if cfg.Path != "" {
		return cfg.Path
	}
	return filepath.Join(p.Data, "glintbot.db")
}
