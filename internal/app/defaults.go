package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

// env holds the overrides read from the environment:
//   - DOSEKEEPER_CONFIG_PATH: config file location (default: ~/.config/dosekeeper.toml)
//   - DOSEKEEPER_HOME: base directory for data (default: ~/.local/share/dosekeeper)
type env struct {
	ConfigPath string `split_words:"true"`
	Home       string
}

// GetDefaults returns application default paths, checking environment variables first.
func GetDefaults() (map[string]string, error) {
	var e env
	if err := envconfig.Process("dosekeeper", &e); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if e.ConfigPath == "" || e.Home == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		if e.ConfigPath == "" {
			e.ConfigPath = filepath.Join(homeDir, ".config", "dosekeeper.toml")
		}
		if e.Home == "" {
			e.Home = filepath.Join(homeDir, ".local", "share", "dosekeeper")
		}
	}

	return map[string]string{
		"config_path": e.ConfigPath,
		"base_dir":    e.Home,
		"log_dir":     filepath.Join(e.Home, "log"),
	}, nil
}
