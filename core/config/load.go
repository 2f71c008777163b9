package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

// DefaultDir returns the config directory in the user's home, or the current
// directory if there's no home.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, DefaultDirName)
}

// Load loads the configuration from the directory.
func Load(path string) (*Configuration, error) {
	// If given the path to a config.yaml file, move back up a level.
	if filepath.Base(path) == ConfigurationName {
		path = filepath.Dir(path)
	}

	cfg, err := LoadFs(afero.NewBasePathFs(afero.NewOsFs(), path))
	if err != nil {
		return nil, err
	}
	cfg.dir = path
	return cfg, nil
}

// LoadOrDefault loads the configuration from the directory, falling back to
// the built in defaults if it has none.
func LoadOrDefault(path string) (*Configuration, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(path), nil
	}
	return cfg, err
}

// LoadFs loads and validates the configuration stored at the root of fsys.
func LoadFs(fsys afero.Fs) (*Configuration, error) {
	configContents, err := afero.ReadFile(fsys, ConfigurationName)
	if err != nil {
		return nil, err
	}
	var out Configuration
	if err := yaml.UnmarshalStrict(configContents, &out); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	out.configFs = fsys
	return &out, nil
}

// Default returns the built in configuration rooted at path.
func Default(path string) *Configuration {
	cfg := defaultConfig()
	cfg.configFs = afero.NewBasePathFs(afero.NewOsFs(), path)
	cfg.dir = path
	return cfg
}

// Initialize writes the default configuration to path if it doesn't already
// have one, then loads it.
func Initialize(path string, logger *log.Logger) (*Configuration, error) {
	if err := initializeFs(afero.NewOsFs(), path, logger); err != nil {
		return nil, err
	}
	return Load(path)
}

func initializeFs(fsys afero.Fs, path string, logger *log.Logger) error {
	if err := fsys.MkdirAll(path, 0700); err != nil {
		return err
	}

	target := filepath.Join(path, ConfigurationName)
	switch exists, err := afero.Exists(fsys, target); {
	case err != nil:
		return err
	case exists:
		logger.Printf("- %s already exists, leaving it alone\n", target)
		return nil
	}

	logger.Printf("- writing %s\n", target)
	return afero.WriteFile(fsys, target, defaultConfigData, 0600)
}
