package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/slipwayci/slipway/internal/constants"
	"github.com/slipwayci/slipway/internal/errors"
)

// HomeEnvVar overrides the slipway home directory when set.
const HomeEnvVar = "SLIPWAY_HOME"

// HomeDir returns the slipway home directory: $SLIPWAY_HOME when set,
// otherwise ~/.slipway.
//
// Returns an error if the home directory cannot be determined.
func HomeDir() (string, error) {
	if override := os.Getenv(HomeEnvVar); override != "" {
		return override, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, constants.SlipwayHome), nil
}

// GlobalConfigDir returns the path to the global slipway configuration
// directory. This is the slipway home itself.
func GlobalConfigDir() (string, error) {
	return HomeDir()
}

// ProjectConfigDir returns the relative path to the project configuration directory.
// This is always .slipway relative to the project root.
func ProjectConfigDir() string {
	return constants.SlipwayHome
}

// GlobalConfigPath returns the full path to the global configuration file.
//
// Returns an error if the home directory cannot be determined.
func GlobalConfigPath() (string, error) {
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", fmt.Errorf("get global config path: %w", err)
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// ProjectConfigPath returns the relative path to the project configuration file.
// This is always .slipway/config.yaml relative to the project root.
func ProjectConfigPath() string {
	return filepath.Join(ProjectConfigDir(), "config.yaml")
}
