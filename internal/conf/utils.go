// conf/utils.go various util functions for configuration package
package conf

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/tphakala/tflitehelper/internal/errors"
	"github.com/tphakala/tflitehelper/internal/logger"
)

const appName = "tflitehelper"

// GetLogger returns the config package logger.
// It is fetched from the global logger on every call because the central
// logger is set up after the configuration has been loaded.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}

// GetDefaultConfigPaths returns the configuration search paths for the
// current operating system. When one of them already holds a config.yaml
// only that path is returned.
func GetDefaultConfigPaths() ([]string, error) {
	var configPaths []string

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "get-home-directory").
			Build()
	}

	switch runtime.GOOS {
	case "windows":
		exePath, err := os.Executable()
		if err != nil {
			return nil, errors.New(err).
				Category(errors.CategoryConfiguration).
				Context("operation", "get-executable-path").
				Build()
		}
		configPaths = []string{
			filepath.Dir(exePath),
			filepath.Join(homeDir, "AppData", "Roaming", appName),
		}
	default:
		configPaths = []string{
			filepath.Join(homeDir, ".config", appName),
			filepath.Join("/etc", appName),
		}
	}

	for _, path := range configPaths {
		if _, err := os.Stat(filepath.Join(path, "config.yaml")); err == nil {
			return []string{path}, nil
		}
	}

	return configPaths, nil
}

// FindConfigFile returns the path of the config file in use
func FindConfigFile() (string, error) {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return "", err
	}

	for _, path := range configPaths {
		configFilePath := filepath.Join(path, "config.yaml")
		if _, err := os.Stat(configFilePath); err == nil {
			return configFilePath, nil
		}
	}

	return "", errors.Newf("config file not found").
		Category(errors.CategoryNotFound).
		Context("operation", "find-config-file").
		Build()
}
