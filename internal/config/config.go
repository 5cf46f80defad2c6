// Package config loads the optional .stevedore.yaml file and merges it
// with command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// CliFlags holds the values of command-line flags, plus markers for which
// were explicitly set so they can override the file.
type CliFlags struct {
	CargoPath string
	Workspace string
	TargetDir string
	Release   bool
	LogLevel  string
	Telemetry bool

	ReleaseSet   bool
	TelemetrySet bool
}

// AppConfig represents the application's configuration from .stevedore.yaml.
type AppConfig struct {
	CargoPath string `yaml:"cargo_path,omitempty"`
	Workspace string `yaml:"workspace,omitempty"`
	TargetDir string `yaml:"target_dir,omitempty"`
	Release   bool   `yaml:"release"`
	LogLevel  string `yaml:"log_level,omitempty"`
	Telemetry bool   `yaml:"telemetry"`
}

// Constants for default values.
const (
	DefaultCargoPath = "cargo"
	DefaultLogLevel  = "warn"
)

// Load reads the configuration file, falling back to defaults when no
// file exists or it cannot be parsed. A malformed file warns on stderr
// rather than aborting.
func Load() *AppConfig {
	appCfg := &AppConfig{
		CargoPath: DefaultCargoPath,
		LogLevel:  DefaultLogLevel,
	}

	configPath := getConfigPath()
	if configPath == "" {
		return appCfg
	}

	yamlFile, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: Error reading config file %s: %v. Using defaults.\n", configPath, err)
		}
		return appCfg
	}

	var fileCfg AppConfig
	if err := yaml.Unmarshal(yamlFile, &fileCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Error unmarshalling config file %s: %v. Using defaults.\n", configPath, err)
		return appCfg
	}

	if fileCfg.CargoPath != "" {
		appCfg.CargoPath = fileCfg.CargoPath
	}
	if fileCfg.Workspace != "" {
		appCfg.Workspace = fileCfg.Workspace
	}
	if fileCfg.TargetDir != "" {
		appCfg.TargetDir = fileCfg.TargetDir
	}
	appCfg.Release = fileCfg.Release
	if fileCfg.LogLevel != "" {
		appCfg.LogLevel = fileCfg.LogLevel
	}
	appCfg.Telemetry = fileCfg.Telemetry

	return appCfg
}

// getConfigPath finds the .stevedore.yaml configuration file: local
// directory first, then the XDG user config dir.
func getConfigPath() string {
	localPath := ".stevedore.yaml"
	if _, err := os.Stat(localPath); err == nil {
		return localPath
	}

	configHome, err := os.UserConfigDir()
	if err != nil || configHome == "" || configHome == "/" {
		return ""
	}
	xdgPath := filepath.Join(configHome, "stevedore", "stevedore.yaml")
	if _, err := os.Stat(xdgPath); err == nil {
		return xdgPath
	}
	return ""
}

// MergeWithFlags layers explicitly-set CLI flags on top of the file
// configuration and returns the effective settings.
func MergeWithFlags(appCfg *AppConfig, flags CliFlags) *AppConfig {
	merged := *appCfg

	if flags.CargoPath != "" {
		merged.CargoPath = flags.CargoPath
	}
	if flags.Workspace != "" {
		merged.Workspace = flags.Workspace
	}
	if flags.TargetDir != "" {
		merged.TargetDir = flags.TargetDir
	}
	if flags.LogLevel != "" {
		merged.LogLevel = flags.LogLevel
	}
	if flags.ReleaseSet {
		merged.Release = flags.Release
	}
	if flags.TelemetrySet {
		merged.Telemetry = flags.Telemetry
	}

	return &merged
}
