package config

// This file contains config loading:
// - XDG config path detection
// - TOML file parsing
// - Environment variable overrides
// - Validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	lerrors "github.com/chazuruo/ledupdater/internal/errors"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LEDUPDATER_"

// DefaultConfigPath returns ~/.config/ledupdater/config.toml, or "" when the
// home directory is unknown.
func DefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config", "ledupdater", "config.toml")
}

// DetectConfigPath returns the default config path if a file exists there,
// or empty string if none exists (caller should use defaults).
func DetectConfigPath() string {
	configPath := DefaultConfigPath()
	if configPath == "" {
		return ""
	}
	if _, err := os.Stat(configPath); err == nil {
		return configPath
	}
	return ""
}

// Load loads a config from the specified path.
// After loading, applies environment variable overrides and validates.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &lerrors.ConfigError{Path: path, Err: lerrors.ErrNotFound}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &lerrors.ConfigError{Path: path, Err: lerrors.E("read", lerrors.ErrIO, "", err)}
	}

	cfg := DefaultConfig()

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, &lerrors.ConfigError{Path: path, Err: lerrors.E("parse", lerrors.ErrInvalid, "", err)}
	}

	applyEnvOverrides(cfg)
	expandPaths(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, &lerrors.ConfigError{Path: path, Err: lerrors.E("validate", lerrors.ErrInvalid, "", err)}
	}

	return cfg, nil
}

// LoadWithDefaults loads path, or the detected config file when path is
// empty. With no file at all the defaults plus env overrides are returned.
func LoadWithDefaults(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}

	configPath := DetectConfigPath()
	if configPath == "" {
		cfg := DefaultConfig()
		applyEnvOverrides(cfg)
		expandPaths(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, &lerrors.ConfigError{Err: lerrors.E("validate", lerrors.ErrInvalid, "", err)}
		}
		return cfg, nil
	}

	return Load(configPath)
}

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables follow the pattern: LEDUPDATER_<SECTION>_<FIELD>
//
// Examples:
// - LEDUPDATER_FLASH_PORT overrides [flash].port
// - LEDUPDATER_PATHS_WORK_DIR overrides [paths].work_dir
// - LEDUPDATER_LOG_LEVEL overrides [log].level
func applyEnvOverrides(c *Config) {
	applyString := func(key string, target *string) {
		if val, ok := os.LookupEnv(EnvPrefix + key); ok && val != "" {
			*target = val
		}
	}

	applyBool := func(key string, target *bool) {
		if val, ok := os.LookupEnv(EnvPrefix + key); ok && val != "" {
			switch strings.ToLower(val) {
			case "true", "1", "yes", "on":
				*target = true
			case "false", "0", "no", "off":
				*target = false
			}
		}
	}

	applyInt := func(key string, target *int) {
		if val, ok := os.LookupEnv(EnvPrefix + key); ok && val != "" {
			var i int
			if _, err := fmt.Sscanf(val, "%d", &i); err == nil {
				*target = i
			}
		}
	}

	// Firmware section
	applyString("FIRMWARE_API_URL", &c.Firmware.APIURL)
	applyString("FIRMWARE_REPO", &c.Firmware.Repo)
	applyString("FIRMWARE_EXTENSION", &c.Firmware.Extension)

	// Tools section
	applyString("TOOLS_REPO", &c.Tools.Repo)
	applyString("TOOLS_VERSION", &c.Tools.Version)
	applyString("TOOLS_AVRDUDE_ARCHIVE", &c.Tools.AvrdudeArchive)
	applyString("TOOLS_AVRDUDE_DIR", &c.Tools.AvrdudeDir)
	applyString("TOOLS_AVRDUDE_PATH", &c.Tools.AvrdudePath)

	// Driver section
	applyString("DRIVER_ARCHIVE", &c.Driver.Archive)
	applyString("DRIVER_DIR", &c.Driver.Dir)
	applyString("DRIVER_EXECUTABLE", &c.Driver.Executable)

	// Flash section
	applyString("FLASH_PROGRAMMER", &c.Flash.Programmer)
	applyString("FLASH_PART", &c.Flash.Part)
	applyInt("FLASH_BAUD", &c.Flash.Baud)
	applyString("FLASH_PORT", &c.Flash.Port)
	applyBool("FLASH_NO_ERASE", &c.Flash.NoErase)
	applyBool("FLASH_VERBOSE", &c.Flash.Verbose)
	applyBool("FLASH_AUTO_BAUD", &c.Flash.AutoBaud)

	applyString("PATHS_WORK_DIR", &c.Paths.WorkDir)

	applyInt("HTTP_TIMEOUT_SECONDS", &c.HTTP.TimeoutSeconds)
	applyString("HTTP_USER_AGENT", &c.HTTP.UserAgent)

	applyString("LOG_LEVEL", &c.Log.Level)
	applyString("LOG_FORMAT", &c.Log.Format)

	applyString("UPDATE_REPOSITORY", &c.Update.Repository)
	applyBool("UPDATE_PRERELEASE", &c.Update.Prerelease)

	applyBool("TUI_ENABLED", &c.TUI.Enabled)
}

// expandPaths expands ~ to the home directory in filesystem paths.
func expandPaths(c *Config) {
	c.Paths.WorkDir = expandHome(c.Paths.WorkDir)
	c.Tools.AvrdudePath = expandHome(c.Tools.AvrdudePath)
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") && p != "~" {
		return p
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return homeDir
	}
	return filepath.Join(homeDir, strings.TrimPrefix(p, "~/"))
}
