// Package config provides configuration management for ledupdater.
//
// The configuration is stored in TOML format and supports validation
// and default values for all fields.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// Placeholder is the layout name shown for a release without firmware assets.
const Placeholder = "-- No files found --"

// Config is the top-level configuration struct for ledupdater.
type Config struct {
	Firmware FirmwareConfig `toml:"firmware"`
	Tools    ToolsConfig    `toml:"tools"`
	Driver   DriverConfig   `toml:"driver"`
	Flash    FlashConfig    `toml:"flash"`
	Paths    PathsConfig    `toml:"paths"`
	HTTP     HTTPConfig     `toml:"http"`
	Log      LogConfig      `toml:"log"`
	Update   UpdateConfig   `toml:"update"`
	TUI      TUIConfig      `toml:"tui"`
}

// FirmwareConfig describes where firmware releases come from.
type FirmwareConfig struct {
	// APIURL is the GitHub releases API endpoint listing firmware releases.
	APIURL string `toml:"api_url"`

	// Repo is the firmware repository web URL used to build download links.
	Repo string `toml:"repo"`

	// Extension is the asset suffix that marks a flashable layout.
	Extension string `toml:"extension"`
}

// ToolsConfig describes the avrdude bundle.
type ToolsConfig struct {
	// Repo is the repository hosting the helper tool archives.
	Repo string `toml:"repo"`

	// Version is the release tag the tool archives are downloaded from.
	Version string `toml:"version"`

	// AvrdudeArchive is the archive file name containing avrdude.
	AvrdudeArchive string `toml:"avrdude_archive"`

	// AvrdudeDir is the directory name avrdude is unpacked into.
	AvrdudeDir string `toml:"avrdude_dir"`

	// AvrdudePath is an explicit avrdude binary. When set, nothing is downloaded.
	AvrdudePath string `toml:"avrdude_path"`
}

// DriverConfig describes the CH340 driver package.
type DriverConfig struct {
	// Archive is the driver archive file name.
	Archive string `toml:"archive"`

	// Dir is the directory name the driver archive is unpacked into.
	Dir string `toml:"dir"`

	// Executable is the installer inside Dir.
	Executable string `toml:"executable"`
}

// FlashConfig contains avrdude invocation settings.
type FlashConfig struct {
	// Programmer is the avrdude programmer id (-c).
	Programmer string `toml:"programmer"`

	// Part is the avrdude part id (-p).
	Part string `toml:"part"`

	// Baud is the serial speed (-b).
	Baud int `toml:"baud"`

	// Port is the serial port (-P). Empty lets avrdude pick its default.
	Port string `toml:"port"`

	// NoErase disables the chip erase before writing (-D).
	NoErase bool `toml:"no_erase"`

	// Verbose passes -v to avrdude.
	Verbose bool `toml:"verbose"`

	// AutoBaud probes the bootloader for its baud rate before flashing.
	AutoBaud bool `toml:"auto_baud"`
}

// PathsConfig contains filesystem locations.
type PathsConfig struct {
	// WorkDir holds downloaded hex files and unpacked tools.
	WorkDir string `toml:"work_dir"`
}

// HTTPConfig contains HTTP client settings.
type HTTPConfig struct {
	// TimeoutSeconds bounds each request. Zero means no timeout.
	TimeoutSeconds int `toml:"timeout_seconds"`

	// UserAgent is sent with every request.
	UserAgent string `toml:"user_agent"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is the logrus level name.
	// Valid values: "panic", "fatal", "error", "warn", "info", "debug", "trace".
	Level string `toml:"level"`

	// Format selects the log formatter.
	// Valid values: "text", "json".
	Format string `toml:"format"`
}

// UpdateConfig contains self update settings.
type UpdateConfig struct {
	// Repository is the owner/name slug publishing ledupdater_{os}_{arch}
	// archives.
	Repository string `toml:"repository"`

	// Prerelease allows updating to prereleases.
	Prerelease bool `toml:"prerelease"`
}

// TUIConfig contains terminal UI settings.
type TUIConfig struct {
	// Enabled controls whether running without a subcommand opens the TUI.
	Enabled bool `toml:"enabled"`
}

// DefaultConfig returns a Config with all default values set.
func DefaultConfig() *Config {
	return &Config{
		Firmware: FirmwareConfig{
			APIURL:    "https://api.github.com/repos/wingnut-tech/FT-Night-Radian-LED-Controller/releases",
			Repo:      "https://github.com/wingnut-tech/FT-Night-Radian-LED-Controller",
			Extension: ".hex",
		},
		Tools: ToolsConfig{
			Repo:           "https://github.com/reyemxela/LEDControllerUpdater",
			Version:        "v1.0.0",
			AvrdudeArchive: "avrdude.zip",
			AvrdudeDir:     "avrdude",
		},
		Driver: DriverConfig{
			Archive:    "CH34x_Install_Windows_v3_4.zip",
			Dir:        "CH34x_Install_Windows_v3_4",
			Executable: "CH34x_Install_Windows_v3_4.EXE",
		},
		Flash: FlashConfig{
			Programmer: "arduino",
			Part:       "atmega328p",
			Baud:       115200,
			NoErase:    true,
			Verbose:    true,
		},
		Paths: PathsConfig{
			WorkDir: filepath.Join(os.TempDir(), "LEDControllerUpdater"),
		},
		HTTP: HTTPConfig{
			TimeoutSeconds: 60,
			UserAgent:      "ledupdater",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Update: UpdateConfig{
			Repository: "chazuruo/ledupdater",
		},
		TUI: TUIConfig{
			Enabled: true,
		},
	}
}

// Validate checks the configuration for valid values.
// Returns a nil error if the config is valid, or an error describing the problem.
func (c *Config) Validate() error {
	// Firmware section
	if err := validURL("firmware.api_url", c.Firmware.APIURL); err != nil {
		return err
	}
	if err := validURL("firmware.repo", c.Firmware.Repo); err != nil {
		return err
	}
	if c.Firmware.Extension == "" {
		return fmt.Errorf("firmware.extension cannot be empty")
	}
	if !strings.HasPrefix(c.Firmware.Extension, ".") {
		return fmt.Errorf("firmware.extension must start with '.'; got %q", c.Firmware.Extension)
	}

	// Tools section
	if c.Tools.AvrdudePath == "" {
		if err := validURL("tools.repo", c.Tools.Repo); err != nil {
			return err
		}
		if c.Tools.Version == "" {
			return fmt.Errorf("tools.version cannot be empty")
		}
		if c.Tools.AvrdudeArchive == "" {
			return fmt.Errorf("tools.avrdude_archive cannot be empty")
		}
	}
	if c.Tools.AvrdudeDir == "" {
		return fmt.Errorf("tools.avrdude_dir cannot be empty")
	}
	if strings.Contains(c.Tools.AvrdudeDir, "..") {
		return fmt.Errorf("tools.avrdude_dir cannot contain '..': %q", c.Tools.AvrdudeDir)
	}

	// Driver section
	if c.Driver.Archive == "" {
		return fmt.Errorf("driver.archive cannot be empty")
	}
	if c.Driver.Executable == "" {
		return fmt.Errorf("driver.executable cannot be empty")
	}
	if strings.Contains(c.Driver.Dir, "..") {
		return fmt.Errorf("driver.dir cannot contain '..': %q", c.Driver.Dir)
	}

	// Flash section
	if c.Flash.Programmer == "" {
		return fmt.Errorf("flash.programmer cannot be empty")
	}
	if c.Flash.Part == "" {
		return fmt.Errorf("flash.part cannot be empty")
	}
	if c.Flash.Baud <= 0 {
		return fmt.Errorf("flash.baud must be > 0; got %d", c.Flash.Baud)
	}

	if c.Paths.WorkDir == "" {
		return fmt.Errorf("paths.work_dir cannot be empty")
	}

	if c.HTTP.TimeoutSeconds < 0 {
		return fmt.Errorf("http.timeout_seconds must be >= 0; got %d", c.HTTP.TimeoutSeconds)
	}

	// Log section
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level must be one of: panic, fatal, error, warn, info, debug, trace; got %q", c.Log.Level)
	}
	validFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("log.format must be one of: text, json; got %q", c.Log.Format)
	}

	if c.Update.Repository != "" && strings.Count(c.Update.Repository, "/") != 1 {
		return fmt.Errorf("update.repository must be owner/name; got %q", c.Update.Repository)
	}

	return nil
}

// AvrdudeExe returns the avrdude executable name for this platform.
func AvrdudeExe() string {
	if runtime.GOOS == "windows" {
		return "avrdude.exe"
	}
	return "avrdude"
}

func validURL(key, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s cannot be empty", key)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%s must be an http(s) URL; got %q", key, raw)
	}
	return nil
}
