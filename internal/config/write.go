package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	lerrors "github.com/chazuruo/ledupdater/internal/errors"
)

// Write writes the config to a file in TOML format.
func Write(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &lerrors.ConfigError{Path: path, Err: lerrors.E("create directory", lerrors.ErrIO, "", err)}
	}

	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return &lerrors.ConfigError{Path: path, Err: lerrors.E("encode", lerrors.ErrInvalid, "", err)}
	}

	if err := os.WriteFile(path, []byte(buf.String()), 0644); err != nil {
		return &lerrors.ConfigError{Path: path, Err: lerrors.E("write", lerrors.ErrIO, "", err)}
	}

	return nil
}
