// Package config holds the on-disk configuration for wxport:
// ~/.wxport/config.toml with WXPORT_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// ErrMissing marks a required configuration field that is absent.
// Callers wrap it with the field name.
var ErrMissing = errors.New("missing required configuration")

// Config represents the global ~/.wxport/config.toml.
type Config struct {
	// AccountID is the account whose chat store is being read, as it
	// appears in the store's directory name.
	AccountID string `toml:"account_id" env:"WXPORT_ACCOUNT_ID"`
	// StorePath points at the decryptable chat database file.
	StorePath string `toml:"store_path" env:"WXPORT_STORE_PATH"`
	// DecryptKey unlocks media blobs; hex-encoded.
	DecryptKey string `toml:"decrypt_key" env:"WXPORT_DECRYPT_KEY"`
	// CacheDir holds the transcript cache database and decrypted
	// media staging files.
	CacheDir string `toml:"cache_dir" env:"WXPORT_CACHE_DIR"`
	LogPath  string `toml:"log_path" env:"WXPORT_LOG_PATH"`

	Export ExportDefaults `toml:"export"`
}

// ExportDefaults seeds per-run export options that the CLI flags can
// override.
type ExportDefaults struct {
	Format      string `toml:"format" env:"WXPORT_EXPORT_FORMAT"`
	OutputDir   string `toml:"output_dir" env:"WXPORT_EXPORT_OUTPUT_DIR"`
	Concurrency int    `toml:"concurrency" env:"WXPORT_EXPORT_CONCURRENCY"`
	Media       bool   `toml:"media" env:"WXPORT_EXPORT_MEDIA"`
	Avatars     bool   `toml:"avatars" env:"WXPORT_EXPORT_AVATARS"`
	VoiceAsText bool   `toml:"voice_as_text" env:"WXPORT_EXPORT_VOICE_AS_TEXT"`
}

// DefaultPath returns ~/.wxport/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".wxport", "config.toml"), nil
}

// Load reads config from the given path and applies environment
// overrides. A missing file is not an error; env-only configuration is
// a supported mode.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults(filepath.Dir(path))
	return &cfg, nil
}

func (c *Config) applyDefaults(baseDir string) {
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(baseDir, "cache")
	}
	if c.LogPath == "" {
		c.LogPath = filepath.Join(baseDir, "wxport.log")
	}
	if c.Export.Format == "" {
		c.Export.Format = "txt"
	}
}

// Validate reports the first missing required field.
func (c *Config) Validate() error {
	switch {
	case c.AccountID == "":
		return fmt.Errorf("account_id: %w", ErrMissing)
	case c.StorePath == "":
		return fmt.Errorf("store_path: %w", ErrMissing)
	case c.DecryptKey == "":
		return fmt.Errorf("decrypt_key: %w", ErrMissing)
	}
	return nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
