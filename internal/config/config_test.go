package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := &Config{
		AccountID:  "wxid_me",
		StorePath:  "/data/chat.db",
		DecryptKey: "00ff",
		Export:     ExportDefaults{Format: "html", Concurrency: 3},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.AccountID != "wxid_me" {
		t.Errorf("AccountID = %q, want wxid_me", loaded.AccountID)
	}
	if loaded.Export.Format != "html" || loaded.Export.Concurrency != 3 {
		t.Errorf("Export = %+v", loaded.Export)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	cfg, err := Load(filepath.Join(tmpDir, "config.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CacheDir != filepath.Join(tmpDir, "cache") {
		t.Errorf("CacheDir = %q", cfg.CacheDir)
	}
	if cfg.LogPath != filepath.Join(tmpDir, "wxport.log") {
		t.Errorf("LogPath = %q", cfg.LogPath)
	}
	if cfg.Export.Format != "txt" {
		t.Errorf("Format = %q, want txt", cfg.Export.Format)
	}
}

func TestEnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")
	if err := Save(path, &Config{AccountID: "from_file"}); err != nil {
		t.Fatal(err)
	}

	t.Setenv("WXPORT_ACCOUNT_ID", "from_env")
	t.Setenv("WXPORT_EXPORT_CONCURRENCY", "5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AccountID != "from_env" {
		t.Errorf("AccountID = %q, want from_env", cfg.AccountID)
	}
	if cfg.Export.Concurrency != 5 {
		t.Errorf("Concurrency = %d, want 5", cfg.Export.Concurrency)
	}
}

func TestValidate(t *testing.T) {
	full := Config{AccountID: "a", StorePath: "b", DecryptKey: "c"}
	if err := full.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"account_id", func(c *Config) { c.AccountID = "" }},
		{"store_path", func(c *Config) { c.StorePath = "" }},
		{"decrypt_key", func(c *Config) { c.DecryptKey = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := full
			tt.mod(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrMissing) {
				t.Errorf("Validate() = %v, want ErrMissing", err)
			}
		})
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, &Config{AccountID: "main"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
