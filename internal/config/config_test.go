package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default invalid: %v", err)
	}
	if cfg.PutOffExtension() != 24*time.Hour {
		t.Fatalf("expected 24h default extension, got %v", cfg.PutOffExtension())
	}
	if cfg.Defaults.AgendaAmount != 1 {
		t.Fatalf("expected default amount 1, got %d", cfg.Defaults.AgendaAmount)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Defaults.PutOffExtension != "24h" {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadWorkspaceFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".finiate"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	data := []byte("defaults:\n  put_off_extension: 48h\n  agenda_amount: 3\n")
	if err := os.WriteFile(Path(dir), data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PutOffExtension() != 48*time.Hour || cfg.Defaults.AgendaAmount != 3 {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	if _, err := FromYAML([]byte("defaults:\n  put_off_extension: soon\n")); err == nil {
		t.Fatal("expected error for bad duration")
	}
	if _, err := FromYAML([]byte("defaults:\n  agenda_amount: 9\n")); err == nil {
		t.Fatal("expected error for out-of-range amount")
	}
}
