package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewAppliesDefaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := New(dir)
	if err != nil {
		t.Fatalf("new config: %v", err)
	}
	if cfg.DBPath != filepath.Join(dir, ".qc", "qc.db") {
		t.Fatalf("unexpected db path %s", cfg.DBPath)
	}
	if cfg.AutosaveDelay != defaultAutosaveDelay {
		t.Fatalf("expected default autosave delay, got %s", cfg.AutosaveDelay)
	}
	if err := cfg.ValidateIdentity(); err == nil {
		t.Fatalf("expected identity validation to fail without couple/user")
	}
}

func TestNewReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".qc"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	body := "couple_id: couple-1\nuser_id: user-a\nautosave_delay: 250ms\nsummary_dir: recaps\n"
	if err := os.WriteFile(filepath.Join(dir, ".qc", "config.yaml"), []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := New(dir)
	if err != nil {
		t.Fatalf("new config: %v", err)
	}
	if cfg.CoupleID != "couple-1" || cfg.UserID != "user-a" {
		t.Fatalf("identity not loaded: %+v", cfg)
	}
	if cfg.AutosaveDelay != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %s", cfg.AutosaveDelay)
	}
	if cfg.SummaryDir != filepath.Join(dir, "recaps") {
		t.Fatalf("expected relative summary dir resolved, got %s", cfg.SummaryDir)
	}
	if err := cfg.ValidateIdentity(); err != nil {
		t.Fatalf("identity should validate: %v", err)
	}
}

func TestSaveRoundTripsIdentity(t *testing.T) {
	dir := t.TempDir()
	cfg, err := New(dir)
	if err != nil {
		t.Fatalf("new config: %v", err)
	}
	cfg.CoupleID = "couple-9"
	cfg.UserID = "user-z"
	if err := cfg.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := New(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.CoupleID != "couple-9" || loaded.UserID != "user-z" {
		t.Fatalf("expected saved identity, got %+v", loaded)
	}
}

func TestNewRejectsEmptyDir(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatalf("expected error for empty data dir")
	}
}
