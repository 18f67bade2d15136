package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultAutosaveDelay = 1500 * time.Millisecond
	fileName             = "config.yaml"
)

type Config struct {
	DataDir       string
	DBPath        string
	CachePath     string
	SummaryDir    string
	CoupleID      string
	UserID        string
	RedisURL      string
	AutosaveDelay time.Duration
	LogLevel      string
	Environment   string
}

// fileConfig mirrors the optional <data>/.qc/config.yaml.
type fileConfig struct {
	CoupleID      string `yaml:"couple_id"`
	UserID        string `yaml:"user_id"`
	RedisURL      string `yaml:"redis_url"`
	AutosaveDelay string `yaml:"autosave_delay"`
	LogLevel      string `yaml:"log_level"`
	Environment   string `yaml:"environment"`
	SummaryDir    string `yaml:"summary_dir"`
}

func New(dataDir string) (Config, error) {
	if dataDir == "" {
		return Config{}, fmt.Errorf("data dir is required")
	}
	root := filepath.Join(dataDir, ".qc")
	cfg := Config{
		DataDir:       dataDir,
		DBPath:        filepath.Join(root, "qc.db"),
		CachePath:     filepath.Join(root, "active-session.json"),
		SummaryDir:    filepath.Join(dataDir, "check-ins"),
		AutosaveDelay: defaultAutosaveDelay,
		LogLevel:      "info",
	}
	if err := cfg.loadFile(filepath.Join(root, fileName)); err != nil {
		return Config{}, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	file := fileConfig{}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if file.AutosaveDelay != "" {
		delay, err := time.ParseDuration(file.AutosaveDelay)
		if err != nil {
			return fmt.Errorf("parse autosave_delay: %w", err)
		}
		c.AutosaveDelay = delay
	}
	setIfNotEmpty(&c.CoupleID, file.CoupleID)
	setIfNotEmpty(&c.UserID, file.UserID)
	setIfNotEmpty(&c.RedisURL, file.RedisURL)
	setIfNotEmpty(&c.LogLevel, file.LogLevel)
	setIfNotEmpty(&c.Environment, file.Environment)
	if file.SummaryDir != "" {
		c.SummaryDir = file.SummaryDir
		if !filepath.IsAbs(c.SummaryDir) {
			c.SummaryDir = filepath.Join(c.DataDir, c.SummaryDir)
		}
	}
	return nil
}

func (c *Config) applyEnv() {
	setIfNotEmpty(&c.CoupleID, os.Getenv("QC_COUPLE_ID"))
	setIfNotEmpty(&c.UserID, os.Getenv("QC_USER_ID"))
	setIfNotEmpty(&c.RedisURL, os.Getenv("QC_REDIS_URL"))
	setIfNotEmpty(&c.LogLevel, os.Getenv("QC_LOG_LEVEL"))
	setIfNotEmpty(&c.Environment, os.Getenv("ENVIRONMENT"))
	if raw := os.Getenv("QC_AUTOSAVE_DELAY"); raw != "" {
		if delay, err := time.ParseDuration(raw); err == nil {
			c.AutosaveDelay = delay
		}
	}
}

// Save writes the identity and transport fields back to config.yaml.
func (c Config) Save() error {
	path := filepath.Join(c.DataDir, ".qc", fileName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	payload, err := yaml.Marshal(fileConfig{
		CoupleID:      c.CoupleID,
		UserID:        c.UserID,
		RedisURL:      c.RedisURL,
		AutosaveDelay: c.AutosaveDelay.String(),
		LogLevel:      c.LogLevel,
		Environment:   c.Environment,
	})
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c Config) ValidateIdentity() error {
	if strings.TrimSpace(c.CoupleID) == "" {
		return fmt.Errorf("couple id is required (set --couple or couple_id in config.yaml)")
	}
	if strings.TrimSpace(c.UserID) == "" {
		return fmt.Errorf("user id is required (set --user or user_id in config.yaml)")
	}
	return nil
}

func setIfNotEmpty(dst *string, value string) {
	if strings.TrimSpace(value) != "" {
		*dst = strings.TrimSpace(value)
	}
}
