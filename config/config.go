// Package config loads the suite's YAML configuration file. Every adapter
// reads its connection target and credentials from here; a missing required
// section is a fatal startup error, never a partial run.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingSection wraps the name of a required section absent from the file.
var ErrMissingSection = errors.New("config: missing required section")

// Database configures the PostgreSQL adapter.
type Database struct {
	DSN       string `mapstructure:"dsn"`
	BackupDir string `mapstructure:"backup_dir"`
}

// Directory configures the LDAP adapter.
type Directory struct {
	URL          string `mapstructure:"url"`
	BindDN       string `mapstructure:"bind_dn"`
	BindPassword string `mapstructure:"bind_password"`
	BaseDN       string `mapstructure:"base_dn"`
	QuarantineOU string `mapstructure:"quarantine_ou"`
}

// Filestore configures the file-share adapter.
type Filestore struct {
	Root      string `mapstructure:"root"`
	BackupDir string `mapstructure:"backup_dir"`
}

// UMA configures the external deprovisioning API client.
type UMA struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// Logging configures the audit sink.
type Logging struct {
	Dir        string `mapstructure:"dir"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Reports configures where run reports are persisted.
type Reports struct {
	Dir string `mapstructure:"dir"`
}

// Backup holds run-wide backup policy.
type Backup struct {
	// Blocking gates the mutation on a successful backup. The historical
	// default is best-effort: log the failure and proceed.
	Blocking bool `mapstructure:"blocking"`
}

// Notify configures the optional completion email. An empty Host disables it.
type Notify struct {
	Host       string   `mapstructure:"host"`
	Port       int      `mapstructure:"port"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SenderName string   `mapstructure:"sender_name"`
	Sender     string   `mapstructure:"sender"`
	Recipients []string `mapstructure:"recipients"`
}

// Config is the root of the configuration file.
type Config struct {
	Database  Database  `mapstructure:"database"`
	Directory Directory `mapstructure:"directory"`
	Filestore Filestore `mapstructure:"filestore"`
	UMA       UMA       `mapstructure:"uma"`
	Logging   Logging   `mapstructure:"logging"`
	Reports   Reports   `mapstructure:"reports"`
	Backup    Backup    `mapstructure:"backup"`
	Notify    Notify    `mapstructure:"notify"`
}

var requiredSections = []string{"database", "directory", "filestore", "uma", "logging", "reports"}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("uma.request_timeout", 30*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("notify.port", 587)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	// InConfig consults only the file, so the defaults set above cannot
	// mask an absent section.
	for _, section := range requiredSections {
		if !v.InConfig(section) {
			return nil, fmt.Errorf("%w: %s", ErrMissingSection, section)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("config: database.dsn is required")
	}
	if cfg.UMA.BaseURL == "" {
		return nil, fmt.Errorf("config: uma.base_url is required")
	}
	if cfg.Filestore.Root == "" {
		return nil, fmt.Errorf("config: filestore.root is required")
	}
	if cfg.Directory.URL == "" {
		return nil, fmt.Errorf("config: directory.url is required")
	}

	return &cfg, nil
}
