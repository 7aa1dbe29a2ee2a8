package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for dosekeeper.
type Config struct {
	HostID   string `toml:"host_id"`
	BaseDir  string `toml:"base_dir"`
	LogDir   string `toml:"log_dir"`
	LogLevel string `toml:"log_level"` // "debug", "info" (default), "warn" or "error"
	Timezone string `toml:"timezone"`  // IANA name; empty means the system zone
	Profile  string `toml:"profile"`   // profile used when none is given on the command line

	Database   DatabaseConfig   `toml:"database"`
	Reminders  ReminderConfig   `toml:"reminders"`
	Notifier   NotifierConfig   `toml:"notifier"`
	Encryption EncryptionConfig `toml:"encryption"`
	Vaults     []VaultConfig    `toml:"vaults"`
}

// DatabaseConfig represents configuration for the medication database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	Driver  string `toml:"driver,omitempty"`   // "sqlite3" (cgo, default) or "sqlite" (pure Go)
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// ReminderConfig tunes the reminder loop.
type ReminderConfig struct {
	TickSeconds   int `toml:"tick_seconds"`
	SnoozeMinutes int `toml:"snooze_minutes"`
	LeadSeconds   int `toml:"lead_seconds"`
}

const (
	defaultTick   = 15 * time.Second
	defaultSnooze = 10 * time.Minute
	defaultLead   = time.Second
)

// Tick is the polling interval of the reminder loop.
func (r ReminderConfig) Tick() time.Duration {
	if r.TickSeconds <= 0 {
		return defaultTick
	}
	return time.Duration(r.TickSeconds) * time.Second
}

// Snooze is how far a snoozed reminder is pushed back.
func (r ReminderConfig) Snooze() time.Duration {
	if r.SnoozeMinutes <= 0 {
		return defaultSnooze
	}
	return time.Duration(r.SnoozeMinutes) * time.Minute
}

// Lead is the minimum distance between now and a reminder's fire time.
func (r ReminderConfig) Lead() time.Duration {
	if r.LeadSeconds <= 0 {
		return defaultLead
	}
	return time.Duration(r.LeadSeconds) * time.Second
}

// NotifierConfig selects how due reminders are delivered.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type NotifierConfig struct {
	Type string `toml:"type"` // "log" (default) or "telegram"

	// Telegram-specific fields (only used when Type == "telegram")
	TelegramToken  string `toml:"telegram_token,omitempty"`
	TelegramChatID int64  `toml:"telegram_chat_id,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for backups.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// VaultConfig represents configuration for a backup vault.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket string `toml:"s3_bucket,omitempty"`
	S3Prefix string `toml:"s3_prefix,omitempty"`
	S3Region string `toml:"s3_region,omitempty"`
	// S3Endpoint points at an S3-compatible service such as MinIO.
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// NewConfig creates a new Config with the provided values and default paths.
func NewConfig(hostID, baseDir string) *Config {
	return &Config{
		HostID:   hostID,
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		LogLevel: "info",
		Profile:  "default",
		Database: DatabaseConfig{
			Type:    "sqlite",
			Driver:  "sqlite3",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Reminders: ReminderConfig{
			TickSeconds:   int(defaultTick / time.Second),
			SnoozeMinutes: int(defaultSnooze / time.Minute),
			LeadSeconds:   int(defaultLead / time.Second),
		},
		Notifier: NotifierConfig{Type: "log"},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "dosekeeper.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "dosekeeper.key"),
		},
	}
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may carry a bot token.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes a new config file at path. It refuses to overwrite an existing one.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
