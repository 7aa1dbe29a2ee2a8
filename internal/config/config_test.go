package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		HostID:   "kitchen-laptop",
		BaseDir:  "/home/ana/.local/share/dosekeeper",
		LogDir:   "/home/ana/.local/share/dosekeeper/log",
		LogLevel: "debug",
		Timezone: "Europe/Lisbon",
		Profile:  "ana",
		Database: DatabaseConfig{Type: "sqlite", Driver: "sqlite", DataDir: "/home/ana/.local/share/dosekeeper/db"},
		Reminders: ReminderConfig{
			TickSeconds:   30,
			SnoozeMinutes: 5,
			LeadSeconds:   2,
		},
		Notifier: NotifierConfig{Type: "telegram", TelegramToken: "123:abc", TelegramChatID: -1001},
		Vaults: []VaultConfig{
			{Type: "filesystem", Name: "usb", FSVaultRoot: "/media/usb/dosekeeper"},
			{Type: "s3", Name: "cloud", S3Bucket: "meds", S3Prefix: "ana", S3Region: "eu-west-1"},
		},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.HostID != original.HostID {
		t.Errorf("HostID = %q, want %q", got.HostID, original.HostID)
	}
	if got.Timezone != "Europe/Lisbon" {
		t.Errorf("Timezone = %q, want %q", got.Timezone, "Europe/Lisbon")
	}
	if got.Profile != "ana" {
		t.Errorf("Profile = %q, want %q", got.Profile, "ana")
	}
	if got.Database != original.Database {
		t.Errorf("Database = %+v, want %+v", got.Database, original.Database)
	}
	if got.Reminders != original.Reminders {
		t.Errorf("Reminders = %+v, want %+v", got.Reminders, original.Reminders)
	}
	if got.Notifier != original.Notifier {
		t.Errorf("Notifier = %+v, want %+v", got.Notifier, original.Notifier)
	}
	if len(got.Vaults) != 2 {
		t.Fatalf("len(Vaults) = %d, want 2", len(got.Vaults))
	}
	if got.Vaults[1] != original.Vaults[1] {
		t.Errorf("Vaults[1] = %+v, want %+v", got.Vaults[1], original.Vaults[1])
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("host-1", "/data/dk")

	if cfg.HostID != "host-1" {
		t.Errorf("HostID = %q, want %q", cfg.HostID, "host-1")
	}
	if cfg.LogDir != "/data/dk/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/dk/log")
	}
	if cfg.Database.Type != "sqlite" || cfg.Database.DataDir != "/data/dk/db" {
		t.Errorf("Database = %+v, want sqlite in /data/dk/db", cfg.Database)
	}
	if cfg.Notifier.Type != "log" {
		t.Errorf("Notifier.Type = %q, want %q", cfg.Notifier.Type, "log")
	}
	if cfg.Encryption.PublicKeyPath != "/data/dk/keys/dosekeeper.pub" {
		t.Errorf("Encryption.PublicKeyPath = %q", cfg.Encryption.PublicKeyPath)
	}
	if cfg.Reminders.Snooze() != 10*time.Minute {
		t.Errorf("Reminders.Snooze() = %v, want 10m", cfg.Reminders.Snooze())
	}
}

func TestReminderConfig_Defaults(t *testing.T) {
	var r ReminderConfig

	if got := r.Tick(); got != 15*time.Second {
		t.Errorf("Tick() = %v, want 15s", got)
	}
	if got := r.Snooze(); got != 10*time.Minute {
		t.Errorf("Snooze() = %v, want 10m", got)
	}
	if got := r.Lead(); got != time.Second {
		t.Errorf("Lead() = %v, want 1s", got)
	}

	r = ReminderConfig{TickSeconds: 5, SnoozeMinutes: 3, LeadSeconds: -1}
	if got := r.Tick(); got != 5*time.Second {
		t.Errorf("Tick() = %v, want 5s", got)
	}
	if got := r.Snooze(); got != 3*time.Minute {
		t.Errorf("Snooze() = %v, want 3m", got)
	}
	if got := r.Lead(); got != time.Second {
		t.Errorf("Lead() = %v, want 1s for negative input", got)
	}
}

func TestConfig_Location(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
		wantErr  bool
	}{
		{"empty uses local", "", false},
		{"utc", "UTC", false},
		{"unknown zone", "Mars/Olympus", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Timezone: tt.timezone}
			loc, err := cfg.Location()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Location() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && loc == nil {
				t.Error("Location() returned nil")
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "nested", "dosekeeper.toml")
		cfg := NewConfig("h1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("config file not created: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("config file mode = %o, want 600", perm)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "dosekeeper.toml")
		cfg := NewConfig("h1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
		if !strings.Contains(err.Error(), "already exists") {
			t.Errorf("error = %v, want 'already exists'", err)
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "dosekeeper.toml")
		cfg := NewConfig("read-test", dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.HostID != "read-test" {
			t.Errorf("HostID = %q, want %q", got.HostID, "read-test")
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want %q", got.Database.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/dosekeeper.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})

	t.Run("returns error for malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.toml")
		if err := os.WriteFile(path, []byte("host_id = \n"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := ReadFromFile(path); err == nil {
			t.Fatal("ReadFromFile() expected error for malformed toml")
		}
	})
}
