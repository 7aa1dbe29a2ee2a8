// Package backup copies the dose database off the machine: a consistent
// SQLite snapshot, encrypted with age, stored in one or more vaults.
package backup

import (
	"context"
	"errors"
	"io"
)

// ErrNoBackup is returned by Restore when the vault holds no snapshot for the host.
var ErrNoBackup = errors.New("no backup found")

// Vault stores one encrypted database snapshot per host.
type Vault interface {
	// Name identifies the vault in config and logs.
	Name() string

	// PutSnapshot replaces the host's snapshot. size is the number of bytes
	// that will be read from r.
	PutSnapshot(ctx context.Context, hostID string, r io.Reader, size int64, version int64) error

	// GetSnapshot writes the host's snapshot to w.
	GetSnapshot(ctx context.Context, hostID string, w io.Writer) error

	// SnapshotVersion returns the version stored with the host's snapshot,
	// or 0 when there is none.
	SnapshotVersion(ctx context.Context, hostID string) (int64, error)

	// ValidateSetup verifies that the vault is reachable and writable.
	ValidateSetup(ctx context.Context) error
}

// Encryptor encrypts snapshots with a public key and unlocks the private key
// with a passphrase for restores.
type Encryptor interface {
	// Setup generates a key pair, storing the private key protected by passphrase.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock returns a DecryptionContext, or an error for a wrong passphrase.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether a key pair exists.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}

// Snapshotter writes a consistent copy of the live database to a new file.
type Snapshotter interface {
	BackupTo(destPath string) error
}
