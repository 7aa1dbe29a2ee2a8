package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"dosekeeper/internal/backup"
)

// FileSystemVault stores snapshots under a directory, one folder per host:
//
//	<root>/
//	  <hostID>/
//	    dosekeeper.db.age   (encrypted snapshot)
//	    version             (unix seconds of the snapshot)
type FileSystemVault struct {
	name string
	root string
}

const (
	snapshotFile = "dosekeeper.db.age"
	versionFile  = "version"
)

// NewFileSystemVault creates a filesystem vault rooted at root, creating the
// directory if needed.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("failed to create vault root: %w", err)
	}
	return &FileSystemVault{name: name, root: root}, nil
}

func (v *FileSystemVault) Name() string { return v.name }

func (v *FileSystemVault) hostDir(hostID string) string {
	return filepath.Join(v.root, hostID)
}

// PutSnapshot writes the snapshot first and the version last, so a reader
// never sees a version for a half-written snapshot.
func (v *FileSystemVault) PutSnapshot(ctx context.Context, hostID string, r io.Reader, size int64, version int64) error {
	dir := v.hostDir(hostID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create host directory: %w", err)
	}

	if err := atomicWrite(filepath.Join(dir, snapshotFile), r, size); err != nil {
		return err
	}

	data := strconv.FormatInt(version, 10)
	return atomicWrite(filepath.Join(dir, versionFile), strings.NewReader(data), int64(len(data)))
}

func (v *FileSystemVault) GetSnapshot(ctx context.Context, hostID string, w io.Writer) error {
	f, err := os.Open(filepath.Join(v.hostDir(hostID), snapshotFile))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("snapshot not found for host: %s", hostID)
	}
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	return nil
}

func (v *FileSystemVault) SnapshotVersion(ctx context.Context, hostID string) (int64, error) {
	data, err := os.ReadFile(filepath.Join(v.hostDir(hostID), versionFile))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading version file: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup checks that the root is a writable directory.
func (v *FileSystemVault) ValidateSetup(ctx context.Context) error {
	info, err := os.Stat(v.root)
	if err != nil {
		return fmt.Errorf("vault root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault root is not a directory: %s", v.root)
	}

	probe, err := os.CreateTemp(v.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("vault root not writable: %w", err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

// atomicWrite copies r into a temp file next to dest and renames it over dest.
func atomicWrite(dest string, r io.Reader, expectedSize int64) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true
	return nil
}

var _ backup.Vault = (*FileSystemVault)(nil)
