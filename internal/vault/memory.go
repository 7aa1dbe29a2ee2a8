package vault

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"dosekeeper/internal/backup"
)

type memorySnapshot struct {
	data    []byte
	version int64
}

// MemoryVault keeps snapshots in memory. It is safe for concurrent use.
type MemoryVault struct {
	name string

	mu        sync.RWMutex
	snapshots map[string]memorySnapshot // hostID -> snapshot
}

// NewMemoryVault creates an empty in-memory vault.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:      name,
		snapshots: make(map[string]memorySnapshot),
	}
}

func (m *MemoryVault) Name() string { return m.name }

func (m *MemoryVault) PutSnapshot(ctx context.Context, hostID string, r io.Reader, size int64, version int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[hostID] = memorySnapshot{data: data, version: version}
	return nil
}

func (m *MemoryVault) GetSnapshot(ctx context.Context, hostID string, w io.Writer) error {
	m.mu.RLock()
	snap, ok := m.snapshots[hostID]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("snapshot not found for host: %s", hostID)
	}
	if _, err := io.Copy(w, bytes.NewReader(snap.data)); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

func (m *MemoryVault) SnapshotVersion(ctx context.Context, hostID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshots[hostID].version, nil
}

// ValidateSetup always succeeds for the in-memory vault.
func (m *MemoryVault) ValidateSetup(ctx context.Context) error {
	return nil
}

var _ backup.Vault = (*MemoryVault)(nil)
