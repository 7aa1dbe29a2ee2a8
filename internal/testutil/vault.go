package testutil

import (
	"dosekeeper/internal/backup"
	"dosekeeper/internal/vault"
)

// NewTestVault creates a new in-memory vault for testing.
func NewTestVault() *vault.MemoryVault {
	return vault.NewMemoryVault("test-vault")
}

var _ backup.Vault = (*vault.MemoryVault)(nil)
