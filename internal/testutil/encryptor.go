package testutil

import (
	"dosekeeper/internal/encryption"
)

// NewTestEncryptor creates an encryptor that frames data without real
// cryptography.
func NewTestEncryptor() *encryption.PlainEncryptor {
	return encryption.NewPlainEncryptor()
}
