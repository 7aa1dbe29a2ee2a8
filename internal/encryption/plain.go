package encryption

import (
	"bytes"
	"fmt"
	"io"

	"dosekeeper/internal/backup"
)

var plainHeader = []byte("DKPLAIN1")

// PlainEncryptor frames data with a fixed header and no cryptography. It is
// selected with encryption type "test" and keeps backup tests free of key
// management.
type PlainEncryptor struct {
	configured bool
	passphrase string
}

var _ backup.Encryptor = (*PlainEncryptor)(nil)

// NewPlainEncryptor returns a PlainEncryptor that is already configured.
func NewPlainEncryptor() *PlainEncryptor {
	return &PlainEncryptor{configured: true}
}

// Setup records passphrase; Unlock then requires it.
func (e *PlainEncryptor) Setup(passphrase string) error {
	e.configured = true
	e.passphrase = passphrase
	return nil
}

func (e *PlainEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(plainHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *PlainEncryptor) Unlock(passphrase string) (backup.DecryptionContext, error) {
	if e.passphrase != "" && passphrase != e.passphrase {
		return nil, ErrWrongPassphrase
	}
	return plainDecryption{}, nil
}

func (e *PlainEncryptor) IsConfigured() bool {
	return e.configured
}

type plainDecryption struct{}

func (plainDecryption) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(plainHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	if !bytes.Equal(header, plainHeader) {
		return fmt.Errorf("invalid header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
