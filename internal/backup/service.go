package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"dosekeeper/internal/dose"
)

// Service takes and restores encrypted database backups.
type Service struct {
	db        Snapshotter
	encryptor Encryptor
	vaults    []Vault
	logger    dose.Logger
	clock     dose.Clock
}

// NewService creates a backup Service. Backups go to every vault.
func NewService(db Snapshotter, encryptor Encryptor, vaults []Vault, logger dose.Logger, clock dose.Clock) *Service {
	return &Service{
		db:        db,
		encryptor: encryptor,
		vaults:    vaults,
		logger:    logger,
		clock:     clock,
	}
}

// Result describes a finished backup.
type Result struct {
	Version int64
	Size    int64 // encrypted bytes
	Vaults  []string
}

// Init creates the key pair used for backups.
func (s *Service) Init(passphrase string) error {
	if s.encryptor.IsConfigured() {
		return fmt.Errorf("backup keys already exist")
	}
	if passphrase == "" {
		return fmt.Errorf("passphrase must not be empty")
	}
	if err := s.encryptor.Setup(passphrase); err != nil {
		return fmt.Errorf("setting up encryption: %w", err)
	}
	s.logger.Info("backup keys created")
	return nil
}

// Backup snapshots the database, encrypts the snapshot and uploads it to every
// vault. The version is the current unix time in seconds.
func (s *Service) Backup(ctx context.Context, hostID string) (*Result, error) {
	if len(s.vaults) == 0 {
		return nil, fmt.Errorf("no vaults configured")
	}
	if !s.encryptor.IsConfigured() {
		return nil, fmt.Errorf("backup keys not found (run backup init)")
	}

	tmpDir, err := os.MkdirTemp("", "dosekeeper-backup-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	// VACUUM INTO needs a path that does not exist yet.
	plainPath := filepath.Join(tmpDir, "snapshot.db")
	if err := s.db.BackupTo(plainPath); err != nil {
		return nil, fmt.Errorf("snapshotting database: %w", err)
	}

	encPath := filepath.Join(tmpDir, "snapshot.db.age")
	if err := s.encryptFile(plainPath, encPath); err != nil {
		return nil, err
	}

	info, err := os.Stat(encPath)
	if err != nil {
		return nil, fmt.Errorf("stat encrypted snapshot: %w", err)
	}

	result := &Result{Version: s.clock.Now().Unix(), Size: info.Size()}
	for _, v := range s.vaults {
		if err := s.upload(ctx, v, hostID, encPath, result); err != nil {
			return nil, fmt.Errorf("uploading to vault %s: %w", v.Name(), err)
		}
		result.Vaults = append(result.Vaults, v.Name())
		s.logger.Info("backup uploaded", "vault", v.Name(), "version", result.Version, "size", result.Size)
	}
	return result, nil
}

func (s *Service) encryptFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("creating encrypted snapshot: %w", err)
	}
	if err := s.encryptor.Encrypt(in, out); err != nil {
		out.Close()
		return fmt.Errorf("encrypting snapshot: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing encrypted snapshot: %w", err)
	}
	return nil
}

func (s *Service) upload(ctx context.Context, v Vault, hostID, path string, result *Result) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening encrypted snapshot: %w", err)
	}
	defer f.Close()
	return v.PutSnapshot(ctx, hostID, f, result.Size, result.Version)
}

// Restore downloads the host's latest snapshot from the named vault (the
// first vault when name is empty), decrypts it with passphrase and writes it
// to dest. dest must not exist. It returns the restored version.
func (s *Service) Restore(ctx context.Context, hostID, vaultName, passphrase, dest string) (int64, error) {
	v, err := s.vault(vaultName)
	if err != nil {
		return 0, err
	}

	if _, err := os.Stat(dest); err == nil {
		return 0, fmt.Errorf("refusing to overwrite existing file %s", dest)
	}

	version, err := v.SnapshotVersion(ctx, hostID)
	if err != nil {
		return 0, fmt.Errorf("reading backup version: %w", err)
	}
	if version == 0 {
		return 0, fmt.Errorf("vault %s, host %s: %w", v.Name(), hostID, ErrNoBackup)
	}

	dc, err := s.encryptor.Unlock(passphrase)
	if err != nil {
		return 0, fmt.Errorf("unlocking private key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0700); err != nil {
		return 0, fmt.Errorf("creating restore directory: %w", err)
	}

	tmpDir, err := os.MkdirTemp(filepath.Dir(dest), ".restore-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	encPath := filepath.Join(tmpDir, "snapshot.db.age")
	if err := download(ctx, v, hostID, encPath); err != nil {
		return 0, err
	}

	plainPath := filepath.Join(tmpDir, "snapshot.db")
	if err := decryptFile(dc, encPath, plainPath); err != nil {
		return 0, err
	}

	if err := os.Rename(plainPath, dest); err != nil {
		return 0, fmt.Errorf("moving restored database into place: %w", err)
	}

	s.logger.Info("backup restored", "vault", v.Name(), "version", version, "dest", dest)
	return version, nil
}

func (s *Service) vault(name string) (Vault, error) {
	if len(s.vaults) == 0 {
		return nil, fmt.Errorf("no vaults configured")
	}
	if name == "" {
		return s.vaults[0], nil
	}
	for _, v := range s.vaults {
		if v.Name() == name {
			return v, nil
		}
	}
	return nil, fmt.Errorf("unknown vault %q", name)
}

func download(ctx context.Context, v Vault, hostID, path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("creating download file: %w", err)
	}
	if err := v.GetSnapshot(ctx, hostID, f); err != nil {
		f.Close()
		return fmt.Errorf("downloading snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing download file: %w", err)
	}
	return nil
}

func decryptFile(dc DecryptionContext, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening downloaded snapshot: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("creating restored database: %w", err)
	}
	if err := dc.Decrypt(in, out); err != nil {
		out.Close()
		return fmt.Errorf("decrypting snapshot: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing restored database: %w", err)
	}
	return nil
}
