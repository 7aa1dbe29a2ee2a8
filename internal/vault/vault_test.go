package vault

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"dosekeeper/internal/backup"
	"dosekeeper/internal/config"
)

// fakeS3 keeps objects in a map keyed by bucket/key.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	buckets map[string]bool
}

func newFakeS3(buckets ...string) *fakeS3 {
	f := &fakeS3{objects: map[string][]byte{}, buckets: map[string]bool{}}
	for _, b := range buckets {
		f.buckets[b] = true
	}
	return f
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if !f.buckets[aws.ToString(in.Bucket)] {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	panic("multipart upload not expected for small snapshots")
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	panic("multipart upload not expected for small snapshots")
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	panic("multipart upload not expected for small snapshots")
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

func vaultsUnderTest(t *testing.T) map[string]backup.Vault {
	t.Helper()
	fsVault, err := NewFileSystemVault("usb", filepath.Join(t.TempDir(), "vault"))
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}
	return map[string]backup.Vault{
		"memory":     NewMemoryVault("mem"),
		"filesystem": fsVault,
		"s3":         newS3Vault("cloud", "meds", "/backups/", newFakeS3("meds")),
	}
}

func TestVault_SnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, v := range vaultsUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			version, err := v.SnapshotVersion(ctx, "host-1")
			if err != nil {
				t.Fatalf("SnapshotVersion() error = %v", err)
			}
			if version != 0 {
				t.Errorf("SnapshotVersion() before any put = %d, want 0", version)
			}

			first := "first snapshot"
			if err := v.PutSnapshot(ctx, "host-1", strings.NewReader(first), int64(len(first)), 100); err != nil {
				t.Fatalf("PutSnapshot() error = %v", err)
			}
			second := strings.Repeat("x", 10000)
			if err := v.PutSnapshot(ctx, "host-1", strings.NewReader(second), int64(len(second)), 200); err != nil {
				t.Fatalf("PutSnapshot() error = %v", err)
			}

			var buf bytes.Buffer
			if err := v.GetSnapshot(ctx, "host-1", &buf); err != nil {
				t.Fatalf("GetSnapshot() error = %v", err)
			}
			if buf.String() != second {
				t.Errorf("GetSnapshot() returned %d bytes, want the latest snapshot", buf.Len())
			}

			version, err = v.SnapshotVersion(ctx, "host-1")
			if err != nil {
				t.Fatalf("SnapshotVersion() error = %v", err)
			}
			if version != 200 {
				t.Errorf("SnapshotVersion() = %d, want 200", version)
			}

			if other, _ := v.SnapshotVersion(ctx, "host-2"); other != 0 {
				t.Errorf("SnapshotVersion(host-2) = %d, want 0", other)
			}
		})
	}
}

func TestVault_MissingSnapshot(t *testing.T) {
	ctx := context.Background()
	for name, v := range vaultsUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := v.GetSnapshot(ctx, "nobody", &buf); err == nil {
				t.Error("GetSnapshot() expected error for missing snapshot")
			}
		})
	}
}

func TestVault_SizeMismatch(t *testing.T) {
	ctx := context.Background()
	for name, v := range vaultsUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			err := v.PutSnapshot(ctx, "host-1", strings.NewReader("short"), 999, 1)
			if err == nil {
				t.Error("PutSnapshot() expected size mismatch error")
			}
		})
	}
}

func TestVault_ValidateSetup(t *testing.T) {
	ctx := context.Background()
	for name, v := range vaultsUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			if err := v.ValidateSetup(ctx); err != nil {
				t.Errorf("ValidateSetup() error = %v", err)
			}
		})
	}

	t.Run("s3 missing bucket", func(t *testing.T) {
		v := newS3Vault("cloud", "absent", "", newFakeS3("meds"))
		if err := v.ValidateSetup(ctx); err == nil {
			t.Error("ValidateSetup() expected error for missing bucket")
		}
	})
}

func TestFileSystemVault_Layout(t *testing.T) {
	root := t.TempDir()
	v, err := NewFileSystemVault("usb", root)
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	data := "snapshot"
	if err := v.PutSnapshot(context.Background(), "host-1", strings.NewReader(data), int64(len(data)), 42); err != nil {
		t.Fatalf("PutSnapshot() error = %v", err)
	}

	for _, name := range []string{snapshotFile, versionFile} {
		if _, err := os.Stat(filepath.Join(root, "host-1", name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	matches, _ := filepath.Glob(filepath.Join(root, "host-1", ".tmp-*"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestS3Vault_Keys(t *testing.T) {
	client := newFakeS3("meds")
	v := newS3Vault("cloud", "meds", "/backups/", client)

	data := "snapshot"
	if err := v.PutSnapshot(context.Background(), "host-1", strings.NewReader(data), int64(len(data)), 7); err != nil {
		t.Fatalf("PutSnapshot() error = %v", err)
	}

	if _, ok := client.objects["meds/backups/host-1/dosekeeper.db.age"]; !ok {
		t.Errorf("snapshot object missing; have %v", keys(client.objects))
	}
	if got := string(client.objects["meds/backups/host-1/version"]); got != "7" {
		t.Errorf("version object = %q, want %q", got, "7")
	}
}

func keys(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestNewVaultFromConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		v, err := NewVaultFromConfig(ctx, config.VaultConfig{Type: "memory", Name: "m"})
		if err != nil {
			t.Fatalf("NewVaultFromConfig() error = %v", err)
		}
		if v.Name() != "m" {
			t.Errorf("Name() = %q, want %q", v.Name(), "m")
		}
	})

	t.Run("filesystem", func(t *testing.T) {
		v, err := NewVaultFromConfig(ctx, config.VaultConfig{Type: "filesystem", Name: "usb", FSVaultRoot: t.TempDir()})
		if err != nil {
			t.Fatalf("NewVaultFromConfig() error = %v", err)
		}
		if _, ok := v.(*FileSystemVault); !ok {
			t.Errorf("NewVaultFromConfig() = %T, want *FileSystemVault", v)
		}
	})

	t.Run("s3 with static credentials", func(t *testing.T) {
		cfg := config.VaultConfig{
			Type:              "s3",
			Name:              "cloud",
			S3Bucket:          "meds",
			S3Region:          "us-east-1",
			S3Endpoint:        "http://localhost:9000",
			S3AccessKeyID:     "minio",
			S3SecretAccessKey: "minio123",
		}
		v, err := NewVaultFromConfig(ctx, cfg)
		if err != nil {
			t.Fatalf("NewVaultFromConfig() error = %v", err)
		}
		if _, ok := v.(*S3Vault); !ok {
			t.Errorf("NewVaultFromConfig() = %T, want *S3Vault", v)
		}
	})

	errorCases := []struct {
		name string
		cfg  config.VaultConfig
	}{
		{"filesystem without root", config.VaultConfig{Type: "filesystem", Name: "usb"}},
		{"s3 without bucket", config.VaultConfig{Type: "s3", Name: "cloud"}},
		{"unknown type", config.VaultConfig{Type: "ftp", Name: "x"}},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := NewVaultFromConfig(ctx, tc.cfg)
			if err == nil {
				t.Error("NewVaultFromConfig() expected error")
			}
			if v != nil {
				t.Errorf("NewVaultFromConfig() = %v, want nil on error", v)
			}
		})
	}

	t.Run("all vaults", func(t *testing.T) {
		vaults, err := NewVaultsFromConfig(ctx, []config.VaultConfig{
			{Type: "memory", Name: "a"},
			{Type: "memory", Name: "b"},
		})
		if err != nil {
			t.Fatalf("NewVaultsFromConfig() error = %v", err)
		}
		if len(vaults) != 2 {
			t.Errorf("len(vaults) = %d, want 2", len(vaults))
		}
	})
}
