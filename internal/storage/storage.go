package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

var (
	ErrNotFound     = errors.New("storage: file not found")
	ErrInvalidKey   = errors.New("storage: invalid key")
	ErrAccessDenied = errors.New("storage: access denied")
)

type Storage interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string, size int64) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	HealthCheck(ctx context.Context) error
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

const (
	uploadsPrefix = "uploads"
	outputsPrefix = "outputs"
)

// UploadsPrefix is where an owner's source media lives.
func UploadsPrefix(ownerID string) string {
	return uploadsPrefix + "/" + ownerID + "/"
}

// OutputKey is the storage key of a job artifact.
func OutputKey(ownerID, jobID, filename string) string {
	return path.Join(outputsPrefix, ownerID, jobID, path.Base(filename))
}

// ValidateKey rejects empty, absolute and dot-segment keys.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

// OwnedBy reports whether key is a valid key under the owner's uploads.
func OwnedBy(key, ownerID string) bool {
	return ValidateKey(key) == nil && strings.HasPrefix(key, UploadsPrefix(ownerID))
}

// UploadFile streams a local file to key.
func UploadFile(ctx context.Context, s Storage, key, localPath, contentType string) (int64, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", localPath, err)
	}
	if err := s.Upload(ctx, key, f, contentType, info.Size()); err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// DownloadFile copies key into a local file.
func DownloadFile(ctx context.Context, s Storage, key, localPath string) error {
	r, err := s.Download(ctx, key)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("copy %s: %w", key, err)
	}
	return f.Close()
}
