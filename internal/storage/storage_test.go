package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// backends returns every Storage implementation available in this
// environment. MinIO joins when MINIO_TEST_ENDPOINT points at a server.
func backends(t *testing.T) map[string]Storage {
	t.Helper()

	local, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage() error = %v", err)
	}
	out := map[string]Storage{
		"memory": NewMemoryStorage(),
		"local":  local,
	}

	endpoint := os.Getenv("MINIO_TEST_ENDPOINT")
	if endpoint == "" {
		return out
	}
	m, err := NewMinIOStorage(&Config{
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "clip-test",
		Region:    "us-east-1",
	})
	if err != nil {
		return out
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.EnsureBucket(ctx); err == nil {
		out["minio"] = m
	}
	return out
}

func TestStorage_RoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := "outputs/owner-1/job-1/clip.mp4"
			content := "\x00\x01fake mp4"

			if err := s.Upload(ctx, key, strings.NewReader(content), "video/mp4", int64(len(content))); err != nil {
				t.Fatalf("Upload() error = %v", err)
			}
			defer func() { _ = s.Delete(ctx, key) }()

			exists, err := s.Exists(ctx, key)
			if err != nil || !exists {
				t.Fatalf("Exists() = %v, %v; want true", exists, err)
			}

			r, err := s.Download(ctx, key)
			if err != nil {
				t.Fatalf("Download() error = %v", err)
			}
			data, _ := io.ReadAll(r)
			_ = r.Close()
			if string(data) != content {
				t.Errorf("Download() = %q, want %q", data, content)
			}

			if err := s.HealthCheck(ctx); err != nil {
				t.Errorf("HealthCheck() error = %v", err)
			}
		})
	}
}

func TestStorage_Missing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Download(ctx, "outputs/nobody/none/missing.mp4")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Download() error = %v, want ErrNotFound", err)
			}

			exists, err := s.Exists(ctx, "outputs/nobody/none/missing.mp4")
			if err != nil || exists {
				t.Errorf("Exists() = %v, %v; want false, nil", exists, err)
			}

			if err := s.Delete(ctx, "outputs/nobody/none/missing.mp4"); err != nil {
				t.Errorf("Delete() of missing key error = %v, want nil", err)
			}
		})
	}
}

func TestStorage_Overwrite(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := "uploads/owner/a.mp4"
			_ = s.Upload(ctx, key, strings.NewReader("one"), "video/mp4", 3)
			_ = s.Upload(ctx, key, strings.NewReader("second"), "video/mp4", 6)
			defer func() { _ = s.Delete(ctx, key) }()

			r, err := s.Download(ctx, key)
			if err != nil {
				t.Fatalf("Download() error = %v", err)
			}
			defer func() { _ = r.Close() }()
			data, _ := io.ReadAll(r)
			if string(data) != "second" {
				t.Errorf("Download() = %q, want %q", data, "second")
			}
		})
	}
}

func TestStorage_InvalidKey(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, key := range []string{"", "/etc/passwd", "../escape", "a/../../b", "a//b"} {
				err := s.Upload(context.Background(), key, strings.NewReader("x"), "text/plain", 1)
				if !errors.Is(err, ErrInvalidKey) {
					t.Errorf("Upload(%q) error = %v, want ErrInvalidKey", key, err)
				}
			}
		})
	}
}

func TestMemoryStorage_ContextCanceled(t *testing.T) {
	s := NewMemoryStorage()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Upload(ctx, "a/b", strings.NewReader("x"), "text/plain", 1); !errors.Is(err, context.Canceled) {
		t.Errorf("Upload() error = %v, want context.Canceled", err)
	}
	if _, err := s.Download(ctx, "a/b"); !errors.Is(err, context.Canceled) {
		t.Errorf("Download() error = %v, want context.Canceled", err)
	}
}

func TestMemoryStorage_Concurrent(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			key := "uploads/" + string(rune('a'+n%26)) + "/file.mp4"
			content := strings.Repeat("x", n)
			_ = s.Upload(ctx, key, strings.NewReader(content), "video/mp4", int64(len(content)))
		}(i)
		go func(n int) {
			defer wg.Done()
			key := "uploads/" + string(rune('a'+n%26)) + "/file.mp4"
			_, _ = s.Exists(ctx, key)
			if r, err := s.Download(ctx, key); err == nil {
				_, _ = io.Copy(io.Discard, r)
				_ = r.Close()
			}
		}(i)
	}
	wg.Wait()

	if s.Count() == 0 {
		t.Error("expected some files to be stored")
	}
	if got := len(s.Keys("uploads/a/")); got != 1 {
		t.Errorf("Keys(uploads/a/) = %d, want 1", got)
	}
}

func TestLocalStorage_NoTempLeftovers(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStorage(root)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Upload(context.Background(), "outputs/o/j/out.gif", strings.NewReader("gif"), "image/gif", 3); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(filepath.Join(root, "outputs", "o", "j"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "out.gif" {
		t.Errorf("directory entries = %v, want only out.gif", entries)
	}
}

func TestKeys(t *testing.T) {
	if got := OutputKey("o1", "j1", "/tmp/work/final.mp4"); got != "outputs/o1/j1/final.mp4" {
		t.Errorf("OutputKey() = %q", got)
	}
	if got := UploadsPrefix("o1"); got != "uploads/o1/" {
		t.Errorf("UploadsPrefix() = %q", got)
	}

	tests := []struct {
		key   string
		owner string
		want  bool
	}{
		{"uploads/o1/clip.mp4", "o1", true},
		{"uploads/o1/nested/clip.mp4", "o1", true},
		{"uploads/o2/clip.mp4", "o1", false},
		{"uploads/o1/../o2/clip.mp4", "o1", false},
		{"outputs/o1/j/clip.mp4", "o1", false},
		{"uploads/o10/clip.mp4", "o1", false},
	}
	for _, tt := range tests {
		if got := OwnedBy(tt.key, tt.owner); got != tt.want {
			t.Errorf("OwnedBy(%q, %q) = %v, want %v", tt.key, tt.owner, got, tt.want)
		}
	}
}

func TestUploadAndDownloadFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.mp4")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewMemoryStorage()
	ctx := context.Background()
	n, err := UploadFile(ctx, s, "outputs/o/j/src.mp4", src, "video/mp4")
	if err != nil || n != 7 {
		t.Fatalf("UploadFile() = %d, %v", n, err)
	}
	if ct, _ := s.GetContentType("outputs/o/j/src.mp4"); ct != "video/mp4" {
		t.Errorf("content type = %q", ct)
	}

	dst := filepath.Join(dir, "copy.mp4")
	if err := DownloadFile(ctx, s, "outputs/o/j/src.mp4", dst); err != nil {
		t.Fatalf("DownloadFile() error = %v", err)
	}
	data, _ := os.ReadFile(dst)
	if string(data) != "payload" {
		t.Errorf("downloaded = %q", data)
	}

	if err := DownloadFile(ctx, s, "outputs/o/j/none.mp4", dst); !errors.Is(err, ErrNotFound) {
		t.Errorf("DownloadFile(missing) error = %v, want ErrNotFound", err)
	}
}
