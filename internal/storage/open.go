package storage

import (
	"context"
	"fmt"
)

const (
	DriverMinIO = "minio"
	DriverLocal = "local"
)

type Options struct {
	Driver    string
	LocalPath string
	MinIO     Config
}

// Open builds the configured backend. MinIO buckets are created on demand.
func Open(ctx context.Context, opts Options) (Storage, error) {
	switch opts.Driver {
	case DriverLocal:
		s, err := NewLocalStorage(opts.LocalPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
		return s, nil
	case DriverMinIO, "":
		s, err := NewMinIOStorage(&opts.MinIO)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure bucket: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
