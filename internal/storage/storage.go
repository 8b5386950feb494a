// Package storage is the archive side of ingestion: where archivable files end up and where
// the admissibility filter asks whether a file is already stored.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

// FileInfo describes a stored file.
type FileInfo struct {
	Name         string
	Size         int64
	MD5          string
	LastModified time.Time
}

// Client abstracts the archive storage backend.
type Client interface {
	Info(ctx context.Context, name string) (*FileInfo, error)
	Put(ctx context.Context, localPath, name string) error
	Get(ctx context.Context, name string, w io.Writer) error
	List(ctx context.Context, prefix string) ([]FileInfo, error)
}
