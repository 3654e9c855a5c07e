// Package storage provides the on-disk locations used by a split run and the
// optional S3 mirror for produced segments. It defines the Storage interface
// (port) and implementations for local disk and S3.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for upload, output and publishing storage.
type Storage interface {
	// SaveUpload persists an uploaded file under a generated name and
	// returns its path. The original name only contributes its extension.
	SaveUpload(ctx context.Context, originalName string, data io.Reader) (path string, err error)

	// CleanupUploads removes the specified uploaded files.
	// It continues cleanup even if some files fail to delete.
	CleanupUploads(ctx context.Context, paths []string) error

	// Reset ensures the output directory exists and contains no files.
	Reset(ctx context.Context) error

	// OutputDir returns the directory segments are written to.
	OutputDir() string

	// OutputPath resolves a bare file name inside the output directory.
	// Returns ErrInvalidName for names that would escape it.
	OutputPath(name string) (string, error)

	// Publish uploads data under key to S3 and returns the public URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	Publish(ctx context.Context, key string, data io.Reader) (url string, err error)
}
