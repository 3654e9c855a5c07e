package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Static errors for storage operations.
var (
	// ErrS3NotConfigured is returned when S3 operations are attempted
	// without proper configuration.
	ErrS3NotConfigured = errors.New("S3 storage is not configured")
	// ErrInvalidName is returned when a file name is empty or contains a path.
	ErrInvalidName = errors.New("invalid file name")
)

// LocalStorage implements the Storage interface using local disk.
// Uploads and produced segments live in two separate directories; the output
// directory is owned exclusively by the splitter and wiped on every run.
type LocalStorage struct {
	uploadDir string
	outputDir string
}

// NewLocalStorage creates a new LocalStorage instance.
// Empty directories default to ./uploads and ./uploads/output.
// Both directories are created if they don't exist.
func NewLocalStorage(uploadDir, outputDir string) (*LocalStorage, error) {
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	if outputDir == "" {
		outputDir = filepath.Join(uploadDir, "output")
	}

	for _, dir := range []string{uploadDir, outputDir} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return &LocalStorage{uploadDir: uploadDir, outputDir: outputDir}, nil
}

// UploadDir returns the upload directory path.
func (s *LocalStorage) UploadDir() string {
	return s.uploadDir
}

// OutputDir returns the output directory path.
func (s *LocalStorage) OutputDir() string {
	return s.outputDir
}

// SaveUpload writes data to audio-<unix ms>-<random><ext> in the upload directory.
func (s *LocalStorage) SaveUpload(ctx context.Context, originalName string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	path := filepath.Join(s.uploadDir, UploadName(originalName, time.Now()))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600) // #nosec G304 - name is generated
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}

	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close upload file: %w", err)
	}

	return path, nil
}

// UploadName generates the stored name of an upload. Only the extension of
// originalName is kept, lower-cased.
func UploadName(originalName string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	if strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return fmt.Sprintf("audio-%d-%d%s", now.UnixMilli(), rand.IntN(1e9), ext) // #nosec G404 - not security sensitive
}

// CleanupUploads removes the specified uploaded files.
// It continues cleanup even if some files fail to delete,
// returning the first error encountered.
func (s *LocalStorage) CleanupUploads(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove upload %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// Reset creates the output directory (with parents) if it is missing and
// otherwise removes every file directly inside it. Subdirectories are left
// alone since the splitter never creates any.
func (s *LocalStorage) Reset(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	entries, err := os.ReadDir(s.outputDir)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(s.outputDir, 0750); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read output directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.outputDir, entry.Name())); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", entry.Name(), err)
		}
	}

	return nil
}

// OutputPath resolves name inside the output directory.
func (s *LocalStorage) OutputPath(name string) (string, error) {
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.outputDir, name), nil
}

// Publish is not supported by LocalStorage and returns ErrS3NotConfigured.
func (s *LocalStorage) Publish(_ context.Context, _ string, _ io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}

// Compile-time check that LocalStorage implements Storage.
var _ Storage = (*LocalStorage)(nil)
