package audio

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/stretchr/testify/mock"
)

// mockToolkit implements Toolkit for testing.
type mockToolkit struct {
	mock.Mock
}

func (m *mockToolkit) ProbeDuration(ctx context.Context, path string) (float64, error) {
	args := m.Called(ctx, path)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockToolkit) ExtractSegment(ctx context.Context, input, output string, start, duration int) error {
	args := m.Called(ctx, input, output, start, duration)
	return args.Error(0)
}

// mockOutputDir implements OutputDirectory for testing.
type mockOutputDir struct {
	mock.Mock
	dir string
}

func (m *mockOutputDir) Reset(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockOutputDir) OutputDir() string {
	return m.dir
}

// writingExtractor creates a small file for every extraction and records
// the calls in order.
type writingExtractor struct {
	calls []string
}

func (w *writingExtractor) ExtractSegment(_ context.Context, _, output string, _, _ int) error {
	w.calls = append(w.calls, filepath.Base(output))
	return os.WriteFile(output, []byte("segment"), 0600)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
