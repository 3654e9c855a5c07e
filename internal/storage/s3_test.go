package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewS3Storage(t *testing.T) {
	local := setupTestStorage(t)

	cfg := S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        "http://localhost:4566", // LocalStack-like endpoint
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}

	storage, err := NewS3Storage(local, cfg)
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	if storage.bucket != cfg.Bucket {
		t.Errorf("bucket = %v, want %v", storage.bucket, cfg.Bucket)
	}
	if storage.region != cfg.Region {
		t.Errorf("region = %v, want %v", storage.region, cfg.Region)
	}
}

func TestS3Storage_InheritsLocalStorage(t *testing.T) {
	local := setupTestStorage(t)

	storage, err := NewS3Storage(local, S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        "http://localhost:4566",
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	})
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	stale := filepath.Join(storage.OutputDir(), "part_1.mp3")
	if err := os.WriteFile(stale, []byte("old"), 0600); err != nil {
		t.Fatalf("failed to write stale file: %v", err)
	}

	if err := storage.Reset(context.Background()); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("inherited Reset did not clear the output directory")
	}
}

func TestS3Storage_Publish_MockServer(t *testing.T) {
	var gotContentType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT method, got %s", r.Method)
		}

		if !strings.Contains(r.URL.Path, "/runs/run-1/part_1.mp3") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed to read body: %v", err)
		}
		if !strings.Contains(string(body), "segment bytes") {
			t.Errorf("unexpected body: %s", string(body))
		}
		gotContentType = r.Header.Get("Content-Type")

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	storage, err := NewS3Storage(setupTestStorage(t), S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        server.URL,
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	})
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	url, err := storage.Publish(context.Background(), "runs/run-1/part_1.mp3", bytes.NewReader([]byte("segment bytes")))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	expectedURL := "https://test-bucket.s3.us-east-1.amazonaws.com/runs/run-1/part_1.mp3"
	if url != expectedURL {
		t.Errorf("url = %v, want %v", url, expectedURL)
	}
	if gotContentType != "audio/mpeg" {
		t.Errorf("content type = %q, want audio/mpeg", gotContentType)
	}
}

func TestS3Storage_Publish_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	storage, err := NewS3Storage(setupTestStorage(t), S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        server.URL,
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	})
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	if _, err := storage.Publish(context.Background(), "k.mp3", bytes.NewReader([]byte("x"))); err == nil {
		t.Error("expected error from failing server")
	}
}
