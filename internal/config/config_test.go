package config

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allVars = []string{
	"PORT", "MAX_UPLOAD_MB", "ALLOWED_ORIGINS", "UPLOAD_DIR", "OUTPUT_DIR", "KEEP_UPLOADS", "DB_PATH",
	"SEGMENT_DURATION_SEC", "OVERLAP_DURATION_SEC", "OUTPUT_FORMAT", "MAX_CONCURRENT_SEGMENTS",
	"FFMPEG_PATH", "FFPROBE_PATH", "S3_BUCKET", "S3_REGION", "S3_ENDPOINT",
	"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "LOG_FORMAT", "LOG_LEVEL",
}

// clearEnv unsets every variable Load reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range allVars {
		t.Setenv(v, "")
		require.NoError(t, os.Unsetenv(v))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Port)
	assert.Equal(t, int64(200), cfg.MaxUploadMB)
	assert.Equal(t, "*", cfg.AllowedOrigins)
	assert.Equal(t, "./uploads", cfg.UploadDir)
	assert.Equal(t, "./uploads/output", cfg.OutputDir)
	assert.True(t, cfg.KeepUploads)
	assert.Empty(t, cfg.DBPath)
	assert.Equal(t, 20, cfg.SegmentDurationSec)
	assert.Equal(t, 5, cfg.OverlapDurationSec)
	assert.Equal(t, "mp3", cfg.OutputFormat)
	assert.Equal(t, 1, cfg.MaxConcurrentSegments)
	assert.Equal(t, "ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "ffprobe", cfg.FFprobePath)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.S3Enabled())
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "3000")
	t.Setenv("MAX_UPLOAD_MB", "50")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000, https://app.example.com")
	t.Setenv("UPLOAD_DIR", "/data/in")
	t.Setenv("OUTPUT_DIR", "/data/out")
	t.Setenv("KEEP_UPLOADS", "false")
	t.Setenv("DB_PATH", "/data/runs.db")
	t.Setenv("SEGMENT_DURATION_SEC", "30")
	t.Setenv("OVERLAP_DURATION_SEC", "0")
	t.Setenv("OUTPUT_FORMAT", "wav")
	t.Setenv("MAX_CONCURRENT_SEGMENTS", "4")
	t.Setenv("S3_BUCKET", "my-bucket")
	t.Setenv("S3_REGION", "us-east-1")
	t.Setenv("S3_ENDPOINT", "http://localhost:4566")
	t.Setenv("AWS_ACCESS_KEY_ID", "access-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret-key")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, int64(50)<<20, cfg.MaxUploadBytes())
	assert.Equal(t, []string{"http://localhost:3000", "https://app.example.com"}, cfg.Origins())
	assert.Equal(t, "/data/in", cfg.UploadDir)
	assert.Equal(t, "/data/out", cfg.OutputDir)
	assert.False(t, cfg.KeepUploads)
	assert.Equal(t, "/data/runs.db", cfg.DBPath)
	assert.Equal(t, 30, cfg.SegmentDurationSec)
	assert.Equal(t, 0, cfg.OverlapDurationSec)
	assert.Equal(t, "wav", cfg.OutputFormat)
	assert.Equal(t, 4, cfg.MaxConcurrentSegments)
	assert.True(t, cfg.S3Enabled())
	assert.Equal(t, "http://localhost:4566", cfg.S3Endpoint)
	assert.Equal(t, "access-key", cfg.AWSAccessKeyID)
	assert.Equal(t, "secret-key", cfg.AWSSecretAccessKey)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_InvalidInteger(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "not-a-number")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_RejectsOverlapNotShorterThanSegment(t *testing.T) {
	clearEnv(t)
	t.Setenv("SEGMENT_DURATION_SEC", "10")
	t.Setenv("OVERLAP_DURATION_SEC", "10")

	_, err := Load()
	assert.ErrorIs(t, err, ErrInvalidOverlapDuration)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{SegmentDurationSec: 20, OverlapDurationSec: 5, MaxUploadMB: 200, OutputFormat: "mp3"}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(*Config) {}, nil},
		{"zero overlap", func(c *Config) { c.OverlapDurationSec = 0 }, nil},
		{"zero segment", func(c *Config) { c.SegmentDurationSec = 0 }, ErrInvalidSegmentDuration},
		{"negative overlap", func(c *Config) { c.OverlapDurationSec = -1 }, ErrInvalidOverlapDuration},
		{"overlap equals segment", func(c *Config) { c.OverlapDurationSec = 20 }, ErrInvalidOverlapDuration},
		{"zero upload limit", func(c *Config) { c.MaxUploadMB = 0 }, ErrInvalidMaxUpload},
		{"empty format", func(c *Config) { c.OutputFormat = "" }, ErrInvalidOutputFormat},
		{"format with dot", func(c *Config) { c.OutputFormat = ".mp3" }, ErrInvalidOutputFormat},
		{"format with path", func(c *Config) { c.OutputFormat = "../x" }, ErrInvalidOutputFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConfig_S3Enabled(t *testing.T) {
	tests := []struct {
		name     string
		bucket   string
		region   string
		expected bool
	}{
		{"both set", "bucket", "region", true},
		{"only bucket", "bucket", "", false},
		{"only region", "", "region", false},
		{"neither set", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				S3Bucket: tt.bucket,
				S3Region: tt.region,
			}
			assert.Equal(t, tt.expected, cfg.S3Enabled())
		})
	}
}

func TestConfig_Origins(t *testing.T) {
	assert.Equal(t, []string{"*"}, (&Config{AllowedOrigins: "*"}).Origins())
	assert.Equal(t, []string{"a", "b"}, (&Config{AllowedOrigins: " a ,, b "}).Origins())
	assert.Empty(t, (&Config{}).Origins())
}

func TestConfig_String(t *testing.T) {
	cfg := &Config{
		Port:               9001,
		UploadDir:          "/tmp/uploads",
		SegmentDurationSec: 20,
		S3Bucket:           "bucket",
		S3Region:           "region",
		AWSAccessKeyID:     "AKIAEXAMPLE",
		AWSSecretAccessKey: "secret-key",
		LogFormat:          "json",
		LogLevel:           "info",
	}

	str := cfg.String()

	assert.Contains(t, str, "9001")
	assert.Contains(t, str, "/tmp/uploads")
	assert.Contains(t, str, "bucket")

	assert.NotContains(t, str, "secret-key")
	assert.NotContains(t, str, "AKIAEXAMPLE")
}

func TestConfig_NewLogger(t *testing.T) {
	for _, format := range []string{"json", "text", ""} {
		cfg := &Config{LogFormat: format, LogLevel: "warn"}

		logger := cfg.NewLogger()
		require.NotNil(t, logger)
		assert.False(t, logger.Enabled(t.Context(), slog.LevelInfo))
		assert.True(t, logger.Enabled(t.Context(), slog.LevelWarn))
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}
