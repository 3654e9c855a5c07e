// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrInvalidSegmentDuration is returned when SEGMENT_DURATION_SEC is not positive.
	ErrInvalidSegmentDuration = errors.New("config: SEGMENT_DURATION_SEC must be positive")
	// ErrInvalidOverlapDuration is returned when OVERLAP_DURATION_SEC is negative
	// or not shorter than SEGMENT_DURATION_SEC.
	ErrInvalidOverlapDuration = errors.New("config: OVERLAP_DURATION_SEC must be >= 0 and < SEGMENT_DURATION_SEC")
	// ErrInvalidMaxUpload is returned when MAX_UPLOAD_MB is not positive.
	ErrInvalidMaxUpload = errors.New("config: MAX_UPLOAD_MB must be positive")
	// ErrInvalidOutputFormat is returned when OUTPUT_FORMAT is empty or holds a path.
	ErrInvalidOutputFormat = errors.New("config: OUTPUT_FORMAT must be a bare extension")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port           int    `env:"PORT, default=9001" json:"port"`
	MaxUploadMB    int64  `env:"MAX_UPLOAD_MB, default=200" json:"max_upload_mb"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS, default=*" json:"allowed_origins"`

	// Storage settings
	UploadDir   string `env:"UPLOAD_DIR, default=./uploads" json:"upload_dir"`
	OutputDir   string `env:"OUTPUT_DIR, default=./uploads/output" json:"output_dir"`
	KeepUploads bool   `env:"KEEP_UPLOADS, default=true" json:"keep_uploads"`
	DBPath      string `env:"DB_PATH" json:"db_path,omitempty"` // Empty keeps run history in memory

	// Splitting settings
	SegmentDurationSec    int    `env:"SEGMENT_DURATION_SEC, default=20" json:"segment_duration_sec"`
	OverlapDurationSec    int    `env:"OVERLAP_DURATION_SEC, default=5" json:"overlap_duration_sec"`
	OutputFormat          string `env:"OUTPUT_FORMAT, default=mp3" json:"output_format"`
	MaxConcurrentSegments int    `env:"MAX_CONCURRENT_SEGMENTS, default=1" json:"max_concurrent_segments"`
	FFmpegPath            string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath           string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c *Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Load reads configuration from environment variables using go-envconfig
// and validates it.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the splitting defaults and limits are usable.
func (c *Config) Validate() error {
	if c.SegmentDurationSec <= 0 {
		return ErrInvalidSegmentDuration
	}
	if c.OverlapDurationSec < 0 || c.OverlapDurationSec >= c.SegmentDurationSec {
		return ErrInvalidOverlapDuration
	}
	if c.MaxUploadMB <= 0 {
		return ErrInvalidMaxUpload
	}
	if c.OutputFormat == "" || strings.ContainsAny(c.OutputFormat, `/\. `) {
		return ErrInvalidOutputFormat
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, UploadDir: %s, OutputDir: %s, SegmentDurationSec: %d, OverlapDurationSec: %d, OutputFormat: %s, MaxConcurrentSegments: %d, DBPath: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.UploadDir,
		c.OutputDir,
		c.SegmentDurationSec,
		c.OverlapDurationSec,
		c.OutputFormat,
		c.MaxConcurrentSegments,
		c.DBPath,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
