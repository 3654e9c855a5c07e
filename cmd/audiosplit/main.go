// Package main provides the audiosplit command-line tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/maauso/audiosplit-api/internal/audio"
	"github.com/maauso/audiosplit-api/internal/cli"
	"github.com/maauso/audiosplit-api/internal/config"
	"github.com/maauso/audiosplit-api/internal/media"
)

// Injected at build time via ldflags.
var version = "dev"

// Exit codes.
const (
	ExitOK         = 0
	ExitGeneral    = 1
	ExitUsage      = 2
	ExitValidation = 4
	ExitTranscode  = 5
	ExitInterrupt  = 130
)

func main() {
	// Load .env file if present (ignore error if missing).
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(ExitUsage)
	}

	env := &cli.Env{
		Toolkit:         media.NewFFmpegToolkit(cfg.FFmpegPath, cfg.FFprobePath),
		Logger:          cfg.NewLogger(),
		SegmentDuration: cfg.SegmentDurationSec,
		OverlapDuration: cfg.OverlapDurationSec,
		Format:          cfg.OutputFormat,
		Concurrency:     cfg.MaxConcurrentSegments,
	}

	rootCmd := &cobra.Command{
		Use:           "audiosplit",
		Short:         "Split audio files into overlapping segments",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.AddCommand(cli.SplitCmd(env))
	rootCmd.AddCommand(cli.PlanCmd(env))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitInterrupt
	case errors.Is(err, audio.ErrInvalidParameters), errors.Is(err, audio.ErrProbeFailed),
		errors.Is(err, cli.ErrInputNotFound):
		return ExitValidation
	case errors.Is(err, audio.ErrTranscodeFailed), errors.Is(err, audio.ErrDirectoryAccess):
		return ExitTranscode
	case strings.Contains(err.Error(), "required flag"), strings.Contains(err.Error(), "unknown flag"),
		strings.Contains(err.Error(), "accepts "), strings.Contains(err.Error(), "invalid argument"):
		return ExitUsage
	default:
		return ExitGeneral
	}
}
