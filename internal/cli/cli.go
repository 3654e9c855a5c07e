// Package cli implements the audiosplit command-line interface.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/maauso/audiosplit-api/internal/audio"
	"github.com/maauso/audiosplit-api/internal/storage"
)

// ErrInputNotFound is returned when the file to split does not exist.
var ErrInputNotFound = errors.New("input file not found")

// Env holds injectable dependencies for CLI commands.
type Env struct {
	Stdout  io.Writer
	Toolkit audio.Toolkit
	Logger  *slog.Logger

	// Defaults for flags, usually taken from the environment configuration.
	SegmentDuration int
	OverlapDuration int
	Format          string
	Concurrency     int
}

func (e *Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

// SplitCmd creates the split command.
func SplitCmd(env *Env) *cobra.Command {
	var (
		segment int
		overlap int
		outDir  string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "split <input>",
		Short: "Split an audio file into overlapping segments",
		Long: `Split an audio file into fixed-length, overlapping segments.

Every file directly inside the output directory is removed before the run.`,
		Example: `  audiosplit split talk.mp3
  audiosplit split talk.mp3 --segment 30 --overlap 10 --out parts/
  audiosplit split talk.mp3 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplit(cmd, env, args[0], segment, overlap, outDir, asJSON)
		},
	}

	cmd.Flags().IntVarP(&segment, "segment", "s", env.SegmentDuration, "Segment length in seconds")
	cmd.Flags().IntVarP(&overlap, "overlap", "l", env.OverlapDuration, "Overlap between consecutive segments in seconds")
	cmd.Flags().StringVarP(&outDir, "out", "o", "output", "Output directory (emptied before the run)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")

	return cmd
}

func runSplit(cmd *cobra.Command, env *Env, input string, segment, overlap int, outDir string, asJSON bool) error {
	info, err := os.Stat(input)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%w: %s", ErrInputNotFound, input)
	}

	if err := audio.ValidateParams(segment, overlap); err != nil {
		return err
	}

	// The CLI has no uploads; both directories point at the output.
	out, err := storage.NewLocalStorage(outDir, outDir)
	if err != nil {
		return err
	}

	splitter := audio.NewSplitter(out, env.Toolkit, env.logger(),
		audio.WithFormat(env.Format),
		audio.WithConcurrency(env.Concurrency),
		audio.WithDownloadPrefix(""),
	)

	started := time.Now()
	result, err := splitter.Split(cmd.Context(), audio.SplitRequest{
		InputPath:       input,
		SegmentDuration: segment,
		OverlapDuration: overlap,
	})
	if err != nil {
		return err
	}

	w := stdout(cmd, env)
	if asJSON {
		return writeResultJSON(w, result)
	}

	_, _ = fmt.Fprintf(w, "%s (%s, %s) -> %d parts in %s\n",
		filepath.Base(input), humanize.IBytes(uint64(info.Size())), formatSeconds(result.TotalDuration),
		len(result.Parts), out.OutputDir())

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tSTART\tDURATION\tPATH")
	for _, p := range result.Parts {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, formatSeconds(p.StartTime), formatSeconds(p.Duration), p.Path)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	env.logger().Debug("split finished", slog.Duration("elapsed", time.Since(started)))
	return nil
}

type jsonPart struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	StartTime int    `json:"startTime"`
	Duration  int    `json:"duration"`
}

type jsonResult struct {
	Duration int            `json:"duration"`
	Settings audio.Settings `json:"settings"`
	Parts    []jsonPart     `json:"parts"`
}

func writeResultJSON(w io.Writer, result *audio.SplitResult) error {
	out := jsonResult{
		Duration: result.TotalDuration,
		Settings: result.Settings,
		Parts:    make([]jsonPart, len(result.Parts)),
	}
	for i, p := range result.Parts {
		out.Parts[i] = jsonPart{Name: p.Name, Path: p.Path, StartTime: p.StartTime, Duration: p.Duration}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// PlanCmd creates the plan command, which prints the windows a split
// would produce for a given duration without touching any file.
func PlanCmd(env *Env) *cobra.Command {
	var (
		duration int
		segment  int
		overlap  int
	)

	cmd := &cobra.Command{
		Use:     "plan",
		Short:   "Print the segments a split would produce",
		Example: `  audiosplit plan --duration 60 --segment 20 --overlap 5`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			segments, err := audio.Plan(duration, segment, overlap)
			if err != nil {
				return err
			}

			format := env.Format
			if format == "" {
				format = audio.DefaultFormat
			}

			tw := tabwriter.NewWriter(stdout(cmd, env), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "NAME\tSTART\tEND\tDURATION")
			for _, s := range segments {
				_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", s.FileName(format), s.Start, s.End(), s.Duration)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&duration, "duration", "d", 0, "Total duration in seconds (required)")
	cmd.Flags().IntVarP(&segment, "segment", "s", env.SegmentDuration, "Segment length in seconds")
	cmd.Flags().IntVarP(&overlap, "overlap", "l", env.OverlapDuration, "Overlap between consecutive segments in seconds")
	_ = cmd.MarkFlagRequired("duration")

	return cmd
}

func stdout(cmd *cobra.Command, env *Env) io.Writer {
	if env.Stdout != nil {
		return env.Stdout
	}
	return cmd.OutOrStdout()
}

// formatSeconds renders whole seconds as m:ss or h:mm:ss.
func formatSeconds(sec int) string {
	h, m, s := sec/3600, (sec%3600)/60, sec%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
