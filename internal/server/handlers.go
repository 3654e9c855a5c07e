package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/maauso/audiosplit-api/internal/audio"
	"github.com/maauso/audiosplit-api/internal/run"
	"github.com/maauso/audiosplit-api/internal/storage"
)

// RunService executes and looks up split runs. *run.Service implements it.
type RunService interface {
	Execute(ctx context.Context, in run.Input) (*run.Run, *audio.SplitResult, error)
	GetRun(ctx context.Context, id string) (*run.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*run.Run, error)
}

// Files stores uploads and resolves produced segments.
// storage.Storage implements it.
type Files interface {
	SaveUpload(ctx context.Context, originalName string, data io.Reader) (string, error)
	OutputPath(name string) (string, error)
}

const (
	// uploadField is the multipart field carrying the audio file.
	uploadField = "audio"
	// multipartMemory is kept in memory before spilling parts to disk.
	multipartMemory = 32 << 20
	// runListLimit bounds GET /runs.
	runListLimit = 50
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service         RunService
	files           Files
	validator       *validator.Validate
	logger          *slog.Logger
	segmentDuration int
	overlapDuration int
	maxUploadBytes  int64
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithDefaults sets the split parameters used when the form omits them.
func WithDefaults(segmentDuration, overlapDuration int) HandlerOption {
	return func(h *Handlers) {
		h.segmentDuration = segmentDuration
		h.overlapDuration = overlapDuration
	}
}

// WithMaxUploadBytes limits the size of an upload request body.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service RunService, files Files, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:         service,
		files:           files,
		validator:       validator.New(),
		logger:          logger,
		segmentDuration: audio.DefaultSegmentDuration,
		overlapDuration: audio.DefaultOverlapDuration,
		maxUploadBytes:  200 << 20,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Upload handles POST /audio/upload requests: it stores the file, splits it
// and answers with the produced parts once every segment exists.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds the %s limit", humanize.IBytes(uint64(maxErr.Limit))), "UPLOAD_TOO_LARGE")
			return
		}
		h.logger.Warn("failed to parse multipart form", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "invalid multipart form", "INVALID_FORM")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		writeError(w, http.StatusBadRequest, "no audio file uploaded", "NO_FILE")
		return
	}
	defer func() { _ = file.Close() }()

	form, err := h.parseForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), audio.CodeInvalidParameters)
		return
	}

	inputPath, err := h.files.SaveUpload(r.Context(), header.Filename, file)
	if err != nil {
		h.logger.Error("failed to save upload",
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to store upload", "UPLOAD_FAILED")
		return
	}

	h.logger.Info("upload stored",
		slog.String("filename", header.Filename),
		slog.String("size", humanize.IBytes(uint64(max(header.Size, 0)))),
		slog.Int("segment_duration", form.SegmentDuration),
		slog.Int("overlap_duration", form.OverlapDuration),
	)

	result, split, err := h.service.Execute(r.Context(), run.Input{
		InputPath:       inputPath,
		InputName:       header.Filename,
		SegmentDuration: form.SegmentDuration,
		OverlapDuration: form.OverlapDuration,
	})
	if err != nil {
		status, code, message := classify(err)
		h.logger.Warn("split failed",
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
		writeError(w, status, message, code)
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		Success:  true,
		Message:  "Audio split successfully",
		RunID:    result.ID,
		Duration: split.TotalDuration,
		Settings: split.Settings,
		Parts:    partsToResponse(result.Parts),
	})
}

// parseForm reads the split parameters, applying defaults to missing
// fields. An explicit zero overlap is kept.
func (h *Handlers) parseForm(r *http.Request) (UploadForm, error) {
	form := UploadForm{
		SegmentDuration: h.segmentDuration,
		OverlapDuration: h.overlapDuration,
	}

	for name, dst := range map[string]*int{
		"segmentDuration": &form.SegmentDuration,
		"overlapDuration": &form.OverlapDuration,
	} {
		raw := r.FormValue(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return form, fmt.Errorf("%s must be an integer number of seconds", name)
		}
		*dst = v
	}

	if err := h.validator.Struct(form); err != nil {
		return form, errors.New("segmentDuration must be positive and overlapDuration must be >= 0 and < segmentDuration")
	}
	return form, nil
}

// classify maps a split error to an HTTP status, code and client message.
// Cancellation wins over the stage that observed it.
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "CANCELLED", "request cancelled before the split finished"
	case errors.Is(err, audio.ErrInvalidParameters):
		return http.StatusBadRequest, audio.CodeInvalidParameters, "invalid segment or overlap duration"
	case errors.Is(err, audio.ErrProbeFailed):
		return http.StatusUnprocessableEntity, audio.CodeProbeFailed, "could not read the audio duration"
	case errors.Is(err, audio.ErrDirectoryAccess):
		return http.StatusInternalServerError, audio.CodeDirectoryAccess, "output directory is not accessible"
	case errors.Is(err, audio.ErrTranscodeFailed):
		var tErr *audio.TranscodeError
		if errors.As(err, &tErr) {
			return http.StatusInternalServerError, audio.CodeTranscodeFailed, "failed to produce segment " + tErr.Segment
		}
		return http.StatusInternalServerError, audio.CodeTranscodeFailed, "failed to produce segments"
	default:
		return http.StatusInternalServerError, audio.CodeInternal, "internal server error"
	}
}

// Download handles GET /audio/download/{filename} requests.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")

	filePath, err := h.files.OutputPath(name)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidName) {
			writeError(w, http.StatusBadRequest, "invalid file name", "INVALID_FILENAME")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to resolve file", "INTERNAL_ERROR")
		return
	}

	info, err := os.Stat(filePath)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "file not found", "NOT_FOUND")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, filePath)
}

// ListRuns handles GET /runs requests.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.service.ListRuns(r.Context(), runListLimit)
	if err != nil {
		h.logger.Error("failed to list runs", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list runs", "RUN_FETCH_FAILED")
		return
	}

	resp := RunListResponse{Runs: make([]RunResponse, len(runs))}
	for i, rn := range runs {
		resp.Runs[i] = runToResponse(rn)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetRun handles GET /runs/{id} requests.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "run ID is required", "MISSING_RUN_ID")
		return
	}

	found, err := h.service.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, run.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found", "RUN_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get run",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get run", "RUN_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, runToResponse(found))
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Success: false,
		Message: message,
		Code:    code,
	})
}
