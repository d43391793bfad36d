package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gonkalabs/pdfguard/internal/detect"
	"github.com/gonkalabs/pdfguard/internal/scan"
	"github.com/gonkalabs/pdfguard/internal/submission"
	"github.com/gonkalabs/pdfguard/internal/telemetry"
)

// Error codes in response bodies.
const (
	codeEmptyPDF              = scan.ErrorEmptyPDF
	codeMissingFile           = "missing_file"
	codeTooLarge              = "file_too_large"
	codeInvalidPayload        = "invalid_payload"
	codeClassifierUnavailable = "classifier_unavailable"
	codeClassifierError       = "classifier_error"
	codeInternal              = "internal_error"
)

// multipartOverhead is allowed on top of the upload ceiling for form
// boundaries and headers.
const multipartOverhead = 1 << 20

// Options configures a Handler.
type Options struct {
	Service        *scan.Service
	Bridge         *submission.Bridge
	MaxUploadBytes int64
	// Telemetry backs GET /metrics; nil or disabled answers 404.
	Telemetry *telemetry.Provider
}

// Handler implements all HTTP endpoints.
type Handler struct {
	svc       *scan.Service
	bridge    *submission.Bridge
	maxUpload int64
	telemetry *telemetry.Provider
}

// New creates a Handler.
func New(opts Options) *Handler {
	return &Handler{
		svc:       opts.Service,
		bridge:    opts.Bridge,
		maxUpload: opts.MaxUploadBytes,
		telemetry: opts.Telemetry,
	}
}

// Register mounts routes on the given mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("POST /scan", h.scanUpload)
	mux.HandleFunc("POST /scan/message", h.scanMessage)
	mux.HandleFunc("GET /stats", h.stats)
	mux.HandleFunc("DELETE /cache", h.clearCache)
	mux.HandleFunc("GET /metrics", h.metrics)
}

// ---------- endpoints ----------

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (h *Handler) scanUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)

	file, header, err := r.FormFile("pdf")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeErr(w, http.StatusRequestEntityTooLarge, codeTooLarge)
			return
		}
		writeErr(w, http.StatusBadRequest, codeMissingFile)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		slog.Warn("api: read upload", "err", err)
		writeErr(w, http.StatusBadRequest, codeMissingFile)
		return
	}

	v, err := h.svc.Scan(r.Context(), scan.File{
		Filename:     header.Filename,
		DeclaredSize: header.Size,
		Data:         data,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, v)
	case errors.Is(err, scan.ErrEmptyFile):
		writeJSON(w, http.StatusBadRequest, v)
	default:
		status, body := errorBody(err)
		writeJSON(w, status, body)
	}
}

type messageReply struct {
	Success    bool          `json:"success"`
	Result     *scan.Verdict `json:"result,omitempty"`
	Suppressed bool          `json:"suppressed,omitempty"`
	Error      string        `json:"error,omitempty"`
	Retryable  bool          `json:"retryable,omitempty"`
}

func (h *Handler) scanMessage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, messageBodyLimit(h.maxUpload))

	var msg submission.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, messageReply{Error: codeTooLarge})
			return
		}
		writeJSON(w, http.StatusBadRequest, messageReply{Error: codeInvalidPayload})
		return
	}

	res, err := h.bridge.Submit(r.Context(), msg)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, messageReply{Success: true, Result: &res.Verdict})
	case errors.Is(err, submission.ErrInvalidPayload):
		slog.Debug("api: invalid scan message", "err", err)
		writeJSON(w, http.StatusBadRequest, messageReply{Error: codeInvalidPayload})
	case errors.Is(err, scan.ErrEmptyFile):
		reply := messageReply{Error: codeEmptyPDF, Suppressed: res.Suppressed}
		if !res.Suppressed {
			reply.Result = &res.Verdict
		}
		writeJSON(w, http.StatusOK, reply)
	default:
		status, body := errorBody(err)
		writeJSON(w, status, messageReply{Error: body.Error, Retryable: body.Retryable})
	}
}

// messageBodyLimit is the largest JSON body accepted for a file of maxUpload
// bytes: its padded base64 length plus overhead for the envelope.
func messageBodyLimit(maxUpload int64) int64 {
	return (maxUpload+2)/3*4 + multipartOverhead
}

func (h *Handler) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"cache":           h.svc.Stats(),
		"dedupEntries":    h.bridge.Empties().Len(),
		"pendingMessages": h.bridge.Pending(),
	})
}

func (h *Handler) clearCache(w http.ResponseWriter, _ *http.Request) {
	n := h.svc.Stats().Entries
	h.svc.ClearCache()
	slog.Info("api: extraction cache cleared", "entries", n)
	writeJSON(w, http.StatusOK, map[string]any{"status": "cleared", "entries": n})
}

func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	if h.telemetry == nil {
		http.NotFound(w, r)
		return
	}
	rm, err := h.telemetry.Collect(r.Context())
	if errors.Is(err, telemetry.ErrDisabled) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.Error("api: collect metrics", "err", err)
		writeErr(w, http.StatusInternalServerError, codeInternal)
		return
	}
	writeJSON(w, http.StatusOK, rm)
}

// ---------- helpers ----------

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

// errorBody maps a scan error to a status and body.
func errorBody(err error) (int, errorResponse) {
	switch {
	case errors.Is(err, scan.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, errorResponse{Error: codeTooLarge}
	case errors.Is(err, detect.ErrClassifierUnavailable):
		return http.StatusServiceUnavailable, errorResponse{Error: codeClassifierUnavailable, Retryable: true}
	case errors.Is(err, context.Canceled):
		slog.Debug("api: client went away", "err", err)
		return http.StatusServiceUnavailable, errorResponse{Error: codeClassifierUnavailable, Retryable: true}
	case errors.Is(err, scan.ErrDetection):
		return http.StatusBadGateway, errorResponse{Error: codeClassifierError}
	default:
		slog.Error("api: scan failed", "err", err)
		return http.StatusInternalServerError, errorResponse{Error: codeInternal}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorResponse{Error: code})
}
