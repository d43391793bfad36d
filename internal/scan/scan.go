// Package scan runs the inspection pipeline for one uploaded file:
// fingerprint, coalesced and cached extraction, detection, decision.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gonkalabs/pdfguard/internal/coalesce"
	"github.com/gonkalabs/pdfguard/internal/detect"
	"github.com/gonkalabs/pdfguard/internal/extract"
	"github.com/gonkalabs/pdfguard/internal/fingerprint"
	"github.com/gonkalabs/pdfguard/internal/policy"
	"github.com/gonkalabs/pdfguard/internal/telemetry"
)

var (
	// ErrEmptyFile is returned for zero-byte uploads, together with a
	// blocking verdict.
	ErrEmptyFile = errors.New("scan: empty file")
	// ErrTooLarge is returned for uploads above the configured ceiling.
	ErrTooLarge  = errors.New("scan: file too large")
	// ErrDetection wraps every detector failure.
	ErrDetection = errors.New("scan: detection failed")
)

// ErrorEmptyPDF is the verdict error code for zero-byte uploads.
const ErrorEmptyPDF = "empty_pdf"

// DefaultCacheSize is the extraction cache bound used when none is given.
const DefaultCacheSize = 128

// File is one submitted upload.
type File struct {
	Filename     string
	DeclaredSize int64
	Data         []byte
}

// Verdict is the terminal result of one scan. It is built once and not
// modified afterwards.
type Verdict struct {
	ScanID     string           `json:"scanId"`
	Secrets    bool             `json:"secrets"`
	Findings   []detect.Finding `json:"findings"`
	Action     policy.Action    `json:"action"`
	TextLength int              `json:"textLength"`
	ScannedAt  time.Time        `json:"scannedAt"`
	Strategy   extract.Strategy `json:"strategy,omitempty"`
	Cached     bool             `json:"cached"`
	Note       string           `json:"note,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// Extractor turns PDF bytes into text.
type Extractor interface {
	Extract(data []byte) extract.Result
}

// Detector finds secrets in text.
type Detector interface {
	Detect(ctx context.Context, text string) (detect.Report, error)
}

// Options configures a Service.
type Options struct {
	Extractor Extractor
	Detector  Detector
	// CacheSize bounds the extraction cache. Zero means DefaultCacheSize;
	// negative disables caching while keeping coalescing.
	CacheSize int
	// MaxBytes rejects larger files with ErrTooLarge. Zero means no limit.
	MaxBytes int64
	Metrics  *telemetry.Metrics
}

// Service owns the extraction cache and in-flight map. It is safe for
// concurrent use.
type Service struct {
	extractor Extractor
	detector  Detector
	maxBytes  int64
	metrics   *telemetry.Metrics
	cache     *coalesce.Group[fingerprint.Fingerprint, extract.Result]
}

// New creates a Service.
func New(opts Options) *Service {
	size := opts.CacheSize
	switch {
	case size == 0:
		size = DefaultCacheSize
	case size < 0:
		size = 0
	}
	return &Service{
		extractor: opts.Extractor,
		detector:  opts.Detector,
		maxBytes:  opts.MaxBytes,
		metrics:   opts.Metrics,
		cache: coalesce.New[fingerprint.Fingerprint](coalesce.Options[extract.Result]{
			Capacity: size,
			Keep:     extract.Result.Usable,
		}),
	}
}

// Scan inspects f. Classifier outages come back as errors wrapping
// detect.ErrClassifierUnavailable; a zero-byte file yields a blocking
// verdict together with ErrEmptyFile.
func (s *Service) Scan(ctx context.Context, f File) (Verdict, error) {
	v := Verdict{
		ScanID:    uuid.NewString(),
		Findings:  []detect.Finding{},
		ScannedAt: time.Now().UTC(),
	}

	if len(f.Data) == 0 {
		v.Action = policy.EmptyFile().Action
		v.Error = ErrorEmptyPDF
		s.metrics.Scan(ctx, string(v.Action))
		return v, ErrEmptyFile
	}
	if s.maxBytes > 0 && int64(len(f.Data)) > s.maxBytes {
		return Verdict{}, fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(f.Data), s.maxBytes)
	}
	if f.DeclaredSize > 0 && f.DeclaredSize != int64(len(f.Data)) {
		slog.Debug("scan: declared size differs", "declared", f.DeclaredSize, "actual", len(f.Data))
	}

	fp := fingerprint.Of(f.Data, f.Filename)
	res, outcome, err := s.cache.Do(ctx, fp, func() (extract.Result, error) {
		r := s.extractor.Extract(f.Data)
		s.metrics.Extraction(ctx, string(r.Strategy), r.Failed)
		return r, nil
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("scan: extract: %w", err)
	}
	s.metrics.CacheLookup(ctx, outcome.String())

	report, err := s.detector.Detect(ctx, res.Text)
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %w", ErrDetection, err)
	}

	d := policy.Decide(len(report.Findings), report.Secrets)
	v.Secrets = d.SecretsFound
	v.Action = d.Action
	v.TextLength = len(res.Text)
	v.Strategy = res.Strategy
	v.Cached = outcome != coalesce.Miss
	v.Note = report.Note
	for _, finding := range report.Findings {
		v.Findings = append(v.Findings, finding.Display())
	}
	if res.Failed {
		v.Strategy = ""
		v.Note = "extraction_failed"
	}

	s.metrics.Scan(ctx, string(v.Action))
	slog.Info("scan: done",
		"scan_id", v.ScanID,
		"fingerprint", fp.Short(),
		"action", v.Action,
		"findings", len(v.Findings),
		"strategy", res.Strategy,
		"lookup", outcome,
		"text_len", v.TextLength,
	)
	return v, nil
}

// Stats returns extraction cache counters.
func (s *Service) Stats() coalesce.Stats { return s.cache.Stats() }

// ClearCache drops every cached extraction.
func (s *Service) ClearCache() { s.cache.Clear() }
