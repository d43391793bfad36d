package detect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gonkalabs/pdfguard/internal/telemetry"
)

// MinClassifiableText is the shortest trimmed text sent to any detector.
const MinClassifiableText = 10

// DefaultTimeout bounds one remote classifier call.
const DefaultTimeout = 15 * time.Second

// Options configures an Ensemble.
type Options struct {
	// Remote is the primary classifier. Nil runs the local rules only.
	Remote Classifier
	// RemoteName labels remote errors in metrics, e.g. "http" or "llm".
	RemoteName string
	Rules      *Rules
	Timeout    time.Duration
	Metrics    *telemetry.Metrics
}

// Ensemble combines a remote classifier with the local rule table.
type Ensemble struct {
	remote     Classifier
	remoteName string
	rules      *Rules
	timeout    time.Duration
	metrics    *telemetry.Metrics
}

// NewEnsemble builds an ensemble. Rules must not be nil.
func NewEnsemble(opts Options) *Ensemble {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RemoteName == "" {
		opts.RemoteName = "remote"
	}
	return &Ensemble{
		remote:     opts.Remote,
		remoteName: opts.RemoteName,
		rules:      opts.Rules,
		timeout:    opts.Timeout,
		metrics:    opts.Metrics,
	}
}

// Detect classifies text. A remote timeout or outage yields an error
// wrapping ErrClassifierUnavailable; it is never reported as a clean result.
func (e *Ensemble) Detect(ctx context.Context, text string) (Report, error) {
	if len(strings.TrimSpace(text)) < MinClassifiableText {
		return Report{Note: NoteInsufficientContent}, nil
	}

	var report Report
	if e.remote != nil {
		res, err := e.classify(ctx, text)
		if err != nil {
			return Report{}, err
		}
		report.Secrets = res.Secrets
		for _, f := range res.Findings {
			f.Source = SourceRemote
			if !f.Severity.valid() {
				f.Severity = SeverityMedium
			}
			report.Findings = append(report.Findings, f)
		}
	}

	local := e.rules.Scan(text)
	if len(local) > 0 {
		report.Secrets = true
		report.Findings = append(report.Findings, local...)
	}
	if len(report.Findings) > 0 {
		report.Secrets = true
	}

	slog.Debug("detect: done", "remote", e.remote != nil, "local", len(local), "findings", len(report.Findings))
	return report, nil
}

func (e *Ensemble) classify(ctx context.Context, text string) (Classification, error) {
	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	res, err := e.remote.Classify(cctx, text)
	e.metrics.ClassifierDuration(ctx, e.remoteName, time.Since(start))
	if err == nil {
		return res, nil
	}

	// The caller gave up; that says nothing about the classifier.
	if ctx.Err() != nil {
		return Classification{}, fmt.Errorf("detect: classify: %w", ctx.Err())
	}
	if errors.Is(err, ErrClassifierUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		e.metrics.ClassifierError(ctx, "unavailable")
		slog.Warn("detect: classifier unavailable", "classifier", e.remoteName, "err", err)
		if errors.Is(err, ErrClassifierUnavailable) {
			return Classification{}, fmt.Errorf("detect: classify: %w", err)
		}
		return Classification{}, fmt.Errorf("detect: classify: %w: %w", ErrClassifierUnavailable, err)
	}
	e.metrics.ClassifierError(ctx, "error")
	slog.Error("detect: classifier failed", "classifier", e.remoteName, "err", err)
	return Classification{}, fmt.Errorf("detect: classify: %w", err)
}
