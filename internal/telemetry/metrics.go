package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	attrAction     = attribute.Key("action")
	attrOutcome    = attribute.Key("outcome")
	attrStrategy   = attribute.Key("strategy")
	attrFailed     = attribute.Key("failed")
	attrKind       = attribute.Key("kind")
	attrClassifier = attribute.Key("classifier")
)

// Metrics holds the pdfguard instruments. A nil *Metrics records nothing,
// so components can take one optionally.
type Metrics struct {
	scans              metric.Int64Counter
	cacheLookups       metric.Int64Counter
	extractions        metric.Int64Counter
	classifierErrors   metric.Int64Counter
	classifierDuration metric.Float64Histogram
}

// NewMetrics creates every instrument from meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.scans, err = meter.Int64Counter("pdfguard.scans",
		metric.WithDescription("Completed scans by action"),
	)
	if err != nil {
		return nil, err
	}

	m.cacheLookups, err = meter.Int64Counter("pdfguard.cache.lookups",
		metric.WithDescription("Extraction cache lookups by outcome"),
	)
	if err != nil {
		return nil, err
	}

	m.extractions, err = meter.Int64Counter("pdfguard.extractions",
		metric.WithDescription("Extractions run, by strategy"),
	)
	if err != nil {
		return nil, err
	}

	m.classifierErrors, err = meter.Int64Counter("pdfguard.classifier.errors",
		metric.WithDescription("Remote classifier failures"),
	)
	if err != nil {
		return nil, err
	}

	m.classifierDuration, err = meter.Float64Histogram("pdfguard.classifier.duration",
		metric.WithDescription("Remote classifier call duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Scan counts a finished scan.
func (m *Metrics) Scan(ctx context.Context, action string) {
	if m == nil {
		return
	}
	m.scans.Add(ctx, 1, metric.WithAttributes(attrAction.String(action)))
}

// CacheLookup counts an extraction cache lookup; outcome is hit, joined or
// miss.
func (m *Metrics) CacheLookup(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attrOutcome.String(outcome)))
}

// Extraction counts one run of the extractor.
func (m *Metrics) Extraction(ctx context.Context, strategy string, failed bool) {
	if m == nil {
		return
	}
	m.extractions.Add(ctx, 1, metric.WithAttributes(
		attrStrategy.String(strategy),
		attrFailed.Bool(failed),
	))
}

// ClassifierError counts a remote classifier failure of the given kind.
func (m *Metrics) ClassifierError(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.classifierErrors.Add(ctx, 1, metric.WithAttributes(attrKind.String(kind)))
}

// ClassifierDuration records how long one classifier call took.
func (m *Metrics) ClassifierDuration(ctx context.Context, classifier string, d time.Duration) {
	if m == nil {
		return
	}
	m.classifierDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attrClassifier.String(classifier)))
}
