package detect

import (
	"context"
	"errors"
)

// ErrClassifierUnavailable is returned when the remote classifier could not
// be reached in time. Callers must treat it as retryable and never as a
// clean result.
var ErrClassifierUnavailable = errors.New("classifier unavailable")

// Classification is what a remote classifier reports for one text.
type Classification struct {
	Secrets  bool
	Findings []Finding
}

// Classifier is a remote secret classifier.
// Implementations must be safe for concurrent use.
type Classifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}
