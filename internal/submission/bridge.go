package submission

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gonkalabs/pdfguard/internal/coalesce"
	"github.com/gonkalabs/pdfguard/internal/fingerprint"
	"github.com/gonkalabs/pdfguard/internal/scan"
)

// Scanner runs one scan.
type Scanner interface {
	Scan(ctx context.Context, f scan.File) (scan.Verdict, error)
}

// Result is what the bridge hands back for one message.
type Result struct {
	Verdict scan.Verdict
	// Suppressed is set for a repeated zero-byte submission that was not
	// scanned again.
	Suppressed bool
	// Joined is set when the message shared another message's scan.
	Joined bool
}

// Bridge deduplicates scan messages arriving through several extension
// channels for the same upload. Concurrent messages for one fingerprint
// share a single scan; nothing is cached once it completes.
type Bridge struct {
	scanner  Scanner
	inflight *coalesce.Group[fingerprint.Fingerprint, scan.Verdict]
	empties  *DedupSet
}

// NewBridge creates a Bridge. A nil set gets a fresh one.
func NewBridge(s Scanner, empties *DedupSet) *Bridge {
	if empties == nil {
		empties = NewDedupSet()
	}
	return &Bridge{
		scanner:  s,
		inflight: coalesce.New[fingerprint.Fingerprint](coalesce.Options[scan.Verdict]{}),
		empties:  empties,
	}
}

// Submit decodes msg and scans it. Errors are ErrInvalidPayload, the
// scanner's errors, or ctx errors. A zero-byte file returns its blocking
// verdict along with scan.ErrEmptyFile the first time, and Suppressed
// afterwards until the dedup set is cleared.
func (b *Bridge) Submit(ctx context.Context, msg Message) (Result, error) {
	f, err := Decode(msg)
	if err != nil {
		return Result{}, err
	}
	fp := fingerprint.Of(f.Data, f.Filename)

	if len(f.Data) == 0 && !b.empties.Add(fp) {
		slog.Debug("submission: repeated empty upload suppressed", "fingerprint", fp.Short(), "filename", f.Filename)
		return Result{Suppressed: true}, scan.ErrEmptyFile
	}

	// The empty-file verdict travels through the group as a value; its
	// sentinel is restored below. The shared scan must outlive any single
	// message's request.
	shared := context.WithoutCancel(ctx)
	v, outcome, err := b.inflight.Do(ctx, fp, func() (scan.Verdict, error) {
		v, err := b.scanner.Scan(shared, f)
		if errors.Is(err, scan.ErrEmptyFile) {
			return v, nil
		}
		return v, err
	})
	if err != nil {
		return Result{}, err
	}
	res := Result{Verdict: v, Joined: outcome == coalesce.Joined}
	if len(f.Data) == 0 {
		return res, scan.ErrEmptyFile
	}
	return res, nil
}

// Pending returns the number of scans currently shared between messages.
func (b *Bridge) Pending() int { return b.inflight.Stats().InFlight }

// Empties returns the zero-byte dedup set.
func (b *Bridge) Empties() *DedupSet { return b.empties }
