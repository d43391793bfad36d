package submission

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/gonkalabs/pdfguard/internal/fingerprint"
)

// DedupSet remembers zero-byte submissions already answered. Entries are
// small, so the set is cleared on a schedule instead of being bounded.
type DedupSet struct {
	mu   sync.Mutex
	seen map[fingerprint.Fingerprint]struct{}
}

// NewDedupSet creates an empty set.
func NewDedupSet() *DedupSet {
	return &DedupSet{seen: make(map[fingerprint.Fingerprint]struct{})}
}

// Add records fp and reports whether it was new.
func (d *DedupSet) Add(fp fingerprint.Fingerprint) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[fp]; ok {
		return false
	}
	d.seen[fp] = struct{}{}
	return true
}

// Len returns the number of remembered fingerprints.
func (d *DedupSet) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// Clear forgets everything.
func (d *DedupSet) Clear() {
	d.mu.Lock()
	n := len(d.seen)
	d.seen = make(map[fingerprint.Fingerprint]struct{})
	d.mu.Unlock()
	slog.Debug("submission: dedup set cleared", "entries", n)
}

// Schedule registers Clear on c using a standard cron spec or descriptor
// such as "@daily".
func (d *DedupSet) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, d.Clear)
	if err != nil {
		return 0, fmt.Errorf("submission: schedule dedup reset %q: %w", spec, err)
	}
	return id, nil
}
