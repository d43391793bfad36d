// Package detect finds secrets in extracted document text. A remote
// classifier is the primary source; a local rule table always runs as well
// and can only add findings, never remove them.
package detect

import "unicode/utf8"

// Severity of a finding.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func (s Severity) valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// Source says which detector produced a finding.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// Finding is a single detected secret. Value always holds the full match;
// use Display before handing findings to a UI.
type Finding struct {
	Type     string   `json:"type"`
	Value    string   `json:"value"`
	Category string   `json:"category,omitempty"`
	Severity Severity `json:"severity"`
	Source   Source   `json:"source"`
}

// DisplayLimit is the number of runes of a value shown to users.
const DisplayLimit = 80

// Display returns a copy of f with Value cut to DisplayLimit runes.
func (f Finding) Display() Finding {
	if utf8.RuneCountInString(f.Value) <= DisplayLimit {
		return f
	}
	n := 0
	for i := range f.Value {
		if n == DisplayLimit {
			f.Value = f.Value[:i] + "…"
			break
		}
		n++
	}
	return f
}

// Report is the outcome of one detection pass.
type Report struct {
	Secrets  bool
	Findings []Finding
	// Note explains an empty report that did not come from a detector,
	// e.g. NoteInsufficientContent.
	Note string
}

// NoteInsufficientContent marks text too short to classify.
const NoteInsufficientContent = "insufficient_content"
