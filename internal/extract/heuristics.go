package extract

import (
	"strings"

	"github.com/gonkalabs/pdfguard/internal/rx"
)

// maxHeuristicMatches bounds how many matches a bucket contributes.
const maxHeuristicMatches = 512

// heuristicBucket is one tier of raw-byte pattern matching. Buckets are
// tried in order and the first one with any accepted match is used alone.
type heuristicBucket struct {
	name     string
	patterns []*rx.Regexp
	accept   func(string) bool
}

var heuristicBuckets = []heuristicBucket{
	{
		name: "credential",
		patterns: []*rx.Regexp{
			rx.MustCompile(`(?:AKIA|ASIA|ABIA|ACCA)[0-9A-Z]{16}`),
			rx.MustCompile(`gh[pousr]_[A-Za-z0-9]{36}`),
			rx.MustCompile(`glpat-[A-Za-z0-9_\-]{20}`),
			rx.MustCompile(`xox[baprs]-[A-Za-z0-9\-]{10,48}`),
			rx.MustCompile(`[sr]k_live_[0-9A-Za-z]{24,99}`),
			rx.MustCompile(`AIza[0-9A-Za-z_\-]{35}`),
			rx.MustCompile(`sk-(?:proj-|ant-)?[A-Za-z0-9_\-]{32,}`),
			rx.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----`),
		},
	},
	{
		name:     "base64",
		patterns: []*rx.Regexp{rx.MustCompile(`[A-Za-z0-9+/]{20,}={0,2}`)},
		accept:   acceptBase64Run,
	},
	{
		name:     "text",
		patterns: []*rx.Regexp{rx.MustCompile(`[A-Za-z][A-Za-z0-9 ,.;:'!?()\-]{29,}`)},
		accept:   acceptTextRun,
	},
	{
		name:     "token",
		patterns: []*rx.Regexp{rx.MustCompile(`[A-Za-z0-9_\-]{15,}`)},
		accept:   acceptToken,
	},
}

// noiseMarkers are substrings of document metadata, font and structure
// identifiers that look like tokens but never carry secrets.
var noiseMarkers = []string{
	"adobe", "xmp", "documentid", "instanceid", "uuid", "rdf", "fontfile",
	"fontdescriptor", "flatedecode", "ascii85decode", "xobject", "procset",
	"mediabox", "cropbox", "producer", "creator", "creationdate", "moddate",
	"helvetica", "times", "arial", "calibri", "courier", "winansiencoding",
	"microsoft", "libreoffice", "ghostscript", "quartz",
}

// structuralKeywords disqualify a text run: it is PDF syntax, not prose.
var structuralKeywords = []string{
	" obj", "endobj", "stream", "xref", "trailer", "/Type", "/Length",
	"/Filter", "/Font", "/Page", "/Resources", "/Root", "BT ", " ET",
}

// scanHeuristics returns the first bucket with accepted matches and the
// matches joined by newlines.
func scanHeuristics(data []byte) (string, string) {
	for _, b := range heuristicBuckets {
		matches := b.find(data)
		if len(matches) > 0 {
			return b.name, strings.Join(matches, "\n")
		}
	}
	return "", ""
}

func (b heuristicBucket) find(data []byte) []string {
	seen := make(map[string]bool)
	var out []string
	for _, re := range b.patterns {
		for _, m := range re.FindAll(data, -1) {
			s := string(m)
			if seen[s] {
				continue
			}
			if b.accept != nil && !b.accept(s) {
				continue
			}
			seen[s] = true
			out = append(out, s)
			if len(out) >= maxHeuristicMatches {
				return out
			}
		}
	}
	return out
}

func acceptBase64Run(s string) bool {
	if isNoise(s) || isRepetitive(s) {
		return false
	}
	var upper, lower, digit bool
	for _, c := range s {
		switch {
		case c >= 'A' && c <= 'Z':
			upper = true
		case c >= 'a' && c <= 'z':
			lower = true
		case c >= '0' && c <= '9':
			digit = true
		}
	}
	// Plain words glued together are not base64 payloads.
	return digit && (upper || lower)
}

func acceptTextRun(s string) bool {
	for _, kw := range structuralKeywords {
		if strings.Contains(s, kw) {
			return false
		}
	}
	return !isNoise(s)
}

func acceptToken(s string) bool {
	return !isNoise(s) && !isRepetitive(s)
}

func isNoise(s string) bool {
	lower := strings.ToLower(s)
	for _, m := range noiseMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// isRepetitive reports strings dominated by one character or made of a
// repeated half, such as padding or fill patterns.
func isRepetitive(s string) bool {
	if len(s) < 4 {
		return false
	}
	counts := make(map[rune]int)
	for _, c := range s {
		counts[c]++
	}
	for _, n := range counts {
		if float64(n)/float64(len(s)) > 0.6 {
			return true
		}
	}
	if len(s) >= 6 {
		half := s[:len(s)/2]
		if strings.Contains(s, half+half) {
			return true
		}
	}
	return false
}
