// Package extract turns PDF bytes into analyzable text.
//
// Extraction is a cascade: a standard structured parse, an alternative
// structured parse with relaxed limits, and a raw-stream fallback that works
// directly on the byte buffer when the document structure is unusable. The
// first strategy producing enough text wins. Extract never fails; a document
// nothing could be recovered from yields a Result with Failed set.
package extract

import (
	"log/slog"
	"strings"
)

// Strategy names the extraction strategy that produced a result.
type Strategy string

const (
	StrategyStandard    Strategy = "standard"
	StrategyAlternative Strategy = "alternative"
	StrategyFallback    Strategy = "fallback"
)

const (
	// MinCascadeText is the trimmed length below which the next strategy
	// is tried.
	MinCascadeText = 10
	// MinUsableText is the trimmed length below which extraction failed.
	MinUsableText = 5
	// DefaultMaxPages is the page limit of the standard parse.
	DefaultMaxPages = 200
)

// Result is the outcome of extracting one document. Once returned it is
// shared between callers and must be treated as read-only.
type Result struct {
	Text      string   `json:"text"`
	PageCount int      `json:"pageCount"`
	Strategy  Strategy `json:"strategy"`
	Failed    bool     `json:"failed"`
}

// Usable reports whether the result carries enough text to be cached. Text
// shorter than MinCascadeText is kept out of the cache even when it did not
// count as a failure.
func (r Result) Usable() bool {
	return !r.Failed && len(strings.TrimSpace(r.Text)) >= MinCascadeText
}

// Config tunes the extractor.
type Config struct {
	// MaxPages bounds the standard parse. Documents with more pages are
	// left to the alternative parse. Zero means DefaultMaxPages.
	MaxPages int
}

type strategy struct {
	name Strategy
	run  func(data []byte) (Result, error)
}

// Extractor runs the strategy cascade. It is safe for concurrent use.
type Extractor struct {
	strategies []strategy
}

// New creates an Extractor.
func New(cfg Config) *Extractor {
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Extractor{
		strategies: []strategy{
			{name: StrategyStandard, run: standardParse(maxPages)},
			{name: StrategyAlternative, run: alternativeParse},
			{name: StrategyFallback, run: rawFallback},
		},
	}
}

// Extract runs the cascade over data.
func (e *Extractor) Extract(data []byte) Result {
	var best Result
	bestLen := 0
	pageCount := 0

	for _, s := range e.strategies {
		res, err := s.run(data)
		if res.PageCount > pageCount {
			pageCount = res.PageCount
		}
		if err != nil {
			slog.Debug("extract: strategy failed", "strategy", s.name, "err", err)
			continue
		}
		res.Strategy = s.name
		n := len(strings.TrimSpace(res.Text))
		if n >= MinCascadeText {
			if res.PageCount == 0 {
				res.PageCount = pageCount
			}
			return res
		}
		slog.Debug("extract: insufficient text, cascading", "strategy", s.name, "chars", n)
		if n > bestLen {
			best, bestLen = res, n
		}
	}

	if bestLen >= MinUsableText {
		if best.PageCount == 0 {
			best.PageCount = pageCount
		}
		return best
	}
	return Result{PageCount: pageCount, Strategy: StrategyFallback, Failed: true}
}
