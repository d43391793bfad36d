package httpclassifier

import (
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
)

// Pool holds classifier base URLs and hands them out round-robin.
type Pool struct {
	endpoints []string
	counter   atomic.Uint64
}

// NewPool validates and normalises urls. At least one is required.
func NewPool(urls []string) (*Pool, error) {
	var eps []string
	for _, raw := range urls {
		raw = strings.TrimRight(strings.TrimSpace(raw), "/")
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("httpclassifier: invalid endpoint %q", raw)
		}
		eps = append(eps, raw)
	}
	if len(eps) == 0 {
		return nil, fmt.Errorf("httpclassifier: at least one endpoint is required")
	}
	return &Pool{endpoints: eps}, nil
}

// Round returns every endpoint once, starting at the next round-robin
// position. Safe for concurrent use.
func (p *Pool) Round() []string {
	start := (p.counter.Add(1) - 1) % uint64(len(p.endpoints))
	out := make([]string, 0, len(p.endpoints))
	for i := range p.endpoints {
		out = append(out, p.endpoints[(start+uint64(i))%uint64(len(p.endpoints))])
	}
	return out
}

// Len returns the number of endpoints.
func (p *Pool) Len() int { return len(p.endpoints) }
