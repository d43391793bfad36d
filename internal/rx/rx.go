// Package rx wraps coregex so compiled patterns can be shared between
// goroutines. The coregex lazy DFA mutates internal state while matching,
// so every pattern carries its own lock.
package rx

import (
	"fmt"
	"sync"

	"github.com/coregx/coregex"
)

// Regexp is a coregex pattern safe for concurrent use.
type Regexp struct {
	expr string
	mu   sync.Mutex
	re   *coregex.Regexp
}

// Compile compiles expr.
func Compile(expr string) (*Regexp, error) {
	re, err := coregex.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("rx: compile %q: %w", expr, err)
	}
	return &Regexp{expr: expr, re: re}, nil
}

// MustCompile is like Compile but panics on error. Only for package-level
// patterns that are known to be valid.
func MustCompile(expr string) *Regexp {
	re, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return re
}

// FindAll returns up to n successive matches in b (all when n < 0).
func (r *Regexp) FindAll(b []byte, n int) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.re.FindAll(b, n)
}

// FindAllString is FindAll for strings.
func (r *Regexp) FindAllString(s string, n int) []string {
	matches := r.FindAll([]byte(s), n)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = string(m)
	}
	return out
}

// String returns the source expression.
func (r *Regexp) String() string { return r.expr }
