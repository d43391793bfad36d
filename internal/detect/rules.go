package detect

import (
	_ "embed"
	"fmt"
	"os"
	"regexp/syntax"
	"strings"

	"github.com/cloudflare/ahocorasick"
	"gopkg.in/yaml.v3"

	"github.com/gonkalabs/pdfguard/internal/rx"
)

//go:embed rules/default.yaml
var defaultRuleTable []byte

// Rule is one entry of the local rule table.
type Rule struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Category string   `yaml:"category"`
	Severity Severity `yaml:"severity"`
	Regex    string   `yaml:"regex"`
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

type compiledRule struct {
	Rule
	re *rx.Regexp
}

// Rules is a compiled rule table. Rules whose pattern requires a literal of
// at least minKeywordLen bytes only run when an Aho-Corasick pass over the
// text has seen that literal.
type Rules struct {
	rules     []compiledRule
	matcher   *ahocorasick.Matcher
	byKeyword map[int][]int
	always    []int
}

const minKeywordLen = 4

// DefaultRules compiles the embedded rule table.
func DefaultRules() (*Rules, error) {
	return ParseRules(defaultRuleTable)
}

// LoadRulesFile compiles the rule table stored at path.
func LoadRulesFile(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("detect: read rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules compiles a YAML rule table.
func ParseRules(data []byte) (*Rules, error) {
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("detect: parse rules: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("detect: rule table is empty")
	}

	r := &Rules{byKeyword: make(map[int][]int)}
	seen := make(map[string]bool, len(file.Rules))
	var keywords []string
	keywordIdx := make(map[string]int)

	for i, rule := range file.Rules {
		if rule.ID == "" {
			return nil, fmt.Errorf("detect: rule %d: missing id", i)
		}
		if seen[rule.ID] {
			return nil, fmt.Errorf("detect: rule %s: duplicate id", rule.ID)
		}
		seen[rule.ID] = true
		if rule.Name == "" {
			rule.Name = rule.ID
		}
		if rule.Severity == "" {
			rule.Severity = SeverityMedium
		}
		if !rule.Severity.valid() {
			return nil, fmt.Errorf("detect: rule %s: unknown severity %q", rule.ID, rule.Severity)
		}
		re, err := rx.Compile(rule.Regex)
		if err != nil {
			return nil, fmt.Errorf("detect: rule %s: %w", rule.ID, err)
		}
		r.rules = append(r.rules, compiledRule{Rule: rule, re: re})

		kw := requiredLiteral(rule.Regex)
		if len(kw) < minKeywordLen {
			r.always = append(r.always, i)
			continue
		}
		idx, ok := keywordIdx[kw]
		if !ok {
			idx = len(keywords)
			keywords = append(keywords, kw)
			keywordIdx[kw] = idx
		}
		r.byKeyword[idx] = append(r.byKeyword[idx], i)
	}

	r.matcher = ahocorasick.NewStringMatcher(keywords)
	return r, nil
}

// Len returns the number of rules.
func (r *Rules) Len() int { return len(r.rules) }

// Scan runs the table against text. Findings come out in table order and a
// value is reported at most once.
func (r *Rules) Scan(text string) []Finding {
	content := []byte(text)

	run := make([]bool, len(r.rules))
	for _, i := range r.always {
		run[i] = true
	}
	for _, hit := range r.matcher.MatchThreadSafe(content) {
		for _, i := range r.byKeyword[hit] {
			run[i] = true
		}
	}

	var out []Finding
	seen := make(map[string]bool)
	for i, rule := range r.rules {
		if !run[i] {
			continue
		}
		for _, m := range rule.re.FindAll(content, -1) {
			v := string(m)
			if seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, Finding{
				Type:     rule.Name,
				Value:    v,
				Category: rule.Category,
				Severity: rule.Severity,
				Source:   SourceLocal,
			})
		}
	}
	return out
}

// requiredLiteral returns the longest case-sensitive literal every match of
// expr must contain, or "" when there is none.
func requiredLiteral(expr string) string {
	re, err := syntax.Parse(expr, syntax.Perl)
	if err != nil {
		return ""
	}
	return longestLiteral(re)
}

func longestLiteral(re *syntax.Regexp) string {
	switch re.Op {
	case syntax.OpLiteral:
		if re.Flags&syntax.FoldCase != 0 {
			return ""
		}
		return string(re.Rune)
	case syntax.OpConcat:
		var best string
		for _, sub := range re.Sub {
			if lit := longestLiteral(sub); len(lit) > len(best) {
				best = lit
			}
		}
		return best
	case syntax.OpCapture, syntax.OpPlus:
		return longestLiteral(re.Sub[0])
	case syntax.OpRepeat:
		if re.Min > 0 {
			return longestLiteral(re.Sub[0])
		}
	}
	return ""
}

// String lists rule ids, for logs.
func (r *Rules) String() string {
	ids := make([]string, len(r.rules))
	for i, rule := range r.rules {
		ids[i] = rule.ID
	}
	return strings.Join(ids, ",")
}
