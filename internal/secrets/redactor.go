package secrets

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// DefaultReplacement is substituted for every redacted span.
const DefaultReplacement = "[REDACTED]"

// Config configures a Redactor.
type Config struct {
	Rules       []Rule
	Replacement string
	// Allow lists patterns whose matches are never redacted. It filters
	// gitleaks findings as well as rule matches.
	Allow []string
	// Gitleaks adds the gitleaks default ruleset on top of Rules.
	Gitleaks bool
}

// DefaultConfig returns the default rules and replacement with gitleaks
// detection enabled.
func DefaultConfig() Config {
	return Config{Rules: DefaultRules(), Replacement: DefaultReplacement, Gitleaks: true}
}

// Finding locates one redacted span in the original content. The matched
// text itself is never kept.
type Finding struct {
	RuleID   string   `json:"rule_id"`
	Severity Severity `json:"severity"`
	Start    int      `json:"start"`
	End      int      `json:"end"`
}

// Result is the outcome of Redact.
type Result struct {
	Text     string    `json:"-"`
	Findings []Finding `json:"findings,omitempty"`
}

// Redacted reports whether anything was replaced.
func (r Result) Redacted() bool { return len(r.Findings) > 0 }

// RuleIDs returns the distinct rule IDs that matched, sorted.
func (r Result) RuleIDs() []string {
	ids := make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		ids = append(ids, f.RuleID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

type compiledRule struct {
	Rule
	re       *regexp.Regexp
	keywords []string
}

// Redactor replaces credential-looking spans. It is safe for concurrent use.
type Redactor struct {
	rules       []compiledRule
	allow       []*regexp.Regexp
	gitleaks    *gitleaksScanner
	replacement string
}

// New compiles cfg into a Redactor.
func New(cfg Config) (*Redactor, error) {
	r := &Redactor{replacement: cfg.Replacement}
	if r.replacement == "" {
		r.replacement = DefaultReplacement
	}
	for i, rule := range cfg.Rules {
		if rule.ID == "" {
			return nil, fmt.Errorf("rule %d: id is required", i)
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: invalid pattern: %w", rule.ID, err)
		}
		kws := make([]string, len(rule.Keywords))
		for j, kw := range rule.Keywords {
			kws[j] = strings.ToLower(kw)
		}
		r.rules = append(r.rules, compiledRule{Rule: rule, re: re, keywords: kws})
	}
	for i, pattern := range cfg.Allow {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("allow %d: invalid pattern: %w", i, err)
		}
		r.allow = append(r.allow, re)
	}
	if cfg.Gitleaks {
		g, err := newGitleaksScanner()
		if err != nil {
			return nil, fmt.Errorf("gitleaks detector: %w", err)
		}
		r.gitleaks = g
	}
	return r, nil
}

// MustNew is New that panics on error.
func MustNew(cfg Config) *Redactor {
	r, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return r
}

// Redact returns content with every match replaced. Overlapping matches
// collapse into one replacement.
func (r *Redactor) Redact(content string) Result {
	var findings []Finding
	var lower string

	for _, rule := range r.rules {
		if len(rule.keywords) > 0 {
			if lower == "" {
				lower = strings.ToLower(content)
			}
			if !containsAny(lower, rule.keywords) {
				continue
			}
		}
		for _, m := range rule.re.FindAllStringIndex(content, -1) {
			if r.allowed(content[m[0]:m[1]]) {
				continue
			}
			findings = append(findings, Finding{
				RuleID:   rule.ID,
				Severity: rule.Severity,
				Start:    m[0],
				End:      m[1],
			})
		}
	}
	if r.gitleaks != nil {
		findings = append(findings, r.gitleaks.scan(content, r.allowed)...)
	}
	if len(findings) == 0 {
		return Result{Text: content}
	}

	slices.SortFunc(findings, func(a, b Finding) int {
		return cmp.Or(cmp.Compare(a.Start, b.Start), cmp.Compare(b.End, a.End))
	})

	var b strings.Builder
	b.Grow(len(content))
	pos := 0
	for _, span := range mergeSpans(findings) {
		b.WriteString(content[pos:span[0]])
		b.WriteString(r.replacement)
		pos = span[1]
	}
	b.WriteString(content[pos:])

	return Result{Text: b.String(), Findings: findings}
}

func (r *Redactor) allowed(match string) bool {
	for _, re := range r.allow {
		if re.MatchString(match) {
			return true
		}
	}
	return false
}

// mergeSpans folds sorted, possibly overlapping findings into disjoint
// [start, end) spans.
func mergeSpans(findings []Finding) [][2]int {
	spans := [][2]int{{findings[0].Start, findings[0].End}}
	for _, f := range findings[1:] {
		last := &spans[len(spans)-1]
		if f.Start <= last[1] {
			last[1] = max(last[1], f.End)
			continue
		}
		spans = append(spans, [2]int{f.Start, f.End})
	}
	return spans
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
