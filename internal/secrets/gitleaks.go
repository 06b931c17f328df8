package secrets

import (
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// gitleaksDetector is built once; compiling the default ruleset is slow.
var gitleaksDetector = sync.OnceValues(detect.NewDetectorDefaultConfig)

// gitleaksScanner runs the gitleaks default ruleset over single strings.
type gitleaksScanner struct {
	mu       sync.Mutex
	detector *detect.Detector
}

func newGitleaksScanner() (*gitleaksScanner, error) {
	d, err := gitleaksDetector()
	if err != nil {
		return nil, err
	}
	return &gitleaksScanner{detector: d}, nil
}

// scan returns one finding per occurrence of each detected secret. gitleaks
// reports line and column positions; the secret text is located directly in
// content so spans are byte offsets like the regex rules produce.
func (g *gitleaksScanner) scan(content string, allowed func(string) bool) []Finding {
	g.mu.Lock()
	found := g.detector.DetectString(content)
	g.mu.Unlock()

	var out []Finding
	seen := make(map[[2]int]bool)
	for _, f := range found {
		secret := f.Secret
		if secret == "" {
			secret = f.Match
		}
		if secret == "" || allowed(secret) {
			continue
		}
		for from := 0; from < len(content); {
			i := strings.Index(content[from:], secret)
			if i < 0 {
				break
			}
			span := [2]int{from + i, from + i + len(secret)}
			from = span[1]
			if seen[span] {
				continue
			}
			seen[span] = true
			out = append(out, Finding{
				RuleID:   "gitleaks:" + f.RuleID,
				Severity: SeverityHigh,
				Start:    span[0],
				End:      span[1],
			})
		}
	}
	return out
}
