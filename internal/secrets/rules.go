// Package secrets finds and redacts credentials in fetched content.
//
// Fetched pages regularly contain pasted keys, tokens and connection strings.
// The gatekeeper's Guardian phase runs every record through a Redactor so
// none of them reach synthesis or the archive.
package secrets

// Severity grades a rule.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// Rule is one detection pattern. When Keywords is non-empty the pattern is
// only tried if at least one keyword occurs (case-insensitively) in the
// content.
type Rule struct {
	ID       string   `koanf:"id"`
	Pattern  string   `koanf:"pattern"`
	Keywords []string `koanf:"keywords"`
	Severity Severity `koanf:"severity"`
}

// DefaultRules covers the credential formats that show up in public pages:
// provider-prefixed tokens, private key blocks, URLs with embedded
// passwords, and key=value assignments.
func DefaultRules() []Rule {
	return []Rule{
		{ID: "aws-access-key-id", Pattern: `\b(?:A3T[A-Z0-9]|AKIA|AGPA|AIDA|AROA|AIPA|ANPA|ANVA|ASIA)[A-Z0-9]{16}\b`, Severity: SeverityHigh},
		{ID: "private-key", Pattern: `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY(?: BLOCK)?-----`, Severity: SeverityHigh},
		{ID: "github-token", Pattern: `\b(?:ghp|gho|ghu|ghs)_[A-Za-z0-9]{36}\b|\bgithub_pat_[A-Za-z0-9_]{22,}`, Severity: SeverityHigh},
		{ID: "gitlab-token", Pattern: `\bglpat-[A-Za-z0-9\-]{20,}`, Severity: SeverityHigh},
		{ID: "slack-token", Pattern: `\bxox[baprs]-[A-Za-z0-9\-]{10,}`, Severity: SeverityHigh},
		{ID: "stripe-key", Pattern: `\b(?:sk|rk)_live_[A-Za-z0-9]{24,}`, Severity: SeverityHigh},
		{ID: "google-api-key", Pattern: `\bAIza[A-Za-z0-9_\-]{35}`, Severity: SeverityHigh},
		{ID: "anthropic-api-key", Pattern: `\bsk-ant-[A-Za-z0-9_\-]{32,}`, Severity: SeverityHigh},
		{ID: "openai-api-key", Pattern: `\bsk-(?:proj-)?[A-Za-z0-9_\-]{40,}`, Severity: SeverityHigh},
		{ID: "jwt", Pattern: `\beyJ[A-Za-z0-9_-]{8,}\.eyJ[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}`, Severity: SeverityMedium},
		{
			ID:       "url-credentials",
			Pattern:  `(?i)\b(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|amqps?)://[^\s:/@]+:[^\s@]+@[^\s]+`,
			Keywords: []string{"://"},
			Severity: SeverityHigh,
		},
		{
			ID:       "assigned-secret",
			Pattern:  `(?i)\b(?:api[_-]?key|secret[_-]?key|access[_-]?token|auth[_-]?token|password|passwd)\s*[:=]\s*['"]?[A-Za-z0-9_\-/+=.]{12,}['"]?`,
			Keywords: []string{"key", "token", "pass"},
			Severity: SeverityHigh,
		},
		{
			ID:       "bearer-token",
			Pattern:  `(?i)\bbearer\s+[A-Za-z0-9_\-.=]{20,}`,
			Keywords: []string{"bearer"},
			Severity: SeverityMedium,
		},
	}
}
