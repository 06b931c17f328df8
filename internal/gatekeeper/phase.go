// Package gatekeeper admits or rejects fetched content before it is used or
// archived.
//
// Content passes through an ordered list of phases. The first phase that
// rejects stops the scan; later phases never see the content. Only the
// Guardian phase rewrites content.
package gatekeeper

import (
	"context"
	"strings"

	"github.com/fyrsmithlabs/eternal/internal/secrets"
)

// PhaseName identifies a phase.
type PhaseName string

const (
	PhaseSentry       PhaseName = "Sentry"
	PhaseInterrogator PhaseName = "Interrogator"
	PhaseGuardian     PhaseName = "Guardian"
)

// Rejection reasons.
const (
	ReasonMaliciousSignature = "Known malicious signature detected."
	ReasonUnauthorizedExec   = "Data attempted to execute unauthorized code in sandbox."
	ReasonNullContent        = "Data is null or corrupted."
)

// Phase is one gating step. Evaluate must not modify *content; a phase that
// sanitizes returns the new content in the verdict.
type Phase interface {
	Name() PhaseName
	Evaluate(ctx context.Context, content *string) Verdict
}

// Sentry rejects content containing a known malicious signature.
type Sentry struct {
	Signatures []string
}

// DefaultSignatures are always checked by NewSentry.
var DefaultSignatures = []string{"malicious_signature"}

// NewSentry returns a Sentry checking DefaultSignatures plus extra.
func NewSentry(extra ...string) *Sentry {
	return &Sentry{Signatures: withDefaults(DefaultSignatures, extra)}
}

func (s *Sentry) Name() PhaseName { return PhaseSentry }

func (s *Sentry) Evaluate(_ context.Context, content *string) Verdict {
	if content != nil && containsAny(*content, s.Signatures) {
		return reject(PhaseSentry, ReasonMaliciousSignature)
	}
	return pass(PhaseSentry, content, "No known malicious signatures found.")
}

// Interrogator rejects content that tries to trigger execution.
type Interrogator struct {
	Markers []string
}

// DefaultMarkers are always checked by NewInterrogator.
var DefaultMarkers = []string{"attempt_to_execute"}

// NewInterrogator returns an Interrogator checking DefaultMarkers plus
// extra.
func NewInterrogator(extra ...string) *Interrogator {
	return &Interrogator{Markers: withDefaults(DefaultMarkers, extra)}
}

func (i *Interrogator) Name() PhaseName { return PhaseInterrogator }

func (i *Interrogator) Evaluate(_ context.Context, content *string) Verdict {
	if content != nil && containsAny(*content, i.Markers) {
		return reject(PhaseInterrogator, ReasonUnauthorizedExec)
	}
	return pass(PhaseInterrogator, content, "No suspicious behavior detected.")
}

var scriptEscaper = strings.NewReplacer(
	"<script>", "&lt;script&gt;",
	"</script>", "&lt;/script&gt;",
)

// Guardian rejects absent content and sanitizes the rest: script tags are
// escaped and, when a Redactor is set, credentials are redacted.
type Guardian struct {
	Redactor *secrets.Redactor
}

// NewGuardian returns a Guardian. A nil redactor disables redaction.
func NewGuardian(r *secrets.Redactor) *Guardian {
	return &Guardian{Redactor: r}
}

func (g *Guardian) Name() PhaseName { return PhaseGuardian }

func (g *Guardian) Evaluate(_ context.Context, content *string) Verdict {
	if content == nil {
		return reject(PhaseGuardian, ReasonNullContent)
	}
	sanitized := scriptEscaper.Replace(*content)
	v := pass(PhaseGuardian, &sanitized, "Data integrity verified and content sanitized.")
	if g.Redactor != nil {
		res := g.Redactor.Redact(sanitized)
		v.Content = res.Text
		v.Redactions = len(res.Findings)
	}
	return v
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func withDefaults(defaults, extra []string) []string {
	out := append([]string(nil), defaults...)
	for _, e := range extra {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}
