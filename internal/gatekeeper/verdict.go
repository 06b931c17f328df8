package gatekeeper

import (
	"fmt"

	"github.com/fyrsmithlabs/eternal/internal/swarm"
)

// Verdict is the result of a phase or a whole scan.
type Verdict struct {
	Approved bool
	// Phase is the deciding phase: the rejecting one, or the last one run.
	Phase  PhaseName
	Reason string
	// Content is the (possibly sanitized) content a phase approved.
	Content string
	// Records holds the sanitized records of an approved Scan.
	Records []swarm.Record
	// Index is the position of the rejected record in a Scan, or -1.
	Index      int
	Redactions int
}

// Summary renders the verdict the way it is logged and reported.
func (v Verdict) Summary() string {
	if v.Approved {
		return "Approved by Gatekeeper"
	}
	return fmt.Sprintf("Rejected by %s", v.Phase)
}

func pass(phase PhaseName, content *string, reason string) Verdict {
	v := Verdict{Approved: true, Phase: phase, Reason: reason, Index: -1}
	if content != nil {
		v.Content = *content
	}
	return v
}

func reject(phase PhaseName, reason string) Verdict {
	return Verdict{Phase: phase, Reason: reason, Index: -1}
}
