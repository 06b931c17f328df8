// Package swarm fans sub-questions out to concurrent fetch tasks and
// aggregates whatever comes back.
//
// A task never fails the swarm: every task ends in an Outcome, failures are
// logged and dropped, and the remaining successes are returned in
// submission order.
package swarm

import (
	"context"
	"strings"
)

// Reputation tags describe how much of the swarm came back.
type Reputation string

const (
	ReputationMixed Reputation = "mixed_sources"
	ReputationNone  Reputation = "no_source_available"
)

// SentinelContent stands in for content when every task failed. It is
// gated and synthesized like any other content.
const SentinelContent = "Could not retrieve any data."

// SentinelSource labels the sentinel record.
const SentinelSource = "sentinel"

// Separator joins record contents in Result.Text.
const Separator = " | "

// Record is one successful fetch.
type Record struct {
	Source  string `json:"source"`
	Query   string `json:"query"`
	Content string `json:"content"`
}

// Source fetches content for one query. Implementations own their timeouts.
type Source interface {
	Name() string
	Fetch(ctx context.Context, query string) (Record, error)
}

// Task is one unit of swarm work.
type Task struct {
	ID     string
	Index  int
	Query  string
	Source Source
}

// Outcome is the terminal state of a Task: a Success carrying a Record or a
// Failure carrying the reason.
type Outcome struct {
	Task   Task
	Record Record
	Err    error
}

// Success reports whether the task produced a record.
func (o Outcome) Success() bool { return o.Err == nil }

// Result is the aggregated swarm output.
type Result struct {
	Records    []Record   `json:"records"`
	Reputation Reputation `json:"reputation"`
	Succeeded  int        `json:"succeeded"`
	Total      int        `json:"total"`
}

// Text joins every record's content with Separator, in task order. An empty
// payload is still a payload and keeps its slot.
func (r Result) Text() string {
	parts := make([]string, len(r.Records))
	for i, rec := range r.Records {
		parts[i] = rec.Content
	}
	return strings.Join(parts, Separator)
}

// Preferences are caller-supplied request preferences. Only "source" is
// read by the swarm.
type Preferences map[string]any

// SourceName returns the requested source, or "" if none was given.
func (p Preferences) SourceName() string {
	if p == nil {
		return ""
	}
	s, _ := p["source"].(string)
	return s
}
