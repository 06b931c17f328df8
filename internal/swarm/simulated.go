package swarm

import (
	"context"
	"fmt"
	"time"
)

// DefaultSimulatedLatency matches the latency of a typical upstream fetch.
const DefaultSimulatedLatency = 700 * time.Millisecond

// SimulatedSource answers every query after a fixed delay without any I/O.
type SimulatedSource struct {
	Latency time.Duration
	// FailOn, if set, makes Fetch fail for queries it returns true for.
	FailOn func(query string) bool
}

// NewSimulatedSource returns a SimulatedSource with the given latency.
func NewSimulatedSource(latency time.Duration) *SimulatedSource {
	return &SimulatedSource{Latency: latency}
}

func (s *SimulatedSource) Name() string { return "simulated" }

// Fetch waits Latency and returns a canned payload.
func (s *SimulatedSource) Fetch(ctx context.Context, query string) (Record, error) {
	label := SimulatedLabel(query)
	if s.Latency > 0 {
		timer := time.NewTimer(s.Latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return Record{}, ctx.Err()
		}
	}
	if s.FailOn != nil && s.FailOn(query) {
		return Record{}, fmt.Errorf("failed to connect to %s", label)
	}
	return Record{
		Source:  label,
		Query:   query,
		Content: fmt.Sprintf("Data from %s about '%s'", label, query),
	}, nil
}

// SimulatedLabel names the simulated source for query.
func SimulatedLabel(query string) string {
	r := []rune(query)
	if len(r) > 20 {
		r = r[:20]
	}
	return fmt.Sprintf("Source for '%s...'", string(r))
}
