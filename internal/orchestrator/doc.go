// Package orchestrator sequences a request through the answer pipeline.
//
// # Overview
//
// A Runtime owns every collaborator a request needs: the archive, the
// query expander, the swarm dispatcher, the gatekeeper, the synthesis
// client, the enricher and the research agent. It is constructed once at
// startup and torn down with Close.
//
// # Powerful mode
//
// The default mode is archive-first:
//
//	ArchiveLookup → CacheHit
//	ArchiveLookup → CacheMiss → Expand → Fetch → Gate → Rejected
//	ArchiveLookup → CacheMiss → Expand → Fetch → Gate → Synthesize → Enrich → Persist
//
// A cache hit returns the stored answer. A rejected gate returns a fixed
// refusal tagged "Security Block" and writes nothing. A failed synthesis
// returns a degraded answer and writes nothing. Only a successful live
// answer is persisted.
//
// # Own-system mode
//
// The "own_system" mode skips the archive, the swarm and the gate. The
// research agent produces a report which is then synthesized. A research
// failure becomes a non-fatal apology.
//
// # Errors
//
// Handle returns an error only for an empty prompt or when the archive
// cannot be read or written (archive.ErrPersistence). Every other failure
// is reported in the Response.
package orchestrator
