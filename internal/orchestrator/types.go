package orchestrator

import (
	"encoding/json"
	"errors"

	"github.com/fyrsmithlabs/eternal/internal/swarm"
)

// Mode selects the request path.
type Mode string

const (
	// ModePowerful is the archive-first swarm pipeline.
	ModePowerful Mode = "powerful"

	// ModeOwnSystem runs the research agent.
	ModeOwnSystem Mode = "own_system"
)

// ParseMode maps a request mode to a Mode. Anything other than
// "own_system" selects the powerful path.
func ParseMode(s string) Mode {
	if Mode(s) == ModeOwnSystem {
		return ModeOwnSystem
	}
	return ModePowerful
}

// State is a step of the request state machine.
type State string

const (
	StateArchiveLookup State = "archive_lookup"
	StateCacheHit      State = "cache_hit"
	StateExpand        State = "expand"
	StateFetch         State = "fetch"
	StateGate          State = "gate"
	StateRejected      State = "rejected"
	StateSynthesize    State = "synthesize"
	StateDegraded      State = "degraded"
	StateEnrich        State = "enrich"
	StatePersist       State = "persist"
	StateResearch      State = "research"
	StateDone          State = "done"
)

// User-facing labels and messages.
const (
	ModelArchive   = "Eternal Archive (Local)"
	ModelPowerful  = "Powerful AI (Live Synthesis)"
	ModelOwnSystem = "Specialist Agent Swarm (FactFinder)"
	ModelBlocked   = "Security Block"
	ModelNone      = "none"

	RefusalMessage    = "I could not find safe and reliable information for your query."
	DiagnosticHit     = "Fast retrieval from archive."
	DiagnosticOwnDone = "Agent swarm report synthesized."
)

// ErrEmptyPrompt is returned for a request without a prompt.
var ErrEmptyPrompt = errors.New("missing 'prompt' in request body")

// Request is one user query.
type Request struct {
	Prompt      string
	Mode        Mode
	Preferences swarm.Preferences
	// CustomAPIKey replaces the configured synthesis key for this request.
	CustomAPIKey string
}

// Answer is the response payload: either a structured answer with an
// optional image or a plain string.
type Answer struct {
	Text     string
	ImageURL *string
	Plain    bool
}

type structuredAnswer struct {
	Text     string  `json:"text"`
	ImageURL *string `json:"image_url"`
}

func (a Answer) MarshalJSON() ([]byte, error) {
	if a.Plain {
		return json.Marshal(a.Text)
	}
	return json.Marshal(structuredAnswer{Text: a.Text, ImageURL: a.ImageURL})
}

// Response is the outcome of a handled request.
type Response struct {
	Answer           Answer `json:"response"`
	ModelUsed        string `json:"model_used"`
	DiagnosticReport string `json:"diagnostic_report"`
	// Path lists the states visited, ending with the terminal state.
	Path []State `json:"-"`
}

// State returns the terminal state.
func (r Response) State() State {
	if len(r.Path) == 0 {
		return ""
	}
	return r.Path[len(r.Path)-1]
}
