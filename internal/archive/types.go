// Package archive is the persistent answer cache.
//
// Entries are keyed by the sha256 hex digest of the prompt. The whole entry
// set is covered by a second sha256 digest stored in the dataset metadata; a
// dataset whose stored digest does not match its entries is discarded on
// load and the store behaves as if it were empty.
package archive

import (
	"encoding/json"
	"errors"
	"time"
)

// Well-known entry sources.
const (
	SourceLiveGeneration = "live generation"
	SourceArchive        = "archive"
)

// ErrPersistence wraps failures to read or write the underlying storage.
// It is the only error class the orchestrator treats as fatal.
var ErrPersistence = errors.New("archive persistence failure")

// Response is the cached answer payload.
type Response struct {
	Text     string  `json:"text"`
	ImageURL *string `json:"image_url"`
}

// UnmarshalJSON also accepts a bare string, which older archives store for
// plain-text answers.
func (r *Response) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*r = Response{Text: text}
		return nil
	}
	type plain Response
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Response(p)
	return nil
}

// Entry is one cached answer.
type Entry struct {
	Prompt      string    `json:"prompt"`
	Response    Response  `json:"response"`
	Source      string    `json:"source"`
	Keywords    []string  `json:"keywords"`
	Timestamp   time.Time `json:"timestamp"`
	AccessCount int       `json:"access_count"`
}

// Metadata describes the dataset as a whole.
type Metadata struct {
	LastUpdated time.Time `json:"last_updated"`
	Hash        string    `json:"hash,omitempty"`
}

// Dataset is the full persisted archive.
type Dataset struct {
	Entries  map[string]*Entry `json:"entries"`
	Metadata Metadata          `json:"metadata"`
}

// NewDataset returns an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{Entries: make(map[string]*Entry)}
}

// Stats summarises the archive.
type Stats struct {
	Entries       int       `json:"entries"`
	TotalAccesses int       `json:"total_accesses"`
	LastUpdated   time.Time `json:"last_updated"`
	Backend       string    `json:"backend"`
}

// VerifyReport is the result of checking the stored dataset.
type VerifyReport struct {
	Valid      bool   `json:"valid"`
	HasDigest  bool   `json:"has_digest"`
	Entries    int    `json:"entries"`
	StoredHash string `json:"stored_hash,omitempty"`
	ActualHash string `json:"actual_hash"`
}
