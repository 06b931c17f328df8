package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// errCorrupt marks a stored dataset that must be discarded (bad JSON or a
// digest mismatch). It never leaves the package.
var errCorrupt = errors.New("archive dataset corrupt")

// envelope defers entry decoding until the digest has been checked against
// the bytes actually stored.
type envelope struct {
	Entries  json.RawMessage `json:"entries"`
	Metadata struct {
		LastUpdated json.RawMessage `json:"last_updated"`
		Hash        string          `json:"hash"`
	} `json:"metadata"`
}

// decodeDataset parses and verifies stored bytes. Empty input is an empty
// dataset. Any verification failure returns errCorrupt.
func decodeDataset(data []byte) (*Dataset, error) {
	if len(data) == 0 {
		return NewDataset(), nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorrupt, err)
	}

	ds := NewDataset()
	ds.Metadata.Hash = env.Metadata.Hash
	if len(env.Metadata.LastUpdated) > 0 {
		var ts Timestamp
		if err := json.Unmarshal(env.Metadata.LastUpdated, &ts); err == nil {
			ds.Metadata.LastUpdated = ts.Time
		}
	}

	if len(env.Entries) == 0 || string(env.Entries) == "null" {
		if env.Metadata.Hash != "" {
			want, _ := Digest(nil)
			if !hashesEqual(env.Metadata.Hash, want) {
				return nil, fmt.Errorf("%w: digest mismatch", errCorrupt)
			}
		}
		return ds, nil
	}

	if env.Metadata.Hash != "" {
		actual, err := digestRaw(env.Entries)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errCorrupt, err)
		}
		if !hashesEqual(env.Metadata.Hash, actual) {
			return nil, fmt.Errorf("%w: digest mismatch", errCorrupt)
		}
	}

	var entries map[string]*storedEntry
	if err := json.Unmarshal(env.Entries, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	for id, e := range entries {
		if e == nil {
			continue
		}
		ds.Entries[id] = e.entry()
	}
	return ds, nil
}

// encodeDataset stamps the digest and last_updated, then encodes.
func encodeDataset(ds *Dataset, now time.Time) ([]byte, error) {
	hash, err := Digest(ds.Entries)
	if err != nil {
		return nil, err
	}
	ds.Metadata.Hash = hash
	ds.Metadata.LastUpdated = now

	out := struct {
		Entries  map[string]*Entry `json:"entries"`
		Metadata Metadata          `json:"metadata"`
	}{ds.Entries, ds.Metadata}
	return marshal(out)
}

// storedEntry tolerates timestamps written without a zone offset.
type storedEntry struct {
	Prompt      string    `json:"prompt"`
	Response    Response  `json:"response"`
	Source      string    `json:"source"`
	Keywords    []string  `json:"keywords"`
	Timestamp   Timestamp `json:"timestamp"`
	AccessCount int       `json:"access_count"`
}

func (s *storedEntry) entry() *Entry {
	keywords := s.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return &Entry{
		Prompt:      s.Prompt,
		Response:    s.Response,
		Source:      s.Source,
		Keywords:    keywords,
		Timestamp:   s.Timestamp.Time,
		AccessCount: s.AccessCount,
	}
}

// Timestamp parses RFC 3339 and the zone-less ISO-8601 form, treating the
// latter as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}
