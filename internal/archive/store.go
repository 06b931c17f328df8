package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/eternal/internal/logging"
)

// backend persists the raw dataset bytes. update must give the caller
// exclusive read-modify-write access for the duration of fn.
type backend interface {
	name() string
	read(ctx context.Context) ([]byte, error)
	// update passes the current bytes to fn and stores whatever fn returns.
	// A nil result from fn means nothing changed and nothing is written.
	update(ctx context.Context, fn func(current []byte) ([]byte, error)) error
	close() error
}

// Store is the archive: lookups, upserts, and integrity checks over a
// single-writer backend.
type Store struct {
	backend backend
	logger  *logging.Logger
	tracer  trace.Tracer
	metrics *Metrics
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) { s.logger = l.Named("archive") }
}

// WithTracer sets the tracer used for archive spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Store) { s.tracer = t }
}

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func newStore(b backend, opts ...Option) *Store {
	s := &Store{
		backend: b,
		logger:  logging.NewNop(),
		tracer:  otel.Tracer("eternal/archive"),
		metrics: NewMetrics(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// load decodes stored bytes, degrading a corrupt dataset to an empty one.
func (s *Store) load(ctx context.Context, data []byte) *Dataset {
	ds, err := decodeDataset(data)
	if err == nil {
		return ds
	}
	s.metrics.RecordCorruption()
	s.logger.Warn(ctx, "archive failed integrity check, starting cold",
		zap.String("backend", s.backend.name()),
		zap.Error(err))
	return NewDataset()
}

// Lookup returns the entry for prompt. A hit increments and persists the
// entry's access count; a miss has no side effect.
func (s *Store) Lookup(ctx context.Context, prompt string) (*Entry, bool, error) {
	id := IDFor(prompt)
	ctx = logging.WithArchiveID(ctx, id)
	ctx, span := s.tracer.Start(ctx, "archive.Lookup",
		trace.WithAttributes(attribute.String("archive.id", id)))
	defer span.End()

	var found *Entry
	err := s.backend.update(ctx, func(current []byte) ([]byte, error) {
		ds := s.load(ctx, current)
		entry, ok := ds.Entries[id]
		if !ok {
			return nil, nil
		}
		entry.AccessCount++
		copied := *entry
		copied.Keywords = slices.Clone(entry.Keywords)
		if copied.Keywords == nil {
			copied.Keywords = []string{}
		}
		found = &copied
		return encodeDataset(ds, s.now().UTC())
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return nil, false, s.persistenceError("lookup", err)
	}

	hit := found != nil
	span.SetAttributes(attribute.Bool("archive.hit", hit))
	s.metrics.RecordLookup(hit)
	if hit {
		s.logger.Debug(ctx, "archive hit", zap.Int("access_count", found.AccessCount))
	}
	return found, hit, nil
}

// Put upserts the entry for prompt. New entries start with an access count
// of 1; an existing entry keeps its count while every other field is
// replaced.
func (s *Store) Put(ctx context.Context, prompt string, resp Response, source string, keywords []string) error {
	id := IDFor(prompt)
	ctx = logging.WithArchiveID(ctx, id)
	ctx, span := s.tracer.Start(ctx, "archive.Put",
		trace.WithAttributes(
			attribute.String("archive.id", id),
			attribute.String("archive.source", source),
		))
	defer span.End()

	if keywords == nil {
		keywords = []string{}
	}

	var created bool
	err := s.backend.update(ctx, func(current []byte) ([]byte, error) {
		ds := s.load(ctx, current)
		now := s.now().UTC()
		count := 1
		if prev, ok := ds.Entries[id]; ok {
			count = prev.AccessCount
		} else {
			created = true
		}
		ds.Entries[id] = &Entry{
			Prompt:      prompt,
			Response:    resp,
			Source:      source,
			Keywords:    slices.Clone(keywords),
			Timestamp:   now,
			AccessCount: count,
		}
		return encodeDataset(ds, now)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "put failed")
		return s.persistenceError("put", err)
	}

	span.SetAttributes(attribute.Bool("archive.created", created))
	s.metrics.RecordPut(created)
	s.logger.Info(ctx, "archived answer",
		zap.String("source", source),
		zap.Bool("created", created))
	return nil
}

// Stats summarises the current dataset.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	data, err := s.backend.read(ctx)
	if err != nil {
		return Stats{}, s.persistenceError("stats", err)
	}
	ds := s.load(ctx, data)
	st := Stats{
		Entries:     len(ds.Entries),
		LastUpdated: ds.Metadata.LastUpdated,
		Backend:     s.backend.name(),
	}
	for _, e := range ds.Entries {
		st.TotalAccesses += e.AccessCount
	}
	s.metrics.SetEntries(st.Entries)
	return st, nil
}

// Verify checks the stored dataset without modifying it.
func (s *Store) Verify(ctx context.Context) (VerifyReport, error) {
	data, err := s.backend.read(ctx)
	if err != nil {
		return VerifyReport{}, s.persistenceError("verify", err)
	}
	if len(data) == 0 {
		hash, _ := Digest(nil)
		return VerifyReport{Valid: true, ActualHash: hash}, nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return VerifyReport{Valid: false}, nil
	}
	report := VerifyReport{
		HasDigest:  env.Metadata.Hash != "",
		StoredHash: env.Metadata.Hash,
	}
	entries := env.Entries
	if len(entries) == 0 || string(entries) == "null" {
		entries = []byte("{}")
	}
	actual, err := digestRaw(entries)
	if err != nil {
		return report, nil
	}
	report.ActualHash = actual
	var ids map[string]json.RawMessage
	if json.Unmarshal(entries, &ids) == nil {
		report.Entries = len(ids)
	}
	report.Valid = !report.HasDigest || hashesEqual(report.StoredHash, actual)
	return report, nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.close()
}

// Backend names the storage engine in use.
func (s *Store) Backend() string {
	return s.backend.name()
}

func (s *Store) persistenceError(op string, err error) error {
	if errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %s on %s backend: %w", ErrPersistence, op, s.backend.name(), err)
}
