// Package matcher resolves identifiers against a pinned list snapshot.
// Ordering is fully deterministic: descending confidence, then source
// priority, then lexical identifier, so re-screens reproduce candidate
// sequences byte for byte.
package matcher

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/agext/levenshtein"

	"chainscreen/internal/liststore"
	"chainscreen/internal/platform/metrics"
)

// Matcher is the lookup contract consumed by scoring and the orchestrator.
// The caching wrapper implements the same interface.
type Matcher interface {
	Match(ctx context.Context, view *liststore.View, identifier string, t liststore.EntryType, minConfidence float64) ([]MatchCandidate, error)
}

// Service implements Matcher directly against list snapshot views.
type Service struct {
	cfg     Config
	params  *levenshtein.Params
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics enables match latency observation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithConfig overrides the default tuning.
func WithConfig(cfg Config) Option {
	return func(s *Service) { s.cfg = cfg }
}

// New creates a matcher service.
func New(opts ...Option) *Service {
	s := &Service{
		cfg:    DefaultConfig(),
		params: levenshtein.NewParams(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Match returns candidates for an identifier, best first. An empty result is
// a clean "no hit", not an error. A zero minConfidence selects the
// configured floor.
func (s *Service) Match(ctx context.Context, view *liststore.View, identifier string, t liststore.EntryType, minConfidence float64) ([]MatchCandidate, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveMatch(time.Since(start))
		}
	}()

	if minConfidence <= 0 {
		minConfidence = s.cfg.MinConfidence
	}

	subject, err := normalizeSubject(identifier, t)
	if err != nil {
		return nil, err
	}

	type entryKey struct {
		identifier string
		source     liststore.Source
		ref        string
	}
	seen := make(map[entryKey]struct{})
	var candidates []MatchCandidate

	add := func(e liststore.ListEntry, confidence float64, method MatchMethod) {
		if confidence < minConfidence {
			return
		}
		k := entryKey{identifier: e.Identifier, source: e.Source, ref: e.SourceRef}
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		candidates = append(candidates, MatchCandidate{Entry: e, Confidence: confidence, Method: method})
	}

	for _, e := range view.LookupExact(subject, t) {
		add(e, 1.0, MethodExact)
	}

	// Addresses are never fuzzy- or alias-matched: two valid addresses one
	// character apart are different parties, not typos of each other.
	if t == liststore.EntryTypeAddress {
		sortCandidates(candidates)
		return candidates, nil
	}

	for _, e := range view.LookupAlias(subject) {
		add(e, s.cfg.AliasConfidence, MethodAlias)
	}

	for _, e := range view.FuzzyCandidates(subject) {
		if e.Identifier == "" {
			// Local recovery: a malformed candidate is skipped, never fatal.
			if s.logger != nil {
				s.logger.WarnContext(ctx, "skipping malformed fuzzy candidate",
					"source", e.Source,
					"source_ref", e.SourceRef,
				)
			}
			continue
		}
		similarity := levenshtein.Similarity(subject, e.Identifier, s.params)
		add(e, similarity, MethodFuzzy)
	}

	sortCandidates(candidates)
	return candidates, nil
}

func sortCandidates(cs []MatchCandidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Entry.Source.Priority() != b.Entry.Source.Priority() {
			return a.Entry.Source.Priority() < b.Entry.Source.Priority()
		}
		return a.Entry.Identifier < b.Entry.Identifier
	})
}
