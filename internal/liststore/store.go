// Package liststore holds versioned, normalized sanctions and watchlist
// entries behind copy-on-write snapshots. Lookups never observe a partially
// loaded list: a snapshot swap is a single pointer store, and in-flight
// requests keep reading the version they pinned. Only the current and the
// immediately previous version are retained.
package liststore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"chainscreen/internal/normalize"
	"chainscreen/pkg/canonical"
	id "chainscreen/pkg/domain"
	dErrors "chainscreen/pkg/domain-errors"
)

// maxFuzzyCandidates bounds the pre-filtered set handed to the matcher so a
// pathological blocking bucket cannot degrade screening latency.
const maxFuzzyCandidates = 256

// Store is the versioned list store. Snapshot swap is the sole write,
// guarded by mu; readers go through the atomic current pointer.
type Store struct {
	mu       sync.Mutex
	current  atomic.Pointer[View]
	previous atomic.Pointer[View]

	logger *slog.Logger
	clock  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock overrides the clock for testing.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// New creates an empty store. Lookups against an empty store return no
// matches; Load must run before screening produces meaningful verdicts.
func New(opts ...Option) *Store {
	s := &Store{clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	empty := newView(id.NewSnapshotID(), "empty", nil, s.clock())
	s.current.Store(empty)
	return s
}

// Load atomically replaces the list content with a new snapshot and returns
// its version ID. Malformed entries are skipped and logged, never fatal: one
// bad record must not block a sanctions list refresh.
func (s *Store) Load(ctx context.Context, snap Snapshot) (id.SnapshotID, error) {
	if snap.VersionLabel == "" {
		return id.SnapshotID{}, dErrors.NewField(dErrors.CodeValidation, "version_label", "must not be empty")
	}
	if len(snap.Entries) == 0 {
		return id.SnapshotID{}, dErrors.NewField(dErrors.CodeValidation, "entries", "snapshot must not be empty")
	}

	kept := make([]ListEntry, 0, len(snap.Entries))
	for i, e := range snap.Entries {
		if err := validateEntry(e); err != nil {
			if s.logger != nil {
				s.logger.WarnContext(ctx, "skipping malformed list entry",
					"index", i,
					"identifier", e.Identifier,
					"error", err,
				)
			}
			continue
		}
		kept = append(kept, canonicalizeEntry(e))
	}
	if len(kept) == 0 {
		return id.SnapshotID{}, dErrors.NewField(dErrors.CodeValidation, "entries", "no valid entries in snapshot")
	}

	view := newView(id.NewSnapshotID(), snap.VersionLabel, kept, s.clock())

	s.mu.Lock()
	old := s.current.Load()
	s.previous.Store(old)
	s.current.Store(view)
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.InfoContext(ctx, "list snapshot loaded",
			"snapshot_id", view.id.String(),
			"version_label", view.label,
			"entries", len(kept),
			"skipped", len(snap.Entries)-len(kept),
			"content_hash", view.contentHash,
		)
	}
	return view.id, nil
}

// Current returns the view of the latest loaded snapshot.
func (s *Store) Current() *View {
	return s.current.Load()
}

// At returns the view pinned to a specific version. Versions older than the
// immediately previous one are evicted and yield a stale-version error.
func (s *Store) At(snapshotID id.SnapshotID) (*View, error) {
	if cur := s.current.Load(); cur != nil && cur.id == snapshotID {
		return cur, nil
	}
	if prev := s.previous.Load(); prev != nil && prev.id == snapshotID {
		return prev, nil
	}
	return nil, dErrors.Newf(dErrors.CodeStaleVersion, "list snapshot %s has been evicted", snapshotID)
}

func validateEntry(e ListEntry) error {
	if strings.TrimSpace(e.Identifier) == "" {
		return fmt.Errorf("empty identifier")
	}
	if !e.Type.IsValid() {
		return fmt.Errorf("unknown entry type %q", e.Type)
	}
	if !e.Source.IsValid() {
		return fmt.Errorf("unknown source %q", e.Source)
	}
	return nil
}

func canonicalizeEntry(e ListEntry) ListEntry {
	switch e.Type {
	case EntryTypeAddress:
		e.Identifier = normalize.Address(e.Identifier)
	case EntryTypeEntity:
		e.Identifier = normalize.Name(e.Identifier)
	}
	if len(e.Aliases) > 0 {
		folded := make([]string, 0, len(e.Aliases))
		for _, a := range e.Aliases {
			if fa := normalize.Name(a); fa != "" {
				folded = append(folded, fa)
			}
		}
		e.Aliases = folded
	}
	return e
}

// View is one immutable snapshot version with its lookup structures. Safe
// for concurrent use; nothing mutates a view after construction.
type View struct {
	id          id.SnapshotID
	label       string
	contentHash string
	loadedAt    time.Time
	entries     []ListEntry

	exact  map[exactKey][]ListEntry
	alias  map[string][]ListEntry
	blocks map[string][]ListEntry
}

type exactKey struct {
	typ        EntryType
	identifier string
}

func newView(snapshotID id.SnapshotID, label string, entries []ListEntry, loadedAt time.Time) *View {
	v := &View{
		id:       snapshotID,
		label:    label,
		loadedAt: loadedAt,
		entries:  entries,
		exact:    make(map[exactKey][]ListEntry),
		alias:    make(map[string][]ListEntry),
		blocks:   make(map[string][]ListEntry),
	}

	// Deterministic entry order so equal snapshots hash and iterate equally
	// regardless of feed ordering.
	sort.Slice(v.entries, func(i, j int) bool { return entryLess(v.entries[i], v.entries[j]) })

	for _, e := range v.entries {
		k := exactKey{typ: e.Type, identifier: e.Identifier}
		v.exact[k] = append(v.exact[k], e)

		if e.Type != EntryTypeEntity {
			continue
		}
		for _, a := range e.Aliases {
			v.alias[a] = append(v.alias[a], e)
		}
		for _, key := range normalize.BlockingKeys(e.Identifier) {
			v.blocks[key] = append(v.blocks[key], e)
		}
	}

	if raw, err := canonical.Marshal(v.entries); err == nil {
		v.contentHash = canonical.HashBytes(raw)
	}
	return v
}

func entryLess(a, b ListEntry) bool {
	if a.Identifier != b.Identifier {
		return a.Identifier < b.Identifier
	}
	if a.Source.Priority() != b.Source.Priority() {
		return a.Source.Priority() < b.Source.Priority()
	}
	if a.Source != b.Source {
		return a.Source < b.Source
	}
	return a.SourceRef < b.SourceRef
}

// ID returns the snapshot version ID.
func (v *View) ID() id.SnapshotID { return v.id }

// Label returns the feed's version label.
func (v *View) Label() string { return v.label }

// ContentHash returns the canonical hash of the snapshot content.
func (v *View) ContentHash() string { return v.contentHash }

// EntryCount returns the number of entries in this version.
func (v *View) EntryCount() int { return len(v.entries) }

// LookupExact returns entries whose identifier equals the given normalized
// identifier, ordered by source priority then source then source ref.
func (v *View) LookupExact(identifier string, t EntryType) []ListEntry {
	hits := v.exact[exactKey{typ: t, identifier: identifier}]
	out := make([]ListEntry, len(hits))
	copy(out, hits)
	return out
}

// LookupAlias returns entity entries listing the folded name as an alias.
func (v *View) LookupAlias(name string) []ListEntry {
	hits := v.alias[name]
	out := make([]ListEntry, len(hits))
	copy(out, hits)
	return out
}

// FuzzyCandidates returns the bounded, phonetically pre-filtered entity set
// for fuzzy comparison against the folded name. Never the whole table.
func (v *View) FuzzyCandidates(name string) []ListEntry {
	seen := make(map[exactKey]struct{})
	var out []ListEntry
	for _, key := range normalize.BlockingKeys(name) {
		for _, e := range v.blocks[key] {
			k := exactKey{typ: e.Type, identifier: e.Identifier + "\x00" + string(e.Source) + "\x00" + e.SourceRef}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, e)
			if len(out) >= maxFuzzyCandidates {
				return out
			}
		}
	}
	return out
}

// Search returns entries whose identifier, entity name, or alias contains
// the query substring. Serves the list inspection endpoint, not screening.
func (v *View) Search(query string, limit int) []ListEntry {
	if limit <= 0 {
		limit = 50
	}
	q := normalize.Name(query)
	if q == "" {
		return nil
	}
	var out []ListEntry
	for _, e := range v.entries {
		if entryContains(e, q) {
			out = append(out, e)
			if len(out) >= limit {
				break
			}
		}
	}
	return out
}

func entryContains(e ListEntry, q string) bool {
	if strings.Contains(e.Identifier, q) {
		return true
	}
	if e.EntityName != "" && strings.Contains(normalize.Name(e.EntityName), q) {
		return true
	}
	for _, a := range e.Aliases {
		if strings.Contains(a, q) {
			return true
		}
	}
	return false
}
