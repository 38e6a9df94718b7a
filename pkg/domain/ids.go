// Package domain holds typed identifiers and version primitives shared by
// every layer. Typed IDs prevent cross-type assignment at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "chainscreen/pkg/domain-errors"
)

// DecisionID identifies one immutable screening decision.
type DecisionID uuid.UUID

// NewDecisionID returns a fresh random decision ID.
func NewDecisionID() DecisionID { return DecisionID(uuid.New()) }

// ParseDecisionID validates and parses a decision ID from its string form.
func ParseDecisionID(s string) (DecisionID, error) {
	u, err := parseUUID(s, "decision_id")
	if err != nil {
		return DecisionID{}, err
	}
	return DecisionID(u), nil
}

func (id DecisionID) String() string { return uuid.UUID(id).String() }
func (id DecisionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// MarshalText encodes the ID in canonical UUID form. A nil ID encodes as the
// empty string so optional fields round-trip.
func (id DecisionID) MarshalText() ([]byte, error) {
	if id.IsNil() {
		return nil, nil
	}
	return []byte(id.String()), nil
}

// UnmarshalText parses the ID from canonical UUID form.
func (id *DecisionID) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*id = DecisionID{}
		return nil
	}
	parsed, err := ParseDecisionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// SnapshotID identifies one loaded list snapshot version. The store hands
// these out on load; callers pin them for the duration of a screening.
type SnapshotID uuid.UUID

// NewSnapshotID returns a fresh random snapshot ID.
func NewSnapshotID() SnapshotID { return SnapshotID(uuid.New()) }

// ParseSnapshotID validates and parses a snapshot ID from its string form.
func ParseSnapshotID(s string) (SnapshotID, error) {
	u, err := parseUUID(s, "snapshot_id")
	if err != nil {
		return SnapshotID{}, err
	}
	return SnapshotID(u), nil
}

func (id SnapshotID) String() string { return uuid.UUID(id).String() }
func (id SnapshotID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// MarshalText encodes the ID in canonical UUID form. A nil ID encodes as the
// empty string so an unpinned request round-trips.
func (id SnapshotID) MarshalText() ([]byte, error) {
	if id.IsNil() {
		return nil, nil
	}
	return []byte(id.String()), nil
}

// UnmarshalText parses the ID from canonical UUID form.
func (id *SnapshotID) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*id = SnapshotID{}
		return nil
	}
	parsed, err := ParseSnapshotID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ScoreVersion names a frozen weighting scheme. Historical decisions remain
// reproducible because a registered version is never silently changed.
type ScoreVersion string

func (v ScoreVersion) String() string { return string(v) }
func (v ScoreVersion) IsNil() bool    { return v == "" }

// PolicyVersion names a frozen threshold/obligation configuration.
type PolicyVersion string

func (v PolicyVersion) String() string { return string(v) }
func (v PolicyVersion) IsNil() bool    { return v == "" }

func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.NewField(dErrors.CodeInvalidInput, field, "must not be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.NewField(dErrors.CodeInvalidInput, field, "must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.NewField(dErrors.CodeInvalidInput, field, "must not be the nil UUID")
	}
	return u, nil
}
