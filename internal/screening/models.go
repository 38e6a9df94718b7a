package screening

import (
	"encoding/json"
	"time"

	"chainscreen/internal/liststore"
	"chainscreen/internal/matcher"
	"chainscreen/internal/policy"
	"chainscreen/internal/scoring"
	"chainscreen/pkg/canonical"
	id "chainscreen/pkg/domain"
	dErrors "chainscreen/pkg/domain-errors"
)

// TransactionContext carries the transfer details accompanying a screening.
// All fields are optional; a bare identifier screening omits the whole block.
type TransactionContext struct {
	Amount         float64                `json:"amount,omitempty"`
	Origin         string                 `json:"origin,omitempty"`      // ISO 3166-1 alpha-2
	Destination    string                 `json:"destination,omitempty"` // ISO 3166-1 alpha-2
	Counterparties []scoring.Counterparty `json:"counterparties,omitempty"`
	RapidMovement  bool                   `json:"rapid_movement,omitempty"`
	RoundTrip      bool                   `json:"round_trip,omitempty"`
	Originator     policy.PartyInfo       `json:"originator,omitempty"`
	Beneficiary    policy.PartyInfo       `json:"beneficiary,omitempty"`
}

// Request is one screening request. SnapshotID pins a specific list version;
// when nil the current version is used and recorded on the decision.
type Request struct {
	Identifier    string              `json:"identifier"`
	Type          liststore.EntryType `json:"type"`
	MinConfidence float64             `json:"min_confidence,omitempty"`
	ScoreVersion  id.ScoreVersion     `json:"score_version,omitempty"`
	SnapshotID    id.SnapshotID       `json:"snapshot_id,omitempty"`
	Transaction   *TransactionContext `json:"transaction,omitempty"`
}

// Validate checks request syntax before any list access.
func (r Request) Validate() error {
	if r.Identifier == "" {
		return dErrors.NewField(dErrors.CodeInvalidInput, "identifier", "must not be empty")
	}
	if !r.Type.IsValid() {
		return dErrors.NewField(dErrors.CodeInvalidInput, "type", "must be address or entity")
	}
	if r.MinConfidence < 0 || r.MinConfidence >= 1 {
		return dErrors.NewField(dErrors.CodeInvalidInput, "min_confidence", "must be within [0,1)")
	}
	if r.Transaction != nil && r.Transaction.Amount < 0 {
		return dErrors.NewField(dErrors.CodeInvalidInput, "transaction.amount", "must not be negative")
	}
	return nil
}

// Decision is the complete screening outcome. Everything except ID and
// LoggedAt is deterministic for a given request, snapshot, score version,
// and policy version, and is covered by the fingerprint.
type Decision struct {
	ID            id.DecisionID            `json:"id"`
	Subject       string                   `json:"subject"`
	SubjectType   liststore.EntryType      `json:"subject_type"`
	Verdict       policy.Verdict           `json:"verdict"`
	Score         scoring.CompositeScore   `json:"score"`
	Candidates    []matcher.MatchCandidate `json:"candidates,omitempty"`
	Policy        policy.Result            `json:"policy"`
	SnapshotID    id.SnapshotID            `json:"snapshot_id"`
	SnapshotLabel string                   `json:"snapshot_label"`
	Fingerprint   string                   `json:"fingerprint"`
	LoggedAt      time.Time                `json:"logged_at"`
}

// canonicalPayload is the fingerprinted subset of a decision. Field names are
// frozen; renaming one changes every fingerprint.
type canonicalPayload struct {
	Subject       string                   `json:"subject"`
	SubjectType   liststore.EntryType      `json:"subject_type"`
	Verdict       policy.Verdict           `json:"verdict"`
	Score         scoring.CompositeScore   `json:"score"`
	Candidates    []matcher.MatchCandidate `json:"candidates,omitempty"`
	Policy        policy.Result            `json:"policy"`
	SnapshotID    string                   `json:"snapshot_id"`
	SnapshotLabel string                   `json:"snapshot_label"`
}

func (d Decision) payload() canonicalPayload {
	return canonicalPayload{
		Subject:       d.Subject,
		SubjectType:   d.SubjectType,
		Verdict:       d.Verdict,
		Score:         d.Score,
		Candidates:    d.Candidates,
		Policy:        d.Policy,
		SnapshotID:    d.SnapshotID.String(),
		SnapshotLabel: d.SnapshotLabel,
	}
}

// Canonical returns the byte-stable encoding of the decision's deterministic
// content. Two screenings of the same request against the same snapshot and
// versions produce identical bytes.
func (d Decision) Canonical() (json.RawMessage, error) {
	return canonical.Marshal(d.payload())
}

// ComputeFingerprint hashes the canonical payload.
func (d Decision) ComputeFingerprint() (string, error) {
	return canonical.Fingerprint(d.payload())
}

// BatchItem is one element of a batch screening response, positionally
// aligned with the request slice. Exactly one of Decision and Err is set.
type BatchItem struct {
	Decision *Decision `json:"decision,omitempty"`
	Err      error     `json:"-"`
}
