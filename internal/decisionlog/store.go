// Package decisionlog persists screening decisions append-only. A decision
// is written before the response leaves the service, so the log is the
// authoritative record of what the service answered and why.
package decisionlog

import (
	"context"
	"encoding/json"
	"time"

	id "chainscreen/pkg/domain"
)

// Record is one logged decision. Payload is the canonical decision document
// whose hash is Fingerprint; replaying the payload must reproduce the
// fingerprint byte for byte.
type Record struct {
	ID          id.DecisionID   `json:"id"`
	Fingerprint string          `json:"fingerprint"`
	Verdict     string          `json:"verdict"`
	Subject     string          `json:"subject"`
	SnapshotID  id.SnapshotID   `json:"snapshot_id"`
	Payload     json.RawMessage `json:"payload"`
	LoggedAt    time.Time       `json:"logged_at"`
}

// Store is the append-only decision log contract.
type Store interface {
	// Append writes one record. Records are immutable once written.
	Append(ctx context.Context, rec Record) error

	// Get returns a record by decision ID.
	Get(ctx context.Context, decisionID id.DecisionID) (Record, error)

	// ListSince returns records logged strictly after the given time in
	// log order, up to limit.
	ListSince(ctx context.Context, since time.Time, limit int) ([]Record, error)
}
