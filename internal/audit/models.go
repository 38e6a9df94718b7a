package audit

import (
	"time"

	id "chainscreen/pkg/domain"
)

// Event is emitted from domain logic to capture key screening actions. Keep
// it transport-agnostic so sinks can fan out.
type Event struct {
	Timestamp   time.Time     `json:"timestamp"`
	Action      string        `json:"action"`
	DecisionID  id.DecisionID `json:"decision_id,omitempty"`
	Subject     string        `json:"subject,omitempty"`
	Verdict     string        `json:"verdict,omitempty"`
	Score       int           `json:"score,omitempty"`
	SnapshotID  id.SnapshotID `json:"snapshot_id,omitempty"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	Detail      string        `json:"detail,omitempty"`
}

// Actions emitted by the screening pipeline.
const (
	ActionDecision       = "screening.decision"
	ActionSnapshotLoaded = "lists.snapshot_loaded"
)
