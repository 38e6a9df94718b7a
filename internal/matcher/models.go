package matcher

import (
	"chainscreen/internal/liststore"
)

// MatchMethod names how a candidate was found.
type MatchMethod string

const (
	MethodExact MatchMethod = "exact"
	MethodAlias MatchMethod = "alias"
	MethodFuzzy MatchMethod = "fuzzy"
)

// MatchCandidate is one list entry that may be the screened subject.
// Consumed read-only downstream; scoring and policy never mutate it.
type MatchCandidate struct {
	Entry      liststore.ListEntry `json:"entry"`
	Confidence float64             `json:"confidence"` // 0.0-1.0
	Method     MatchMethod         `json:"method"`
}

// Config carries the matcher's tunables. The numeric defaults are named
// configuration, not contract: deployments override them per list policy.
type Config struct {
	// MinConfidence is the floor applied when the caller passes 0.
	MinConfidence float64

	// AliasConfidence is assigned to alias-mapping hits.
	AliasConfidence float64
}

// DefaultConfig returns the standard matcher tuning.
func DefaultConfig() Config {
	return Config{
		MinConfidence:   0.75,
		AliasConfidence: 0.95,
	}
}
