package scoring

import (
	"chainscreen/internal/liststore"
	"chainscreen/internal/matcher"
	id "chainscreen/pkg/domain"
)

// RiskLevel is the qualitative band a composite score falls into.
type RiskLevel string

const (
	LevelLow        RiskLevel = "low"
	LevelMedium     RiskLevel = "medium"
	LevelHigh       RiskLevel = "high"
	LevelCritical   RiskLevel = "critical"
	LevelProhibited RiskLevel = "prohibited"
)

// LevelForScore maps a composite score onto its risk band.
func LevelForScore(score int) RiskLevel {
	switch {
	case score >= 90:
		return LevelProhibited
	case score >= 70:
		return LevelCritical
	case score >= 50:
		return LevelHigh
	case score >= 30:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Factor names. Every composite score carries all four, zero-valued or not,
// so two scores under the same version are always structurally comparable.
const (
	FactorSanctionsMatch     = "sanctions_match"
	FactorJurisdictionRisk   = "jurisdiction_risk"
	FactorTransactionPattern = "transaction_pattern"
	FactorCounterpartyRisk   = "counterparty_risk"
)

// RiskFactor is one weighted component of a composite score.
type RiskFactor struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score"`  // 0-100 before weighting
	Weight float64 `json:"weight"` // version-frozen weight applied
	Detail string  `json:"detail,omitempty"`
}

// CompositeScore is the full scoring result. Factors are emitted in a fixed
// order so the serialized form is reproducible.
type CompositeScore struct {
	Score           int             `json:"score"` // 0-100
	Level           RiskLevel       `json:"level"`
	Factors         []RiskFactor    `json:"factors"`
	Version         id.ScoreVersion `json:"version"`
	Recommendations []string        `json:"recommendations"`
}

// Counterparty is a party adjacent to the screened subject, checked one hop
// out against the same list snapshot.
type Counterparty struct {
	Identifier string              `json:"identifier"`
	Type       liststore.EntryType `json:"type"`
}

// Input carries everything the engine scores on. Candidates are the primary
// subject's match results, already ordered best first.
type Input struct {
	Candidates []matcher.MatchCandidate

	// HasTransaction marks that a transaction context was supplied. Without
	// it the corridor factor is zero; with it, unknown endpoints fall back to
	// the unrated profile.
	HasTransaction bool
	Origin         string // ISO 3166-1 alpha-2, may be empty
	Destination    string // ISO 3166-1 alpha-2, may be empty
	Amount         float64
	RapidMovement  bool
	RoundTrip      bool
	Counterparties []Counterparty
}
