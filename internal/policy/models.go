package policy

import (
	id "chainscreen/pkg/domain"
	dErrors "chainscreen/pkg/domain-errors"
)

// Verdict is the screening outcome a policy evaluation produces.
type Verdict string

const (
	VerdictClear  Verdict = "clear"
	VerdictReview Verdict = "review"
	VerdictBlock  Verdict = "block"
)

// DefaultVersion labels the built-in policy configuration.
const DefaultVersion id.PolicyVersion = "p1.standard"

// Config carries the policy thresholds. Scores at or above ReviewAt go to
// manual review, at or above BlockAt are blocked. A match candidate at or
// above OverrideConfidence blocks regardless of the composite.
type Config struct {
	ReviewAt           int     `yaml:"review_at"`
	BlockAt            int     `yaml:"block_at"`
	OverrideConfidence float64 `yaml:"override_confidence"`
}

// DefaultConfig returns the standard policy thresholds.
func DefaultConfig() Config {
	return Config{
		ReviewAt:           30,
		BlockAt:            70,
		OverrideConfidence: 0.95,
	}
}

// Validate checks the thresholds are coherent.
func (c Config) Validate() error {
	if c.ReviewAt < 0 || c.ReviewAt > 100 {
		return dErrors.NewField(dErrors.CodeConfig, "review_at", "must be within [0,100]")
	}
	if c.BlockAt < 0 || c.BlockAt > 100 {
		return dErrors.NewField(dErrors.CodeConfig, "block_at", "must be within [0,100]")
	}
	if c.ReviewAt >= c.BlockAt {
		return dErrors.NewField(dErrors.CodeConfig, "review_at", "must be below block_at")
	}
	if c.OverrideConfidence <= 0 || c.OverrideConfidence > 1 {
		return dErrors.NewField(dErrors.CodeConfig, "override_confidence", "must be within (0,1]")
	}
	return nil
}

// Result is a full policy evaluation: the verdict plus the regulatory
// obligations, which are determined independently of the verdict.
type Result struct {
	Verdict        Verdict          `json:"verdict"`
	PolicyVersion  id.PolicyVersion `json:"policy_version"`
	ReportRequired bool             `json:"report_required"`
	TravelRule     TravelRuleResult `json:"travel_rule"`
	Reasons        []string         `json:"reasons"`
}
