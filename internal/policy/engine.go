// Package policy turns a composite risk score into a verdict and determines
// the regulatory obligations attached to a transfer. Verdict and obligations
// are independent axes: a cleared transaction can still owe a report, and a
// blocked one still records what information was missing.
package policy

import (
	"fmt"
	"log/slog"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"chainscreen/internal/jurisdiction"
	id "chainscreen/pkg/domain"
	dErrors "chainscreen/pkg/domain-errors"
)

// Input is everything one policy evaluation needs. MaxMatchConfidence is the
// best candidate's confidence, zero when there were no candidates.
type Input struct {
	Score              int
	MaxMatchConfidence float64
	Amount             float64
	Origin             string
	Destination        string
	Originator         PartyInfo
	Beneficiary        PartyInfo
}

// Engine evaluates policy. The configuration is fixed at construction; a
// threshold change is a new engine under a new policy version.
type Engine struct {
	cfg           Config
	jurisdictions *jurisdiction.Table
	version       id.PolicyVersion
	logger        *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithVersion overrides the policy version label.
func WithVersion(version id.PolicyVersion) Option {
	return func(e *Engine) { e.version = version }
}

// NewEngine creates a policy engine.
func NewEngine(cfg Config, jurisdictions *jurisdiction.Table, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if jurisdictions == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "policy engine requires a jurisdiction table")
	}

	e := &Engine{
		cfg:           cfg,
		jurisdictions: jurisdictions,
		version:       DefaultVersion,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Version returns the policy version label.
func (e *Engine) Version() id.PolicyVersion { return e.version }

// Decide evaluates the verdict and obligations for one screening.
func (e *Engine) Decide(in Input) Result {
	result := Result{PolicyVersion: e.version}

	switch {
	case in.Score >= e.cfg.BlockAt:
		result.Verdict = VerdictBlock
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("composite score %d at or above block threshold %d", in.Score, e.cfg.BlockAt))
	case in.Score >= e.cfg.ReviewAt:
		result.Verdict = VerdictReview
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("composite score %d at or above review threshold %d", in.Score, e.cfg.ReviewAt))
	default:
		result.Verdict = VerdictClear
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("composite score %d below review threshold %d", in.Score, e.cfg.ReviewAt))
	}

	// High-confidence list hits block regardless of how the weighted
	// composite came out.
	if in.MaxMatchConfidence >= e.cfg.OverrideConfidence {
		result.Verdict = VerdictBlock
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("match confidence %.2f at or above override threshold %.2f", in.MaxMatchConfidence, e.cfg.OverrideConfidence))
	}

	origin := e.jurisdictions.GetOrUnrated(in.Origin)
	dest := e.jurisdictions.GetOrUnrated(in.Destination)

	if in.Amount > 0 && in.Amount >= origin.ReportingThreshold {
		result.ReportRequired = true
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("amount meets origin reporting threshold %.0f", origin.ReportingThreshold))
	}

	// The stricter endpoint's limit governs; an unknown endpoint carries the
	// conservative unrated limit, so missing data never waives the rule.
	travelLimit := math.Min(origin.TravelRuleLimit, dest.TravelRuleLimit)
	required := in.Amount > 0 && in.Amount >= travelLimit
	result.TravelRule = evaluateTravelRule(required, in.Originator, in.Beneficiary)
	if result.TravelRule.Status == TravelRuleMissingInfo {
		result.Reasons = append(result.Reasons, "travel rule information incomplete")
	}

	return result
}

// LoadConfigFile reads policy thresholds from a yaml file.
func LoadConfigFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, dErrors.Wrap(err, dErrors.CodeConfig, "reading policy file")
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, dErrors.Wrap(err, dErrors.CodeConfig, "parsing policy file")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
