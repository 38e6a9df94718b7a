// Package scoring turns match results and transaction context into a
// versioned composite risk score. Scoring is pure with respect to its
// inputs: the same input, snapshot view, and score version always produce
// the same composite, which is what makes decisions replayable.
package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"chainscreen/internal/jurisdiction"
	"chainscreen/internal/liststore"
	"chainscreen/internal/matcher"
	id "chainscreen/pkg/domain"
	dErrors "chainscreen/pkg/domain-errors"
)

const (
	maxFactorScore = 100.0

	// Structuring window: amounts within this fraction below the reporting
	// threshold ramp the pattern factor up to structuringCeiling.
	structuringWindow  = 0.8
	structuringCeiling = 60.0
	behaviourFlagScore = 20.0
)

// Engine computes composite scores.
type Engine struct {
	registry      *Registry
	jurisdictions *jurisdiction.Table
	matcher       matcher.Matcher
	logger        *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates a scoring engine.
func NewEngine(registry *Registry, jurisdictions *jurisdiction.Table, m matcher.Matcher, opts ...Option) (*Engine, error) {
	if registry == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "scoring engine requires a weight registry")
	}
	if jurisdictions == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "scoring engine requires a jurisdiction table")
	}
	if m == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "scoring engine requires a matcher")
	}

	e := &Engine{
		registry:      registry,
		jurisdictions: jurisdictions,
		matcher:       m,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Score computes the composite risk score for one screening input under the
// given score version. An empty version selects the registry default.
func (e *Engine) Score(ctx context.Context, view *liststore.View, in Input, version id.ScoreVersion) (CompositeScore, error) {
	weights, resolved, err := e.registry.Get(version)
	if err != nil {
		return CompositeScore{}, err
	}

	sanctions, exactSanctionsHit := e.sanctionsFactor(in.Candidates, weights.SanctionsMatch)
	jurisdictionRisk := e.jurisdictionFactor(in, weights.JurisdictionRisk)
	pattern := e.patternFactor(in, weights.TransactionPattern)
	counterparty, err := e.counterpartyFactor(ctx, view, in.Counterparties, weights.CounterpartyRisk)
	if err != nil {
		return CompositeScore{}, err
	}

	// Fixed factor order keeps the serialized composite reproducible.
	factors := []RiskFactor{sanctions, jurisdictionRisk, pattern, counterparty}

	composite := 0.0
	for _, f := range factors {
		composite += f.Score * f.Weight
	}
	score := clampScore(roundHalfUp(composite))

	// A confirmed hit on a sanctions list is not a gradation. No weighting
	// of benign factors may dilute it below the ceiling.
	if exactSanctionsHit {
		score = 100
	}

	level := LevelForScore(score)
	return CompositeScore{
		Score:           score,
		Level:           level,
		Factors:         factors,
		Version:         resolved,
		Recommendations: recommendations(level, exactSanctionsHit),
	}, nil
}

func (e *Engine) sanctionsFactor(candidates []matcher.MatchCandidate, weight float64) (RiskFactor, bool) {
	f := RiskFactor{Name: FactorSanctionsMatch, Weight: weight}

	exactSanctionsHit := false
	for _, c := range candidates {
		if s := c.Confidence * maxFactorScore; s > f.Score {
			f.Score = s
			f.Detail = fmt.Sprintf("%s via %s (%s)", c.Entry.Source, c.Method, c.Entry.SourceRef)
		}
		if c.Method == matcher.MethodExact && c.Entry.Source.Priority() == 0 {
			exactSanctionsHit = true
		}
	}
	return f, exactSanctionsHit
}

func (e *Engine) jurisdictionFactor(in Input, weight float64) RiskFactor {
	// Corridor risk only applies when a transaction was described. A bare
	// identifier screening has no corridor; the unrated fallback covers a
	// described transaction whose endpoints are unknown.
	if !in.HasTransaction {
		return RiskFactor{
			Name:   FactorJurisdictionRisk,
			Weight: weight,
			Detail: "no transaction context",
		}
	}

	origin := e.jurisdictions.GetOrUnrated(in.Origin)
	dest := e.jurisdictions.GetOrUnrated(in.Destination)

	riskier, riskierCode := origin, in.Origin
	if dest.BaseRiskWeight > origin.BaseRiskWeight {
		riskier, riskierCode = dest, in.Destination
	}
	return RiskFactor{
		Name:   FactorJurisdictionRisk,
		Score:  float64(riskier.BaseRiskWeight),
		Weight: weight,
		Detail: corridorDetail(riskierCode, riskier),
	}
}

func corridorDetail(code string, p jurisdiction.Profile) string {
	if code == "" {
		return "jurisdiction not provided, treated as unrated"
	}
	return fmt.Sprintf("%s rated %s", p.Code, p.FATF)
}

func (e *Engine) patternFactor(in Input, weight float64) RiskFactor {
	f := RiskFactor{Name: FactorTransactionPattern, Weight: weight}

	threshold := e.jurisdictions.GetOrUnrated(in.Origin).ReportingThreshold
	if threshold > 0 {
		lower := structuringWindow * threshold
		switch {
		case in.Amount >= threshold:
			// The factor saturates at its ceiling; a larger amount never
			// scores lower than a smaller one.
			f.Score = structuringCeiling
			f.Detail = "amount at or above reporting threshold"
		case in.Amount >= lower:
			// Linear ramp across the just-below-threshold window.
			f.Score = structuringCeiling * (in.Amount - lower) / (threshold - lower)
			f.Detail = "amount in structuring range below reporting threshold"
		}
	}
	if in.RapidMovement {
		f.Score += behaviourFlagScore
	}
	if in.RoundTrip {
		f.Score += behaviourFlagScore
	}
	if f.Score > maxFactorScore {
		f.Score = maxFactorScore
	}
	return f
}

// counterpartyFactor checks each adjacent party one hop out against the same
// pinned view. A malformed counterparty identifier degrades to a skipped
// lookup rather than failing the whole score.
func (e *Engine) counterpartyFactor(ctx context.Context, view *liststore.View, parties []Counterparty, weight float64) (RiskFactor, error) {
	f := RiskFactor{Name: FactorCounterpartyRisk, Weight: weight}

	for _, p := range parties {
		candidates, err := e.matcher.Match(ctx, view, p.Identifier, p.Type, 0)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
				if e.logger != nil {
					e.logger.WarnContext(ctx, "skipping malformed counterparty",
						"counterparty_type", p.Type,
						"error", err,
					)
				}
				continue
			}
			return RiskFactor{}, err
		}
		if len(candidates) == 0 {
			continue
		}
		if s := candidates[0].Confidence * maxFactorScore; s > f.Score {
			f.Score = s
			f.Detail = fmt.Sprintf("counterparty matched %s list entry", candidates[0].Entry.Source)
		}
	}
	return f, nil
}

func recommendations(level RiskLevel, exactSanctionsHit bool) []string {
	var recs []string
	if exactSanctionsHit {
		recs = append(recs, "freeze involved assets and file a blocking report")
	}
	switch level {
	case LevelProhibited:
		recs = append(recs, "do not process", "escalate to the compliance officer")
	case LevelCritical:
		recs = append(recs, "hold pending enhanced due diligence")
	case LevelHigh:
		recs = append(recs, "route to manual review", "request source-of-funds documentation")
	case LevelMedium:
		recs = append(recs, "proceed with enhanced monitoring")
	default:
		recs = append(recs, "proceed under standard monitoring")
	}
	return recs
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
