// Package jurisdiction holds the FATF reference table consumed by scoring
// and policy. The table is refreshed out-of-band; unknown codes fall back to
// a fail-closed unrated profile so screening never gets more lenient because
// reference data is missing.
package jurisdiction

import (
	"context"
	"strings"
	"sync"

	dErrors "chainscreen/pkg/domain-errors"
)

// Unrated is the fail-closed fallback profile applied to unknown codes. Its
// thresholds are the most conservative ones in the seed table so obligations
// trigger at least as often as for any rated jurisdiction.
var Unrated = Profile{
	Code:               "",
	FATF:               StatusUnrated,
	BaseRiskWeight:     75,
	ReportingThreshold: 1000,
	TravelRuleLimit:    1000,
}

// Table is the jurisdiction profile registry. Reads vastly outnumber the
// out-of-band refresh writes, hence the RWMutex.
type Table struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewTable creates a table seeded with the built-in FATF reference data.
func NewTable() *Table {
	t := &Table{profiles: make(map[string]Profile, len(seedProfiles))}
	for _, p := range seedProfiles {
		t.profiles[p.Code] = p
	}
	return t
}

// NewEmptyTable creates a table with no seed data. Tests and deployments
// that load the full reference feed at startup use this.
func NewEmptyTable() *Table {
	return &Table{profiles: make(map[string]Profile)}
}

// Get returns the profile for a jurisdiction code.
func (t *Table) Get(code string) (Profile, error) {
	key := normalizeCode(code)
	if key == "" {
		return Profile{}, dErrors.NewField(dErrors.CodeInvalidInput, "jurisdiction", "code must not be empty")
	}

	t.mu.RLock()
	p, ok := t.profiles[key]
	t.mu.RUnlock()
	if !ok {
		return Profile{}, dErrors.Newf(dErrors.CodeNotFound, "unknown jurisdiction %q", key)
	}
	return p, nil
}

// GetOrUnrated returns the profile for a code, or the fail-closed unrated
// profile when the code is unknown or empty.
func (t *Table) GetOrUnrated(code string) Profile {
	p, err := t.Get(code)
	if err != nil {
		fallback := Unrated
		fallback.Code = normalizeCode(code)
		return fallback
	}
	return p
}

// Upsert installs or replaces a profile. Serves the out-of-band reference
// feed refresh.
func (t *Table) Upsert(ctx context.Context, p Profile) error {
	p.Code = normalizeCode(p.Code)
	if p.Code == "" {
		return dErrors.NewField(dErrors.CodeValidation, "code", "must not be empty")
	}
	if !p.FATF.IsValid() {
		return dErrors.NewField(dErrors.CodeValidation, "fatf_status", "unknown FATF status")
	}
	if p.BaseRiskWeight < 0 || p.BaseRiskWeight > 100 {
		return dErrors.NewField(dErrors.CodeValidation, "base_risk_weight", "must be within [0,100]")
	}
	if p.ReportingThreshold < 0 || p.TravelRuleLimit < 0 {
		return dErrors.NewField(dErrors.CodeValidation, "thresholds", "must not be negative")
	}

	t.mu.Lock()
	t.profiles[p.Code] = p
	t.mu.Unlock()
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// seedProfiles carries the built-in FATF reference data: black/grey list
// weights and the per-jurisdiction reporting and Travel Rule thresholds
// (FinCEN 3000 USD, EU TFR 1000, MAS 1500, JFSA 100000 JPY-equivalent,
// FSC 1000000 KRW-equivalent).
var seedProfiles = []Profile{
	{Code: "KP", Name: "North Korea", FATF: StatusNonCompliant, BaseRiskWeight: 100, ReportingThreshold: 1000, TravelRuleLimit: 1000},
	{Code: "IR", Name: "Iran", FATF: StatusNonCompliant, BaseRiskWeight: 95, ReportingThreshold: 1000, TravelRuleLimit: 1000},
	{Code: "MM", Name: "Myanmar", FATF: StatusNonCompliant, BaseRiskWeight: 90, ReportingThreshold: 1000, TravelRuleLimit: 1000},

	{Code: "PK", Name: "Pakistan", FATF: StatusPartiallyCompliant, BaseRiskWeight: 70, ReportingThreshold: 1000, TravelRuleLimit: 1000},
	{Code: "SY", Name: "Syria", FATF: StatusPartiallyCompliant, BaseRiskWeight: 75, ReportingThreshold: 1000, TravelRuleLimit: 1000},
	{Code: "YE", Name: "Yemen", FATF: StatusPartiallyCompliant, BaseRiskWeight: 72, ReportingThreshold: 1000, TravelRuleLimit: 1000},

	{Code: "TR", Name: "Turkey", FATF: StatusCompliant, BaseRiskWeight: 45, ReportingThreshold: 3000, TravelRuleLimit: 1000},
	{Code: "AE", Name: "United Arab Emirates", FATF: StatusCompliant, BaseRiskWeight: 40, ReportingThreshold: 3000, TravelRuleLimit: 1000},

	{Code: "US", Name: "United States", FATF: StatusCompliant, BaseRiskWeight: 20, ReportingThreshold: 10000, TravelRuleLimit: 3000},
	{Code: "GB", Name: "United Kingdom", FATF: StatusCompliant, BaseRiskWeight: 18, ReportingThreshold: 10000, TravelRuleLimit: 1000},
	{Code: "DE", Name: "Germany", FATF: StatusCompliant, BaseRiskWeight: 15, ReportingThreshold: 10000, TravelRuleLimit: 1000},
	{Code: "JP", Name: "Japan", FATF: StatusCompliant, BaseRiskWeight: 12, ReportingThreshold: 10000, TravelRuleLimit: 650},
	{Code: "SG", Name: "Singapore", FATF: StatusCompliant, BaseRiskWeight: 15, ReportingThreshold: 10000, TravelRuleLimit: 1100},
}
