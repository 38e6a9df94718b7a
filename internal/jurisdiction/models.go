package jurisdiction

// FATFStatus is a jurisdiction's compliance rating from the Financial Action
// Task Force.
type FATFStatus string

const (
	StatusCompliant          FATFStatus = "compliant"
	StatusPartiallyCompliant FATFStatus = "partially_compliant"
	StatusNonCompliant       FATFStatus = "non_compliant"
	StatusUnrated            FATFStatus = "unrated"
)

// IsValid reports whether s is a known FATF status.
func (s FATFStatus) IsValid() bool {
	switch s {
	case StatusCompliant, StatusPartiallyCompliant, StatusNonCompliant, StatusUnrated:
		return true
	}
	return false
}

// FailClosed maps unrated to non-compliant for threshold purposes. An
// unassessed jurisdiction must never get a lighter regime than a failing one.
func (s FATFStatus) FailClosed() FATFStatus {
	if s == StatusUnrated {
		return StatusNonCompliant
	}
	return s
}

// Profile is one jurisdiction's risk reference record, keyed by its
// ISO 3166-1 alpha-2 code. Thresholds are in USD-equivalent minor-unit-free
// amounts, matching the transaction context.
type Profile struct {
	Code               string     `json:"code"`
	Name               string     `json:"name,omitempty"`
	FATF               FATFStatus `json:"fatf_status"`
	BaseRiskWeight     int        `json:"base_risk_weight"` // 0-100
	ReportingThreshold float64    `json:"reporting_threshold"`
	TravelRuleLimit    float64    `json:"travel_rule_threshold"`
}
