package policy

// TravelRuleStatus describes whether originator and beneficiary information
// must accompany a transfer and whether the provided set suffices.
type TravelRuleStatus string

const (
	TravelRuleNotRequired TravelRuleStatus = "not_required"
	TravelRuleCompliant   TravelRuleStatus = "compliant"
	TravelRuleMissingInfo TravelRuleStatus = "missing_info"
)

// PartyInfo is the identification record for one side of a transfer.
type PartyInfo struct {
	Name       string `json:"name,omitempty"`
	AccountRef string `json:"account_ref,omitempty"`
	Address    string `json:"address,omitempty"`
	IDNumber   string `json:"id_number,omitempty"`
}

// TravelRuleResult is the obligation outcome with the fields still owed.
type TravelRuleResult struct {
	Status        TravelRuleStatus `json:"status"`
	MissingFields []string         `json:"missing_fields,omitempty"`
}

// evaluateTravelRule checks the provided party records against the required
// field set. Name and account reference are mandatory for both parties; the
// originator additionally needs a physical address or a national ID number.
func evaluateTravelRule(required bool, originator, beneficiary PartyInfo) TravelRuleResult {
	if !required {
		return TravelRuleResult{Status: TravelRuleNotRequired}
	}

	var missing []string
	if originator.Name == "" {
		missing = append(missing, "originator.name")
	}
	if originator.AccountRef == "" {
		missing = append(missing, "originator.account_ref")
	}
	if originator.Address == "" && originator.IDNumber == "" {
		missing = append(missing, "originator.address_or_id_number")
	}
	if beneficiary.Name == "" {
		missing = append(missing, "beneficiary.name")
	}
	if beneficiary.AccountRef == "" {
		missing = append(missing, "beneficiary.account_ref")
	}

	if len(missing) > 0 {
		return TravelRuleResult{Status: TravelRuleMissingInfo, MissingFields: missing}
	}
	return TravelRuleResult{Status: TravelRuleCompliant}
}
