package scoring

import (
	"math"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	id "chainscreen/pkg/domain"
	dErrors "chainscreen/pkg/domain-errors"
)

// DefaultVersion is the weight set applied when a request does not pin one.
const DefaultVersion id.ScoreVersion = "v1.2024-defaults"

// LegacyVersion is kept registered so historical decisions replay under the
// weights that produced them.
const LegacyVersion id.ScoreVersion = "v0.legacy-assessor"

const weightSumTolerance = 1e-9

// Weights is one frozen factor weighting. Weights sum to 1.0 so the
// composite stays on the 0-100 scale.
type Weights struct {
	SanctionsMatch     float64 `yaml:"sanctions_match"`
	JurisdictionRisk   float64 `yaml:"jurisdiction_risk"`
	TransactionPattern float64 `yaml:"transaction_pattern"`
	CounterpartyRisk   float64 `yaml:"counterparty_risk"`
}

// Validate checks the weight set is usable.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		FactorSanctionsMatch:     w.SanctionsMatch,
		FactorJurisdictionRisk:   w.JurisdictionRisk,
		FactorTransactionPattern: w.TransactionPattern,
		FactorCounterpartyRisk:   w.CounterpartyRisk,
	} {
		if v < 0 {
			return dErrors.NewField(dErrors.CodeConfig, name, "weight must be non-negative")
		}
	}
	sum := w.SanctionsMatch + w.JurisdictionRisk + w.TransactionPattern + w.CounterpartyRisk
	if math.Abs(sum-1.0) > weightSumTolerance {
		return dErrors.Newf(dErrors.CodeConfig, "factor weights must sum to 1.0, got %v", sum)
	}
	return nil
}

// Registry holds versioned weight sets. A version, once registered, is
// frozen: re-registration is rejected so a version label always denotes
// exactly one weighting.
type Registry struct {
	mu       sync.RWMutex
	versions map[id.ScoreVersion]Weights
}

// NewRegistry returns a registry seeded with the built-in versions.
func NewRegistry() *Registry {
	r := &Registry{versions: make(map[id.ScoreVersion]Weights)}

	// Seed versions are code-defined and validated by construction.
	r.versions[DefaultVersion] = Weights{
		SanctionsMatch:     0.5,
		JurisdictionRisk:   0.2,
		TransactionPattern: 0.2,
		CounterpartyRisk:   0.1,
	}
	r.versions[LegacyVersion] = Weights{
		SanctionsMatch:     0.40,
		JurisdictionRisk:   0.25,
		TransactionPattern: 0.20,
		CounterpartyRisk:   0.15,
	}
	return r
}

// Register adds a new frozen version.
func (r *Registry) Register(version id.ScoreVersion, w Weights) error {
	if version == "" {
		return dErrors.NewField(dErrors.CodeConfig, "version", "score version is required")
	}
	if err := w.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.versions[version]; exists {
		return dErrors.Newf(dErrors.CodeConfig, "score version %q is frozen and cannot be redefined", version)
	}
	r.versions[version] = w
	return nil
}

// Get resolves a version. An empty version selects the default.
func (r *Registry) Get(version id.ScoreVersion) (Weights, id.ScoreVersion, error) {
	if version == "" {
		version = DefaultVersion
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.versions[version]
	if !ok {
		return Weights{}, "", dErrors.Newf(dErrors.CodeNotFound, "unknown score version %q", version)
	}
	return w, version, nil
}

// LoadFile registers additional versions from a yaml file mapping version
// labels to weight sets. Collisions with already-registered versions fail.
func (r *Registry) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeConfig, "reading score weights file")
	}

	var file map[id.ScoreVersion]Weights
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return dErrors.Wrap(err, dErrors.CodeConfig, "parsing score weights file")
	}

	for version, w := range file {
		if err := r.Register(version, w); err != nil {
			return err
		}
	}
	return nil
}
