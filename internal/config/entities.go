package config

import (
	"fmt"
	"sort"

	"github.com/sawpanic/disruptrun/internal/displacement"
)

// EntityConfig names the products that make up one disruption. Product IDs are
// resolved against the historical data source; cost series come from the
// challenger and incumbent, demand series from the others.
type EntityConfig struct {
	Description  string   `yaml:"description,omitempty"`
	Challenger   string   `yaml:"challenger"`             // Disrupting product (cost and demand)
	Incumbent    string   `yaml:"incumbent"`              // Incumbent product (cost, optionally demand)
	Market       string   `yaml:"market"`                 // Total market demand
	Bridge       string   `yaml:"bridge,omitempty"`       // Transitional technology following the hump model
	Alternatives []string `yaml:"alternatives,omitempty"` // Legacy alternatives sharing the residual; replaces Incumbent demand
	Baseline     string   `yaml:"baseline,omitempty"`     // Must-run baseline demand
	Regions      []string `yaml:"regions,omitempty"`      // Regions the batch command runs by default
}

// Validate checks that the entity names its required products
func (e EntityConfig) Validate() []string {
	var problems []string
	if e.Challenger == "" {
		problems = append(problems, "challenger product is required")
	}
	if e.Incumbent == "" {
		problems = append(problems, "incumbent product is required")
	}
	if e.Market == "" {
		problems = append(problems, "market product is required")
	}
	if len(e.Alternatives) == 1 {
		problems = append(problems, "alternatives need at least 2 entries for displacement")
	}
	seen := make(map[string]bool, len(e.Alternatives))
	for _, alt := range e.Alternatives {
		if alt == e.Challenger {
			problems = append(problems, fmt.Sprintf("challenger %s listed as an alternative", alt))
		}
		if seen[alt] {
			problems = append(problems, fmt.Sprintf("alternative %s listed twice", alt))
		}
		seen[alt] = true
	}
	return problems
}

// UsesDisplacement reports whether the residual is split among legacy alternatives
func (e EntityConfig) UsesDisplacement() bool {
	return len(e.Alternatives) >= 2
}

// CheckOrder verifies that a displacement order is a permutation of the entity's
// alternatives. An empty order is accepted; the alternatives are used as listed.
func (e EntityConfig) CheckOrder(order []string) error {
	if len(order) == 0 {
		return nil
	}
	mismatch := fmt.Errorf("%w: order %v is not a permutation of alternatives %v",
		displacement.ErrInvalidSequence, order, e.Alternatives)
	if len(order) != len(e.Alternatives) {
		return mismatch
	}
	listed := make(map[string]bool, len(e.Alternatives))
	for _, alt := range e.Alternatives {
		listed[alt] = true
	}
	for _, alt := range order {
		if !listed[alt] {
			return mismatch
		}
		delete(listed, alt)
	}
	return nil
}

// Entity returns the named entity definition
func (c *ForecastConfig) Entity(id string) (EntityConfig, error) {
	entity, ok := c.Entities[id]
	if !ok {
		return EntityConfig{}, fmt.Errorf("entity '%s' not found in config", id)
	}
	return entity, nil
}

// EntityIDs returns the configured entity IDs in sorted order
func (c *ForecastConfig) EntityIDs() []string {
	ids := make([]string, 0, len(c.Entities))
	for id := range c.Entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
