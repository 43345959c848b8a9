package opt

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoFiniteSolution is returned when every candidate evaluated to NaN or ±Inf
var ErrNoFiniteSolution = errors.New("optimizer found no finite objective value")

// ErrInvalidBounds is returned for empty or inverted search bounds
var ErrInvalidBounds = errors.New("invalid search bounds")

// Objective is the function being minimized
type Objective func(x []float64) float64

// Bound is the closed search interval for one parameter
type Bound struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
}

// Width returns Hi - Lo
func (b Bound) Width() float64 { return b.Hi - b.Lo }

// Clamp restricts v to the bound
func (b Bound) Clamp(v float64) float64 {
	if v < b.Lo {
		return b.Lo
	}
	if v > b.Hi {
		return b.Hi
	}
	return v
}

// Minimizer is a bounded global optimizer.
//
// Implementations must be deterministic: for the same objective, bounds and
// configuration (including the random seed) they return bit-identical results.
// They evaluate the objective sequentially on the calling goroutine and never
// spawn workers.
type Minimizer interface {
	Minimize(f Objective, bounds []Bound) (Result, error)
}

// Result holds the outcome of a minimization
type Result struct {
	X           []float64     `json:"x"`
	F           float64       `json:"f"`
	Evaluations int           `json:"evaluations"`
	Generations int           `json:"generations"`
	Converged   bool          `json:"converged"`
	Polished    bool          `json:"polished"` // Local refinement improved the global best
	ElapsedTime time.Duration `json:"elapsed_time"`
}

// OptimizerConfig defines the configuration for differential evolution
type OptimizerConfig struct {
	PopulationSize int          `yaml:"population_size" json:"population_size"` // Members per dimension (default: 15)
	MaxGenerations int          `yaml:"max_generations" json:"max_generations"` // Generation limit (default: 300)
	Tolerance      float64      `yaml:"tolerance" json:"tolerance"`             // Relative population spread for convergence (default: 0.01)
	AbsTolerance   float64      `yaml:"abs_tolerance" json:"abs_tolerance"`     // Absolute spread for convergence (default: 0)
	MutationLo     float64      `yaml:"mutation_lo" json:"mutation_lo"`         // Dither lower bound (default: 0.5)
	MutationHi     float64      `yaml:"mutation_hi" json:"mutation_hi"`         // Dither upper bound (default: 1.0)
	Recombination  float64      `yaml:"recombination" json:"recombination"`     // Crossover probability (default: 0.7)
	Seed           uint64       `yaml:"seed" json:"seed"`                       // Random seed, fixed for reproducibility (default: 42)
	Polish         bool         `yaml:"polish" json:"polish"`                   // Refine the best member with coordinate descent
	Polishing      PolishConfig `yaml:"polishing" json:"polishing"`
}

// DefaultOptimizerConfig returns the default optimizer configuration.
// The seed is fixed: repeated runs on identical input must produce identical parameters.
func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{
		PopulationSize: 15,
		MaxGenerations: 300,
		Tolerance:      0.01,
		AbsTolerance:   0,
		MutationLo:     0.5,
		MutationHi:     1.0,
		Recombination:  0.7,
		Seed:           42,
		Polish:         true,
		Polishing:      DefaultPolishConfig(),
	}
}

// Validate reports configuration problems
func (c OptimizerConfig) Validate() []string {
	var problems []string
	if c.PopulationSize < 2 {
		problems = append(problems, fmt.Sprintf("population size %d below minimum 2", c.PopulationSize))
	}
	if c.MaxGenerations < 1 {
		problems = append(problems, fmt.Sprintf("max generations %d below minimum 1", c.MaxGenerations))
	}
	if c.MutationLo <= 0 || c.MutationHi < c.MutationLo || c.MutationHi > 2 {
		problems = append(problems, fmt.Sprintf("mutation range [%.2f, %.2f] outside (0, 2]", c.MutationLo, c.MutationHi))
	}
	if c.Recombination < 0 || c.Recombination > 1 {
		problems = append(problems, fmt.Sprintf("recombination %.2f outside [0, 1]", c.Recombination))
	}
	if c.Tolerance < 0 || c.AbsTolerance < 0 {
		problems = append(problems, "tolerances must be non-negative")
	}
	return problems
}

func validateBounds(bounds []Bound) error {
	if len(bounds) == 0 {
		return fmt.Errorf("%w: no parameters", ErrInvalidBounds)
	}
	for i, b := range bounds {
		if !(b.Lo <= b.Hi) {
			return fmt.Errorf("%w: parameter %d has [%g, %g]", ErrInvalidBounds, i, b.Lo, b.Hi)
		}
	}
	return nil
}
