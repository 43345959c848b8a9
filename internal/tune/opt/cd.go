package opt

import "math"

// PolishConfig defines the configuration for the coordinate descent refinement
type PolishConfig struct {
	MaxEvaluations    int     `yaml:"max_evaluations" json:"max_evaluations"`         // Maximum function evaluations (default: 200)
	InitialStepFactor float64 `yaml:"initial_step_factor" json:"initial_step_factor"` // Initial step as a fraction of each bound width (default: 0.05)
	BacktrackingRatio float64 `yaml:"backtracking_ratio" json:"backtracking_ratio"`   // Step size reduction factor (default: 0.5)
	MinStepFactor     float64 `yaml:"min_step_factor" json:"min_step_factor"`         // Minimum step as a fraction of bound width (default: 1e-7)
}

// DefaultPolishConfig returns the default coordinate descent configuration
func DefaultPolishConfig() PolishConfig {
	return PolishConfig{
		MaxEvaluations:    200,
		InitialStepFactor: 0.05,
		BacktrackingRatio: 0.5,
		MinStepFactor:     1e-7,
	}
}

// CoordinateDescent implements bounded coordinate descent with backtracking step control
type CoordinateDescent struct {
	config PolishConfig
}

// NewCoordinateDescent creates a new coordinate descent optimizer
func NewCoordinateDescent(config PolishConfig) *CoordinateDescent {
	return &CoordinateDescent{config: config}
}

// Minimize walks each coordinate in turn from start, keeping every candidate inside
// bounds. The step shrinks by BacktrackingRatio after a sweep without improvement.
// The walk is fully deterministic.
func (cd *CoordinateDescent) Minimize(f Objective, bounds []Bound, start []float64) Result {
	current := make([]float64, len(start))
	for j := range start {
		current[j] = bounds[j].Clamp(start[j])
	}

	best := f(current)
	if math.IsNaN(best) {
		best = math.Inf(1)
	}
	evaluations := 1
	stepFactor := cd.config.InitialStepFactor
	candidate := make([]float64, len(current))

	for evaluations < cd.config.MaxEvaluations {
		improved := false

		for j := range current {
			if evaluations >= cd.config.MaxEvaluations {
				break
			}
			step := stepFactor * bounds[j].Width()
			if step == 0 {
				continue
			}

			for _, direction := range []float64{1.0, -1.0} {
				if evaluations >= cd.config.MaxEvaluations {
					break
				}
				copy(candidate, current)
				candidate[j] = bounds[j].Clamp(current[j] + direction*step)
				if candidate[j] == current[j] {
					continue
				}

				value := f(candidate)
				evaluations++
				if value < best {
					best = value
					copy(current, candidate)
					improved = true
					break // Move to next coordinate after improvement
				}
			}
		}

		if !improved {
			stepFactor *= cd.config.BacktrackingRatio
			if stepFactor < cd.config.MinStepFactor {
				break
			}
		}
	}

	return Result{
		X:           current,
		F:           best,
		Evaluations: evaluations,
		Converged:   evaluations < cd.config.MaxEvaluations,
	}
}
