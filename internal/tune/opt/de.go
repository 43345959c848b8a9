package opt

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// DifferentialEvolution implements seeded best/1/bin differential evolution over box bounds
type DifferentialEvolution struct {
	config OptimizerConfig
}

// NewDifferentialEvolution creates a new differential evolution optimizer
func NewDifferentialEvolution(config OptimizerConfig) *DifferentialEvolution {
	return &DifferentialEvolution{config: config}
}

// Config returns the optimizer configuration
func (de *DifferentialEvolution) Config() OptimizerConfig { return de.config }

// Minimize searches bounds for the minimum of f.
// Candidates are kept in the unit hypercube and mapped onto bounds for evaluation;
// NaN objective values rank as +Inf.
func (de *DifferentialEvolution) Minimize(f Objective, bounds []Bound) (Result, error) {
	startTime := time.Now()

	if err := validateBounds(bounds); err != nil {
		return Result{}, err
	}
	if problems := de.config.Validate(); len(problems) > 0 {
		return Result{}, fmt.Errorf("invalid optimizer config: %v", problems)
	}

	rng := NewRandGen(de.config.Seed)
	dims := len(bounds)
	size := max(de.config.PopulationSize*dims, 5)
	evaluations := 0

	eval := func(unit []float64) float64 {
		evaluations++
		v := f(scale(unit, bounds))
		if math.IsNaN(v) {
			return math.Inf(1)
		}
		return v
	}

	population := latinHypercube(rng, size, dims)
	energies := make([]float64, size)
	best := 0
	for i, member := range population {
		energies[i] = eval(member)
		if energies[i] < energies[best] {
			best = i
		}
	}

	trial := make([]float64, dims)
	generations := 0
	converged := false

	for generations < de.config.MaxGenerations {
		generations++
		mutation := rng.Uniform(de.config.MutationLo, de.config.MutationHi)

		for i := 0; i < size; i++ {
			r1, r2 := pickDistinct(rng, size, i)
			fill := rng.Intn(dims)
			for j := 0; j < dims; j++ {
				if j == fill || rng.Float64() < de.config.Recombination {
					trial[j] = population[best][j] + mutation*(population[r1][j]-population[r2][j])
				} else {
					trial[j] = population[i][j]
				}
				if trial[j] < 0 || trial[j] > 1 {
					trial[j] = rng.Float64()
				}
			}

			energy := eval(trial)
			if energy <= energies[i] {
				copy(population[i], trial)
				energies[i] = energy
				if energy < energies[best] {
					best = i
				}
			}
		}

		if spreadConverged(energies, de.config.Tolerance, de.config.AbsTolerance) {
			converged = true
			break
		}
	}

	if math.IsInf(energies[best], 1) {
		return Result{Evaluations: evaluations, Generations: generations, ElapsedTime: time.Since(startTime)}, ErrNoFiniteSolution
	}

	result := Result{
		X:           scale(population[best], bounds),
		F:           energies[best],
		Generations: generations,
		Converged:   converged,
	}

	if de.config.Polish {
		polisher := NewCoordinateDescent(de.config.Polishing)
		polished := polisher.Minimize(f, bounds, result.X)
		evaluations += polished.Evaluations
		if polished.F < result.F {
			result.X = polished.X
			result.F = polished.F
			result.Polished = true
		}
	}

	result.Evaluations = evaluations
	result.ElapsedTime = time.Since(startTime)
	return result, nil
}

// spreadConverged mirrors the usual DE stopping rule: std(energies) <= atol + tol*|mean(energies)|
func spreadConverged(energies []float64, tol, atol float64) bool {
	for _, e := range energies {
		if math.IsInf(e, 0) {
			return false
		}
	}
	mean, std := stat.MeanStdDev(energies, nil)
	return std <= atol+tol*math.Abs(mean)
}

func latinHypercube(rng *RandGen, size, dims int) [][]float64 {
	population := make([][]float64, size)
	for i := range population {
		population[i] = make([]float64, dims)
	}
	segment := 1.0 / float64(size)
	for j := 0; j < dims; j++ {
		order := rng.Perm(size)
		for i := 0; i < size; i++ {
			population[i][j] = (float64(order[i]) + rng.Float64()) * segment
		}
	}
	return population
}

func pickDistinct(rng *RandGen, n, exclude int) (int, int) {
	r1 := rng.Intn(n)
	for r1 == exclude {
		r1 = rng.Intn(n)
	}
	r2 := rng.Intn(n)
	for r2 == exclude || r2 == r1 {
		r2 = rng.Intn(n)
	}
	return r1, r2
}

func scale(unit []float64, bounds []Bound) []float64 {
	x := make([]float64, len(unit))
	for j, u := range unit {
		x[j] = bounds[j].Lo + u*bounds[j].Width()
	}
	return x
}
