package displacement

import (
	"errors"
	"fmt"
	"math"

	"github.com/sawpanic/disruptrun/internal/series"
)

// ErrInvalidSequence is returned for sequences the sequencer cannot allocate over
var ErrInvalidSequence = errors.New("invalid displacement sequence")

// Sequence is the per-region displacement priority. Order lists legacy alternatives
// from first displaced to last; the last entry absorbs whatever residual remains.
// Floors are reserve fractions of each year's total demand.
type Sequence struct {
	Order  []string           `yaml:"order" json:"order"`
	Floors map[string]float64 `yaml:"reserve_floors" json:"reserve_floors"`
}

// Floor returns the reserve fraction for alternative, zero when unset
func (s Sequence) Floor(alternative string) float64 {
	return s.Floors[alternative]
}

// Absorber returns the alternative that receives the remaining residual
func (s Sequence) Absorber() string {
	if len(s.Order) == 0 {
		return ""
	}
	return s.Order[len(s.Order)-1]
}

// Validate checks the sequence has at least two distinct alternatives and sane floors
func (s Sequence) Validate() error {
	if len(s.Order) < 2 {
		return fmt.Errorf("%w: need at least 2 alternatives, have %d", ErrInvalidSequence, len(s.Order))
	}
	seen := make(map[string]bool, len(s.Order))
	for _, alt := range s.Order {
		if alt == "" {
			return fmt.Errorf("%w: empty alternative name", ErrInvalidSequence)
		}
		if seen[alt] {
			return fmt.Errorf("%w: %s listed twice", ErrInvalidSequence, alt)
		}
		seen[alt] = true
	}
	for alt, floor := range s.Floors {
		if floor < 0 || floor > 1 || math.IsNaN(floor) {
			return fmt.Errorf("%w: reserve floor %.3f for %s outside [0, 1]", ErrInvalidSequence, floor, alt)
		}
	}
	return nil
}

// Allocation is the year-by-year split of the residual among legacy alternatives
type Allocation struct {
	Order        []string                     `json:"order"`
	Residual     series.TimeSeries            `json:"residual"`
	Alternatives map[string]series.TimeSeries `json:"alternatives"`
}

// Sequencer allocates residual demand among legacy alternatives
type Sequencer struct {
	sequence Sequence
}

// NewSequencer creates a sequencer after validating sequence
func NewSequencer(sequence Sequence) (*Sequencer, error) {
	if err := sequence.Validate(); err != nil {
		return nil, err
	}
	return &Sequencer{sequence: sequence}, nil
}

// Sequence returns the displacement sequence in use
func (s *Sequencer) Sequence() Sequence { return s.sequence }

// Allocate splits max(0, total - challenger - baseline) for every year of total.
// Alternatives before the last one in the order receive min(floor * total, remaining);
// the last one receives what is left. Years missing from challenger or baseline
// count as zero.
func (s *Sequencer) Allocate(total, challenger, baseline series.TimeSeries) Allocation {
	years := total.Years()
	residual := make([]float64, len(years))
	shares := make(map[string][]float64, len(s.sequence.Order))
	for _, alt := range s.sequence.Order {
		shares[alt] = make([]float64, len(years))
	}

	last := len(s.sequence.Order) - 1
	for i, y := range years {
		demand := total.ValueOr(y, 0)
		remaining := math.Max(0, demand-challenger.ValueOr(y, 0)-baseline.ValueOr(y, 0))
		residual[i] = remaining

		for k, alt := range s.sequence.Order {
			if k == last {
				shares[alt][i] = remaining
				break
			}
			take := math.Min(math.Max(0, s.sequence.Floor(alt)*demand), remaining)
			shares[alt][i] = take
			remaining -= take
		}
	}

	alternatives := make(map[string]series.TimeSeries, len(shares))
	for alt, values := range shares {
		alternatives[alt] = series.MustNew(years, values).Named(alt)
	}

	order := make([]string, len(s.sequence.Order))
	copy(order, s.sequence.Order)
	return Allocation{
		Order:        order,
		Residual:     series.MustNew(years, residual).Named("residual"),
		Alternatives: alternatives,
	}
}
