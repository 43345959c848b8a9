package tipping

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/disruptrun/internal/series"
)

// Kind classifies the outcome of a tipping-point search
type Kind int

const (
	// None means the incumbent stays cheaper through the horizon
	None Kind = iota
	// AlreadyCrossed means the challenger was cheaper for the whole window
	AlreadyCrossed
	// Crossed means parity is reached inside the window
	Crossed
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case AlreadyCrossed:
		return "already_crossed"
	case Crossed:
		return "crossed"
	default:
		return "unknown"
	}
}

// Point is the tipping-point result. Year is meaningful only when Kind != None.
type Point struct {
	Kind           Kind    `json:"kind"`
	Year           int     `json:"year"`
	FractionalYear float64 `json:"fractional_year"` // Interpolated crossing before rounding
}

// NoTipping is the "no crossover within the horizon" result
var NoTipping = Point{Kind: None}

// At returns a Crossed point for year, used for seeded scenarios
func At(year int) Point {
	return Point{Kind: Crossed, Year: year, FractionalYear: float64(year)}
}

// Exists reports whether parity occurs in (or before) the window
func (p Point) Exists() bool { return p.Kind != None }

// YearPtr returns the year or nil when there is no tipping point
func (p Point) YearPtr() *int {
	if !p.Exists() {
		return nil
	}
	y := p.Year
	return &y
}

// String implements fmt.Stringer
func (p Point) String() string {
	if !p.Exists() {
		return "none"
	}
	return fmt.Sprintf("%d (%s)", p.Year, p.Kind)
}

type wirePoint struct {
	Year           int     `json:"year"`
	Kind           string  `json:"kind"`
	FractionalYear float64 `json:"fractional_year"`
}

// MarshalJSON encodes None as null so consumers see a nullable year
func (p Point) MarshalJSON() ([]byte, error) {
	if !p.Exists() {
		return []byte("null"), nil
	}
	return json.Marshal(wirePoint{Year: p.Year, Kind: p.Kind.String(), FractionalYear: p.FractionalYear})
}

// Detect finds the first year the challenger cost reaches parity with the incumbent.
//
// The boundary cases are checked before the scan and take precedence over it:
// a challenger that is never more expensive is AlreadyCrossed at the first grid year
// (no earlier date is inferred), and one that is never cheaper yields None.
// Otherwise the first positive to non-positive transition of challenger-incumbent is
// located, the zero crossing interpolated linearly and rounded to the nearest year.
func Detect(pair series.Pair) Point {
	years := pair.Years()
	diff := pair.Diff()
	if len(diff) == 0 {
		return NoTipping
	}

	alwaysCheaper, neverCheaper := true, true
	for _, d := range diff {
		if d > 0 {
			alwaysCheaper = false
		}
		if d < 0 {
			neverCheaper = false
		}
	}

	if alwaysCheaper {
		return Point{Kind: AlreadyCrossed, Year: years[0], FractionalYear: float64(years[0])}
	}
	if neverCheaper {
		return NoTipping
	}

	for i := 0; i < len(diff)-1; i++ {
		if diff[i] > 0 && diff[i+1] <= 0 {
			frac := diff[i] / (diff[i] - diff[i+1])
			crossing := float64(years[i]) + frac*float64(years[i+1]-years[i])
			return Point{
				Kind:           Crossed,
				Year:           int(math.RoundToEven(crossing)),
				FractionalYear: crossing,
			}
		}
	}

	// challenger started cheaper and lost parity; it never overtakes from above
	return NoTipping
}

// DetectSeries aligns the two cost curves on a common grid and runs Detect
func DetectSeries(challenger, incumbent series.TimeSeries) (Point, error) {
	pair, err := series.Align(challenger, incumbent)
	if err != nil {
		return NoTipping, fmt.Errorf("failed to align cost curves: %w", err)
	}

	point := Detect(pair)
	log.Debug().
		Str("challenger", challenger.Name()).
		Str("incumbent", incumbent.Name()).
		Str("tipping_point", point.String()).
		Msg("tipping point detected")
	return point, nil
}
