package series

import "fmt"

// Pair is two series aligned to one gap-free yearly grid
type Pair struct {
	Challenger TimeSeries
	Incumbent  TimeSeries
}

// Years returns the shared grid
func (p Pair) Years() []int { return p.Challenger.Years() }

// Diff returns challenger - incumbent for each grid year
func (p Pair) Diff() []float64 {
	c, inc := p.Challenger.Values(), p.Incumbent.Values()
	diff := make([]float64, len(c))
	for i := range c {
		diff[i] = c[i] - inc[i]
	}
	return diff
}

// Align puts two series on the common grid [min first year, max last year].
// Years missing from a series are filled by linear interpolation between its neighbours;
// outside a series' own range its nearest endpoint value is held, never extrapolated.
func Align(challenger, incumbent TimeSeries) (Pair, error) {
	if challenger.Empty() || incumbent.Empty() {
		return Pair{}, &InsufficientDataError{Operation: "align", Have: min(challenger.Len(), incumbent.Len()), Need: 1}
	}

	from := min(challenger.FirstYear(), incumbent.FirstYear())
	to := max(challenger.LastYear(), incumbent.LastYear())
	grid := YearRange(from, to)

	return Pair{
		Challenger: Interpolate(challenger, grid),
		Incumbent:  Interpolate(incumbent, grid),
	}, nil
}

// Interpolate evaluates ts on years by piecewise-linear interpolation, holding endpoints flat
func Interpolate(ts TimeSeries, years []int) TimeSeries {
	out := make([]Point, len(years))
	pts := ts.points
	j := 0
	for i, y := range years {
		switch {
		case len(pts) == 0:
			out[i] = Point{Year: y}
		case y <= pts[0].Year:
			out[i] = Point{Year: y, Value: pts[0].Value}
		case y >= pts[len(pts)-1].Year:
			out[i] = Point{Year: y, Value: pts[len(pts)-1].Value}
		default:
			for j < len(pts)-1 && pts[j+1].Year < y {
				j++
			}
			if pts[j+1].Year == y {
				out[i] = Point{Year: y, Value: pts[j+1].Value}
				continue
			}
			lo, hi := pts[j], pts[j+1]
			frac := float64(y-lo.Year) / float64(hi.Year-lo.Year)
			out[i] = Point{Year: y, Value: lo.Value + frac*(hi.Value-lo.Value)}
		}
	}
	return TimeSeries{name: ts.name, points: out}
}

// String implements fmt.Stringer for log fields
func (p Pair) String() string {
	return fmt.Sprintf("pair[%d-%d]", p.Challenger.FirstYear(), p.Challenger.LastYear())
}
