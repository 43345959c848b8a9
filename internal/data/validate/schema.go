package validate

import (
	"fmt"
)

// Severity distinguishes violations that fail a report from ones that only flag
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Check names a consistency rule
type Check string

const (
	CheckNegativeValue    Check = "negative_value"
	CheckSumExceedsMarket Check = "sum_exceeds_market"
	CheckYoYJump          Check = "yoy_jump"
	CheckCAGRBound        Check = "cagr_bound"
	CheckOutlier          Check = "outlier"
	CheckStaleHistory     Check = "stale_history"
)

// Violation is one failed rule at one series and year
type Violation struct {
	Check    Check    `json:"check"`
	Severity Severity `json:"severity"`
	Series   string   `json:"series"`
	Year     int      `json:"year,omitempty"`
	Value    float64  `json:"value"`
	Limit    float64  `json:"limit"`
	Message  string   `json:"message"`
}

// Error implements the error interface
func (v Violation) Error() string {
	return fmt.Sprintf("%s [%s] %s", v.Check, v.Severity, v.Message)
}

// Report holds the outcome of a validation run. Passed is false only when an
// error-severity violation was recorded; warnings never fail a report.
type Report struct {
	Passed     bool        `json:"passed"`
	Violations []Violation `json:"violations"`
}

// NewReport returns an empty passing report
func NewReport() *Report {
	return &Report{Passed: true, Violations: []Violation{}}
}

// Add records a violation
func (r *Report) Add(v Violation) {
	r.Violations = append(r.Violations, v)
	if v.Severity == SeverityError {
		r.Passed = false
	}
}

// Merge appends the violations of other
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	for _, v := range other.Violations {
		r.Add(v)
	}
}

// Errors returns the error-severity violations
func (r *Report) Errors() []Violation { return r.filter(SeverityError) }

// Warnings returns the warning-severity violations
func (r *Report) Warnings() []Violation { return r.filter(SeverityWarning) }

// CountByCheck returns the number of violations per check
func (r *Report) CountByCheck() map[Check]int {
	counts := make(map[Check]int)
	for _, v := range r.Violations {
		counts[v.Check]++
	}
	return counts
}

func (r *Report) filter(severity Severity) []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == severity {
			out = append(out, v)
		}
	}
	return out
}
