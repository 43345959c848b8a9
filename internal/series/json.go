package series

import (
	"encoding/json"
	"fmt"
)

type wireSeries struct {
	Name   string    `json:"name,omitempty"`
	Years  []int     `json:"years"`
	Values []float64 `json:"values"`
}

// MarshalJSON encodes the series as parallel years/values arrays
func (ts TimeSeries) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireSeries{Name: ts.name, Years: ts.Years(), Values: ts.Values()})
}

// UnmarshalJSON decodes parallel years/values arrays, enforcing the TimeSeries invariants
func (ts *TimeSeries) UnmarshalJSON(data []byte) error {
	var w wireSeries
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("failed to decode series: %w", err)
	}
	parsed, err := New(w.Years, w.Values)
	if err != nil {
		return err
	}
	*ts = parsed.Named(w.Name)
	return nil
}
