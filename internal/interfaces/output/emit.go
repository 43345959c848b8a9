package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/disruptrun/internal/application/forecast"
)

// DefaultPrecision is the number of decimals written for demand values
const DefaultPrecision int32 = 4

// Emitter writes forecast results as CSV tables and JSON documents
type Emitter struct {
	precision int32
}

// NewEmitter creates an emitter writing DefaultPrecision decimals
func NewEmitter() *Emitter {
	return &Emitter{precision: DefaultPrecision}
}

// WithPrecision sets the decimals written for CSV values
func (e *Emitter) WithPrecision(precision int32) *Emitter {
	e.precision = precision
	return e
}

// EmitDecompositionCSV writes the year-by-component table of result to filePath
func (e *Emitter) EmitDecompositionCSV(filePath string, result *forecast.Result) error {
	file, err := create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	return e.WriteDecompositionCSV(file, result)
}

// WriteDecompositionCSV writes one row per year with the market followed by every component
func (e *Emitter) WriteDecompositionCSV(w io.Writer, result *forecast.Result) error {
	writer := csv.NewWriter(w)

	names, columns := result.Decomposition.Columns()
	header := append([]string{"year", "type"}, names...)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	first := result.Decomposition.FirstForecastYear
	for _, year := range result.Decomposition.Years() {
		record := make([]string, 0, len(header))
		record = append(record, strconv.Itoa(year), rowType(year, first))
		for _, column := range columns {
			record = append(record, e.format(column.ValueOr(year, 0)))
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// EmitResultJSON writes the full forecast result, including fit diagnostics, to filePath
func (e *Emitter) EmitResultJSON(filePath string, result *forecast.Result) error {
	file, err := create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	return e.WriteResultJSON(file, result)
}

// WriteResultJSON encodes result as indented JSON
func (e *Emitter) WriteResultJSON(w io.Writer, result *forecast.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// EmitBatchSummaryCSV writes one row per batch item with its headline figures
func (e *Emitter) EmitBatchSummaryCSV(filePath string, results []forecast.BatchResult) error {
	file, err := create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create summary CSV file: %w", err)
	}
	defer file.Close()

	return e.WriteBatchSummaryCSV(file, results)
}

// WriteBatchSummaryCSV writes the batch summary table
func (e *Emitter) WriteBatchSummaryCSV(w io.Writer, results []forecast.BatchResult) error {
	writer := csv.NewWriter(w)

	header := []string{
		"Entity", "Region", "Status", "TippingPoint", "K", "T0", "FitFallback",
		"ChallengerCostCAGR", "IncumbentCostCAGR", "Validation", "Violations", "Error",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, r := range results {
		record := []string{r.Item.Entity, r.Item.Region}
		if r.Err != nil || r.Result == nil {
			msg := "no result"
			if r.Err != nil {
				msg = r.Err.Error()
			}
			record = append(record, "ERROR", "", "", "", "", "", "", "", "", msg)
		} else {
			res := r.Result
			record = append(record,
				"OK",
				res.TippingPoint.String(),
				e.formatFixed(res.Fit.Params.K, 4),
				e.formatFixed(res.Fit.Params.T0, 2),
				formatCSVBool(res.Fit.Fallback, "YES", "NO"),
				e.formatFixed(res.ChallengerCostCAGR, 4),
				e.formatFixed(res.IncumbentCostCAGR, 4),
				formatCSVBool(res.Validation.Passed, "PASS", "FAIL"),
				strconv.Itoa(len(res.Validation.Violations)),
				"",
			)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func (e *Emitter) format(v float64) string {
	return e.formatFixed(v, e.precision)
}

func (e *Emitter) formatFixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

func rowType(year, firstForecastYear int) string {
	if year < firstForecastYear {
		return "history"
	}
	return "forecast"
}

func create(filePath string) (*os.File, error) {
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return os.Create(filePath)
}

func formatCSVBool(condition bool, trueVal, falseVal string) string {
	if condition {
		return trueVal
	}
	return falseVal
}
