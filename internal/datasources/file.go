package datasources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/disruptrun/internal/series"
)

// Dataset is the on-disk JSON layout:
//
//	{"products": {"bev": {"cost": {"global": {"years": [...], "values": [...]}}, "demand": {...}}}}
type Dataset struct {
	Products map[string]ProductData `json:"products"`
}

// ProductData holds the per-region series of one product
type ProductData struct {
	Cost   map[string]RawSeries `json:"cost,omitempty"`
	Demand map[string]RawSeries `json:"demand,omitempty"`
}

// RawSeries is a years/values pair as stored on disk
type RawSeries struct {
	Years  []int     `json:"years"`
	Values []float64 `json:"values"`
}

// FileSource serves series from a JSON dataset loaded once at construction
type FileSource struct {
	path   string
	memory *MemorySource
}

// NewFileSource reads and validates the dataset at path
func NewFileSource(path string) (*FileSource, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	var dataset Dataset
	if err := json.Unmarshal(b, &dataset); err != nil {
		return nil, fmt.Errorf("failed to parse dataset %s: %w", path, err)
	}

	memory := NewMemorySource()
	count := 0
	for _, productID := range sortedKeys(dataset.Products) {
		product := dataset.Products[productID]
		for region, raw := range product.Cost {
			ts, err := series.New(raw.Years, raw.Values)
			if err != nil {
				return nil, fmt.Errorf("dataset %s: %s cost %s: %w", path, productID, region, err)
			}
			memory.SetCost(productID, region, ts)
			count++
		}
		for region, raw := range product.Demand {
			ts, err := series.New(raw.Years, raw.Values)
			if err != nil {
				return nil, fmt.Errorf("dataset %s: %s demand %s: %w", path, productID, region, err)
			}
			memory.SetDemand(productID, region, ts)
			count++
		}
	}

	log.Debug().
		Str("path", path).
		Int("products", len(dataset.Products)).
		Int("series", count).
		Msg("Dataset loaded")

	return &FileSource{path: path, memory: memory}, nil
}

// Path returns the dataset location
func (f *FileSource) Path() string { return f.path }

// CostSeries implements HistoricalDataSource
func (f *FileSource) CostSeries(ctx context.Context, productID, region string) (series.TimeSeries, error) {
	return f.memory.CostSeries(ctx, productID, region)
}

// DemandSeries implements HistoricalDataSource
func (f *FileSource) DemandSeries(ctx context.Context, productID, region string) (series.TimeSeries, error) {
	return f.memory.DemandSeries(ctx, productID, region)
}

// WriteDataset writes dataset as indented JSON
func WriteDataset(dataset Dataset, path string) error {
	b, err := json.MarshalIndent(dataset, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal dataset: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create dataset directory: %w", err)
		}
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	return nil
}

func sortedKeys(m map[string]ProductData) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
