package datasources

import (
	"context"
	"sync"

	"github.com/sawpanic/disruptrun/internal/series"
)

// MemorySource serves series held in memory. Safe for concurrent use.
type MemorySource struct {
	mu   sync.RWMutex
	data map[string]series.TimeSeries
}

// NewMemorySource creates an empty in-memory source
func NewMemorySource() *MemorySource {
	return &MemorySource{data: make(map[string]series.TimeSeries)}
}

// SetCost stores the cost series for product in region
func (m *MemorySource) SetCost(productID, region string, ts series.TimeSeries) *MemorySource {
	return m.set(KindCost, productID, region, ts)
}

// SetDemand stores the demand series for product in region
func (m *MemorySource) SetDemand(productID, region string, ts series.TimeSeries) *MemorySource {
	return m.set(KindDemand, productID, region, ts)
}

func (m *MemorySource) set(kind Kind, productID, region string, ts series.TimeSeries) *MemorySource {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[cacheKey(kind, productID, region)] = ts.Named(seriesName(kind, productID, region))
	return m
}

// CostSeries implements HistoricalDataSource
func (m *MemorySource) CostSeries(ctx context.Context, productID, region string) (series.TimeSeries, error) {
	return m.get(ctx, KindCost, productID, region)
}

// DemandSeries implements HistoricalDataSource
func (m *MemorySource) DemandSeries(ctx context.Context, productID, region string) (series.TimeSeries, error) {
	return m.get(ctx, KindDemand, productID, region)
}

func (m *MemorySource) get(ctx context.Context, kind Kind, productID, region string) (series.TimeSeries, error) {
	if err := ctx.Err(); err != nil {
		return series.TimeSeries{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ts, ok := m.data[cacheKey(kind, productID, region)]
	if !ok {
		return series.TimeSeries{}, notFound(kind, productID, region)
	}
	return ts, nil
}
