package datasources

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/disruptrun/internal/series"
)

func TestMemorySource(t *testing.T) {
	ctx := context.Background()
	source := NewMemorySource().
		SetCost("bev", "global", series.MustNew([]int{2020, 2021}, []float64{300, 250})).
		SetDemand("bev", "global", series.MustNew([]int{2020, 2021}, []float64{3, 6}))

	cost, err := source.CostSeries(ctx, "bev", "global")
	require.NoError(t, err)
	assert.Equal(t, []float64{300, 250}, cost.Values())
	assert.Equal(t, "bev_cost_global", cost.Name())

	_, err = source.DemandSeries(ctx, "bev", "europe")
	assert.ErrorIs(t, err, ErrSeriesNotFound)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = source.CostSeries(cancelled, "bev", "global")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.json")
	dataset := Dataset{Products: map[string]ProductData{
		"solar": {
			Cost:   map[string]RawSeries{"china": {Years: []int{2018, 2019, 2020}, Values: []float64{60, 50, 40}}},
			Demand: map[string]RawSeries{"china": {Years: []int{2018, 2019, 2020}, Values: []float64{100, 150, 220}}},
		},
	}}
	require.NoError(t, WriteDataset(dataset, path))

	source, err := NewFileSource(path)
	require.NoError(t, err)
	assert.Equal(t, path, source.Path())

	ctx := context.Background()
	cost, err := source.CostSeries(ctx, "solar", "china")
	require.NoError(t, err)
	assert.Equal(t, []int{2018, 2019, 2020}, cost.Years())

	demand, err := source.DemandSeries(ctx, "solar", "china")
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 150, 220}, demand.Values())

	_, err = source.CostSeries(ctx, "wind", "china")
	assert.ErrorIs(t, err, ErrSeriesNotFound)
}

func TestFileSource_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewFileSource(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	malformed := filepath.Join(dir, "malformed.json")
	require.NoError(t, os.WriteFile(malformed, []byte("{"), 0644))
	_, err = NewFileSource(malformed)
	assert.Error(t, err)

	mismatched := filepath.Join(dir, "mismatched.json")
	require.NoError(t, os.WriteFile(mismatched, []byte(`{"products":{"bev":{"cost":{"global":{"years":[2020,2021],"values":[1]}}}}}`), 0644))
	_, err = NewFileSource(mismatched)
	assert.ErrorIs(t, err, series.ErrInvalidSeries)
}

type countingSource struct {
	calls atomic.Int64
	inner HistoricalDataSource
}

func (c *countingSource) CostSeries(ctx context.Context, productID, region string) (series.TimeSeries, error) {
	c.calls.Add(1)
	return c.inner.CostSeries(ctx, productID, region)
}

func (c *countingSource) DemandSeries(ctx context.Context, productID, region string) (series.TimeSeries, error) {
	c.calls.Add(1)
	return c.inner.DemandSeries(ctx, productID, region)
}

func TestCachedSource(t *testing.T) {
	ctx := context.Background()
	inner := &countingSource{inner: NewMemorySource().
		SetDemand("cars", "global", series.MustNew([]int{2020}, []float64{80}))}
	cached := NewCachedSource(inner)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ts, err := cached.DemandSeries(ctx, "cars", "global")
			assert.NoError(t, err)
			assert.Equal(t, []float64{80}, ts.Values())
		}()
	}
	wg.Wait()

	_, err := cached.DemandSeries(ctx, "cars", "global")
	require.NoError(t, err)
	assert.Equal(t, int64(1), inner.calls.Load())

	// not-found results are cached as well
	_, err = cached.CostSeries(ctx, "cars", "global")
	assert.ErrorIs(t, err, ErrSeriesNotFound)
	_, err = cached.CostSeries(ctx, "cars", "global")
	assert.ErrorIs(t, err, ErrSeriesNotFound)
	assert.Equal(t, int64(2), inner.calls.Load())

	stats := cached.Stats()
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, int64(11), stats.Hits+stats.Misses)

	cached.Clear()
	assert.Equal(t, 0, cached.Stats().Entries)
}

// flakySource fails its first call with a read error, then delegates
type flakySource struct {
	countingSource
	failed atomic.Bool
}

func (f *flakySource) DemandSeries(ctx context.Context, productID, region string) (series.TimeSeries, error) {
	if f.failed.CompareAndSwap(false, true) {
		f.calls.Add(1)
		return series.TimeSeries{}, errors.New("read timeout")
	}
	return f.countingSource.DemandSeries(ctx, productID, region)
}

func TestCachedSource_RetriesTransientErrors(t *testing.T) {
	ctx := context.Background()
	inner := &flakySource{countingSource: countingSource{inner: NewMemorySource().
		SetDemand("cars", "global", series.MustNew([]int{2020}, []float64{80}))}}
	cached := NewCachedSource(inner)

	_, err := cached.DemandSeries(ctx, "cars", "global")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSeriesNotFound)
	assert.Equal(t, 0, cached.Stats().Entries)

	ts, err := cached.DemandSeries(ctx, "cars", "global")
	require.NoError(t, err)
	assert.Equal(t, []float64{80}, ts.Values())

	_, err = cached.DemandSeries(ctx, "cars", "global")
	require.NoError(t, err)
	assert.Equal(t, int64(2), inner.calls.Load())
	assert.Equal(t, 1, cached.Stats().Entries)
}
