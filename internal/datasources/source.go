package datasources

import (
	"context"
	"errors"
	"fmt"

	"github.com/sawpanic/disruptrun/internal/series"
)

// ErrSeriesNotFound is returned when a product has no data for the requested region
var ErrSeriesNotFound = errors.New("series not found")

// Kind distinguishes the two series families a product can carry
type Kind string

const (
	KindCost   Kind = "cost"
	KindDemand Kind = "demand"
)

// HistoricalDataSource supplies historical series per product and region. Each
// application domain provides its own implementation.
type HistoricalDataSource interface {
	CostSeries(ctx context.Context, productID, region string) (series.TimeSeries, error)
	DemandSeries(ctx context.Context, productID, region string) (series.TimeSeries, error)
}

func notFound(kind Kind, productID, region string) error {
	return fmt.Errorf("%w: %s %s/%s", ErrSeriesNotFound, kind, productID, region)
}

func seriesName(kind Kind, productID, region string) string {
	return fmt.Sprintf("%s_%s_%s", productID, kind, region)
}
