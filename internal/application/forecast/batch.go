package forecast

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sawpanic/disruptrun/internal/config"
	applog "github.com/sawpanic/disruptrun/internal/log"
)

// GlobalRegion is used for entities that declare no regions
const GlobalRegion = "global"

// BatchItem identifies one forecast in a batch
type BatchItem struct {
	Entity string `json:"entity"`
	Region string `json:"region"`
}

func (b BatchItem) String() string { return b.Entity + "/" + b.Region }

// BatchResult pairs an item with its forecast or error
type BatchResult struct {
	Item   BatchItem `json:"item"`
	Result *Result   `json:"result,omitempty"`
	Err    error     `json:"-"`
}

// Items expands entities and regions into batch items. Empty entities means every
// configured entity. Empty regions means each entity's own regions, or GlobalRegion.
func Items(cfg *config.ForecastConfig, entities, regions []string) ([]BatchItem, error) {
	if len(entities) == 0 {
		entities = cfg.EntityIDs()
	}

	var items []BatchItem
	for _, id := range entities {
		entity, err := cfg.Entity(id)
		if err != nil {
			return nil, err
		}
		targets := regions
		if len(targets) == 0 {
			targets = entity.Regions
		}
		if len(targets) == 0 {
			targets = []string{GlobalRegion}
		}
		for _, region := range targets {
			items = append(items, BatchItem{Entity: id, Region: region})
		}
	}
	return items, nil
}

// BatchRunner forecasts many (entity, region) pairs with bounded concurrency
type BatchRunner struct {
	forecaster *Forecaster
	workers    int
}

// NewBatchRunner creates a runner; workers <= 0 uses GOMAXPROCS
func NewBatchRunner(forecaster *Forecaster, workers int) *BatchRunner {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &BatchRunner{forecaster: forecaster, workers: workers}
}

// Run forecasts every item and returns results in input order. A failing item does
// not stop the batch. Items not started before ctx is cancelled carry ctx.Err().
func (br *BatchRunner) Run(ctx context.Context, items []BatchItem, progress applog.ProgressConfig) []BatchResult {
	start := time.Now()
	results := make([]BatchResult, len(items))
	indicator := applog.NewProgressIndicator("Forecasting", len(items), progress)

	var g errgroup.Group
	g.SetLimit(br.workers)

	for i, item := range items {
		i, item := i, item
		results[i].Item = item
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			indicator.Complete(item.String(), err)
			continue
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				indicator.Complete(item.String(), err)
				return nil
			}
			result, err := br.forecaster.Run(ctx, item.Entity, item.Region)
			if err != nil {
				err = fmt.Errorf("%s: %w", item, err)
			}
			results[i].Result = result
			results[i].Err = err
			indicator.Complete(item.String(), err)
			return nil
		})
	}
	_ = g.Wait()
	indicator.Finish()

	done, failed := indicator.Counts()
	log.Info().
		Int("items", len(items)).
		Int("succeeded", done-failed).
		Int("failed", failed).
		Int("workers", br.workers).
		Dur("duration", time.Since(start)).
		Msg("Batch forecast completed")

	return results
}

// Failed returns the results that carry an error
func Failed(results []BatchResult) []BatchResult {
	var failed []BatchResult
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}
