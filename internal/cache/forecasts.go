package cache

import (
	"context"

	"flakecast/internal/forecast"
)

// Runner computes a forecast on a cache miss. *forecast.Builder satisfies it.
type Runner interface {
	BuildAndRun(ctx context.Context, req forecast.Request) (*forecast.Result, error)
	Bounds() forecast.Bounds
}

// Forecasts serves forecasts through a ResultCache. It is what the CLI and
// the dashboard call when the user triggers a run.
type Forecasts struct {
	cache  *ResultCache
	runner Runner
}

func NewForecasts(c *ResultCache, r Runner) *Forecasts {
	return &Forecasts{cache: c, runner: r}
}

// Get validates the horizon before touching the cache so an invalid request
// never occupies a single-flight slot.
func (f *Forecasts) Get(ctx context.Context, req forecast.Request) (*forecast.Result, error) {
	if err := f.runner.Bounds().Check(req.Horizon); err != nil {
		return nil, err
	}
	return f.cache.GetOrCompute(ctx, req, func(ctx context.Context) (*forecast.Result, error) {
		return f.runner.BuildAndRun(ctx, req)
	})
}

func (f *Forecasts) Bounds() forecast.Bounds {
	return f.runner.Bounds()
}

func (f *Forecasts) Cache() *ResultCache {
	return f.cache
}
