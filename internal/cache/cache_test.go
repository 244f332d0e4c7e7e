package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"flakecast/internal/forecast"
	"flakecast/pkg/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func result(req forecast.Request) *forecast.Result {
	v := 1.5
	return &forecast.Result{
		Request: req,
		Points:  []forecast.SeriesPoint{{Date: time.Date(2017, 11, 1, 0, 0, 0, 0, time.UTC), Forecast: &v}},
	}
}

func TestSecondCallIsServedFromCache(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// Exactly one warehouse round trip is expected.
	mock.ExpectQuery("WITH train").
		WillReturnRows(sqlmock.NewRows([]string{"STORE", "ITEM", "TS", "Y", "FORECAST"}).
			AddRow(5, 12, time.Date(2017, 10, 31, 0, 0, 0, 0, time.UTC), nil, 42.0))

	builder := forecast.NewBuilder(db, forecast.Settings{
		SalesTable:     "SALES_DATA",
		Function:       "FORECAST",
		DateColumn:     "DATE",
		StoreColumn:    "STORE",
		ItemColumn:     "ITEM",
		ValueColumn:    "SALES",
		TrainingCutoff: time.Date(2017, 10, 31, 0, 0, 0, 0, time.UTC),
		DisplayStart:   time.Date(2017, 6, 1, 0, 0, 0, 0, time.UTC),
	})

	c := New()
	key := forecast.Request{Store: 5, Item: 12, Horizon: 30}
	compute := func(ctx context.Context) (*forecast.Result, error) {
		return builder.BuildAndRun(ctx, key)
	}

	first, err := c.GetOrCompute(context.Background(), key, compute)
	require.NoError(t, err)
	second, err := c.GetOrCompute(context.Background(), key, compute)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.NoError(t, mock.ExpectationsWereMet())

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Computes)
	assert.Equal(t, 1, stats.Entries)
}

func TestKeysAreIndependent(t *testing.T) {
	c := New()
	var calls atomic.Int32
	compute := func(req forecast.Request) ComputeFunc {
		return func(context.Context) (*forecast.Result, error) {
			calls.Add(1)
			return result(req), nil
		}
	}

	keys := []forecast.Request{
		{Store: 5, Item: 12, Horizon: 30},
		{Store: 5, Item: 12, Horizon: 31},
		{Store: 5, Item: 13, Horizon: 30},
		{Store: 6, Item: 12, Horizon: 30},
	}
	for _, k := range keys {
		res, err := c.GetOrCompute(context.Background(), k, compute(k))
		require.NoError(t, err)
		assert.Equal(t, k, res.Request)
	}
	assert.Equal(t, int32(len(keys)), calls.Load())
	assert.Equal(t, len(keys), c.Len())
}

func TestConcurrentCallersShareOneComputation(t *testing.T) {
	c := New()
	key := forecast.Request{Store: 1, Item: 1, Horizon: 10}

	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})
	compute := func(context.Context) (*forecast.Result, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return result(key), nil
	}

	const callers = 10
	results := make([]*forecast.Result, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := c.GetOrCompute(context.Background(), key, compute)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}

	<-started
	// Give the other callers time to join the in-flight computation.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestCanceledCallerLeavesSharedComputationRunning(t *testing.T) {
	c := New()
	key := forecast.Request{Store: 5, Item: 12, Horizon: 30}

	var calls atomic.Int32
	var computeErr error
	release := make(chan struct{})
	started := make(chan struct{})
	compute := func(ctx context.Context) (*forecast.Result, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		computeErr = ctx.Err()
		return result(key), nil
	}

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.GetOrCompute(firstCtx, key, compute)
		firstErr <- err
	}()
	<-started

	type outcome struct {
		res *forecast.Result
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		res, err := c.GetOrCompute(context.Background(), key, compute)
		second <- outcome{res, err}
	}()

	cancel()
	err := <-firstErr
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeQueryCanceled, errors.GetErrorCode(err))
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, key, got.res.Request)
	assert.NoError(t, computeErr)
	assert.Equal(t, int32(1), calls.Load())

	cached, ok := c.Get(key)
	require.True(t, ok)
	assert.Same(t, got.res, cached)
}

func TestErrorsAreNotCached(t *testing.T) {
	c := New()
	key := forecast.Request{Store: 5, Item: 999, Horizon: 30}

	_, err := c.GetOrCompute(context.Background(), key, func(context.Context) (*forecast.Result, error) {
		return nil, fmt.Errorf("no data")
	})
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())

	res, err := c.GetOrCompute(context.Background(), key, func(context.Context) (*forecast.Result, error) {
		return result(key), nil
	})
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Equal(t, int64(2), c.Stats().Computes)
}

func TestEmptyResultIsCached(t *testing.T) {
	c := New()
	key := forecast.Request{Store: 99, Item: 1, Horizon: 5}
	empty := &forecast.Result{Request: key}

	var calls int
	compute := func(context.Context) (*forecast.Result, error) {
		calls++
		return empty, nil
	}
	for i := 0; i < 3; i++ {
		res, err := c.GetOrCompute(context.Background(), key, compute)
		require.NoError(t, err)
		assert.True(t, res.Empty())
	}
	assert.Equal(t, 1, calls)
}

func TestNoExpiryWithoutTTL(t *testing.T) {
	c := New()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	key := forecast.Request{Store: 1, Item: 2, Horizon: 3}
	_, err := c.GetOrCompute(context.Background(), key, func(context.Context) (*forecast.Result, error) {
		return result(key), nil
	})
	require.NoError(t, err)

	now = now.Add(24 * 365 * time.Hour)
	_, ok := c.Get(key)
	assert.True(t, ok)
}

func TestTTLExpiry(t *testing.T) {
	c := New(WithTTL(time.Minute))
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	key := forecast.Request{Store: 1, Item: 2, Horizon: 3}
	var calls int
	compute := func(context.Context) (*forecast.Result, error) {
		calls++
		return result(key), nil
	}

	_, err := c.GetOrCompute(context.Background(), key, compute)
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	_, err = c.GetOrCompute(context.Background(), key, compute)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	now = now.Add(time.Minute)
	_, err = c.GetOrCompute(context.Background(), key, compute)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestInvalidateAndPurge(t *testing.T) {
	c := New()
	for i := int64(1); i <= 3; i++ {
		key := forecast.Request{Store: i, Item: i, Horizon: 1}
		_, err := c.GetOrCompute(context.Background(), key, func(context.Context) (*forecast.Result, error) {
			return result(key), nil
		})
		require.NoError(t, err)
	}

	assert.True(t, c.Invalidate(forecast.Request{Store: 1, Item: 1, Horizon: 1}))
	assert.False(t, c.Invalidate(forecast.Request{Store: 1, Item: 1, Horizon: 1}))
	assert.Equal(t, 2, c.Len())

	assert.Equal(t, 2, c.Purge())
	assert.Equal(t, 0, c.Len())
}
