package entitycache_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/schooldash/entity-cache-go/entitycache"
	"github.com/schooldash/entity-cache-go/testutil/fixtures"
)

func Test_Fetch_ReturnsFillResult(t *testing.T) {
	tracker := entitycache.NewInflightTracker()
	page := fixtures.StudentPage(1, 10, 1, fixtures.StudentRecord("s-1", "Ada", 7))

	response, err := tracker.Fetch(context.Background(), "students:list:p=1", func(context.Context) (entitycache.Response, error) {
		return page, nil
	})

	assert.NoError(t, err)
	assert.Equal(t, page, response)
}

func Test_Fetch_DeduplicatesConcurrentCallsForSameKey(t *testing.T) {
	tracker := entitycache.NewInflightTracker()

	var fills atomic.Int32
	release := make(chan struct{})

	fill := func(context.Context) (entitycache.Response, error) {
		fills.Add(1)
		<-release
		return fixtures.StudentPage(1, 10, 0), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := tracker.Fetch(context.Background(), "students:list:p=1", fill)
			assert.NoError(t, err)
		}()
	}

	// Give the goroutines time to join the same flight before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), fills.Load(), "concurrent fetches for one key share a single fill")
}

func Test_Fetch_DistinctKeysDoNotShareFlights(t *testing.T) {
	tracker := entitycache.NewInflightTracker()

	var fills atomic.Int32
	fill := func(context.Context) (entitycache.Response, error) {
		fills.Add(1)
		return fixtures.StudentPage(1, 10, 0), nil
	}

	_, err := tracker.Fetch(context.Background(), "students:list:p=1", fill)
	assert.NoError(t, err)
	_, err = tracker.Fetch(context.Background(), "students:list:p=2", fill)
	assert.NoError(t, err)

	assert.Equal(t, int32(2), fills.Load())
}

func Test_Cancel_AbortsTheInflightFetch(t *testing.T) {
	tracker := entitycache.NewInflightTracker()

	started := make(chan struct{})
	result := make(chan error, 1)

	go func() {
		_, err := tracker.Fetch(context.Background(), "students:list:p=1", func(ctx context.Context) (entitycache.Response, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		})
		result <- err
	}()

	<-started
	tracker.Cancel("students:list:p=1")

	select {
	case err := <-result:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled fetch never returned")
	}
}

func Test_Cancel_LeavesOtherKeysRunning(t *testing.T) {
	tracker := entitycache.NewInflightTracker()

	started := make(chan struct{})
	release := make(chan struct{})
	result := make(chan error, 1)

	go func() {
		_, err := tracker.Fetch(context.Background(), "students:list:p=2", func(ctx context.Context) (entitycache.Response, error) {
			close(started)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-release:
				return fixtures.StudentPage(2, 10, 0), nil
			}
		})
		result <- err
	}()

	<-started
	tracker.Cancel("students:list:p=1")
	close(release)

	assert.NoError(t, <-result)
}

func Test_CancelAll_AbortsEveryFlightUnderThePrefix(t *testing.T) {
	tracker := entitycache.NewInflightTracker()

	var wg sync.WaitGroup
	started := make(chan struct{}, 2)
	errs := make(chan error, 2)

	for _, key := range []string{"students:list:p=1", "students:list:p=2"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()

			_, err := tracker.Fetch(context.Background(), key, func(ctx context.Context) (entitycache.Response, error) {
				started <- struct{}{}
				<-ctx.Done()
				return nil, ctx.Err()
			})
			errs <- err
		}(key)
	}

	<-started
	<-started
	tracker.CancelAll(entitycache.ListKeyPrefix(fixtures.StudentEntityType))
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func Test_Fetch_AfterCancelStartsAFreshFlight(t *testing.T) {
	tracker := entitycache.NewInflightTracker()

	started := make(chan struct{})
	result := make(chan error, 1)

	go func() {
		_, err := tracker.Fetch(context.Background(), "students:list:p=1", func(ctx context.Context) (entitycache.Response, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		})
		result <- err
	}()

	<-started
	tracker.Cancel("students:list:p=1")
	assert.Error(t, <-result)

	page := fixtures.StudentPage(1, 10, 0)
	response, err := tracker.Fetch(context.Background(), "students:list:p=1", func(context.Context) (entitycache.Response, error) {
		return page, nil
	})

	assert.NoError(t, err)
	assert.Equal(t, page, response)
}
