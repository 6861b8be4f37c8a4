package entitycache

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// FetchFillFunc produces the response for a cache key, typically by delegating
// to a query executor or a CRUD fetch function.
type FetchFillFunc func(ctx context.Context) (Response, error)

// inflightEntry identifies one registered flight so that unregistering cannot
// remove a newer flight that reused the same key.
type inflightEntry struct {
	cancel context.CancelFunc
}

// InflightTracker coordinates the fetches currently in flight for cache keys.
//
// It serves two purposes: concurrent fetches for the same key are deduplicated so
// only one hits the document store (thundering-herd protection), and any in-flight
// fetch for a key can be cancelled before an optimistic write to that key, closing
// the race where a stale server response overwrites the optimistic value.
type InflightTracker struct {
	mu      sync.Mutex
	sfGroup singleflight.Group
	flights map[string]*inflightEntry
}

// NewInflightTracker creates an empty tracker.
func NewInflightTracker() *InflightTracker {
	return &InflightTracker{
		flights: make(map[string]*inflightEntry),
	}
}

// Fetch runs the fill function for the key, deduplicating concurrent calls for the
// same key. The fill runs under a cancellable context registered with the tracker,
// so Cancel(key) aborts it.
func (t *InflightTracker) Fetch(ctx context.Context, key string, fill FetchFillFunc) (Response, error) {
	result, err, _ := t.sfGroup.Do(key, func() (any, error) {
		fetchCtx, cancel := context.WithCancel(ctx)

		flight := &inflightEntry{cancel: cancel}
		t.register(key, flight)
		defer t.unregister(key, flight)

		return fill(fetchCtx)
	})

	if err != nil {
		return nil, err
	}

	response, _ := result.(Response)

	return response, nil
}

// Cancel aborts the in-flight fetch for the key, if any. Fetches for other keys
// are unaffected.
func (t *InflightTracker) Cancel(key string) {
	t.mu.Lock()
	flight, ok := t.flights[key]
	delete(t.flights, key)
	t.mu.Unlock()

	if ok {
		flight.cancel()
	}

	// Forget makes the next Fetch for this key start fresh instead of joining
	// the cancelled flight.
	t.sfGroup.Forget(key)
}

// CancelAll aborts every in-flight fetch whose key starts with the given prefix.
// The optimistic coordinator uses this with a list-key prefix to clear all list
// fetches of one entity type at once.
func (t *InflightTracker) CancelAll(prefix string) {
	t.mu.Lock()
	var keys []string
	for key := range t.flights {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	t.mu.Unlock()

	for _, key := range keys {
		t.Cancel(key)
	}
}

func (t *InflightTracker) register(key string, flight *inflightEntry) {
	t.mu.Lock()
	t.flights[key] = flight
	t.mu.Unlock()
}

func (t *InflightTracker) unregister(key string, flight *inflightEntry) {
	t.mu.Lock()
	if current, ok := t.flights[key]; ok && current == flight {
		delete(t.flights, key)
	}
	t.mu.Unlock()

	flight.cancel()
}
