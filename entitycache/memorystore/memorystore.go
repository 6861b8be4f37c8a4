// Package memorystore provides an in-memory ReactiveStore implementation backed
// by an LRU cache, with staleness tracking and per-key change subscriptions.
package memorystore

import (
	"errors"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/schooldash/entity-cache-go/entitycache"
)

var ErrInvalidCapacity = errors.New("store capacity must be positive")
var ErrBuildingLRUFailed = errors.New("building LRU cache failed")

// DefaultCapacity bounds the store when no capacity option is supplied.
const DefaultCapacity = 1024

// entry wraps a cached response with its staleness flag. A stale entry keeps its
// value and subscribers but no longer satisfies Get, forcing a refetch.
type entry struct {
	value entitycache.Response
	stale bool
}

// Option defines a functional option for configuring a Store.
type Option func(*Store) error

// WithCapacity sets the maximum number of entries held before LRU eviction.
func WithCapacity(capacity int) Option {
	return func(s *Store) error {
		if capacity <= 0 {
			return ErrInvalidCapacity
		}

		s.capacity = capacity

		return nil
	}
}

// WithLogger sets the logger for the Store.
func WithLogger(logger entitycache.Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// Store is an LRU-bounded, concurrency-safe reactive key/value store.
//
// Invalidate marks entries stale instead of discarding them, so subscribers stay
// registered across refetch cycles. Eviction discards least-recently-used entries
// silently, which the ReactiveStore contract explicitly permits.
type Store struct {
	mu          sync.Mutex
	entries     *lru.Cache[string, *entry]
	subscribers map[string]map[int]entitycache.SubscriberFunc
	nextSubID   int
	capacity    int
	logger      entitycache.Logger
}

var _ entitycache.ReactiveStore = (*Store)(nil)

// NewStore creates a Store with optional configuration.
func NewStore(options ...Option) (*Store, error) {
	s := &Store{
		subscribers: make(map[string]map[int]entitycache.SubscriberFunc),
		capacity:    DefaultCapacity,
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	entries, err := lru.New[string, *entry](s.capacity)
	if err != nil {
		return nil, errors.Join(ErrBuildingLRUFailed, err)
	}

	s.entries = entries

	return s, nil
}

// Get returns the value for the key if it is present and fresh.
func (s *Store) Get(key string) (entitycache.Response, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries.Get(key)
	if !ok || e.stale {
		return nil, false
	}

	return e.value, true
}

// Set stores the value for the key, clearing any staleness, and notifies the
// key's subscribers with the new value.
func (s *Store) Set(key string, value entitycache.Response) {
	s.mu.Lock()
	s.entries.Add(key, &entry{value: value})
	subscribers := s.subscribersFor(key)
	s.mu.Unlock()

	for _, subscriber := range subscribers {
		subscriber(key, value)
	}
}

// Invalidate marks the entry stale without discarding its value or subscribers.
// A missing key is a no-op.
func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries.Peek(key); ok {
		e.stale = true
	}
}

// Remove discards the entry outright. Subscribers for the key stay registered
// and fire again if the key is repopulated.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries.Remove(key)
}

// Keys returns the keys of all present entries, stale ones included.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.entries.Keys()
}

// Subscribe registers a callback fired on every Set for the key. The returned
// function removes the subscription; calling it more than once is safe.
func (s *Store) Subscribe(key string, subscriber entitycache.SubscriberFunc) entitycache.UnsubscribeFunc {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subscribers[key] == nil {
		s.subscribers[key] = make(map[int]entitycache.SubscriberFunc)
	}

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[key][id] = subscriber

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		delete(s.subscribers[key], id)
		if len(s.subscribers[key]) == 0 {
			delete(s.subscribers, key)
		}
	}
}

// Len returns the number of present entries, stale ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.entries.Len()
}

// IsStale reports whether the key is present but marked stale.
func (s *Store) IsStale(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries.Peek(key)

	return ok && e.stale
}

// Purge discards every entry. Subscribers stay registered.
func (s *Store) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries.Purge()
}

// subscribersFor snapshots the key's subscribers so they can be invoked without
// holding the store lock.
func (s *Store) subscribersFor(key string) []entitycache.SubscriberFunc {
	registered := s.subscribers[key]
	if len(registered) == 0 {
		return nil
	}

	snapshot := make([]entitycache.SubscriberFunc, 0, len(registered))
	for _, subscriber := range registered {
		snapshot = append(snapshot, subscriber)
	}

	return snapshot
}
