package fakes

import (
	"sort"
	"sync"

	"github.com/schooldash/entity-cache-go/entitycache"
)

// ReactiveStore is a map-backed entitycache.ReactiveStore without eviction,
// for tests that need full control over the stored entries.
type ReactiveStore struct {
	mu          sync.Mutex
	entries     map[string]entitycache.Response
	stale       map[string]bool
	subscribers map[string][]entitycache.SubscriberFunc
}

// NewReactiveStore creates an empty fake store.
func NewReactiveStore() *ReactiveStore {
	return &ReactiveStore{
		entries:     make(map[string]entitycache.Response),
		stale:       make(map[string]bool),
		subscribers: make(map[string][]entitycache.SubscriberFunc),
	}
}

// Get returns the value for the key if it is present and fresh.
func (s *ReactiveStore) Get(key string) (entitycache.Response, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.entries[key]
	if !ok || s.stale[key] {
		return nil, false
	}

	return value, true
}

// Set stores the value, clears staleness, and notifies the key's subscribers.
func (s *ReactiveStore) Set(key string, value entitycache.Response) {
	s.mu.Lock()
	s.entries[key] = value
	delete(s.stale, key)
	subscribers := append([]entitycache.SubscriberFunc(nil), s.subscribers[key]...)
	s.mu.Unlock()

	for _, subscriber := range subscribers {
		subscriber(key, value)
	}
}

// Invalidate marks the key stale, keeping its value and subscribers.
func (s *ReactiveStore) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; ok {
		s.stale[key] = true
	}
}

// Remove discards the entry outright.
func (s *ReactiveStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	delete(s.stale, key)
}

// Keys returns the keys of all present entries, stale ones included, sorted
// for deterministic iteration in tests.
func (s *ReactiveStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys
}

// Subscribe registers a callback fired on every Set for the key.
func (s *ReactiveStore) Subscribe(key string, subscriber entitycache.SubscriberFunc) entitycache.UnsubscribeFunc {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribers[key] = append(s.subscribers[key], subscriber)
	index := len(s.subscribers[key]) - 1

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if index < len(s.subscribers[key]) {
			s.subscribers[key][index] = func(string, entitycache.Response) {}
		}
	}
}

// IsStale reports whether the key is present but marked stale.
func (s *ReactiveStore) IsStale(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stale[key]
}

// Contains reports whether the key is present, fresh or stale.
func (s *ReactiveStore) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[key]

	return ok
}

var _ entitycache.ReactiveStore = (*ReactiveStore)(nil)
