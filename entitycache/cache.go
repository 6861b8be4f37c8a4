package entitycache

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var ErrNilReactiveStore = errors.New("nil reactive store supplied")

const (
	logMsgCacheEntryPatchFailed = "patching cache entry failed, entry skipped"
	logAttrCacheKey             = "cache_key"
)

// SubscriberFunc is the notification callback of the reactive store.
type SubscriberFunc func(key string, value Response)

// UnsubscribeFunc removes a previously registered subscriber.
type UnsubscribeFunc func()

// ReactiveStore is the external collaborator backing the cache: a reactive key/value
// store addressed by canonical cache-key strings.
//
// Contract:
//   - Get returns (value, true) only for fresh entries; stale or missing keys return (nil, false).
//   - Invalidate marks an entry stale without discarding subscribers, forcing a refetch on next read.
//   - Writes to the same key are applied in issuance order; writes to different keys carry
//     no mutual ordering guarantee.
//   - Implementations must be safe for concurrent use and may evict entries at any time.
type ReactiveStore interface {
	Get(key string) (Response, bool)
	Set(key string, value Response)
	Invalidate(key string)
	Remove(key string)
	Keys() []string
	Subscribe(key string, subscriber SubscriberFunc) UnsubscribeFunc
}

// UpdaterFunc applies an in-place-style patch to one record, returning the replacement.
type UpdaterFunc func(record Record) Record

// CacheOption defines a functional option for configuring CacheOperations.
type CacheOption func(*CacheOperations) error

// WithCacheLogger sets the logger for CacheOperations.
func WithCacheLogger(logger Logger) CacheOption {
	return func(c *CacheOperations) error {
		c.logger = logger
		return nil
	}
}

// WithCacheMetrics sets the metrics collector for CacheOperations.
func WithCacheMetrics(collector MetricsCollector) CacheOption {
	return func(c *CacheOperations) error {
		c.metricsCollector = collector
		return nil
	}
}

// CacheOperations exposes the cache mutations for one entity type: invalidation,
// in-place patching, insertion, and removal, addressed by entity type and id.
//
// Every mutation is serialized by a per-entity-type mutex, so no caller can observe
// a half-updated set of entries for this entity type.
type CacheOperations struct {
	store            ReactiveStore
	entityType       EntityTypeString
	mu               sync.Mutex
	logger           Logger
	metricsCollector MetricsCollector
}

// NewCacheOperations creates the cache operations for one entity type with optional configuration.
func NewCacheOperations(store ReactiveStore, entityType EntityTypeString, options ...CacheOption) (*CacheOperations, error) {
	if store == nil {
		return nil, ErrNilReactiveStore
	}

	if entityType == "" {
		return nil, ErrEmptyEntityType
	}

	c := &CacheOperations{
		store:      store,
		entityType: entityType,
	}

	for _, option := range options {
		if err := option(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// EntityType returns the entity type these operations are bound to.
func (c *CacheOperations) EntityType() EntityTypeString {
	return c.entityType
}

// Store returns the underlying reactive store.
func (c *CacheOperations) Store() ReactiveStore {
	return c.store
}

// WriteList stores the response for one list query, replacing any previous entry wholesale.
func (c *CacheOperations) WriteList(params QueryParams, response PaginatedResponse) error {
	key, err := ListCacheKey(c.entityType, params).Canonical()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Set(key, response)

	return nil
}

// ReadList returns the cached response for one list query, if fresh.
func (c *CacheOperations) ReadList(params QueryParams) (PaginatedResponse, bool) {
	key, err := ListCacheKey(c.entityType, params).Canonical()
	if err != nil {
		return PaginatedResponse{}, false
	}

	value, ok := c.store.Get(key)
	if !ok {
		return PaginatedResponse{}, false
	}

	response, isPaginated := value.(PaginatedResponse)

	return response, isPaginated
}

// WriteDetail stores the response for one detail view, replacing any previous entry wholesale.
func (c *CacheOperations) WriteDetail(id EntityIDString, response EntityResponse) error {
	key, err := DetailCacheKey(c.entityType, id).Canonical()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Set(key, response)

	return nil
}

// ReadDetail returns the cached response for one detail view, if fresh.
func (c *CacheOperations) ReadDetail(id EntityIDString) (EntityResponse, bool) {
	key, err := DetailCacheKey(c.entityType, id).Canonical()
	if err != nil {
		return EntityResponse{}, false
	}

	value, ok := c.store.Get(key)
	if !ok {
		return EntityResponse{}, false
	}

	response, isEntity := value.(EntityResponse)

	return response, isEntity
}

// InvalidateList marks every list entry of the entity type stale, forcing a refetch on next read.
func (c *CacheOperations) InvalidateList() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range c.listKeys() {
		c.store.Invalidate(key)
	}
}

// InvalidateDetail marks exactly the detail entry for the id stale.
func (c *CacheOperations) InvalidateDetail(id EntityIDString) {
	key, err := DetailCacheKey(c.entityType, id).Canonical()
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Invalidate(key)
}

// UpdateEntity applies the updater to the matching record wherever it appears: in the
// detail entry and inside every list entry containing an item with that id. No entry
// is invalidated and no refetch is forced.
//
// A failure inside the updater is isolated per cache entry: the entry is skipped and
// logged, and the remaining entries are still processed.
func (c *CacheOperations) UpdateEntity(id EntityIDString, updater UpdaterFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if detailKey, err := DetailCacheKey(c.entityType, id).Canonical(); err == nil {
		if value, ok := c.store.Get(detailKey); ok {
			if entity, isEntity := value.(EntityResponse); isEntity && entity.Data != nil {
				updated, updateErr := applyUpdaterSafely(updater, entity.Data)
				if updateErr != nil {
					c.logPatchFailure(detailKey, updateErr)
				} else {
					entity.Data = updated
					c.store.Set(detailKey, entity)
				}
			}
		}
	}

	for _, key := range c.listKeys() {
		value, ok := c.store.Get(key)
		if !ok {
			continue
		}

		patched, changed, patchErr := patchItems(value, func(items []Record) ([]Record, bool, error) {
			updatedItems := make([]Record, len(items))
			itemChanged := false

			for i, item := range items {
				if item.ID() == id {
					updated, updateErr := applyUpdaterSafely(updater, item)
					if updateErr != nil {
						return nil, false, updateErr
					}

					updatedItems[i] = updated
					itemChanged = true

					continue
				}

				updatedItems[i] = item
			}

			return updatedItems, itemChanged, nil
		})

		if patchErr != nil {
			c.logPatchFailure(key, patchErr)
			continue
		}

		if changed {
			c.store.Set(key, patched)
		}
	}
}

// AddEntity appends the entity to every list entry of the type that does not already
// contain an item with the same id, incrementing that entry's total. Entries already
// holding the id are left untouched.
func (c *CacheOperations) AddEntity(entity Record) {
	id := entity.ID()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range c.listKeys() {
		value, ok := c.store.Get(key)
		if !ok {
			continue
		}

		patched, changed, patchErr := patchResponse(value, func(items []Record, total int) ([]Record, int, bool) {
			for _, item := range items {
				if item.ID() == id {
					return items, total, false
				}
			}

			return append(CloneRecords(items), entity.Clone()), total + 1, true
		})

		if patchErr != nil {
			c.logPatchFailure(key, patchErr)
			continue
		}

		if changed {
			c.store.Set(key, patched)
		}
	}
}

// RemoveEntity deletes the detail entry for the id outright and filters the id out of
// every list entry, adjusting each entry's total by its own removed count. Entries for
// different filter combinations are updated independently and may legitimately diverge.
func (c *CacheOperations) RemoveEntity(id EntityIDString) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if detailKey, err := DetailCacheKey(c.entityType, id).Canonical(); err == nil {
		c.store.Remove(detailKey)
	}

	for _, key := range c.listKeys() {
		value, ok := c.store.Get(key)
		if !ok {
			continue
		}

		patched, changed, patchErr := patchResponse(value, func(items []Record, total int) ([]Record, int, bool) {
			filtered := make([]Record, 0, len(items))
			for _, item := range items {
				if item.ID() != id {
					filtered = append(filtered, item)
				}
			}

			removed := len(items) - len(filtered)
			if removed == 0 {
				return items, total, false
			}

			newTotal := total - removed
			if newTotal < 0 {
				newTotal = 0
			}

			return filtered, newTotal, true
		})

		if patchErr != nil {
			c.logPatchFailure(key, patchErr)
			continue
		}

		if changed {
			c.store.Set(key, patched)
		}
	}
}

// ReplaceEntity swaps the record with the given id for the supplied entity everywhere it
// appears, re-keying the detail entry when the replacement carries a different id. It is
// the explicit temp-id-to-real-id transition used after an optimistic create commits.
func (c *CacheOperations) ReplaceEntity(id EntityIDString, entity Record) {
	c.UpdateEntity(id, func(Record) Record {
		return entity.Clone()
	})

	newID := entity.ID()
	if newID == "" || newID == id {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	oldDetailKey, oldErr := DetailCacheKey(c.entityType, id).Canonical()
	newDetailKey, newErr := DetailCacheKey(c.entityType, newID).Canonical()
	if oldErr != nil || newErr != nil {
		return
	}

	if value, ok := c.store.Get(oldDetailKey); ok {
		c.store.Remove(oldDetailKey)
		c.store.Set(newDetailKey, value)
	}
}

// listKeys enumerates the canonical keys of every list entry for this entity type.
func (c *CacheOperations) listKeys() []string {
	prefix := ListKeyPrefix(c.entityType)

	var keys []string
	for _, key := range c.store.Keys() {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}

	return keys
}

func (c *CacheOperations) logPatchFailure(key string, cause error) {
	if c.logger != nil {
		c.logger.Warn(logMsgCacheEntryPatchFailed,
			logAttrEntityType, c.entityType,
			logAttrCacheKey, key,
			logAttrError, cause.Error())
	}
}

// applyUpdaterSafely runs the user-supplied updater on a clone of the record,
// converting panics into errors for per-entry isolation.
func applyUpdaterSafely(updater UpdaterFunc, record Record) (updated Record, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			updated = nil
			err = fmt.Errorf("updater panicked: %v", recovered)
		}
	}()

	return updater(record.Clone()), nil
}

// patchItems rewrites the items of a list-shaped response without touching its totals.
func patchItems(value Response, patch func(items []Record) ([]Record, bool, error)) (Response, bool, error) {
	switch shaped := value.(type) {
	case PaginatedResponse:
		items, changed, err := patch(shaped.Items)
		if err != nil {
			return nil, false, err
		}

		shaped.Items = items

		return shaped, changed, nil

	case CollectionResponse:
		items, changed, err := patch(shaped.Items)
		if err != nil {
			return nil, false, err
		}

		shaped.Items = items

		return shaped, changed, nil

	default:
		return value, false, nil
	}
}

// patchResponse rewrites items and total together, recomputing the derived pagination
// fields (totalPages, hasMore, empty) for paginated entries.
func patchResponse(value Response, patch func(items []Record, total int) ([]Record, int, bool)) (Response, bool, error) {
	switch shaped := value.(type) {
	case PaginatedResponse:
		items, total, changed := patch(shaped.Items, shaped.Total)
		if !changed {
			return shaped, false, nil
		}

		shaped.Items = items
		shaped.Total = total
		shaped.TotalPages = TotalPagesFor(total, shaped.Limit)
		shaped.HasMore = shaped.Page < shaped.TotalPages
		shaped.Empty = len(items) == 0

		return shaped, true, nil

	case CollectionResponse:
		items, total, changed := patch(shaped.Items, shaped.Total)
		if !changed {
			return shaped, false, nil
		}

		shaped.Items = items
		shaped.Total = total

		return shaped, true, nil

	default:
		return value, false, nil
	}
}
