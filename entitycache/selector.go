package entitycache

import (
	"sync"
)

// SelectorFunc is the registered transform from a raw collection response to the
// validated/derived domain items for one entity type.
type SelectorFunc func(response CollectionResponse) []Record

// DefaultSelector extracts the items of the response and passes them through unchanged.
// It is the fallback for entity types without a registered selector.
func DefaultSelector(response CollectionResponse) []Record {
	return response.Items
}

// Initialized is the marker returned by SelectorRegistry.Initialize. Components that
// require per-entity customization to be present can demand it as a dependency,
// making "registry populated before use" a compile-time concern instead of a
// runtime convention.
type Initialized struct {
	registry *SelectorRegistry
}

// Registry returns the initialized registry.
func (i Initialized) Registry() *SelectorRegistry {
	return i.registry
}

// SelectorRegistry maps entity-type names to their selector functions.
//
// It is an explicit dependency: construct one at application start and pass it to
// every component that needs selector lookup. Registration happens once through
// Initialize; afterwards the registry is effectively read-only. All methods are
// safe for concurrent use.
type SelectorRegistry struct {
	mu          sync.RWMutex
	initMu      sync.Mutex
	selectors   map[EntityTypeString]SelectorFunc
	initialized bool
}

// NewSelectorRegistry creates an empty selector registry.
func NewSelectorRegistry() *SelectorRegistry {
	return &SelectorRegistry{
		selectors: make(map[EntityTypeString]SelectorFunc),
	}
}

// Register adds a selector for an entity type, replacing any previous one.
func (r *SelectorRegistry) Register(entityType EntityTypeString, selector SelectorFunc) error {
	if entityType == "" {
		return ErrEmptyEntityType
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if selector == nil {
		selector = DefaultSelector
	}

	r.selectors[entityType] = selector

	return nil
}

// Get returns the selector registered for the entity type, or DefaultSelector
// if none was registered.
func (r *SelectorRegistry) Get(entityType EntityTypeString) SelectorFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if selector, ok := r.selectors[entityType]; ok {
		return selector
	}

	return DefaultSelector
}

// Initialize runs the populate function and returns the Initialized marker. Once a
// populate has succeeded, further invocations are no-ops that return the marker
// without running populate again. A failed populate leaves the registry
// uninitialized, so a later Initialize may retry with a corrected populate.
func (r *SelectorRegistry) Initialize(populate func(*SelectorRegistry) error) (Initialized, error) {
	r.initMu.Lock()
	defer r.initMu.Unlock()

	r.mu.RLock()
	alreadyInitialized := r.initialized
	r.mu.RUnlock()

	if alreadyInitialized {
		return Initialized{registry: r}, nil
	}

	if populate != nil {
		if err := populate(r); err != nil {
			return Initialized{}, err
		}
	}

	r.mu.Lock()
	r.initialized = true
	r.mu.Unlock()

	return Initialized{registry: r}, nil
}

// TransformFor bridges the selector registered for an entity type into the
// ItemsTransformFunc shape the response adapters and WrapCRUDActions consume,
// so wrapped CRUD actions route every collection through the entity's selector.
// The lookup happens per call, picking up the selector current at that moment.
func (r *SelectorRegistry) TransformFor(entityType EntityTypeString) ItemsTransformFunc {
	return func(items []Record) []Record {
		selector := r.Get(entityType)

		return selector(CollectionResponse{Success: true, Items: items, Total: len(items)})
	}
}

/***** Reference projection *****/

// Reference is the minimal projection of an entity used to populate option lists:
// an identifier plus a human-readable label.
type Reference struct {
	ID    EntityIDString `json:"value"`
	Label string         `json:"label"`
}

// LabelFunc extracts the display label for one record.
type LabelFunc func(record Record) string

// ReferenceSelector derives a reference projection from a base selector. Records whose
// label function panics are skipped individually; one bad record must not empty the list.
func ReferenceSelector(base SelectorFunc, label LabelFunc) func(response CollectionResponse) []Reference {
	if base == nil {
		base = DefaultSelector
	}

	return func(response CollectionResponse) []Reference {
		items := base(response)
		references := make([]Reference, 0, len(items))

		for _, item := range items {
			if reference, ok := referenceFor(item, label); ok {
				references = append(references, reference)
			}
		}

		return references
	}
}

func referenceFor(record Record, label LabelFunc) (reference Reference, ok bool) {
	defer func() {
		if recovered := recover(); recovered != nil {
			reference = Reference{}
			ok = false
		}
	}()

	id := record.ID()
	if id == "" {
		return Reference{}, false
	}

	text := id
	if label != nil {
		text = label(record)
	}

	return Reference{ID: id, Label: text}, true
}
