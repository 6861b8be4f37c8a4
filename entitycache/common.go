package entitycache

import (
	"errors"
)

var ErrEmptyEntityType = errors.New("empty entityType supplied")
var ErrEmptyEntityID = errors.New("empty entity id supplied")

// EntityTypeString is a type alias for string, representing the name of a domain record kind (e.g. "school").
// It is used as the namespace for cache keys and selector lookups.
type EntityTypeString = string

// EntityIDString is a type alias for string, representing the identifier of a single entity.
type EntityIDString = string
