package entitycache

import (
	"fmt"
	"time"
)

const (
	fieldMongoID   = "_id"
	fieldID        = "id"
	fieldCreatedAt = "createdAt"
	fieldUpdatedAt = "updatedAt"
)

// Record is the opaque shape of a validated entity inside the cache layer.
//
// It is built on plain maps to be completely agnostic of the domain types in the client code.
// Domain packages own their concrete structs; this layer only guarantees that a Record has
// passed normalization and contract validation before it is cached or returned to callers.
type Record map[string]any

// ID returns the identifier of the record, preferring the "_id" field and
// falling back to the "id" alias. Returns "" if the record carries neither.
func (r Record) ID() EntityIDString {
	if v, ok := r[fieldMongoID]; ok {
		return stringifyID(v)
	}

	if v, ok := r[fieldID]; ok {
		return stringifyID(v)
	}

	return ""
}

// Clone returns a deep copy of the record.
// Nested maps and slices are copied; scalar values (including time.Time) are shared by value.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}

	return cloneMap(r)
}

// CloneRecords returns a deep copy of a slice of records.
func CloneRecords(records []Record) []Record {
	if records == nil {
		return nil
	}

	cloned := make([]Record, len(records))
	for i, record := range records {
		cloned[i] = record.Clone()
	}

	return cloned
}

// PrepareForWrite strips the system-owned fields (identifiers and timestamps) from a record
// so it can be submitted as a create or update payload without colliding with server-assigned values.
func PrepareForWrite(record Record) Record {
	prepared := record.Clone()

	delete(prepared, fieldMongoID)
	delete(prepared, fieldID)
	delete(prepared, fieldCreatedAt)
	delete(prepared, fieldUpdatedAt)

	return prepared
}

func cloneMap(m map[string]any) map[string]any {
	cloned := make(map[string]any, len(m))
	for key, value := range m {
		cloned[key] = cloneValue(value)
	}

	return cloned
}

func cloneValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		return cloneMap(value)

	case Record:
		return Record(cloneMap(value))

	case []any:
		cloned := make([]any, len(value))
		for i, element := range value {
			cloned[i] = cloneValue(element)
		}

		return cloned

	default:
		return v
	}
}

func stringifyID(v any) string {
	switch value := v.(type) {
	case string:
		return value

	case fmt.Stringer:
		return value.String()

	case float64:
		return fmt.Sprintf("%.0f", value)

	case int, int32, int64:
		return fmt.Sprintf("%d", value)

	case time.Time:
		return value.Format(time.RFC3339)

	default:
		return fmt.Sprintf("%v", value)
	}
}
