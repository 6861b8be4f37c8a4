package entitycache

import (
	"errors"
	"fmt"
	"time"
)

var ErrEmptyFieldName = errors.New("empty field name supplied")
var ErrDuplicateFieldName = errors.New("duplicate field name supplied")
var ErrMissingRequiredField = errors.New("required field is missing")
var ErrWrongFieldType = errors.New("field has the wrong type")

// FieldKind enumerates the value kinds a contract field can require.
type FieldKind int

const (
	KindAny FieldKind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindTime
	KindMap
	KindSlice
)

// String provides a string representation of FieldKind for error messages and logging.
func (k FieldKind) String() string {
	switch k {
	case KindAny:
		return "any"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindMap:
		return "map"
	case KindSlice:
		return "slice"
	default:
		return "unknown"
	}
}

// FieldSpec describes one field of an entity contract.
type FieldSpec struct {
	Name     string
	Kind     FieldKind
	Optional bool
}

// Contract is the per-entity validation contract: the field names, their kinds,
// and their optionality. Fields not listed in the contract pass through untouched,
// so contracts only need to pin down the fields the application relies on.
//
// While its properties are exported, it should only be constructed with BuildContract.
type Contract struct {
	EntityType EntityTypeString
	Fields     []FieldSpec
}

// BuildContract is a factory method for Contract.
//
// Returns an error if the entity type is empty, a field name is empty,
// or two fields share a name.
func BuildContract(entityType EntityTypeString, fields ...FieldSpec) (Contract, error) {
	if entityType == "" {
		return Contract{}, ErrEmptyEntityType
	}

	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		if field.Name == "" {
			return Contract{}, ErrEmptyFieldName
		}

		if _, duplicate := seen[field.Name]; duplicate {
			return Contract{}, fmt.Errorf("%w: %s", ErrDuplicateFieldName, field.Name)
		}

		seen[field.Name] = struct{}{}
	}

	return Contract{EntityType: entityType, Fields: fields}, nil
}

// Validate checks a normalized record against the contract, returning the validated
// (possibly coerced) record and whether validation succeeded.
//
// This is the lenient entry point used in the collection path: it never returns an error,
// it only reports failure, and callers are expected to drop the record.
func (c Contract) Validate(record Record) (Record, bool) {
	validated, err := c.ValidateStrict(record)
	if err != nil {
		return nil, false
	}

	return validated, true
}

// ValidateStrict checks a normalized record against the contract and fails loudly.
//
// It is meant for call sites that must not silently drop data, e.g. confirming
// a just-created record before swapping it into the cache.
func (c Contract) ValidateStrict(record Record) (Record, error) {
	if record == nil {
		return nil, ErrMissingRequiredField
	}

	validated := record.Clone()

	for _, field := range c.Fields {
		value, present := validated[field.Name]

		if !present || value == nil {
			if field.Optional {
				continue
			}

			return nil, fmt.Errorf("%w: %s", ErrMissingRequiredField, field.Name)
		}

		coerced, err := coerceFieldValue(value, field.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: %s (want %s, got %T)", ErrWrongFieldType, field.Name, field.Kind, value)
		}

		validated[field.Name] = coerced
	}

	return validated, nil
}

// coerceFieldValue narrows a normalized value to the kind the contract requires.
// Coercion is limited to the shapes normalization produces, notably float64 for
// numbers decoded from JSON.
func coerceFieldValue(value any, kind FieldKind) (any, error) {
	switch kind {
	case KindAny:
		return value, nil

	case KindString:
		if s, ok := value.(string); ok {
			return s, nil
		}

	case KindInt:
		switch number := value.(type) {
		case int:
			return number, nil
		case int64:
			return int(number), nil
		case float64:
			if number == float64(int(number)) {
				return int(number), nil
			}
		}

	case KindFloat:
		switch number := value.(type) {
		case float64:
			return number, nil
		case int:
			return float64(number), nil
		case int64:
			return float64(number), nil
		}

	case KindBool:
		if b, ok := value.(bool); ok {
			return b, nil
		}

	case KindTime:
		if t, ok := value.(time.Time); ok {
			return t, nil
		}

	case KindMap:
		switch m := value.(type) {
		case map[string]any:
			return m, nil
		case Record:
			return map[string]any(m), nil
		}

	case KindSlice:
		if s, ok := value.([]any); ok {
			return s, nil
		}
	}

	return nil, ErrWrongFieldType
}
