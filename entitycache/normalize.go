package entitycache

import (
	"time"
)

const mongoDateWrapperKey = "$date"

// timestampFieldNames are the field names whose values are coerced into time.Time
// during normalization, matching the timestamp fields the document store embeds.
var timestampFieldNames = map[string]struct{}{
	fieldCreatedAt: {},
	fieldUpdatedAt: {},
}

// NormalizeValue recursively reshapes a raw value coming from a document store driver
// into the plain structured form the rest of the pipeline operates on:
//
//   - identifier fields ("_id") are coerced to string, and an "id" alias is synthesized if absent
//   - known timestamp fields accept native time.Time, RFC 3339 strings, millisecond numbers,
//     and {"$date": "..."} wrappers, all coerced to time.Time in UTC
//   - arrays are mapped element-wise, scalars pass through unchanged
//
// Normalization never fails and never drops data; unrecognized shapes pass through as-is.
// It is idempotent: normalizing an already-normalized value returns an equal value.
func NormalizeValue(raw any) any {
	switch value := raw.(type) {
	case map[string]any:
		return map[string]any(normalizeMap(value))

	case Record:
		return normalizeMap(value)

	case []any:
		normalized := make([]any, len(value))
		for i, element := range value {
			normalized[i] = NormalizeValue(element)
		}

		return normalized

	case []map[string]any:
		normalized := make([]any, len(value))
		for i, element := range value {
			normalized[i] = map[string]any(normalizeMap(element))
		}

		return normalized

	default:
		return raw
	}
}

// NormalizeRecord normalizes a single raw document into a Record.
func NormalizeRecord(raw map[string]any) Record {
	return normalizeMap(raw)
}

// NormalizeRecords normalizes a slice of raw documents element-wise.
func NormalizeRecords(raw []map[string]any) []Record {
	normalized := make([]Record, len(raw))
	for i, document := range raw {
		normalized[i] = normalizeMap(document)
	}

	return normalized
}

func normalizeMap(raw map[string]any) Record {
	normalized := make(Record, len(raw)+1)

	for key, value := range raw {
		switch {
		case key == fieldMongoID || key == fieldID:
			normalized[key] = stringifyID(value)

		case isTimestampField(key):
			normalized[key] = coerceTimestamp(value)

		default:
			normalized[key] = NormalizeValue(value)
		}
	}

	if id, hasMongoID := normalized[fieldMongoID]; hasMongoID {
		if _, hasAlias := normalized[fieldID]; !hasAlias {
			normalized[fieldID] = id
		}
	}

	return normalized
}

func isTimestampField(name string) bool {
	_, ok := timestampFieldNames[name]
	return ok
}

// coerceTimestamp converts the timestamp shapes embedded by document store drivers
// into a single time.Time representation. Unrecognized shapes pass through unchanged.
func coerceTimestamp(raw any) any {
	switch value := raw.(type) {
	case time.Time:
		return value

	case string:
		return parseTimestampString(value, raw)

	case float64:
		return time.UnixMilli(int64(value)).UTC()

	case int64:
		return time.UnixMilli(value).UTC()

	case int:
		return time.UnixMilli(int64(value)).UTC()

	case map[string]any:
		if wrapped, ok := value[mongoDateWrapperKey].(string); ok {
			return parseTimestampString(wrapped, raw)
		}

		return raw

	default:
		return raw
	}
}

func parseTimestampString(value string, fallback any) any {
	if parsed, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return parsed.UTC()
	}

	return fallback
}
