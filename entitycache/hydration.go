package entitycache

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var ErrSerializingCacheFailed = errors.New("serializing cache snapshot failed")
var ErrRestoringCacheFailed = errors.New("restoring cache snapshot failed")

const snapshotFormatVersion = 1

const (
	shapePaginated  = "paginated"
	shapeCollection = "collection"
	shapeEntity     = "entity"
)

// cacheSnapshot is the persisted form of a reactive store: a versioned envelope
// holding every entry with its key and an explicit shape tag, so the concrete
// response type can be rebuilt on restore without guessing from field presence.
type cacheSnapshot struct {
	Version int             `json:"version"`
	Entries []snapshotEntry `json:"entries"`
}

type snapshotEntry struct {
	Key     string              `json:"key"`
	Shape   string              `json:"shape"`
	Payload jsoniter.RawMessage `json:"payload"`
}

// Serialize captures every entry of the store into a JSON snapshot suitable for
// persistence across process restarts. Entries whose response shape is unknown
// are skipped rather than failing the whole snapshot.
func Serialize(store ReactiveStore) ([]byte, error) {
	if store == nil {
		return nil, ErrNilReactiveStore
	}

	snapshot := cacheSnapshot{Version: snapshotFormatVersion}

	for _, key := range store.Keys() {
		value, ok := store.Get(key)
		if !ok {
			continue
		}

		shape, known := shapeOf(value)
		if !known {
			continue
		}

		payload, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(value)
		if err != nil {
			return nil, errors.Join(ErrSerializingCacheFailed, err)
		}

		snapshot.Entries = append(snapshot.Entries, snapshotEntry{Key: key, Shape: shape, Payload: payload})
	}

	encoded, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(snapshot)
	if err != nil {
		return nil, errors.Join(ErrSerializingCacheFailed, err)
	}

	return encoded, nil
}

// Restore loads a snapshot produced by Serialize back into the store.
//
// JSON round-trips lose Go-level typing (timestamps become strings, ints become
// float64), so every restored record is pushed back through normalization. The
// round-trip law is normalize-equivalence, not byte equality: a restored entry
// normalizes to the same value as the original.
func Restore(store ReactiveStore, blob []byte) error {
	if store == nil {
		return ErrNilReactiveStore
	}

	var snapshot cacheSnapshot
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(blob, &snapshot); err != nil {
		return errors.Join(ErrRestoringCacheFailed, err)
	}

	if snapshot.Version != snapshotFormatVersion {
		return errors.Join(ErrRestoringCacheFailed,
			fmt.Errorf("unsupported snapshot version %d", snapshot.Version))
	}

	for _, entry := range snapshot.Entries {
		response, err := decodeEntry(entry)
		if err != nil {
			return errors.Join(ErrRestoringCacheFailed, fmt.Errorf("entry %q: %w", entry.Key, err))
		}

		store.Set(entry.Key, response)
	}

	return nil
}

func shapeOf(value Response) (string, bool) {
	switch value.(type) {
	case PaginatedResponse:
		return shapePaginated, true
	case CollectionResponse:
		return shapeCollection, true
	case EntityResponse:
		return shapeEntity, true
	default:
		return "", false
	}
}

func decodeEntry(entry snapshotEntry) (Response, error) {
	switch entry.Shape {
	case shapePaginated:
		var response PaginatedResponse
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(entry.Payload, &response); err != nil {
			return nil, err
		}

		response.Items = renormalizeItems(response.Items)

		return response, nil

	case shapeCollection:
		var response CollectionResponse
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(entry.Payload, &response); err != nil {
			return nil, err
		}

		response.Items = renormalizeItems(response.Items)

		return response, nil

	case shapeEntity:
		var response EntityResponse
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(entry.Payload, &response); err != nil {
			return nil, err
		}

		if response.Data != nil {
			response.Data = NormalizeRecord(response.Data)
		}

		return response, nil

	default:
		return nil, fmt.Errorf("unknown entry shape %q", entry.Shape)
	}
}

func renormalizeItems(items []Record) []Record {
	if items == nil {
		return nil
	}

	normalized := make([]Record, 0, len(items))
	for _, item := range items {
		normalized = append(normalized, NormalizeRecord(item))
	}

	return normalized
}
