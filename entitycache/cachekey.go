package entitycache

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var ErrCanonicalizingKeyFailed = errors.New("canonicalizing cache key failed")

// CacheKind discriminates list-query entries from single-detail entries.
type CacheKind string

const (
	KindList   CacheKind = "list"
	KindDetail CacheKind = "detail"
)

const cacheKeySeparator = ":"

// CacheKey is the addressable identity of one cached response: an entity type, a kind,
// and a discriminator — canonicalized query parameters for lists, an id for details.
//
// Two keys are equal iff their canonical serializations are equal; the ordering of
// filter keys never affects equality.
type CacheKey struct {
	EntityType EntityTypeString
	Kind       CacheKind
	Params     QueryParams
	ID         EntityIDString
}

// ListCacheKey builds the key for a list query.
func ListCacheKey(entityType EntityTypeString, params QueryParams) CacheKey {
	return CacheKey{EntityType: entityType, Kind: KindList, Params: params}
}

// DetailCacheKey builds the key for a single-entity detail view.
func DetailCacheKey(entityType EntityTypeString, id EntityIDString) CacheKey {
	return CacheKey{EntityType: entityType, Kind: KindDetail, ID: id}
}

// Canonical returns the deterministic string form of the key, used as the address
// in the underlying reactive store. Filter maps are serialized with sorted keys so
// that equal queries always produce equal strings.
func (k CacheKey) Canonical() (string, error) {
	if k.EntityType == "" {
		return "", ErrEmptyEntityType
	}

	switch k.Kind {
	case KindDetail:
		if k.ID == "" {
			return "", ErrEmptyEntityID
		}

		return k.EntityType + cacheKeySeparator + string(KindDetail) + cacheKeySeparator + k.ID, nil

	case KindList:
		discriminator, err := canonicalParams(k.Params)
		if err != nil {
			return "", errors.Join(ErrCanonicalizingKeyFailed, err)
		}

		return k.EntityType + cacheKeySeparator + string(KindList) + cacheKeySeparator + discriminator, nil

	default:
		return "", errors.Join(ErrCanonicalizingKeyFailed, fmt.Errorf("unknown cache kind %q", k.Kind))
	}
}

// ListKeyPrefix returns the canonical prefix shared by every list entry of an entity type.
// Cache operations use it to enumerate list entries in the underlying store.
func ListKeyPrefix(entityType EntityTypeString) string {
	return entityType + cacheKeySeparator + string(KindList) + cacheKeySeparator
}

// DetailKeyPrefix returns the canonical prefix shared by every detail entry of an entity type.
func DetailKeyPrefix(entityType EntityTypeString) string {
	return entityType + cacheKeySeparator + string(KindDetail) + cacheKeySeparator
}

func canonicalParams(params QueryParams) (string, error) {
	var b strings.Builder

	filters, err := canonicalizeValue(params.Filters)
	if err != nil {
		return "", err
	}

	fmt.Fprintf(&b, "p=%d;l=%d;s=%s.%s;f=%s", params.Page, params.Limit, params.SortBy, params.SortOrder, filters)

	if params.Search != "" {
		fields := append([]string(nil), params.SearchFields...)
		sort.Strings(fields)
		fmt.Fprintf(&b, ";q=%s;qf=%s", params.Search, strings.Join(fields, ","))
	}

	return b.String(), nil
}

// canonicalizeValue produces a deterministic JSON representation of a filter value.
// Maps are serialized with sorted keys; everything else defers to jsoniter.
func canonicalizeValue(v any) (string, error) {
	switch value := v.(type) {
	case nil:
		return "null", nil

	case map[string]any:
		keys := make([]string, 0, len(value))
		for key := range value {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		var b strings.Builder
		b.WriteByte('{')

		for i, key := range keys {
			if i > 0 {
				b.WriteByte(',')
			}

			encodedKey, err := jsoniter.ConfigFastest.MarshalToString(key)
			if err != nil {
				return "", err
			}

			encodedValue, err := canonicalizeValue(value[key])
			if err != nil {
				return "", err
			}

			b.WriteString(encodedKey)
			b.WriteByte(':')
			b.WriteString(encodedValue)
		}

		b.WriteByte('}')

		return b.String(), nil

	case []any:
		var b strings.Builder
		b.WriteByte('[')

		for i, element := range value {
			if i > 0 {
				b.WriteByte(',')
			}

			encoded, err := canonicalizeValue(element)
			if err != nil {
				return "", err
			}

			b.WriteString(encoded)
		}

		b.WriteByte(']')

		return b.String(), nil

	default:
		return jsoniter.ConfigFastest.MarshalToString(v)
	}
}
