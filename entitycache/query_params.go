package entitycache

import (
	"slices"
	"strings"
)

// SortOrder is the direction of a sort, either SortAsc or SortDesc.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Pagination defaults and bounds applied when building query parameters
// from untrusted caller input.
const (
	DefaultPage      = 1
	DefaultLimit     = 10
	MaxLimit         = 100
	DefaultSortField = fieldCreatedAt
	DefaultSortOrder = SortDesc
)

// QueryParams are the untrusted, per-request query parameters for a list fetch.
// They are constructed per call and never persisted.
//
// QueryParams should be built with BuildQueryParams or DefaultQueryParams so that
// page/limit bounds are already enforced; Filters and SortBy remain untrusted until
// the query executor sanitizes them against the entity's sort-field allow-list.
type QueryParams struct {
	Page         int
	Limit        int
	Filters      map[string]any
	SortBy       string
	SortOrder    SortOrder
	Search       string
	SearchFields []string
}

// DefaultQueryParams returns the parameters used when a caller supplies none:
// first page, ten items, newest first.
func DefaultQueryParams() QueryParams {
	return QueryParams{
		Page:      DefaultPage,
		Limit:     DefaultLimit,
		Filters:   map[string]any{},
		SortBy:    DefaultSortField,
		SortOrder: DefaultSortOrder,
	}
}

// Skip computes the number of records to skip for the requested page: max(0, (page-1)*limit).
func (p QueryParams) Skip() int {
	skip := (p.Page - 1) * p.Limit
	if skip < 0 {
		return 0
	}

	return skip
}

/***** QueryParamsBuilder *****/

// QueryParamsBuilder builds QueryParams from untrusted input, clamping pagination
// values into their documented bounds and normalizing the sort specification.
type QueryParamsBuilder struct {
	params QueryParams
}

// BuildQueryParams creates a QueryParamsBuilder seeded with the defaults,
// which must eventually be finalized with Finalize().
func BuildQueryParams() *QueryParamsBuilder {
	return &QueryParamsBuilder{params: DefaultQueryParams()}
}

// WithPage sets the requested page; values below 1 are clamped to the first page.
func (b *QueryParamsBuilder) WithPage(page int) *QueryParamsBuilder {
	if page < DefaultPage {
		page = DefaultPage
	}

	b.params.Page = page

	return b
}

// WithLimit sets the page size; values below 1 fall back to the default and
// values above MaxLimit are clamped.
func (b *QueryParamsBuilder) WithLimit(limit int) *QueryParamsBuilder {
	switch {
	case limit < 1:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	b.params.Limit = limit

	return b
}

// WithFilter adds one filter entry. Empty values are kept here and dropped later
// by SanitizeFilters, so that sanitization happens in exactly one place.
func (b *QueryParamsBuilder) WithFilter(key string, value any) *QueryParamsBuilder {
	b.params.Filters[key] = value

	return b
}

// WithSort sets the sort specification. A "-" prefix on the field selects
// descending order, mirroring the query syntax of the upstream API.
func (b *QueryParamsBuilder) WithSort(field string, order SortOrder) *QueryParamsBuilder {
	if strings.HasPrefix(field, "-") {
		field = strings.TrimPrefix(field, "-")
		order = SortDesc
	}

	if order != SortAsc && order != SortDesc {
		order = DefaultSortOrder
	}

	b.params.SortBy = field
	b.params.SortOrder = order

	return b
}

// WithSearch sets a free-text search over the given fields; empty field names are dropped.
func (b *QueryParamsBuilder) WithSearch(query string, fields ...string) *QueryParamsBuilder {
	cleaned := slices.DeleteFunc(slices.Clone(fields), func(f string) bool { return f == "" })

	b.params.Search = query
	b.params.SearchFields = cleaned

	return b
}

// Finalize returns the built QueryParams.
func (b *QueryParamsBuilder) Finalize() QueryParams {
	return b.params
}

/***** Sanitization *****/

// SanitizeFilters drops filter entries whose value is an empty string, nil, or an
// empty array. Such entries would otherwise act as "match nothing" predicates and
// silently empty a result set the caller expected to be unfiltered.
func SanitizeFilters(filters map[string]any) map[string]any {
	sanitized := make(map[string]any, len(filters))

	for key, value := range filters {
		if key == "" || isEmptyFilterValue(value) {
			continue
		}

		sanitized[key] = value
	}

	return sanitized
}

func isEmptyFilterValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	default:
		return false
	}
}

// SanitizeSortField substitutes the default field when the caller-supplied sort field
// is absent or not in the allow-list. Arbitrary caller input must never reach the
// underlying query engine as a field name.
func SanitizeSortField(sortBy string, allowedSortFields []string, defaultSortField string) string {
	if sortBy == "" || !slices.Contains(allowedSortFields, sortBy) {
		return defaultSortField
	}

	return sortBy
}
