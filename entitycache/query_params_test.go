package entitycache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_DefaultQueryParams_NewestFirstTenItems(t *testing.T) {
	params := DefaultQueryParams()

	assert.Equal(t, 1, params.Page)
	assert.Equal(t, 10, params.Limit)
	assert.Equal(t, "createdAt", params.SortBy)
	assert.Equal(t, SortDesc, params.SortOrder)
	assert.Empty(t, params.Filters)
}

func Test_QueryParamsBuilder_ClampsPageAndLimit(t *testing.T) {
	tests := []struct {
		name          string
		page          int
		limit         int
		expectedPage  int
		expectedLimit int
	}{
		{name: "zero page clamps to first", page: 0, limit: 25, expectedPage: 1, expectedLimit: 25},
		{name: "negative page clamps to first", page: -3, limit: 25, expectedPage: 1, expectedLimit: 25},
		{name: "zero limit falls back to default", page: 2, limit: 0, expectedPage: 2, expectedLimit: 10},
		{name: "oversized limit clamps to max", page: 2, limit: 1000, expectedPage: 2, expectedLimit: 100},
		{name: "in-range values pass through", page: 3, limit: 50, expectedPage: 3, expectedLimit: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := BuildQueryParams().WithPage(tt.page).WithLimit(tt.limit).Finalize()

			assert.Equal(t, tt.expectedPage, params.Page)
			assert.Equal(t, tt.expectedLimit, params.Limit)
		})
	}
}

func Test_QueryParamsBuilder_DashPrefixSelectsDescending(t *testing.T) {
	params := BuildQueryParams().WithSort("-name", SortAsc).Finalize()

	assert.Equal(t, "name", params.SortBy)
	assert.Equal(t, SortDesc, params.SortOrder)
}

func Test_QueryParamsBuilder_UnknownOrderFallsBackToDefault(t *testing.T) {
	params := BuildQueryParams().WithSort("name", SortOrder("sideways")).Finalize()

	assert.Equal(t, DefaultSortOrder, params.SortOrder)
}

func Test_QueryParamsSkip_Computation(t *testing.T) {
	tests := []struct {
		name     string
		page     int
		limit    int
		expected int
	}{
		{name: "first page skips nothing", page: 1, limit: 10, expected: 0},
		{name: "third page of 25", page: 3, limit: 25, expected: 50},
		{name: "degenerate page never negative", page: 0, limit: 10, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := QueryParams{Page: tt.page, Limit: tt.limit}
			assert.Equal(t, tt.expected, params.Skip())
		})
	}
}

func Test_SanitizeFilters_DropsEmptyValues(t *testing.T) {
	sanitized := SanitizeFilters(map[string]any{
		"status":   "active",
		"empty":    "",
		"missing":  nil,
		"nothing":  []any{},
		"nobody":   []string{},
		"zero":     0,
		"negative": false,
	})

	assert.Equal(t, map[string]any{
		"status":   "active",
		"zero":     0,
		"negative": false,
	}, sanitized)
}

func Test_SanitizeFilters_SanitizedMapSanitizesToItself(t *testing.T) {
	first := SanitizeFilters(map[string]any{"status": "active", "empty": ""})
	second := SanitizeFilters(first)

	assert.Equal(t, first, second)
}

func Test_SanitizeSortField_AllowListLaw(t *testing.T) {
	allowed := []string{"createdAt", "name"}

	tests := []struct {
		name     string
		sortBy   string
		expected string
	}{
		{name: "allow-listed field passes", sortBy: "name", expected: "name"},
		{name: "unknown field replaced by default", sortBy: "salary; DROP TABLE", expected: "createdAt"},
		{name: "empty field replaced by default", sortBy: "", expected: "createdAt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeSortField(tt.sortBy, allowed, "createdAt"))
		})
	}
}

func Test_QueryParamsBuilder_WithSearchDropsEmptyFieldNames(t *testing.T) {
	params := BuildQueryParams().WithSearch("ada", "name", "", "email").Finalize()

	assert.Equal(t, "ada", params.Search)
	assert.Equal(t, []string{"name", "email"}, params.SearchFields)
}
