package fakes

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/schooldash/entity-cache-go/entitycache"
)

// FetchPrimitive is an in-memory entitycache.FetchPrimitive serving canned
// documents. It honors filters (equality), search (case-insensitive substring
// over the search fields), sorting, and skip/limit, so executor tests exercise
// the full query path without a database.
type FetchPrimitive struct {
	mu         sync.Mutex
	documents  []map[string]any
	fetchErr   error
	countErr   error
	fetchCalls int
	countCalls int
	lastQuery  entitycache.PageQuery
}

// NewFetchPrimitive creates a fake serving the given documents.
func NewFetchPrimitive(documents ...map[string]any) *FetchPrimitive {
	return &FetchPrimitive{documents: documents}
}

// FailFetchWith makes every FetchPage call return the given error.
func (f *FetchPrimitive) FailFetchWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fetchErr = err
}

// FailCountWith makes every CountTotal call return the given error.
func (f *FetchPrimitive) FailCountWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.countErr = err
}

// FetchPage returns one page of matching documents.
func (f *FetchPrimitive) FetchPage(ctx context.Context, query entitycache.PageQuery) ([]map[string]any, error) {
	f.mu.Lock()
	f.fetchCalls++
	f.lastQuery = query
	fetchErr := f.fetchErr
	documents := f.matching(query)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if fetchErr != nil {
		return nil, fetchErr
	}

	sortDocuments(documents, query.SortField, query.SortOrder)

	if query.Skip >= len(documents) {
		return []map[string]any{}, nil
	}

	documents = documents[query.Skip:]
	if query.Limit > 0 && query.Limit < len(documents) {
		documents = documents[:query.Limit]
	}

	return documents, nil
}

// CountTotal returns the number of matching documents, ignoring skip and limit.
func (f *FetchPrimitive) CountTotal(ctx context.Context, query entitycache.PageQuery) (int, error) {
	f.mu.Lock()
	f.countCalls++
	countErr := f.countErr
	matched := len(f.matching(query))
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if countErr != nil {
		return 0, countErr
	}

	return matched, nil
}

// FetchCalls returns how many times FetchPage was invoked.
func (f *FetchPrimitive) FetchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.fetchCalls
}

// CountCalls returns how many times CountTotal was invoked.
func (f *FetchPrimitive) CountCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.countCalls
}

// LastQuery returns the most recent query received by FetchPage.
func (f *FetchPrimitive) LastQuery() entitycache.PageQuery {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.lastQuery
}

func (f *FetchPrimitive) matching(query entitycache.PageQuery) []map[string]any {
	matched := make([]map[string]any, 0, len(f.documents))

	for _, document := range f.documents {
		if !matchesFilters(document, query.Filters) {
			continue
		}

		if !matchesSearch(document, query.Search, query.SearchFields) {
			continue
		}

		matched = append(matched, document)
	}

	return matched
}

func matchesFilters(document map[string]any, filters map[string]any) bool {
	for key, expected := range filters {
		if fmt.Sprint(document[key]) != fmt.Sprint(expected) {
			return false
		}
	}

	return true
}

func matchesSearch(document map[string]any, search string, searchFields []string) bool {
	if search == "" || len(searchFields) == 0 {
		return true
	}

	needle := strings.ToLower(search)
	for _, field := range searchFields {
		value, ok := document[field]
		if !ok {
			continue
		}

		if strings.Contains(strings.ToLower(fmt.Sprint(value)), needle) {
			return true
		}
	}

	return false
}

func sortDocuments(documents []map[string]any, field string, order entitycache.SortOrder) {
	if field == "" {
		return
	}

	sort.SliceStable(documents, func(i, j int) bool {
		less := compareValues(documents[i][field], documents[j][field])
		if order == entitycache.SortDesc {
			return !less && !equalValues(documents[i][field], documents[j][field])
		}

		return less
	})
}

func compareValues(a, b any) bool {
	if at, aok := a.(time.Time); aok {
		if bt, bok := b.(time.Time); bok {
			return at.Before(bt)
		}
	}

	return fmt.Sprint(a) < fmt.Sprint(b)
}

func equalValues(a, b any) bool {
	if at, aok := a.(time.Time); aok {
		if bt, bok := b.(time.Time); bok {
			return at.Equal(bt)
		}
	}

	return fmt.Sprint(a) == fmt.Sprint(b)
}

var _ entitycache.FetchPrimitive = (*FetchPrimitive)(nil)
