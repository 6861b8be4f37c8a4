package memorystore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schooldash/entity-cache-go/entitycache"
)

func newTestStore(t *testing.T, options ...Option) *Store {
	t.Helper()

	store, err := NewStore(options...)
	assert.NoError(t, err)

	return store
}

func testPage(ids ...string) entitycache.PaginatedResponse {
	items := make([]entitycache.Record, 0, len(ids))
	for _, id := range ids {
		items = append(items, entitycache.Record{"_id": id, "id": id})
	}

	return entitycache.BuildPaginatedResponse(items, len(items), 1, 10)
}

func Test_NewStore_RejectsNonPositiveCapacity(t *testing.T) {
	_, err := NewStore(WithCapacity(0))
	assert.ErrorIs(t, err, ErrInvalidCapacity)

	_, err = NewStore(WithCapacity(-5))
	assert.ErrorIs(t, err, ErrInvalidCapacity)
}

func Test_Store_SetThenGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	page := testPage("s-1")

	store.Set("students:list:p=1", page)

	value, ok := store.Get("students:list:p=1")
	assert.True(t, ok)
	assert.Equal(t, page, value)
}

func Test_Store_GetMissesOnUnknownKey(t *testing.T) {
	store := newTestStore(t)

	value, ok := store.Get("students:list:p=1")

	assert.False(t, ok)
	assert.Nil(t, value)
}

func Test_Store_InvalidateHidesEntryFromGetButKeepsKey(t *testing.T) {
	store := newTestStore(t)
	store.Set("students:list:p=1", testPage("s-1"))

	store.Invalidate("students:list:p=1")

	_, ok := store.Get("students:list:p=1")
	assert.False(t, ok)
	assert.True(t, store.IsStale("students:list:p=1"))
	assert.Contains(t, store.Keys(), "students:list:p=1", "stale entries stay enumerable for invalidation sweeps")
}

func Test_Store_SetClearsStaleness(t *testing.T) {
	store := newTestStore(t)
	store.Set("students:list:p=1", testPage("s-1"))
	store.Invalidate("students:list:p=1")

	refreshed := testPage("s-1", "s-2")
	store.Set("students:list:p=1", refreshed)

	value, ok := store.Get("students:list:p=1")
	assert.True(t, ok)
	assert.Equal(t, refreshed, value)
	assert.False(t, store.IsStale("students:list:p=1"))
}

func Test_Store_InvalidateUnknownKeyIsNoOp(t *testing.T) {
	store := newTestStore(t)

	store.Invalidate("students:list:p=1")

	assert.False(t, store.IsStale("students:list:p=1"))
	assert.Equal(t, 0, store.Len())
}

func Test_Store_RemoveDiscardsEntry(t *testing.T) {
	store := newTestStore(t)
	store.Set("students:detail:s-1", testPage("s-1"))

	store.Remove("students:detail:s-1")

	_, ok := store.Get("students:detail:s-1")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func Test_Store_EvictsLeastRecentlyUsedEntryAtCapacity(t *testing.T) {
	store := newTestStore(t, WithCapacity(2))

	store.Set("a", testPage("s-1"))
	store.Set("b", testPage("s-2"))

	// Touch "a" so "b" becomes the eviction candidate.
	_, ok := store.Get("a")
	assert.True(t, ok)

	store.Set("c", testPage("s-3"))

	_, ok = store.Get("a")
	assert.True(t, ok)
	_, ok = store.Get("b")
	assert.False(t, ok)
	_, ok = store.Get("c")
	assert.True(t, ok)
}

func Test_Store_SubscriberFiresOnEverySet(t *testing.T) {
	store := newTestStore(t)

	var notifications []entitycache.Response
	store.Subscribe("students:list:p=1", func(_ string, value entitycache.Response) {
		notifications = append(notifications, value)
	})

	first := testPage("s-1")
	second := testPage("s-1", "s-2")
	store.Set("students:list:p=1", first)
	store.Set("students:list:p=1", second)
	store.Set("students:list:p=2", testPage("s-3")) // different key, no notification

	assert.Equal(t, []entitycache.Response{first, second}, notifications)
}

func Test_Store_SubscriberSurvivesInvalidateAndRemove(t *testing.T) {
	store := newTestStore(t)

	fired := 0
	store.Subscribe("students:list:p=1", func(string, entitycache.Response) { fired++ })

	store.Set("students:list:p=1", testPage("s-1"))
	store.Invalidate("students:list:p=1")
	store.Set("students:list:p=1", testPage("s-1"))
	store.Remove("students:list:p=1")
	store.Set("students:list:p=1", testPage("s-1"))

	assert.Equal(t, 3, fired)
}

func Test_Store_UnsubscribeStopsNotifications(t *testing.T) {
	store := newTestStore(t)

	fired := 0
	unsubscribe := store.Subscribe("students:list:p=1", func(string, entitycache.Response) { fired++ })

	store.Set("students:list:p=1", testPage("s-1"))
	unsubscribe()
	unsubscribe() // calling twice is safe
	store.Set("students:list:p=1", testPage("s-1"))

	assert.Equal(t, 1, fired)
}

func Test_Store_UnsubscribeRemovesOnlyItsOwnSubscription(t *testing.T) {
	store := newTestStore(t)

	firstFired := 0
	secondFired := 0
	unsubscribeFirst := store.Subscribe("students:list:p=1", func(string, entitycache.Response) { firstFired++ })
	store.Subscribe("students:list:p=1", func(string, entitycache.Response) { secondFired++ })

	unsubscribeFirst()
	store.Set("students:list:p=1", testPage("s-1"))

	assert.Equal(t, 0, firstFired)
	assert.Equal(t, 1, secondFired)
}

func Test_Store_PurgeDiscardsAllEntries(t *testing.T) {
	store := newTestStore(t)
	store.Set("a", testPage("s-1"))
	store.Set("b", testPage("s-2"))

	store.Purge()

	assert.Equal(t, 0, store.Len())
	assert.Empty(t, store.Keys())
}
