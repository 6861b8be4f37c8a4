package entitycache_test

import (
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"

	"github.com/schooldash/entity-cache-go/entitycache"
	"github.com/schooldash/entity-cache-go/testutil/fakes"
	"github.com/schooldash/entity-cache-go/testutil/fixtures"
)

func Test_Serialize_RequiresStore(t *testing.T) {
	_, err := entitycache.Serialize(nil)

	assert.ErrorIs(t, err, entitycache.ErrNilReactiveStore)
}

func Test_Restore_RequiresStore(t *testing.T) {
	err := entitycache.Restore(nil, []byte(`{}`))

	assert.ErrorIs(t, err, entitycache.ErrNilReactiveStore)
}

func Test_SerializeRestore_RoundTripsAllEntryShapes(t *testing.T) {
	source := fakes.NewReactiveStore()
	source.Set("students:list:p=1;l=10;s=createdAt.desc;f={}",
		fixtures.StudentPage(1, 10, 2,
			fixtures.StudentRecord("s-1", "Ada", 7),
			fixtures.StudentRecord("s-2", "Grace", 8)))
	source.Set("students:detail:s-1",
		entitycache.EntityResponse{Success: true, Data: fixtures.StudentRecord("s-1", "Ada", 7)})

	blob, err := entitycache.Serialize(source)
	assert.NoError(t, err)

	restored := fakes.NewReactiveStore()
	assert.NoError(t, entitycache.Restore(restored, blob))

	assert.Equal(t, source.Keys(), restored.Keys())

	value, ok := restored.Get("students:list:p=1;l=10;s=createdAt.desc;f={}")
	assert.True(t, ok)
	page, isPage := value.(entitycache.PaginatedResponse)
	assert.True(t, isPage, "the shape tag rebuilds the concrete response type")
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, "s-1", page.Items[0].ID())

	value, ok = restored.Get("students:detail:s-1")
	assert.True(t, ok)
	detail, isDetail := value.(entitycache.EntityResponse)
	assert.True(t, isDetail)
	assert.Equal(t, "s-1", detail.Data.ID())
}

func Test_SerializeRestore_RenormalizesTimestamps(t *testing.T) {
	source := fakes.NewReactiveStore()
	source.Set("students:detail:s-1",
		entitycache.EntityResponse{Success: true, Data: fixtures.StudentRecord("s-1", "Ada", 7)})

	blob, err := entitycache.Serialize(source)
	assert.NoError(t, err)

	restored := fakes.NewReactiveStore()
	assert.NoError(t, entitycache.Restore(restored, blob))

	value, _ := restored.Get("students:detail:s-1")
	detail := value.(entitycache.EntityResponse)

	createdAt, isTime := detail.Data["createdAt"].(time.Time)
	assert.True(t, isTime, "timestamps survive the JSON round trip as time.Time")
	assert.Equal(t, fixtures.StudentRecord("s-1", "Ada", 7)["createdAt"], createdAt)
}

func Test_SerializeRestore_NumbersComeBackAsJSONNumbers(t *testing.T) {
	source := fakes.NewReactiveStore()
	source.Set("students:detail:s-1",
		entitycache.EntityResponse{Success: true, Data: fixtures.StudentRecord("s-1", "Ada", 7)})

	blob, err := entitycache.Serialize(source)
	assert.NoError(t, err)

	restored := fakes.NewReactiveStore()
	assert.NoError(t, entitycache.Restore(restored, blob))

	value, _ := restored.Get("students:detail:s-1")
	detail := value.(entitycache.EntityResponse)

	// The snapshot preserves values, not Go-level integer typing; restored
	// numbers carry JSON typing until the next pass through a contract.
	assert.Equal(t, float64(7), detail.Data["grade"])
}

func Test_Serialize_SkipsStaleEntries(t *testing.T) {
	source := fakes.NewReactiveStore()
	source.Set("students:detail:s-1",
		entitycache.EntityResponse{Success: true, Data: fixtures.StudentRecord("s-1", "Ada", 7)})
	source.Set("students:detail:s-2",
		entitycache.EntityResponse{Success: true, Data: fixtures.StudentRecord("s-2", "Grace", 8)})
	source.Invalidate("students:detail:s-2")

	blob, err := entitycache.Serialize(source)
	assert.NoError(t, err)

	restored := fakes.NewReactiveStore()
	assert.NoError(t, entitycache.Restore(restored, blob))

	assert.True(t, restored.Contains("students:detail:s-1"))
	assert.False(t, restored.Contains("students:detail:s-2"), "stale entries are not persisted")
}

func Test_Restore_RejectsUnsupportedSnapshotVersion(t *testing.T) {
	blob, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(map[string]any{
		"version": 99,
		"entries": []any{},
	})
	assert.NoError(t, err)

	restoreErr := entitycache.Restore(fakes.NewReactiveStore(), blob)

	assert.ErrorIs(t, restoreErr, entitycache.ErrRestoringCacheFailed)
	assert.ErrorContains(t, restoreErr, "unsupported snapshot version 99")
}

func Test_Restore_RejectsMalformedBlob(t *testing.T) {
	err := entitycache.Restore(fakes.NewReactiveStore(), []byte(`not json`))

	assert.ErrorIs(t, err, entitycache.ErrRestoringCacheFailed)
}

func Test_Restore_RejectsUnknownEntryShape(t *testing.T) {
	blob, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(map[string]any{
		"version": 1,
		"entries": []any{
			map[string]any{"key": "students:detail:s-1", "shape": "blob", "payload": map[string]any{}},
		},
	})
	assert.NoError(t, err)

	restoreErr := entitycache.Restore(fakes.NewReactiveStore(), blob)

	assert.ErrorIs(t, restoreErr, entitycache.ErrRestoringCacheFailed)
	assert.ErrorContains(t, restoreErr, `unknown entry shape "blob"`)
}
