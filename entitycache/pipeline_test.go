package entitycache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// counterSpy is a minimal in-package metrics double; the full-featured spies
// live in testutil and cannot be imported here.
type counterSpy struct {
	mu       sync.Mutex
	counters map[string]int
}

func newCounterSpy() *counterSpy {
	return &counterSpy{counters: make(map[string]int)}
}

func (s *counterSpy) RecordDuration(string, time.Duration, map[string]string) {}

func (s *counterSpy) IncrementCounter(metric string, _ map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[metric]++
}

func (s *counterSpy) RecordValue(string, float64, map[string]string) {}

func studentTestContract(t *testing.T) Contract {
	t.Helper()

	contract, err := BuildContract("students",
		FieldSpec{Name: "name", Kind: KindString},
		FieldSpec{Name: "grade", Kind: KindInt},
	)
	assert.NoError(t, err)

	return contract
}

func Test_NewTransformer_RejectsEmptyEntityType(t *testing.T) {
	_, err := NewTransformer(Contract{})

	assert.ErrorIs(t, err, ErrEmptyEntityType)
}

func Test_TransformItem_NormalizesAndValidates(t *testing.T) {
	transformer, err := NewTransformer(studentTestContract(t))
	assert.NoError(t, err)

	record, ok := transformer.TransformItem(map[string]any{
		"_id":       "s-1",
		"name":      "Ada",
		"grade":     float64(7),
		"createdAt": "2024-09-01T10:00:00Z",
	})

	assert.True(t, ok)
	assert.Equal(t, "s-1", record["id"])
	assert.Equal(t, 7, record["grade"])
	assert.IsType(t, time.Time{}, record["createdAt"])
}

func Test_TransformItems_DropsInvalidAndKeepsValid(t *testing.T) {
	transformer, err := NewTransformer(studentTestContract(t))
	assert.NoError(t, err)

	records := transformer.TransformItems([]map[string]any{
		{"_id": "s-1", "name": "Ada", "grade": float64(7)},
		{"_id": "s-2", "grade": float64(8)}, // missing required name
		{"_id": "s-3", "name": "Grace", "grade": float64(8)},
	})

	assert.Len(t, records, 2)
	assert.Equal(t, "s-1", records[0].ID())
	assert.Equal(t, "s-3", records[1].ID())
}

func Test_TransformItems_ReportsDroppedCountThroughMetrics(t *testing.T) {
	spy := newCounterSpy()

	transformer, err := NewTransformer(studentTestContract(t), WithTransformerMetrics(spy))
	assert.NoError(t, err)

	transformer.TransformItems([]map[string]any{
		{"_id": "s-1", "name": "Ada", "grade": float64(7)},
		{"_id": "s-2"},
		{"_id": "s-3"},
	})

	assert.Equal(t, 2, spy.counters[MetricValidationDropped])
}

func Test_TransformItems_EmptyInputYieldsEmptyNonNilSlice(t *testing.T) {
	transformer, err := NewTransformer(studentTestContract(t))
	assert.NoError(t, err)

	records := transformer.TransformItems(nil)

	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func Test_TransformItemStrict_FailsLoudly(t *testing.T) {
	transformer, err := NewTransformer(studentTestContract(t))
	assert.NoError(t, err)

	_, strictErr := transformer.TransformItemStrict(map[string]any{"_id": "s-1"})

	assert.ErrorContains(t, strictErr, ErrMissingRequiredField.Error())
}

func Test_Transformer_AppliesDomainMapAfterValidation(t *testing.T) {
	transformer, err := NewTransformer(studentTestContract(t), WithDomainMap(func(record Record) Record {
		record["displayName"] = record["name"].(string) + " (grade 7)"
		return record
	}))
	assert.NoError(t, err)

	record, ok := transformer.TransformItem(map[string]any{"_id": "s-1", "name": "Ada", "grade": float64(7)})

	assert.True(t, ok)
	assert.Equal(t, "Ada (grade 7)", record["displayName"])
}

func Test_Transformer_IsDeterministic(t *testing.T) {
	transformer, err := NewTransformer(studentTestContract(t))
	assert.NoError(t, err)

	raw := map[string]any{"_id": "s-1", "name": "Ada", "grade": float64(7)}

	first, okFirst := transformer.TransformItem(raw)
	second, okSecond := transformer.TransformItem(raw)

	assert.True(t, okFirst)
	assert.True(t, okSecond)
	assert.Equal(t, first, second)
}
