package testdoubles

import (
	"context"
	"sync"

	"github.com/schooldash/entity-cache-go/entitycache"
)

// SpanRecord is one captured span lifecycle: its name, attributes, and final status.
type SpanRecord struct {
	Name     string
	Attrs    map[string]string
	Status   string
	Finished bool
}

// TracingCollectorSpy implements entitycache.TracingCollector and captures every
// span for assertions.
type TracingCollectorSpy struct {
	mu    sync.Mutex
	spans []*SpanRecord
}

// NewTracingCollectorSpy creates an empty TracingCollectorSpy.
func NewTracingCollectorSpy() *TracingCollectorSpy {
	return &TracingCollectorSpy{}
}

// StartSpan captures a new span and returns its handle.
func (t *TracingCollectorSpy) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, entitycache.SpanContext) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record := &SpanRecord{Name: name, Attrs: cloneAttrs(attrs)}
	t.spans = append(t.spans, record)

	return ctx, &spanContextSpy{record: record}
}

// FinishSpan marks the span finished with the given status and merges final attributes.
func (t *TracingCollectorSpy) FinishSpan(spanCtx entitycache.SpanContext, status string, attrs map[string]string) {
	spy, ok := spanCtx.(*spanContextSpy)
	if !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	spy.record.Status = status
	spy.record.Finished = true
	for key, value := range attrs {
		spy.record.Attrs[key] = value
	}
}

// Spans returns a copy of all captured span records.
func (t *TracingCollectorSpy) Spans() []SpanRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	spans := make([]SpanRecord, 0, len(t.spans))
	for _, span := range t.spans {
		spans = append(spans, *span)
	}

	return spans
}

type spanContextSpy struct {
	record *SpanRecord
}

func (s *spanContextSpy) SetStatus(status string) {
	s.record.Status = status
}

func (s *spanContextSpy) AddAttribute(key, value string) {
	s.record.Attrs[key] = value
}

func cloneAttrs(attrs map[string]string) map[string]string {
	cloned := make(map[string]string, len(attrs))
	for key, value := range attrs {
		cloned[key] = value
	}

	return cloned
}

var _ entitycache.TracingCollector = (*TracingCollectorSpy)(nil)
var _ entitycache.SpanContext = (*spanContextSpy)(nil)
