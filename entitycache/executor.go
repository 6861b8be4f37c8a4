package entitycache

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
)

var ErrNilFetchPrimitive = errors.New("nil fetch primitive supplied")
var ErrEmptySortFieldAllowList = errors.New("empty sort field allow-list supplied")
var ErrFetchingPageFailed = errors.New("fetching page of records failed")
var ErrCountingRecordsFailed = errors.New("counting records failed")

const (
	logMsgPageQueryCompleted = "page query completed"
	logMsgPageQueryFailed    = "page query failed"
	logAttrRecordCount       = "record_count"
	logAttrTotal             = "total"
	logAttrPage              = "page"
	logAttrDurationMS        = "duration_ms"

	spanNamePaginatedQuery = "entitycache.query.paginated"
	spanStatusOK           = "ok"
	spanStatusError        = "error"
)

// PageQuery is the sanitized query handed to a fetch primitive: cleaned filters,
// an allow-listed sort field, and computed skip/limit. It is safe to pass to
// engines that interpret field names dynamically.
type PageQuery struct {
	EntityType   EntityTypeString
	Filters      map[string]any
	Search       string
	SearchFields []string
	SortField    string
	SortOrder    SortOrder
	Skip         int
	Limit        int
}

// FetchPrimitive is the document-store seam: it returns one page of loosely-typed
// records and, separately, the total count for the same query.
//
// Contract:
// - Implementations must apply Filters, Search, SortField/SortOrder, Skip and Limit verbatim.
// - CountTotal must use the same filters as FetchPage, ignoring Skip/Limit.
// - Errors are returned, never panicked; the executor converts them at the boundary.
type FetchPrimitive interface {
	FetchPage(ctx context.Context, query PageQuery) ([]map[string]any, error)
	CountTotal(ctx context.Context, query PageQuery) (int, error)
}

// ExecutorOption defines a functional option for configuring a QueryExecutor.
type ExecutorOption func(*QueryExecutor) error

// WithDefaultSortField sets the field substituted when the caller-supplied sort
// field is absent or not allow-listed.
func WithDefaultSortField(field string) ExecutorOption {
	return func(e *QueryExecutor) error {
		if field == "" {
			return ErrEmptyFieldName
		}

		e.defaultSortField = field

		return nil
	}
}

// WithExecutorLogger sets the logger for the QueryExecutor.
func WithExecutorLogger(logger Logger) ExecutorOption {
	return func(e *QueryExecutor) error {
		e.logger = logger
		return nil
	}
}

// WithExecutorMetrics sets the metrics collector for the QueryExecutor.
func WithExecutorMetrics(collector MetricsCollector) ExecutorOption {
	return func(e *QueryExecutor) error {
		e.metricsCollector = collector
		return nil
	}
}

// WithExecutorTracing sets the tracing collector for the QueryExecutor.
func WithExecutorTracing(collector TracingCollector) ExecutorOption {
	return func(e *QueryExecutor) error {
		e.tracingCollector = collector
		return nil
	}
}

// QueryExecutor turns untrusted query parameters into a validated paginated response:
// it sanitizes filters, allow-lists the sort field, computes skip/limit, executes the
// two-part fetch, and runs the results through the transformation pipeline.
//
// The executor never lets an error escape as such; every failure is converted into a
// success=false PaginatedResponse at this boundary.
type QueryExecutor struct {
	fetcher           FetchPrimitive
	transformer       Transformer
	allowedSortFields []string
	defaultSortField  string
	logger            Logger
	metricsCollector  MetricsCollector
	tracingCollector  TracingCollector
}

// NewQueryExecutor creates a QueryExecutor for one entity type with optional configuration.
// The allow-list must contain at least one field; the default sort field is the first
// allow-listed field unless overridden with WithDefaultSortField.
func NewQueryExecutor(
	fetcher FetchPrimitive,
	transformer Transformer,
	allowedSortFields []string,
	options ...ExecutorOption,
) (QueryExecutor, error) {

	if fetcher == nil {
		return QueryExecutor{}, ErrNilFetchPrimitive
	}

	if transformer.EntityType() == "" {
		return QueryExecutor{}, ErrEmptyEntityType
	}

	if len(allowedSortFields) == 0 {
		return QueryExecutor{}, ErrEmptySortFieldAllowList
	}

	e := QueryExecutor{
		fetcher:           fetcher,
		transformer:       transformer,
		allowedSortFields: allowedSortFields,
		defaultSortField:  allowedSortFields[0],
	}

	for _, option := range options {
		if err := option(&e); err != nil {
			return QueryExecutor{}, err
		}
	}

	return e, nil
}

// ExecutePaginated runs the full paginated query path for the given parameters.
func (e QueryExecutor) ExecutePaginated(ctx context.Context, params QueryParams) PaginatedResponse {
	ctx, span := e.startSpan(ctx)

	query := e.buildPageQuery(params)

	start := time.Now()
	records, total, fetchErr := e.executeTwoPartFetch(ctx, query)
	duration := time.Since(start)

	if fetchErr != nil {
		if e.logger != nil {
			e.logger.Error(logMsgPageQueryFailed,
				logAttrEntityType, e.transformer.EntityType(),
				logAttrError, fetchErr.Error())
		}

		e.recordOutcome(ctx, duration, true)
		e.finishSpan(span, spanStatusError)

		return FailedPaginatedResponse(params.Page, params.Limit, fetchErr)
	}

	items := e.transformer.TransformItems(records)
	response := BuildPaginatedResponse(items, total, params.Page, params.Limit)

	if e.logger != nil {
		e.logger.Info(logMsgPageQueryCompleted,
			logAttrEntityType, e.transformer.EntityType(),
			logAttrRecordCount, len(items),
			logAttrTotal, total,
			logAttrPage, params.Page,
			logAttrDurationMS, durationToMilliseconds(duration))
	}

	e.recordOutcome(ctx, duration, false)
	e.finishSpan(span, spanStatusOK)

	return response
}

// buildPageQuery applies filter sanitization, sort-field allow-listing, and skip math.
func (e QueryExecutor) buildPageQuery(params QueryParams) PageQuery {
	order := params.SortOrder
	if order != SortAsc && order != SortDesc {
		order = DefaultSortOrder
	}

	return PageQuery{
		EntityType:   e.transformer.EntityType(),
		Filters:      SanitizeFilters(params.Filters),
		Search:       params.Search,
		SearchFields: params.SearchFields,
		SortField:    SanitizeSortField(params.SortBy, e.allowedSortFields, e.defaultSortField),
		SortOrder:    order,
		Skip:         params.Skip(),
		Limit:        params.Limit,
	}
}

// executeTwoPartFetch runs the page fetch and the count in parallel with the same
// sanitized filters. Panics from the fetch primitive are converted to errors so
// they cannot escape the executor boundary.
func (e QueryExecutor) executeTwoPartFetch(ctx context.Context, query PageQuery) (
	records []map[string]any,
	total int,
	err error,
) {

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return convertPanic(func() error {
			fetched, fetchErr := e.fetcher.FetchPage(groupCtx, query)
			if fetchErr != nil {
				return errors.Join(ErrFetchingPageFailed, fetchErr)
			}

			records = fetched

			return nil
		})
	})

	group.Go(func() error {
		return convertPanic(func() error {
			counted, countErr := e.fetcher.CountTotal(groupCtx, query)
			if countErr != nil {
				return errors.Join(ErrCountingRecordsFailed, countErr)
			}

			total = counted

			return nil
		})
	})

	if waitErr := group.Wait(); waitErr != nil {
		return nil, 0, waitErr
	}

	return records, total, nil
}

func (e QueryExecutor) startSpan(ctx context.Context) (context.Context, SpanContext) {
	if e.tracingCollector == nil {
		return ctx, nil
	}

	return e.tracingCollector.StartSpan(ctx, spanNamePaginatedQuery, map[string]string{
		LabelEntityType: e.transformer.EntityType(),
	})
}

func (e QueryExecutor) finishSpan(span SpanContext, status string) {
	if e.tracingCollector == nil || span == nil {
		return
	}

	e.tracingCollector.FinishSpan(span, status, nil)
}

// recordOutcome reports the query duration and error count, preferring the
// context-aware collector methods when the implementation provides them.
func (e QueryExecutor) recordOutcome(ctx context.Context, duration time.Duration, failed bool) {
	if e.metricsCollector == nil {
		return
	}

	labels := map[string]string{LabelEntityType: e.transformer.EntityType()}

	if contextual, ok := e.metricsCollector.(ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, MetricQueryDuration, duration, labels)

		if failed {
			contextual.IncrementCounterContext(ctx, MetricQueryErrors, labels)
		}

		return
	}

	e.metricsCollector.RecordDuration(MetricQueryDuration, duration, labels)

	if failed {
		e.metricsCollector.IncrementCounter(MetricQueryErrors, labels)
	}
}

func convertPanic(run func() error) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("fetch primitive panicked: %v", recovered)
		}
	}()

	return run()
}

// durationToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func durationToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
