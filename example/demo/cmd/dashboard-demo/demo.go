// Package main implements a dashboard traffic simulator for the typed entity cache,
// driving realistic read and optimistic-mutation scenarios against PostgreSQL
// with configurable request rates.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/schooldash/entity-cache-go/entitycache"
	"github.com/schooldash/entity-cache-go/entitycache/memorystore"
	"github.com/schooldash/entity-cache-go/entitycache/postgresengine"
)

const (
	studentEntityType = "students"

	cacheCapacity   = 256
	scenarioTimeout = 5 * time.Second
	maxListPages    = 5
	listPageLimit   = 25
	maxStudentGrade = 12
)

var studentSortFields = []string{"createdAt", "updatedAt", "name", "grade"}

var demoStudentNames = []string{
	"Ada Lovelace",
	"Grace Hopper",
	"Edsger Dijkstra",
	"Barbara Liskov",
	"Donald Knuth",
	"Margaret Hamilton",
	"Alan Turing",
	"Katherine Johnson",
}

// Demo orchestrates realistic dashboard traffic against the entity cache stack:
// deduplicated list reads through the in-flight tracker and optimistic
// create/delete mutations reconciled against the document store.
type Demo struct {
	documentStore postgresengine.DocumentStore
	transformer   entitycache.Transformer
	executor      entitycache.QueryExecutor
	actions       entitycache.CRUDActions
	cache         *entitycache.CacheOperations
	inflight      *entitycache.InflightTracker
	coordinator   *entitycache.OptimisticCoordinator
	config        Config

	// Rate limiting
	ticker   *time.Ticker
	stopChan chan struct{}
	wg       sync.WaitGroup

	// Metrics and state
	requestCount int64
	errorCount   int64
	startTime    time.Time
	createdIDs   []entitycache.EntityIDString
	mu           sync.RWMutex
}

// NewDemo creates a Demo instance wiring the full cache stack for the student
// entity type on top of the provided DocumentStore.
func NewDemo(documentStore postgresengine.DocumentStore, cfg Config, obsConfig ObservabilityConfig) (*Demo, error) {
	contract, err := entitycache.BuildContract(studentEntityType,
		entitycache.FieldSpec{Name: "name", Kind: entitycache.KindString},
		entitycache.FieldSpec{Name: "grade", Kind: entitycache.KindInt},
		entitycache.FieldSpec{Name: "email", Kind: entitycache.KindString, Optional: true},
	)
	if err != nil {
		return nil, fmt.Errorf("building student contract failed: %w", err)
	}

	transformer, err := entitycache.NewTransformer(contract, buildTransformerOptions(obsConfig)...)
	if err != nil {
		return nil, fmt.Errorf("building student transformer failed: %w", err)
	}

	executor, err := entitycache.NewQueryExecutor(
		documentStore, transformer, studentSortFields, buildExecutorOptions(obsConfig)...)
	if err != nil {
		return nil, fmt.Errorf("building query executor failed: %w", err)
	}

	store, err := memorystore.NewStore(memorystore.WithCapacity(cacheCapacity))
	if err != nil {
		return nil, fmt.Errorf("building memory store failed: %w", err)
	}

	cache, err := entitycache.NewCacheOperations(store, studentEntityType, buildCacheOptions(obsConfig)...)
	if err != nil {
		return nil, fmt.Errorf("building cache operations failed: %w", err)
	}

	inflight := entitycache.NewInflightTracker()

	coordinator, err := entitycache.NewOptimisticCoordinator(
		cache, inflight, transformer, buildCoordinatorOptions(obsConfig)...)
	if err != nil {
		return nil, fmt.Errorf("building optimistic coordinator failed: %w", err)
	}

	actions, err := buildStudentActions(documentStore, transformer)
	if err != nil {
		return nil, err
	}

	return &Demo{
		documentStore: documentStore,
		transformer:   transformer,
		executor:      executor,
		actions:       actions,
		cache:         cache,
		inflight:      inflight,
		coordinator:   coordinator,
		config:        cfg,
		stopChan:      make(chan struct{}),
	}, nil
}

// buildStudentActions wires the detail fetch of the document store into the
// wrapped CRUD action set, routed through the selector registered for the
// student entity type. Mutations go through the optimistic coordinator
// instead, so the optional write actions stay absent.
func buildStudentActions(
	documentStore postgresengine.DocumentStore,
	transformer entitycache.Transformer,
) (entitycache.CRUDActions, error) {

	registry := entitycache.NewSelectorRegistry()
	if _, err := registry.Initialize(func(r *entitycache.SelectorRegistry) error {
		return r.Register(studentEntityType, entitycache.DefaultSelector)
	}); err != nil {
		return entitycache.CRUDActions{}, fmt.Errorf("initializing selector registry failed: %w", err)
	}

	actions := entitycache.CRUDActions{
		FetchByID: func(ctx context.Context, id entitycache.EntityIDString) entitycache.EntityResponse {
			raw, err := documentStore.FetchDocumentByID(ctx, studentEntityType, id)
			if err != nil {
				return entitycache.FailedEntityResponse(err)
			}

			record, ok := transformer.TransformItem(raw)
			if !ok {
				return entitycache.FailedEntityResponse(fmt.Errorf("stored document failed validation: %s", id))
			}

			return entitycache.EntityResponse{Success: true, Data: record}
		},
	}

	return entitycache.WrapCRUDActions(actions, registry.TransformFor(studentEntityType)), nil
}

// buildTransformerOptions creates observability options for the transformation pipeline.
func buildTransformerOptions(obsConfig ObservabilityConfig) []entitycache.TransformerOption {
	var options []entitycache.TransformerOption
	if obsConfig.MetricsCollector != nil {
		options = append(options, entitycache.WithTransformerMetrics(obsConfig.MetricsCollector))
	}
	if obsConfig.Logger != nil {
		options = append(options, entitycache.WithTransformerLogger(obsConfig.Logger))
	}
	return options
}

// buildExecutorOptions creates observability options for the query executor.
func buildExecutorOptions(obsConfig ObservabilityConfig) []entitycache.ExecutorOption {
	var options []entitycache.ExecutorOption
	if obsConfig.MetricsCollector != nil {
		options = append(options, entitycache.WithExecutorMetrics(obsConfig.MetricsCollector))
	}
	if obsConfig.TracingCollector != nil {
		options = append(options, entitycache.WithExecutorTracing(obsConfig.TracingCollector))
	}
	if obsConfig.Logger != nil {
		options = append(options, entitycache.WithExecutorLogger(obsConfig.Logger))
	}
	return options
}

// buildCacheOptions creates observability options for the cache operations.
func buildCacheOptions(obsConfig ObservabilityConfig) []entitycache.CacheOption {
	var options []entitycache.CacheOption
	if obsConfig.MetricsCollector != nil {
		options = append(options, entitycache.WithCacheMetrics(obsConfig.MetricsCollector))
	}
	if obsConfig.Logger != nil {
		options = append(options, entitycache.WithCacheLogger(obsConfig.Logger))
	}
	return options
}

// buildCoordinatorOptions creates observability options for the optimistic coordinator.
func buildCoordinatorOptions(obsConfig ObservabilityConfig) []entitycache.CoordinatorOption {
	var options []entitycache.CoordinatorOption
	if obsConfig.MetricsCollector != nil {
		options = append(options, entitycache.WithCoordinatorMetrics(obsConfig.MetricsCollector))
	}
	if obsConfig.Logger != nil {
		options = append(options, entitycache.WithCoordinatorLogger(obsConfig.Logger))
	}
	return options
}

// Start begins traffic simulation with the configured request rate.
// It runs until the context is cancelled or Stop() is called.
func (d *Demo) Start(ctx context.Context) error {
	d.mu.Lock()
	d.startTime = time.Now()
	d.requestCount = 0
	d.errorCount = 0
	d.mu.Unlock()

	// Calculate an interval between requests based on the target rate
	interval := time.Second / time.Duration(d.config.Rate)
	d.ticker = time.NewTicker(interval)
	defer d.ticker.Stop()

	log.Printf("Dashboard demo starting with %d requests/second (interval: %v), initial goroutines: %d",
		d.config.Rate, interval, runtime.NumGoroutine())

	// Start metrics reporting goroutine
	d.wg.Add(1)
	go d.metricsReporter(ctx)

	// Main traffic loop
	for {
		select {
		case <-ctx.Done():
			log.Printf("Dashboard demo stopping due to context cancellation")
			return ctx.Err()

		case <-d.stopChan:
			log.Printf("Dashboard demo stopping due to stop signal")
			return nil

		case <-d.ticker.C:
			d.wg.Add(1)
			go d.executeScenario(ctx)
		}
	}
}

// Stop gracefully shuts down the demo.
func (d *Demo) Stop(ctx context.Context) error {
	close(d.stopChan)

	// Cancel any fetches still in flight so their goroutines can finish
	d.inflight.CancelAll(entitycache.ListKeyPrefix(studentEntityType))

	// Wait for all goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.snapshotCache()
		d.logFinalStats()
		return nil
	case <-ctx.Done():
		d.logFinalStats()
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

// executeScenario runs a single traffic scenario based on configured weights.
func (d *Demo) executeScenario(ctx context.Context) {
	defer d.wg.Done()

	scenarioType := d.selectScenario()

	var err error
	switch scenarioType {
	case "read":
		err = d.runReadScenario(ctx)
	case "mutation":
		err = d.runMutationScenario(ctx)
	default:
		err = fmt.Errorf("unknown scenario type: %s", scenarioType)
	}

	// Update internal counters
	d.mu.Lock()
	d.requestCount++
	if err != nil {
		d.errorCount++
		log.Printf("Scenario error (%s): %v", scenarioType, err)
	}
	d.mu.Unlock()
}

// selectScenario chooses a scenario type based on configured weights.
func (d *Demo) selectScenario() string {
	// Generate random number 0-99
	r := rand.Intn(100) //nolint:gosec // Demo code - weak random is acceptable

	// Apply weights: [read, mutation]
	// Example: [90, 10] -> read: 0-89, mutation: 90-99
	if r < d.config.ScenarioWeights[0] {
		return "read"
	}

	return "mutation"
}

// runReadScenario executes a dashboard list read: cache first, then a
// deduplicated fetch through the in-flight tracker, then a cache write.
func (d *Demo) runReadScenario(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, scenarioTimeout)
	defer cancel()

	// Occasionally read a single student through the wrapped CRUD actions
	if id, ok := d.peekCreatedID(); ok && rand.Intn(3) == 0 { //nolint:gosec // Demo code - weak random is acceptable
		return d.runDetailRead(opCtx, id)
	}

	params := d.randomListParams()

	// Fresh cache entry wins without touching the database
	if _, hit := d.cache.ReadList(params); hit {
		return nil
	}

	key, err := entitycache.ListCacheKey(studentEntityType, params).Canonical()
	if err != nil {
		return err
	}

	response, err := d.inflight.Fetch(opCtx, key, func(fillCtx context.Context) (entitycache.Response, error) {
		page := d.executor.ExecutePaginated(fillCtx, params)
		if !page.Success {
			return page, fmt.Errorf("page query failed: %s", page.Error)
		}

		return page, nil
	})
	if err != nil {
		return err
	}

	if page, ok := response.(entitycache.PaginatedResponse); ok {
		return d.cache.WriteList(params, page)
	}

	return nil
}

// runDetailRead executes a dashboard detail read: cache first, then the wrapped
// FetchByID action, then a cache write.
func (d *Demo) runDetailRead(ctx context.Context, id entitycache.EntityIDString) error {
	if _, hit := d.cache.ReadDetail(id); hit {
		return nil
	}

	response := d.actions.FetchByID(ctx, id)
	if !response.Success {
		return fmt.Errorf("detail fetch failed: %s", response.Error)
	}

	return d.cache.WriteDetail(id, response)
}

// runMutationScenario executes an optimistic create or delete, reconciling the
// cache against the document store outcome.
func (d *Demo) runMutationScenario(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, scenarioTimeout)
	defer cancel()

	// Delete an earlier creation when one is available, otherwise create
	if id, ok := d.popCreatedID(); ok && rand.Intn(2) == 0 { //nolint:gosec // Demo code - weak random is acceptable
		return d.runDeleteMutation(opCtx, id)
	}

	return d.runCreateMutation(opCtx)
}

// runCreateMutation applies an optimistic create, persists the document, and
// commits the confirmed record back into the cache.
func (d *Demo) runCreateMutation(ctx context.Context) error {
	data := entitycache.Record{
		"name":  d.randomStudentName(),
		"grade": rand.Intn(maxStudentGrade) + 1, //nolint:gosec // Demo code - weak random is acceptable
	}

	mutation, err := d.coordinator.BeginCreate(data)
	if err != nil {
		return err
	}

	id := entitycache.EntityIDString(uuid.New().String())

	if insertErr := d.documentStore.InsertDocument(ctx, studentEntityType, id, entitycache.PrepareForWrite(data)); insertErr != nil {
		return mutation.Rollback(insertErr)
	}

	raw, fetchErr := d.documentStore.FetchDocumentByID(ctx, studentEntityType, id)
	if fetchErr != nil {
		return mutation.Rollback(fetchErr)
	}

	confirmed, ok := d.transformer.TransformItem(raw)
	if !ok {
		return mutation.Rollback(fmt.Errorf("stored document failed validation: %s", id))
	}

	if commitErr := mutation.Commit(confirmed); commitErr != nil {
		return commitErr
	}

	d.rememberCreatedID(id)

	return nil
}

// runDeleteMutation applies an optimistic delete and reconciles it against
// the document store.
func (d *Demo) runDeleteMutation(ctx context.Context, id entitycache.EntityIDString) error {
	mutation, err := d.coordinator.BeginDelete(id)
	if err != nil {
		return err
	}

	if deleteErr := d.documentStore.DeleteDocument(ctx, studentEntityType, id); deleteErr != nil {
		return mutation.Rollback(deleteErr)
	}

	return mutation.Commit(nil)
}

// randomListParams builds query parameters for a random dashboard page.
func (d *Demo) randomListParams() entitycache.QueryParams {
	builder := entitycache.BuildQueryParams().
		WithPage(rand.Intn(maxListPages) + 1). //nolint:gosec // Demo code - weak random is acceptable
		WithLimit(listPageLimit).
		WithSort("name", entitycache.SortAsc)

	// Occasionally filter by grade to exercise distinct cache keys
	if rand.Intn(4) == 0 { //nolint:gosec // Demo code - weak random is acceptable
		builder = builder.WithFilter("grade", rand.Intn(maxStudentGrade)+1) //nolint:gosec // Demo code - weak random is acceptable
	}

	return builder.Finalize()
}

// randomStudentName picks a name for a created student.
func (d *Demo) randomStudentName() string {
	return demoStudentNames[rand.Intn(len(demoStudentNames))] //nolint:gosec // Demo code - weak random is acceptable
}

// rememberCreatedID records an id so a later mutation scenario can delete it.
func (d *Demo) rememberCreatedID(id entitycache.EntityIDString) {
	d.mu.Lock()
	d.createdIDs = append(d.createdIDs, id)
	d.mu.Unlock()
}

// peekCreatedID returns one previously created id without removing it.
func (d *Demo) peekCreatedID() (entitycache.EntityIDString, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if len(d.createdIDs) == 0 {
		return "", false
	}

	return d.createdIDs[len(d.createdIDs)-1], true
}

// popCreatedID takes one previously created id, if any exist.
func (d *Demo) popCreatedID() (entitycache.EntityIDString, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.createdIDs) == 0 {
		return "", false
	}

	id := d.createdIDs[len(d.createdIDs)-1]
	d.createdIDs = d.createdIDs[:len(d.createdIDs)-1]

	return id, true
}

// snapshotCache captures a serialized snapshot of the fresh cache entries,
// the way a dashboard would persist warm state across sessions.
func (d *Demo) snapshotCache() {
	blob, err := entitycache.Serialize(d.cache.Store())
	if err != nil {
		log.Printf("Capturing cache snapshot failed: %v", err)
		return
	}

	log.Printf("Cache snapshot captured: %d bytes", len(blob))
}

// metricsReporter logs statistics periodically.
func (d *Demo) metricsReporter(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopChan:
			return
		case <-ticker.C:
			d.logCurrentStats()
		}
	}
}

// logCurrentStats logs current performance statistics.
func (d *Demo) logCurrentStats() {
	d.mu.RLock()
	duration := time.Since(d.startTime)
	requests := d.requestCount
	errors := d.errorCount
	d.mu.RUnlock()

	goroutineCount := runtime.NumGoroutine()

	if duration > 0 && requests > 0 {
		rps := float64(requests) / duration.Seconds()
		errorRate := float64(errors) / float64(requests) * 100
		log.Printf("Stats: %d requests in %v (%.1f req/s), %d errors (%.1f%%), %d cache entries, %d goroutines",
			requests, duration.Truncate(time.Second), rps, errors, errorRate, d.cacheEntryCount(), goroutineCount)
	}
}

// logFinalStats logs final performance statistics.
func (d *Demo) logFinalStats() {
	d.mu.RLock()
	duration := time.Since(d.startTime)
	requests := d.requestCount
	errors := d.errorCount
	d.mu.RUnlock()

	goroutineCount := runtime.NumGoroutine()

	if duration > 0 && requests > 0 {
		rps := float64(requests) / duration.Seconds()
		errorRate := float64(errors) / float64(requests) * 100
		log.Printf("Final Stats: %d requests in %v (%.1f req/s), %d errors (%.1f%%), %d cache entries, %d goroutines",
			requests, duration.Truncate(time.Second), rps, errors, errorRate, d.cacheEntryCount(), goroutineCount)
	}
}

// cacheEntryCount reports how many entries the reactive store currently holds.
func (d *Demo) cacheEntryCount() int {
	return len(d.cache.Store().Keys())
}
