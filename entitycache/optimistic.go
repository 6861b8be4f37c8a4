package entitycache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNilCacheOperations = errors.New("nil cache operations supplied")
var ErrNilInflightTracker = errors.New("nil inflight tracker supplied")
var ErrMutationNotPending = errors.New("mutation is not pending")
var ErrMutationFailed = errors.New("mutation failed on the server")
var ErrOptimisticRecordInvalid = errors.New("optimistic record failed validation")

const tempIDPrefix = "temp_"

const (
	logMsgOptimisticApplied    = "optimistic mutation applied"
	logMsgOptimisticCommitted  = "optimistic mutation committed"
	logMsgOptimisticRolledBack = "optimistic mutation rolled back"
	logAttrMutation            = "mutation"
	logAttrEntityID            = "entity_id"
)

// MutationState is the lifecycle state of one optimistic mutation.
type MutationState int

const (
	StateIdle MutationState = iota
	StatePending
	StateCommitted
	StateRolledBack
)

// String provides a string representation of MutationState for logging and debugging.
func (s MutationState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

type mutationKind string

const (
	mutationCreate mutationKind = "create"
	mutationUpdate mutationKind = "update"
	mutationDelete mutationKind = "delete"
)

// CoordinatorOption defines a functional option for configuring an OptimisticCoordinator.
type CoordinatorOption func(*OptimisticCoordinator) error

// WithCoordinatorLogger sets the logger for the OptimisticCoordinator.
func WithCoordinatorLogger(logger Logger) CoordinatorOption {
	return func(c *OptimisticCoordinator) error {
		c.logger = logger
		return nil
	}
}

// WithCoordinatorMetrics sets the metrics collector for the OptimisticCoordinator.
func WithCoordinatorMetrics(collector MetricsCollector) CoordinatorOption {
	return func(c *OptimisticCoordinator) error {
		c.metricsCollector = collector
		return nil
	}
}

// WithCoordinatorClock overrides the timestamp source used for synthesized records.
func WithCoordinatorClock(now func() time.Time) CoordinatorOption {
	return func(c *OptimisticCoordinator) error {
		c.now = now
		return nil
	}
}

// OptimisticCoordinator drives the optimistic mutation state machine for one entity type:
// it applies a tentative mutation to the cache immediately, and reconciles or rolls back
// once the real server call resolves.
//
// Every mutation passes idle → pending → committed or rolled_back. On entering pending,
// in-flight fetches addressing the affected cache keys are cancelled and snapshots of the
// affected entries are captured. Both the list entries and the detail entry are
// snapshotted and restored on rollback.
type OptimisticCoordinator struct {
	ops              *CacheOperations
	inflight         *InflightTracker
	transformer      Transformer
	logger           Logger
	metricsCollector MetricsCollector
	now              func() time.Time
}

// NewOptimisticCoordinator creates a coordinator for one entity type with optional configuration.
// The transformer validates synthesized optimistic records so the cache never holds a record
// the server-side contract would reject.
func NewOptimisticCoordinator(
	ops *CacheOperations,
	inflight *InflightTracker,
	transformer Transformer,
	options ...CoordinatorOption,
) (*OptimisticCoordinator, error) {

	if ops == nil {
		return nil, ErrNilCacheOperations
	}

	if inflight == nil {
		return nil, ErrNilInflightTracker
	}

	c := &OptimisticCoordinator{
		ops:         ops,
		inflight:    inflight,
		transformer: transformer,
		now:         time.Now,
	}

	for _, option := range options {
		if err := option(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Mutation is one optimistic mutation in flight. It is created in the pending state by
// the coordinator's Begin* methods and finished exactly once with Commit or Rollback.
type Mutation struct {
	coordinator    *OptimisticCoordinator
	kind           mutationKind
	state          MutationState
	targetID       EntityIDString
	tempID         EntityIDString
	listSnapshots  map[string]Response
	detailSnapshot *detailSnapshot
	mu             sync.Mutex
}

type detailSnapshot struct {
	key     string
	value   Response
	existed bool
}

// State returns the current lifecycle state of the mutation.
func (m *Mutation) State() MutationState {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// TempID returns the temporary id synthesized for an optimistic create, or "" for
// updates and deletes.
func (m *Mutation) TempID() EntityIDString {
	return m.tempID
}

// BeginCreate synthesizes a temporary record from the caller-supplied fields (a temporary
// id plus current timestamps) and inserts it into every list entry immediately, before the
// real server call returns.
func (c *OptimisticCoordinator) BeginCreate(data Record) (*Mutation, error) {
	tempID := tempIDPrefix + uuid.NewString()
	now := c.now()

	optimistic := PrepareForWrite(data)
	optimistic[fieldMongoID] = tempID
	optimistic[fieldID] = tempID
	optimistic[fieldCreatedAt] = now
	optimistic[fieldUpdatedAt] = now

	validated, err := c.transformer.TransformItemStrict(optimistic)
	if err != nil {
		return nil, errors.Join(ErrOptimisticRecordInvalid, err)
	}

	mutation := c.beginMutation(mutationCreate, "")
	mutation.tempID = tempID

	c.ops.AddEntity(validated)

	c.logApplied(mutationCreate, tempID)

	return mutation, nil
}

// BeginUpdate applies the caller's partial data to the matching cached record immediately,
// in the detail entry and in every list entry containing it.
func (c *OptimisticCoordinator) BeginUpdate(id EntityIDString, partial Record) (*Mutation, error) {
	if id == "" {
		return nil, ErrEmptyEntityID
	}

	mutation := c.beginMutation(mutationUpdate, id)

	patch := PrepareForWrite(partial)
	now := c.now()

	c.ops.UpdateEntity(id, func(record Record) Record {
		for key, value := range patch {
			record[key] = value
		}

		record[fieldUpdatedAt] = now

		return record
	})

	c.logApplied(mutationUpdate, id)

	return mutation, nil
}

// BeginDelete removes the matching cached record immediately.
func (c *OptimisticCoordinator) BeginDelete(id EntityIDString) (*Mutation, error) {
	if id == "" {
		return nil, ErrEmptyEntityID
	}

	mutation := c.beginMutation(mutationDelete, id)

	c.ops.RemoveEntity(id)

	c.logApplied(mutationDelete, id)

	return mutation, nil
}

// Commit finishes the mutation after the real server call succeeded.
//
// For creates, the confirmed server record supplants the temporary one by id correlation —
// an explicit swap instead of reliance on eventual invalidation timing. For updates, the
// detail entry is invalidated so the next read fetches the authoritative state. In every
// case the list entries are invalidated for background reconciliation.
func (m *Mutation) Commit(confirmed Record) error {
	if err := m.finish(StateCommitted); err != nil {
		return err
	}

	c := m.coordinator

	switch m.kind {
	case mutationCreate:
		if confirmed != nil {
			c.ops.ReplaceEntity(m.tempID, confirmed)
		}

	case mutationUpdate:
		c.ops.InvalidateDetail(m.targetID)
	}

	c.ops.InvalidateList()

	if c.logger != nil {
		c.logger.Info(logMsgOptimisticCommitted,
			logAttrEntityType, c.ops.EntityType(),
			logAttrMutation, string(m.kind))
	}

	if c.metricsCollector != nil {
		c.metricsCollector.IncrementCounter(MetricCacheCommits, map[string]string{
			LabelEntityType: c.ops.EntityType(),
			LabelOperation:  string(m.kind),
		})
	}

	return nil
}

// Rollback restores the exact snapshots captured when the mutation entered pending and
// propagates the server failure to the caller, who owns user-facing error reporting.
func (m *Mutation) Rollback(cause error) error {
	if err := m.finish(StateRolledBack); err != nil {
		return err
	}

	c := m.coordinator
	store := c.ops.Store()

	c.ops.mu.Lock()
	for key, snapshot := range m.listSnapshots {
		store.Set(key, snapshot)
	}

	if m.detailSnapshot != nil {
		if m.detailSnapshot.existed {
			store.Set(m.detailSnapshot.key, m.detailSnapshot.value)
		} else {
			store.Remove(m.detailSnapshot.key)
		}
	}
	c.ops.mu.Unlock()

	if c.logger != nil {
		c.logger.Warn(logMsgOptimisticRolledBack,
			logAttrEntityType, c.ops.EntityType(),
			logAttrMutation, string(m.kind),
			logAttrError, fmt.Sprintf("%v", cause))
	}

	if c.metricsCollector != nil {
		c.metricsCollector.IncrementCounter(MetricCacheRollbacks, map[string]string{
			LabelEntityType: c.ops.EntityType(),
			LabelOperation:  string(m.kind),
		})
	}

	if cause != nil {
		return errors.Join(ErrMutationFailed, cause)
	}

	return ErrMutationFailed
}

// beginMutation cancels the in-flight fetches addressing the affected keys and captures
// the rollback snapshots, returning a pending mutation.
func (c *OptimisticCoordinator) beginMutation(kind mutationKind, id EntityIDString) *Mutation {
	entityType := c.ops.EntityType()

	c.inflight.CancelAll(ListKeyPrefix(entityType))

	mutation := &Mutation{
		coordinator:   c,
		kind:          kind,
		state:         StatePending,
		targetID:      id,
		listSnapshots: make(map[string]Response),
	}

	c.ops.mu.Lock()
	defer c.ops.mu.Unlock()

	store := c.ops.Store()

	for _, key := range c.ops.listKeys() {
		if value, ok := store.Get(key); ok {
			mutation.listSnapshots[key] = cloneResponse(value)
		}
	}

	if id != "" {
		if detailKey, err := DetailCacheKey(entityType, id).Canonical(); err == nil {
			c.inflight.Cancel(detailKey)

			value, existed := store.Get(detailKey)
			if existed {
				value = cloneResponse(value)
			}

			mutation.detailSnapshot = &detailSnapshot{key: detailKey, value: value, existed: existed}
		}
	}

	return mutation
}

func (m *Mutation) finish(next MutationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StatePending {
		return fmt.Errorf("%w: state is %s", ErrMutationNotPending, m.state)
	}

	m.state = next

	return nil
}

func (c *OptimisticCoordinator) logApplied(kind mutationKind, id EntityIDString) {
	if c.logger == nil {
		return
	}

	c.logger.Debug(logMsgOptimisticApplied,
		logAttrEntityType, c.ops.EntityType(),
		logAttrMutation, string(kind),
		logAttrEntityID, id)
}

// cloneResponse deep-copies a response so later cache patches cannot reach into a snapshot.
func cloneResponse(value Response) Response {
	switch shaped := value.(type) {
	case PaginatedResponse:
		shaped.Items = CloneRecords(shaped.Items)
		return shaped

	case CollectionResponse:
		shaped.Items = CloneRecords(shaped.Items)
		return shaped

	case EntityResponse:
		shaped.Data = shaped.Data.Clone()
		return shaped

	default:
		return value
	}
}
