package entitycache

// DomainMapFunc is an optional pure mapping applied after validation succeeds,
// enabling entity-specific derived fields without re-touching the validator.
type DomainMapFunc func(Record) Record

// TransformerOption defines a functional option for configuring a Transformer.
type TransformerOption func(*Transformer) error

// WithDomainMap sets the domain mapping stage of the pipeline.
func WithDomainMap(mapFunc DomainMapFunc) TransformerOption {
	return func(t *Transformer) error {
		t.domainMap = mapFunc
		return nil
	}
}

// WithTransformerLogger sets the logger for the Transformer.
func WithTransformerLogger(logger Logger) TransformerOption {
	return func(t *Transformer) error {
		t.logger = logger
		return nil
	}
}

// WithTransformerMetrics sets the metrics collector for the Transformer.
// The collector receives the count of records dropped by lenient validation,
// which is otherwise invisible to callers.
func WithTransformerMetrics(collector MetricsCollector) TransformerOption {
	return func(t *Transformer) error {
		t.metricsCollector = collector
		return nil
	}
}

// Transformer composes the transformation pipeline for one entity type:
// normalization, contract validation, and an optional domain mapping stage.
//
// Given the same raw input and contract, the output is always identical;
// the pipeline has no hidden clock or randomness.
type Transformer struct {
	contract         Contract
	domainMap        DomainMapFunc
	logger           Logger
	metricsCollector MetricsCollector
}

const logMsgRecordDropped = "record dropped by validation"
const logAttrEntityType = "entity_type"
const logAttrRecordID = "record_id"
const logAttrError = "error"

// NewTransformer creates a Transformer for the given contract with optional configuration.
func NewTransformer(contract Contract, options ...TransformerOption) (Transformer, error) {
	if contract.EntityType == "" {
		return Transformer{}, ErrEmptyEntityType
	}

	t := Transformer{contract: contract}

	for _, option := range options {
		if err := option(&t); err != nil {
			return Transformer{}, err
		}
	}

	return t, nil
}

// EntityType returns the entity type this transformer is bound to.
func (t Transformer) EntityType() EntityTypeString {
	return t.contract.EntityType
}

// TransformItem runs one raw document through normalize → validate → domain map.
// It reports failure instead of returning an error; this is the lenient path
// used for collections.
func (t Transformer) TransformItem(raw map[string]any) (Record, bool) {
	normalized := NormalizeRecord(raw)

	validated, ok := t.contract.Validate(normalized)
	if !ok {
		return nil, false
	}

	return t.applyDomainMap(validated), true
}

// TransformItemStrict runs one raw document through the pipeline and fails loudly
// on validation errors. Call sites that must not silently lose data, such as
// confirming a just-created record, use this entry point.
func (t Transformer) TransformItemStrict(raw map[string]any) (Record, error) {
	normalized := NormalizeRecord(raw)

	validated, err := t.contract.ValidateStrict(normalized)
	if err != nil {
		return nil, err
	}

	return t.applyDomainMap(validated), nil
}

// TransformItems maps TransformItem over a slice of raw documents and drops invalid ones.
//
// Dropping is silent towards the caller: the returned slice may be shorter than the
// input, and any response total computed upstream is preserved as-is. The dropped
// count is reported through the metrics collector and the logger instead.
func (t Transformer) TransformItems(raw []map[string]any) []Record {
	transformed := make([]Record, 0, len(raw))
	dropped := 0

	for _, document := range raw {
		record, ok := t.TransformItem(document)
		if !ok {
			dropped++

			if t.logger != nil {
				t.logger.Warn(logMsgRecordDropped,
					logAttrEntityType, t.contract.EntityType,
					logAttrRecordID, NormalizeRecord(document).ID())
			}

			continue
		}

		transformed = append(transformed, record)
	}

	if dropped > 0 && t.metricsCollector != nil {
		for i := 0; i < dropped; i++ {
			t.metricsCollector.IncrementCounter(MetricValidationDropped, map[string]string{
				LabelEntityType: t.contract.EntityType,
			})
		}
	}

	return transformed
}

// ItemsTransform adapts the transformer to the ItemsTransformFunc shape consumed
// by the response adapters and the CRUD wrapper.
func (t Transformer) ItemsTransform() ItemsTransformFunc {
	return func(items []Record) []Record {
		raw := make([]map[string]any, len(items))
		for i, item := range items {
			raw[i] = item
		}

		return t.TransformItems(raw)
	}
}

func (t Transformer) applyDomainMap(record Record) Record {
	if t.domainMap == nil {
		return record
	}

	return t.domainMap(record)
}
