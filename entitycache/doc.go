// Package entitycache provides core abstractions and types for a typed entity
// cache and synchronization layer over document-oriented storage.
//
// This package defines the fundamental types used across the cache: loosely-typed
// records and their normalization, per-entity-type validation contracts, the
// transformation pipeline, query parameter sanitization, response envelopes,
// cache keys, cache patch operations, and the optimistic mutation coordinator.
//
// Data flows through three layers:
//   - Normalization: raw store documents become canonical Records (stable id
//     aliasing, timestamps coerced to time.Time)
//   - Validation: a Contract checks required fields and kinds; invalid records
//     are dropped from collections without failing the batch
//   - Caching: validated responses live in a ReactiveStore addressed by
//     canonical CacheKeys, patched in place by CacheOperations
//
// Key types:
//   - Record: A normalized, loosely-typed entity document
//   - Contract: Field requirements for one entity type
//   - Transformer: Normalize-validate-map pipeline for one entity type
//   - QueryExecutor: Sanitized, paginated two-part fetch over a FetchPrimitive
//   - CacheOperations: Targeted patches over every cached view of an entity type
//   - OptimisticCoordinator: Apply-now, reconcile-or-rollback-later mutations
//
// Common usage pattern:
//
//	contract, err := entitycache.BuildContract("students",
//		entitycache.FieldSpec{Name: "name", Kind: entitycache.KindString},
//		entitycache.FieldSpec{Name: "grade", Kind: entitycache.KindInt, Optional: true})
//	if err != nil {
//		// handle error
//	}
//
//	transformer, err := entitycache.NewTransformer(contract)
//	if err != nil {
//		// handle error
//	}
//
//	executor, err := entitycache.NewQueryExecutor(fetcher, transformer, []string{"createdAt", "name"})
//	if err != nil {
//		// handle error
//	}
//
//	params := entitycache.BuildQueryParams().
//		WithPage(2).
//		WithLimit(25).
//		WithSort("-createdAt").
//		WithFilter("grade", 7).
//		Finalize()
//
//	response := executor.ExecutePaginated(ctx, params)
package entitycache
