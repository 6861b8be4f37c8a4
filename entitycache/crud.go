package entitycache

import (
	"context"
)

// The function shapes of a per-entity CRUD set. Each function already returns one
// of the closed Response shapes; the cache layer neither invents transport nor
// changes signatures, it only adapts the responses.
type (
	FetchFunc     func(ctx context.Context, params QueryParams) PaginatedResponse
	FetchByIDFunc func(ctx context.Context, id EntityIDString) EntityResponse
	CreateFunc    func(ctx context.Context, data Record) EntityResponse
	UpdateFunc    func(ctx context.Context, id EntityIDString, data Record) EntityResponse
	DeleteFunc    func(ctx context.Context, id EntityIDString) EntityResponse
)

// CRUDActions is the set of data-access functions for one entity type.
// Fetch is mandatory; the others are optional and may be nil.
type CRUDActions struct {
	Fetch     FetchFunc
	FetchByID FetchByIDFunc
	Create    CreateFunc
	Update    UpdateFunc
	Delete    DeleteFunc
}

// WrapCRUDActions produces a CRUD set with identical signatures whose responses have
// all been passed through the adapter matching their shape, so every entry point
// shares one validation/transformation guarantee without repeating it per call site.
//
// Optional functions that are absent remain absent in the wrapped set; no synthetic
// behavior is invented for a missing Delete.
func WrapCRUDActions(actions CRUDActions, transform ItemsTransformFunc) CRUDActions {
	wrapped := CRUDActions{}

	if actions.Fetch != nil {
		fetch := actions.Fetch
		wrapped.Fetch = func(ctx context.Context, params QueryParams) PaginatedResponse {
			return AdaptPaginated(fetch(ctx, params), transform)
		}
	}

	if actions.FetchByID != nil {
		fetchByID := actions.FetchByID
		wrapped.FetchByID = func(ctx context.Context, id EntityIDString) EntityResponse {
			return AdaptEntity(fetchByID(ctx, id), transform)
		}
	}

	if actions.Create != nil {
		create := actions.Create
		wrapped.Create = func(ctx context.Context, data Record) EntityResponse {
			return AdaptEntity(create(ctx, data), transform)
		}
	}

	if actions.Update != nil {
		update := actions.Update
		wrapped.Update = func(ctx context.Context, id EntityIDString, data Record) EntityResponse {
			return AdaptEntity(update(ctx, id, data), transform)
		}
	}

	if actions.Delete != nil {
		deleteFn := actions.Delete
		wrapped.Delete = func(ctx context.Context, id EntityIDString) EntityResponse {
			return AdaptEntity(deleteFn(ctx, id), transform)
		}
	}

	return wrapped
}
