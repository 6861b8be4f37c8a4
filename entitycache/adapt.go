package entitycache

import (
	"errors"
	"fmt"
)

var ErrResponseAdaptFailed = errors.New("adapting response failed")

// ItemsTransformFunc is the one transformation shared by all response adapters:
// it maps already-fetched records to validated/derived records, possibly dropping some.
type ItemsTransformFunc func(items []Record) []Record

// AdaptCollection transforms the items of a collection response.
//
// The upstream total is preserved when present; it only falls back to the transformed
// length when the upstream never produced one. A transform failure degrades to a
// success=false response instead of propagating.
func AdaptCollection(response CollectionResponse, transform ItemsTransformFunc) CollectionResponse {
	transformed, err := applyItemsTransform(transform, response.Items)
	if err != nil {
		response.Success = false
		response.Items = []Record{}
		response.Error = err.Error()

		return response
	}

	response.Items = transformed
	if response.Total == 0 {
		response.Total = len(transformed)
	}

	return response
}

// AdaptPaginated transforms the items of a paginated response.
//
// Empty is recomputed from the transformed length; Page, Limit, TotalPages and HasMore
// pass through untouched because they describe the query, not the transformed payload.
func AdaptPaginated(response PaginatedResponse, transform ItemsTransformFunc) PaginatedResponse {
	response.CollectionResponse = AdaptCollection(response.CollectionResponse, transform)
	response.Empty = len(response.Items) == 0

	return response
}

// AdaptEntity transforms the single data record of an entity response.
// Success becomes false if the transformation yields no record, even if the
// upstream response claimed success.
func AdaptEntity(response EntityResponse, transform ItemsTransformFunc) EntityResponse {
	if response.Data == nil {
		response.Success = false
		return response
	}

	transformed, err := applyItemsTransform(transform, []Record{response.Data})
	if err != nil {
		response.Success = false
		response.Data = nil
		response.Error = err.Error()

		return response
	}

	if len(transformed) == 0 {
		response.Success = false
		response.Data = nil

		return response
	}

	response.Data = transformed[0]

	return response
}

// AdaptResponse dispatches to the shape-specific adapter by exhaustive match over
// the closed Response set.
func AdaptResponse(response Response, transform ItemsTransformFunc) Response {
	switch shaped := response.(type) {
	case PaginatedResponse:
		return AdaptPaginated(shaped, transform)

	case CollectionResponse:
		return AdaptCollection(shaped, transform)

	case EntityResponse:
		return AdaptEntity(shaped, transform)

	default:
		// Unreachable while Response stays sealed.
		return response
	}
}

// applyItemsTransform runs the transform, converting panics from user-supplied
// transform functions into errors so no adapter ever throws past the boundary.
func applyItemsTransform(transform ItemsTransformFunc, items []Record) (transformed []Record, err error) {
	if transform == nil {
		return items, nil
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			transformed = nil
			err = errors.Join(ErrResponseAdaptFailed, fmt.Errorf("%v", recovered))
		}
	}()

	return transform(items), nil
}
