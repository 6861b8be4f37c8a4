package entitycache

// Response is the closed set of wire shapes the cache layer stores and adapts:
// plain collections, paginated collections, and single entities.
//
// The marker method is unexported so the set cannot grow outside this package,
// which keeps type switches over Response exhaustive.
type Response interface {
	isResponse()
}

// CollectionResponse is the plain collection shape.
//
// Invariant: len(Items) <= Total, except transiently after lenient validation
// has dropped records (the documented under-reporting limitation).
type CollectionResponse struct {
	Success bool     `json:"success"`
	Items   []Record `json:"items"`
	Total   int      `json:"total"`
	Error   string   `json:"error,omitempty"`
}

func (CollectionResponse) isResponse() {}

// PaginatedResponse extends the collection shape with query-describing pagination metadata.
type PaginatedResponse struct {
	CollectionResponse

	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalPages int  `json:"totalPages"`
	HasMore    bool `json:"hasMore"`
	Empty      bool `json:"empty"`
}

func (PaginatedResponse) isResponse() {}

// EntityResponse is the singular shape. Data is nil exactly when Success is false.
type EntityResponse struct {
	Success bool   `json:"success"`
	Data    Record `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (EntityResponse) isResponse() {}

// TotalPagesFor computes the page count for a total and limit: ceil(total/limit), but at least 1.
func TotalPagesFor(total int, limit int) int {
	if limit < 1 {
		return 1
	}

	pages := (total + limit - 1) / limit
	if pages < 1 {
		return 1
	}

	return pages
}

// BuildPaginatedResponse assembles the paginated envelope around already-transformed items.
func BuildPaginatedResponse(items []Record, total int, page int, limit int) PaginatedResponse {
	totalPages := TotalPagesFor(total, limit)

	return PaginatedResponse{
		CollectionResponse: CollectionResponse{
			Success: true,
			Items:   items,
			Total:   total,
		},
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
		HasMore:    page < totalPages,
		Empty:      len(items) == 0,
	}
}

// FailedPaginatedResponse converts a fetch failure into the success=false paginated envelope.
// Pagination math is zeroed because it describes a query that never completed.
func FailedPaginatedResponse(page int, limit int, cause error) PaginatedResponse {
	return PaginatedResponse{
		CollectionResponse: CollectionResponse{
			Success: false,
			Items:   []Record{},
			Total:   0,
			Error:   cause.Error(),
		},
		Page:       page,
		Limit:      limit,
		TotalPages: 0,
		HasMore:    false,
		Empty:      true,
	}
}

// FailedEntityResponse converts a failure into the success=false entity envelope.
func FailedEntityResponse(cause error) EntityResponse {
	return EntityResponse{
		Success: false,
		Error:   cause.Error(),
	}
}
