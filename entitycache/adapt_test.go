package entitycache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func dropFirstTransform(items []Record) []Record {
	if len(items) == 0 {
		return items
	}

	return items[1:]
}

func Test_AdaptCollection_PreservesUpstreamTotal(t *testing.T) {
	response := CollectionResponse{
		Success: true,
		Items:   []Record{{"_id": "1"}, {"_id": "2"}, {"_id": "3"}},
		Total:   50,
	}

	adapted := AdaptCollection(response, dropFirstTransform)

	assert.Len(t, adapted.Items, 2)
	assert.Equal(t, 50, adapted.Total, "dropping items must not shrink the upstream total")
}

func Test_AdaptCollection_FallsBackToLengthWhenNoTotal(t *testing.T) {
	response := CollectionResponse{
		Success: true,
		Items:   []Record{{"_id": "1"}, {"_id": "2"}},
	}

	adapted := AdaptCollection(response, nil)

	assert.Equal(t, 2, adapted.Total)
}

func Test_AdaptCollection_PanickingTransformDegradesToFailure(t *testing.T) {
	response := CollectionResponse{Success: true, Items: []Record{{"_id": "1"}}, Total: 1}

	adapted := AdaptCollection(response, func([]Record) []Record {
		panic("transform exploded")
	})

	assert.False(t, adapted.Success)
	assert.Empty(t, adapted.Items)
	assert.Contains(t, adapted.Error, ErrResponseAdaptFailed.Error())
}

func Test_AdaptPaginated_KeepsQueryDescribingFields(t *testing.T) {
	response := BuildPaginatedResponse([]Record{{"_id": "1"}, {"_id": "2"}}, 40, 2, 10)

	adapted := AdaptPaginated(response, dropFirstTransform)

	assert.Equal(t, 2, adapted.Page)
	assert.Equal(t, 10, adapted.Limit)
	assert.Equal(t, 4, adapted.TotalPages)
	assert.True(t, adapted.HasMore)
	assert.Equal(t, 40, adapted.Total)
	assert.Len(t, adapted.Items, 1)
}

func Test_AdaptPaginated_RecomputesEmptyFromTransformedItems(t *testing.T) {
	response := BuildPaginatedResponse([]Record{{"_id": "1"}}, 1, 1, 10)

	adapted := AdaptPaginated(response, func([]Record) []Record { return nil })

	assert.True(t, adapted.Empty)
}

func Test_AdaptEntity_NilDataMeansFailure(t *testing.T) {
	adapted := AdaptEntity(EntityResponse{Success: true}, nil)

	assert.False(t, adapted.Success)
}

func Test_AdaptEntity_TransformDroppingRecordMeansFailure(t *testing.T) {
	response := EntityResponse{Success: true, Data: Record{"_id": "1"}}

	adapted := AdaptEntity(response, func([]Record) []Record { return nil })

	assert.False(t, adapted.Success)
	assert.Nil(t, adapted.Data)
}

func Test_AdaptEntity_TransformsData(t *testing.T) {
	response := EntityResponse{Success: true, Data: Record{"_id": "1"}}

	adapted := AdaptEntity(response, func(items []Record) []Record {
		items[0]["derived"] = true
		return items
	})

	assert.True(t, adapted.Success)
	assert.Equal(t, true, adapted.Data["derived"])
}

func Test_AdaptResponse_DispatchesByShape(t *testing.T) {
	paginated := AdaptResponse(BuildPaginatedResponse(nil, 0, 1, 10), nil)
	assert.IsType(t, PaginatedResponse{}, paginated)

	collection := AdaptResponse(CollectionResponse{Items: []Record{{"_id": "1"}}}, nil)
	assert.IsType(t, CollectionResponse{}, collection)

	entity := AdaptResponse(EntityResponse{Success: true, Data: Record{"_id": "1"}}, nil)
	assert.IsType(t, EntityResponse{}, entity)
}
