package fixtures

import (
	"time"

	"github.com/schooldash/entity-cache-go/entitycache"
)

// StudentEntityType is the entity type used by the student fixtures.
const StudentEntityType = "students"

// StudentSortFields is the sort allow-list matching the student contract.
var StudentSortFields = []string{"createdAt", "updatedAt", "name", "grade"}

// StudentContract builds the validation contract for the student entity type.
func StudentContract() entitycache.Contract {
	contract, err := entitycache.BuildContract(StudentEntityType,
		entitycache.FieldSpec{Name: "name", Kind: entitycache.KindString},
		entitycache.FieldSpec{Name: "grade", Kind: entitycache.KindInt},
		entitycache.FieldSpec{Name: "email", Kind: entitycache.KindString, Optional: true},
	)
	if err != nil {
		panic(err)
	}

	return contract
}

// StudentTransformer builds a transformer over the student contract.
func StudentTransformer(options ...entitycache.TransformerOption) entitycache.Transformer {
	transformer, err := entitycache.NewTransformer(StudentContract(), options...)
	if err != nil {
		panic(err)
	}

	return transformer
}

// RawStudentDocument builds a raw document the way the document store returns
// it: Mongo-style id, JSON-typed values, RFC 3339 timestamp strings.
func RawStudentDocument(id string, name string, grade int) map[string]any {
	return map[string]any{
		"_id":       id,
		"name":      name,
		"grade":     float64(grade),
		"createdAt": "2024-09-01T10:00:00Z",
		"updatedAt": "2024-09-02T10:00:00Z",
	}
}

// StudentRecord builds a normalized student record as it looks after passing
// the transformation pipeline.
func StudentRecord(id string, name string, grade int) entitycache.Record {
	createdAt, _ := time.Parse(time.RFC3339, "2024-09-01T10:00:00Z")
	updatedAt, _ := time.Parse(time.RFC3339, "2024-09-02T10:00:00Z")

	return entitycache.Record{
		"_id":       id,
		"id":        id,
		"name":      name,
		"grade":     grade,
		"createdAt": createdAt,
		"updatedAt": updatedAt,
	}
}

// StudentPage builds a successful paginated response holding the given records.
func StudentPage(page, limit, total int, items ...entitycache.Record) entitycache.PaginatedResponse {
	return entitycache.BuildPaginatedResponse(items, total, page, limit)
}
