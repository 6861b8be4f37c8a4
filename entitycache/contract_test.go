package entitycache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_BuildContract_ErrorCases(t *testing.T) {
	tests := []struct {
		name        string
		entityType  string
		fields      []FieldSpec
		expectedErr error
	}{
		{
			name:        "empty entity type",
			entityType:  "",
			fields:      []FieldSpec{{Name: "name", Kind: KindString}},
			expectedErr: ErrEmptyEntityType,
		},
		{
			name:        "empty field name",
			entityType:  "students",
			fields:      []FieldSpec{{Name: "", Kind: KindString}},
			expectedErr: ErrEmptyFieldName,
		},
		{
			name:       "duplicate field name",
			entityType: "students",
			fields: []FieldSpec{
				{Name: "name", Kind: KindString},
				{Name: "name", Kind: KindInt},
			},
			expectedErr: ErrDuplicateFieldName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildContract(tt.entityType, tt.fields...)
			assert.ErrorContains(t, err, tt.expectedErr.Error())
		})
	}
}

func Test_ContractValidate_AcceptsValidRecord(t *testing.T) {
	contract, err := BuildContract("students",
		FieldSpec{Name: "name", Kind: KindString},
		FieldSpec{Name: "grade", Kind: KindInt},
	)
	assert.NoError(t, err)

	validated, ok := contract.Validate(Record{"name": "Ada", "grade": 7})

	assert.True(t, ok)
	assert.Equal(t, "Ada", validated["name"])
	assert.Equal(t, 7, validated["grade"])
}

func Test_ContractValidate_CoercesWholeFloatToInt(t *testing.T) {
	contract, err := BuildContract("students", FieldSpec{Name: "grade", Kind: KindInt})
	assert.NoError(t, err)

	validated, ok := contract.Validate(Record{"grade": float64(7)})

	assert.True(t, ok)
	assert.Equal(t, 7, validated["grade"])
}

func Test_ContractValidate_RejectsFractionalFloatForInt(t *testing.T) {
	contract, err := BuildContract("students", FieldSpec{Name: "grade", Kind: KindInt})
	assert.NoError(t, err)

	_, ok := contract.Validate(Record{"grade": 7.5})

	assert.False(t, ok)
}

func Test_ContractValidate_RejectsMissingRequiredField(t *testing.T) {
	contract, err := BuildContract("students", FieldSpec{Name: "name", Kind: KindString})
	assert.NoError(t, err)

	_, ok := contract.Validate(Record{"grade": 7})

	assert.False(t, ok)
}

func Test_ContractValidate_AllowsMissingOptionalField(t *testing.T) {
	contract, err := BuildContract("students",
		FieldSpec{Name: "name", Kind: KindString},
		FieldSpec{Name: "email", Kind: KindString, Optional: true},
	)
	assert.NoError(t, err)

	_, ok := contract.Validate(Record{"name": "Ada"})

	assert.True(t, ok)
}

func Test_ContractValidate_PassesThroughUnlistedFields(t *testing.T) {
	contract, err := BuildContract("students", FieldSpec{Name: "name", Kind: KindString})
	assert.NoError(t, err)

	validated, ok := contract.Validate(Record{"name": "Ada", "extra": "untouched"})

	assert.True(t, ok)
	assert.Equal(t, "untouched", validated["extra"])
}

func Test_ContractValidateStrict_ErrorCases(t *testing.T) {
	contract, buildErr := BuildContract("students",
		FieldSpec{Name: "name", Kind: KindString},
		FieldSpec{Name: "enrolledAt", Kind: KindTime, Optional: true},
	)
	assert.NoError(t, buildErr)

	tests := []struct {
		name        string
		record      Record
		expectedErr error
	}{
		{
			name:        "nil record",
			record:      nil,
			expectedErr: ErrMissingRequiredField,
		},
		{
			name:        "missing required field",
			record:      Record{"enrolledAt": time.Now()},
			expectedErr: ErrMissingRequiredField,
		},
		{
			name:        "wrong type for string field",
			record:      Record{"name": 42},
			expectedErr: ErrWrongFieldType,
		},
		{
			name:        "wrong type for time field",
			record:      Record{"name": "Ada", "enrolledAt": "2024-09-01"},
			expectedErr: ErrWrongFieldType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := contract.ValidateStrict(tt.record)
			assert.ErrorContains(t, err, tt.expectedErr.Error())
		})
	}
}

func Test_ContractValidateStrict_DoesNotMutateInput(t *testing.T) {
	contract, err := BuildContract("students", FieldSpec{Name: "grade", Kind: KindInt})
	assert.NoError(t, err)

	record := Record{"grade": float64(7)}
	_, validateErr := contract.ValidateStrict(record)

	assert.NoError(t, validateErr)
	assert.Equal(t, float64(7), record["grade"])
}
