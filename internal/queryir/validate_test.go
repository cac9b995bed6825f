package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/resgate/internal/ir"
)

func TestValidate_ValidQuery(t *testing.T) {
	query := Select{
		From:   "User",
		Fields: []string{"id", "first_name", "age"},
		Filter: And{Predicates: []Predicate{
			Equals{Field: "first_name", Value: ir.IRString("fred")},
			Equals{Field: "age", Value: ir.IRNull{}},
		}},
		Limit: 2,
	}

	result := Validate(query, userSchema())

	assert.True(t, result.OK())
	assert.Empty(t, result.Errors)
	assert.NoError(t, result.Err())
}

func TestValidate_PointerQuery(t *testing.T) {
	query := &Select{
		From:   "User",
		Fields: []string{"id"},
		Filter: &Equals{Field: "id", Value: ir.IRString("u1")},
	}

	assert.True(t, Validate(query, userSchema()).OK())
}

func TestValidate_UnknownFields(t *testing.T) {
	query := Select{
		From:   "User",
		Fields: []string{"id", "nickname"},
		Filter: Equals{Field: "email", Value: ir.IRString("x")},
	}

	result := Validate(query, userSchema())

	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], `unknown field "nickname"`)
	assert.Contains(t, result.Errors[1], `unknown field "email" in filter`)
}

func TestValidate_TypeMismatch(t *testing.T) {
	query := Select{
		From:   "User",
		Fields: []string{"id"},
		Filter: Equals{Field: "age", Value: ir.IRString("three")},
	}

	result := Validate(query, userSchema())

	require.Len(t, result.Errors, 1)
	assert.Equal(t, `filter on "age": expected int, got string`, result.Errors[0])

	err := result.Err()
	require.Error(t, err)
	assert.True(t, ir.IsValidation(err))
}

func TestValidate_Structure(t *testing.T) {
	tests := []struct {
		name    string
		query   Query
		wantErr string
	}{
		{"nil query", nil, "nil query"},
		{"wrong resource", Select{From: "Post", Fields: []string{"id"}}, `query reads "Post"`},
		{"empty fields", Select{From: "User"}, "empty field list"},
		{"negative limit", Select{From: "User", Fields: []string{"id"}, Limit: -1}, "negative limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.query, userSchema())
			require.False(t, result.OK())
			assert.Contains(t, result.Errors[0], tt.wantErr)
		})
	}
}

func TestValidate_NilSchema(t *testing.T) {
	result := Validate(Select{From: "User", Fields: []string{"id"}}, nil)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "no schema")
}
