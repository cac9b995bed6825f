package queryir

import "github.com/roach88/resgate/internal/ir"

func userSchema() *ir.ResourceSchema {
	return &ir.ResourceSchema{
		Name: "User",
		Fields: []ir.FieldSpec{
			{Name: "id", Type: "string", PrimaryKey: true},
			{Name: "first_name", Type: "string"},
			{Name: "age", Type: "int", AllowNil: true},
		},
	}
}
