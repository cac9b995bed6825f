package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/resgate/internal/ir"
	"github.com/roach88/resgate/internal/testutil"
)

// createTestStore opens a store in a temp dir with sequential ids and the
// User schema migrated.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(testutil.NewSequenceIDs("user")))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Migrate(context.Background(), userSchema()))
	return s
}

func userSchema() *ir.ResourceSchema {
	return &ir.ResourceSchema{
		Name: "User",
		Fields: []ir.FieldSpec{
			{Name: "id", Type: "string", PrimaryKey: true},
			{Name: "first_name", Type: "string", Default: ir.IRString("fred")},
			{Name: "last_name", Type: "string", AllowNil: true},
			{Name: "age", Type: "int", AllowNil: true},
			{Name: "active", Type: "bool", Default: ir.IRBool(true)},
			{Name: "tags", Type: "array", AllowNil: true},
			{Name: "profile", Type: "object", AllowNil: true},
		},
	}
}
