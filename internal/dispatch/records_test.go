package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/resgate/internal/ir"
)

func TestRecordSlots(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, []int{0}, f.entry(t, "update_user").RecordSlots())
	assert.Equal(t, []int{0}, f.entry(t, "full_name_of").RecordSlots())
	assert.Empty(t, f.entry(t, "full_name").RecordSlots())
	assert.Empty(t, f.entry(t, "get_user").RecordSlots())
}

func TestResolveRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.createUser(t, ir.IRObject{"first_name": str("ann")})

	e := f.entry(t, "update_user")

	t.Run("key is fetched", func(t *testing.T) {
		args, err := e.ResolveRecords(ctx, f.store, values(str("user-0001"), str("bea")))
		require.NoError(t, err)
		assert.Equal(t, rec, args[0])
		assert.Equal(t, str("bea"), args[1])
	})

	t.Run("object becomes record", func(t *testing.T) {
		attrs := ir.IRObject{"id": str("x"), "first_name": str("cy")}
		args, err := f.entry(t, "full_name_of").ResolveRecords(ctx, nil, values(attrs))
		require.NoError(t, err)
		assert.Equal(t, ir.Record{Resource: "User", Attributes: attrs}, args[0])
	})

	t.Run("record passes through", func(t *testing.T) {
		args, err := e.ResolveRecords(ctx, nil, values(rec))
		require.NoError(t, err)
		assert.Equal(t, rec, args[0])
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := e.ResolveRecords(ctx, f.store, values(str("missing")))
		assert.True(t, ir.IsNotFound(err))
	})

	t.Run("key without source", func(t *testing.T) {
		_, err := e.ResolveRecords(ctx, nil, values(str("user-0001")))
		assert.Error(t, err)
	})

	t.Run("short argument list", func(t *testing.T) {
		args, err := e.ResolveRecords(ctx, f.store, nil)
		require.NoError(t, err)
		assert.Empty(t, args)
	})
}
