package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/resgate/internal/ir"
	"github.com/roach88/resgate/internal/request"
)

// newDispatcher builds a dispatcher without a backend; enough for binding
// and building.
func newDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	d, err := New([]*ir.ResourceSchema{userSchema()})
	require.NoError(t, err)
	return d
}

func TestBind_Positional(t *testing.T) {
	d := newDispatcher(t)
	entry, err := d.Entry("User", "full_name")
	require.NoError(t, err)

	b, err := entry.Bind(values(str("Zach"), str("Daniel")), Options{Tenant: "acme"})
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{"first_name": str("Zach"), "last_name": str("Daniel")}, b.Args,
		"optional separator is absent, not null")
	assert.Equal(t, "User", b.Resource)
	assert.Equal(t, "full_name", b.Interface)
	assert.Equal(t, "full_name", b.Target)
	assert.Equal(t, "acme", b.Options.Tenant)
	assert.Nil(t, b.Record)
}

func TestBind_ExplicitNull(t *testing.T) {
	d := newDispatcher(t)
	entry, err := d.Entry("User", "create_user")
	require.NoError(t, err)

	b, err := entry.Bind(values(ir.IRNull{}), Options{})
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{"first_name": ir.IRNull{}}, b.Args)
}

func TestBind_WholeRecordConsumesOneSlot(t *testing.T) {
	d := newDispatcher(t)
	entry, err := d.Entry("User", "full_name_of")
	require.NoError(t, err)

	rec := ir.Record{Resource: "User", Attributes: ir.IRObject{
		"id":         str("user-0001"),
		"first_name": str("Zach"),
		"last_name":  str("Daniel"),
		"age":        ir.IRInt(30),
	}}
	b, err := entry.Bind(values(rec, str("-")), Options{})
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{
		"first_name": str("Zach"),
		"last_name":  str("Daniel"),
		"separator":  str("-"),
	}, b.Args, "only referenced fields are extracted")
	require.NotNil(t, b.Record)
	assert.Equal(t, rec, *b.Record)

	_, err = entry.Bind(values(ir.Record{Resource: "Post"}), Options{})
	assert.True(t, ir.IsValidation(err))

	_, err = entry.Bind(values(rec, str("-"), str("extra")), Options{})
	assert.Equal(t, ir.ErrCodeTooManyArguments, ir.CodeOf(err))
}

func TestBind_UpdateTakesRecordFirst(t *testing.T) {
	d := newDispatcher(t)
	entry, err := d.Entry("User", "update_user")
	require.NoError(t, err)

	rec := ir.Record{Resource: "User", Attributes: ir.IRObject{"id": str("user-0001")}}
	b, err := entry.Bind(values(rec, str("ann")), Options{})
	require.NoError(t, err)
	require.NotNil(t, b.Record)
	assert.Equal(t, rec, *b.Record)
	assert.Equal(t, ir.IRObject{"first_name": str("ann")}, b.Args)

	_, err = entry.Bind(nil, Options{})
	assert.Equal(t, ir.ErrCodeMissingArgument, ir.CodeOf(err))
	assert.ErrorContains(t, err, `"record"`)
}

func TestBuild_MutationSplitsInputFromArguments(t *testing.T) {
	schema := userSchema()
	action := schema.Actions["create"]
	action.Arguments = []ir.ArgumentSpec{{Name: "notify", Type: "bool", Default: ir.IRBool(true)}}
	schema.Actions["create"] = action
	schema.Interfaces["create_user"] = ir.InterfaceDefinition{
		Target: "create",
		Args:   []ir.InterfaceArg{{Name: "first_name"}, {Name: "notify", Optional: true}},
	}
	d, err := New([]*ir.ResourceSchema{schema})
	require.NoError(t, err)
	entry, err := d.Entry("User", "create_user")
	require.NoError(t, err)

	req, err := entry.Build(context.Background(), values(str("joe")), Options{Action: ir.IRObject{"upsert?": ir.IRBool(true)}})
	require.NoError(t, err)

	meta := req.Meta()
	assert.Equal(t, ir.IRObject{"notify": ir.IRBool(true)}, meta.Arguments, "argument defaults applied")
	assert.Equal(t, ir.IRObject{"upsert?": ir.IRBool(true)}, meta.Options)
	m, ok := req.(*request.Mutation)
	require.True(t, ok)
	assert.Equal(t, ir.IRObject{"first_name": str("joe")}, m.Input)
}
