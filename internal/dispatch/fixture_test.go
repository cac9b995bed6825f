package dispatch

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/resgate/internal/calc"
	"github.com/roach88/resgate/internal/ir"
	"github.com/roach88/resgate/internal/request"
	"github.com/roach88/resgate/internal/store"
	"github.com/roach88/resgate/internal/testutil"
)

// userSchema declares one interface per entry point shape the tests exercise.
func userSchema() *ir.ResourceSchema {
	return &ir.ResourceSchema{
		Name: "User",
		Fields: []ir.FieldSpec{
			{Name: "id", Type: "string", PrimaryKey: true, Public: true},
			{Name: "first_name", Type: "string", Default: ir.IRString("fred"), Public: true},
			{Name: "last_name", Type: "string", AllowNil: true, Public: true},
			{Name: "age", Type: "int", AllowNil: true},
		},
		Actions: map[string]ir.ActionSpec{
			"read": {Name: "read", Kind: ir.ActionRead},
			"lookup": {
				Name: "lookup", Kind: ir.ActionRead,
				GetBy: []string{"id"}, NotFoundError: Bool(false),
			},
			"by_name": {
				Name: "by_name", Kind: ir.ActionRead,
				Arguments: []ir.ArgumentSpec{{Name: "name", Type: "string"}},
				Filter:    map[string]string{"first_name": "name"},
			},
			"create": {
				Name: "create", Kind: ir.ActionCreate,
				Accept: []string{"first_name", "last_name", "age"},
			},
			"update": {
				Name: "update", Kind: ir.ActionUpdate,
				Accept: []string{"first_name", "last_name"},
			},
			"greet": {
				Name: "greet", Kind: ir.ActionGeneric,
				Arguments: []ir.ArgumentSpec{
					{Name: "name", Type: "string"},
					{Name: "greeting", Type: "string", Default: ir.IRString("hello")},
				},
				Requires: []string{"User.greet"},
				Returns:  "string",
			},
		},
		Calculations: map[string]ir.CalculationSpec{
			"full_name": {
				Name:    "full_name",
				Expr:    "${first_name}${separator}${last_name}",
				Returns: "string",
				Fields:  []string{"first_name", "last_name"},
				Arguments: []ir.ArgumentSpec{
					{Name: "separator", Type: "string", Default: ir.IRString(" ")},
				},
			},
		},
		Interfaces: map[string]ir.InterfaceDefinition{
			"create_user": {Target: "create", Args: []ir.InterfaceArg{{Name: "first_name", Optional: true}}},
			"get_user":    {Target: "read", GetBy: []string{"id"}},
			"get_user_safely": {
				Target: "read", GetBy: []string{"id"}, NotFoundError: Bool(false),
			},
			"get_user_by_first_name": {Target: "read", GetBy: []string{"first_name"}},
			"lookup_user":            {Target: "lookup"},
			"list_users":             {Target: "read"},
			"find_by_name":           {Target: "by_name", Args: []ir.InterfaceArg{{Name: "name", Optional: true}}},
			"update_user": {
				Target: "update",
				Args:   []ir.InterfaceArg{{Name: "first_name", Optional: true}, {Name: "last_name", Optional: true}},
			},
			"greet": {Target: "greet", Args: []ir.InterfaceArg{{Name: "name"}, {Name: "greeting", Optional: true}}},
			"full_name": {
				Target: "full_name", Calculation: true,
				Args: []ir.InterfaceArg{{Name: "first_name"}, {Name: "last_name"}, {Name: "separator", Optional: true}},
			},
			"full_name_of": {
				Target: "full_name", Calculation: true,
				Args: []ir.InterfaceArg{{Name: ir.RecordArgument}, {Name: "separator", Optional: true}},
			},
		},
	}
}

func greetHandler(_ context.Context, in *request.ActionInput) (ir.IRValue, error) {
	greeting := in.Arguments["greeting"].(ir.IRString)
	name := in.Arguments["name"].(ir.IRString)
	return ir.IRString(string(greeting) + " " + string(name)), nil
}

type fixture struct {
	store *store.Store
	d     *Dispatcher
}

// newFixture opens a migrated temp-dir store and a dispatcher over it.
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	schema := userSchema()

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), store.WithIDGenerator(testutil.NewSequenceIDs("user")))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background(), schema))

	base := []Option{
		WithBackend(s),
		WithEvaluator(calc.New()),
		WithHandler("User", "greet", greetHandler),
		WithClock(testutil.NewDeterministicClock()),
	}
	d, err := New([]*ir.ResourceSchema{schema}, append(base, opts...)...)
	require.NoError(t, err)
	return &fixture{store: s, d: d}
}

// journaled builds a second dispatcher over the fixture store that also
// writes the request journal.
func (f *fixture) journaled(t *testing.T) *Dispatcher {
	t.Helper()
	d, err := New([]*ir.ResourceSchema{userSchema()},
		WithBackend(f.store),
		WithEvaluator(calc.New()),
		WithJournal(f.store),
		WithClock(testutil.NewDeterministicClock()),
	)
	require.NoError(t, err)
	return d
}

func (f *fixture) entry(t *testing.T, name string) *Entry {
	t.Helper()
	e, err := f.d.Entry("User", name)
	require.NoError(t, err)
	return e
}

// createUser inserts a user directly through the store.
func (f *fixture) createUser(t *testing.T, attrs ir.IRObject) ir.Record {
	t.Helper()
	rec, err := f.store.Create(context.Background(), "User", attrs)
	require.NoError(t, err)
	return rec
}

func values(vs ...ir.IRValue) []ir.IRValue {
	return vs
}

func str(s string) ir.IRValue {
	return ir.IRString(s)
}
