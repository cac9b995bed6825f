package calc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/roach88/resgate/internal/ir"
)

func fullNameSpec() ir.CalculationSpec {
	return ir.CalculationSpec{
		Name:        "full_name",
		Calculation: "full_name",
		Expr:        "${first_name}${separator}${last_name}",
		Returns:     "string",
		Fields:      []string{"first_name", "last_name"},
		Arguments: []ir.ArgumentSpec{
			{Name: "separator", Type: "string", Default: ir.IRString(" ")},
		},
	}
}

func TestEvaluate_DefaultSeparator(t *testing.T) {
	e := New()

	got, err := e.Evaluate(context.Background(), fullNameSpec(), ir.IRObject{
		"first_name": ir.IRString("Zach"),
		"last_name":  ir.IRString("Daniel"),
	})
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("Zach Daniel"), got)
}

func TestEvaluate_ExplicitSeparator(t *testing.T) {
	e := New()

	got, err := e.Evaluate(context.Background(), fullNameSpec(), ir.IRObject{
		"first_name": ir.IRString("Zach"),
		"last_name":  ir.IRString("Daniel"),
		"separator":  ir.IRString("-"),
	})
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("Zach-Daniel"), got)
}

func TestEvaluate_MissingFieldIsValidationFailure(t *testing.T) {
	e := New()

	_, err := e.Evaluate(context.Background(), fullNameSpec(), ir.IRObject{
		"first_name": ir.IRString("Zach"),
	})
	require.Error(t, err)
	assert.True(t, ir.IsValidation(err))

	var irErr *ir.Error
	require.ErrorAs(t, err, &irErr)
	assert.Equal(t, []ir.FieldError{{Field: "last_name", Message: "is required"}}, irErr.Fields)
}

func TestEvaluate_RequiredArgument(t *testing.T) {
	e := New()
	spec := ir.CalculationSpec{
		Name:      "greeting",
		Expr:      "Hello, ${name}!",
		Returns:   "string",
		Arguments: []ir.ArgumentSpec{{Name: "name", Type: "string"}},
	}

	_, err := e.Evaluate(context.Background(), spec, ir.IRObject{})
	assert.True(t, ir.IsValidation(err))

	got, err := e.Evaluate(context.Background(), spec, ir.IRObject{"name": ir.IRString("fred")})
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("Hello, fred!"), got)
}

func TestEvaluate_ArgumentTypeMismatch(t *testing.T) {
	e := New()

	_, err := e.Evaluate(context.Background(), fullNameSpec(), ir.IRObject{
		"first_name": ir.IRString("Zach"),
		"last_name":  ir.IRString("Daniel"),
		"separator":  ir.IRInt(1),
	})
	require.Error(t, err)
	assert.True(t, ir.IsValidation(err))
}

func TestEvaluate_NullableArgumentBindsNull(t *testing.T) {
	e := New()
	spec := ir.CalculationSpec{
		Name:      "nickname_or_name",
		Expr:      `${coalesce(nickname, name)}`,
		Returns:   "string",
		Arguments: []ir.ArgumentSpec{{Name: "nickname", Type: "string", AllowNil: true}},
		Fields:    []string{"name"},
	}

	got, err := e.Evaluate(context.Background(), spec, ir.IRObject{"name": ir.IRString("fred")})
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("fred"), got)
}

func TestEvaluate_NullFieldInTemplate(t *testing.T) {
	e := New()
	args := ir.IRObject{"first_name": ir.IRString("Zach"), "last_name": ir.IRNull{}}

	_, err := e.Evaluate(context.Background(), fullNameSpec(), args)
	require.Error(t, err)
	assert.True(t, ir.IsValidation(err))
	assert.Equal(t, ir.ErrCodeValidation, ir.CodeOf(err))

	var irErr *ir.Error
	require.ErrorAs(t, err, &irErr)
	assert.Equal(t, []ir.FieldError{{Field: "last_name", Message: "is null"}}, irErr.Fields)

	handled := fullNameSpec()
	handled.Expr = `${first_name}${separator}${last_name == null ? "?" : last_name}`
	got, err := e.Evaluate(context.Background(), handled, args)
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("Zach ?"), got)
}

func TestEvaluate_Functions(t *testing.T) {
	e := New()

	tests := []struct {
		name    string
		expr    string
		returns string
		args    ir.IRObject
		want    ir.IRValue
	}{
		{"upper", "${upper(name)}", "string", ir.IRObject{"name": ir.IRString("fred")}, ir.IRString("FRED")},
		{"join", `${join(", ", tags)}`, "string",
			ir.IRObject{"tags": ir.IRArray{ir.IRString("a"), ir.IRString("b")}}, ir.IRString("a, b")},
		{"length", "${length(tags)}", "int",
			ir.IRObject{"tags": ir.IRArray{ir.IRString("a"), ir.IRString("b")}}, ir.IRInt(2)},
		{"arithmetic", "${age + 1}", "int", ir.IRObject{"age": ir.IRInt(41)}, ir.IRInt(42)},
		{"bool", "${age >= 18}", "bool", ir.IRObject{"age": ir.IRInt(41)}, ir.IRBool(true)},
		{"int to string", "${age}", "string", ir.IRObject{"age": ir.IRInt(7)}, ir.IRString("7")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := ir.CalculationSpec{Name: tt.name, Expr: tt.expr, Returns: tt.returns}
			got, err := e.Evaluate(context.Background(), spec, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_CustomFunction(t *testing.T) {
	shout := function.New(&function.Spec{
		Params: []function.Parameter{{Name: "s", Type: cty.String}},
		Type:   function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			return cty.StringVal(args[0].AsString() + "!"), nil
		},
	})
	e := New(WithFunction("shout", shout))

	got, err := e.Evaluate(context.Background(),
		ir.CalculationSpec{Name: "s", Expr: "${shout(x)}", Returns: "string"},
		ir.IRObject{"x": ir.IRString("hi")})
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("hi!"), got)
}

func TestEvaluate_RuntimeErrors(t *testing.T) {
	e := New()

	tests := []struct {
		name    string
		expr    string
		returns string
	}{
		{"parse error", "${", "string"},
		{"unknown variable", "${nope}", "string"},
		{"fractional result", "${10 / 4}", "int"},
		{"bad conversion", "${[1, 2]}", "bool"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Evaluate(context.Background(),
				ir.CalculationSpec{Name: tt.name, Expr: tt.expr, Returns: tt.returns}, ir.IRObject{})
			require.Error(t, err)
			assert.Equal(t, ir.ErrCodeRuntime, ir.CodeOf(err))
		})
	}
}

func TestEvaluate_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Evaluate(ctx, fullNameSpec(), ir.IRObject{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVariables(t *testing.T) {
	expr, err := Parse("t", "${a} and ${b.c} and ${upper(a)}")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, Variables(expr))
}

func TestParse_Error(t *testing.T) {
	_, err := Parse("broken", "${")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse broken")
}
