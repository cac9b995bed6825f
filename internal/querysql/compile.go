package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/resgate/internal/ir"
	"github.com/roach88/resgate/internal/queryir"
)

// SQLCompiler compiles query IR to parameterized SQL for SQLite.
//
// Every query includes ORDER BY on the resource's primary key so results are
// deterministic. All values are parameterized, never interpolated.
type SQLCompiler struct {
	// PrimaryKeys maps resource name to its primary-key column.
	// Resources without an entry order by "id".
	PrimaryKeys map[string]string
}

// NewSQLCompiler creates a compiler that orders each resource by the
// primary key of its schema.
func NewSQLCompiler(schemas ...*ir.ResourceSchema) *SQLCompiler {
	keys := make(map[string]string, len(schemas))
	for _, s := range schemas {
		if pk := s.PrimaryKey(); len(pk) > 0 {
			keys[s.Name] = pk[0]
		}
	}
	return &SQLCompiler{PrimaryKeys: keys}
}

// Compile converts a query to parameterized SQL.
// Returns (sql, params, error) tuple.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	if q.From == "" {
		return "", nil, fmt.Errorf("select without resource")
	}
	if len(q.Fields) == 0 {
		return "", nil, fmt.Errorf("select from %s: empty field list", q.From)
	}

	cols := make([]string, len(q.Fields))
	for i, f := range q.Fields {
		cols[i] = QuoteIdent(f)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(cols, ", "), QuoteIdent(q.From))

	var params []any
	if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(filterSQL)
		params = filterParams
	}

	b.WriteString(" ORDER BY ")
	b.WriteString(c.stableOrderKey(q.From))

	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, int64(q.Limit))
	}

	return b.String(), params, nil
}

// stableOrderKey returns the ORDER BY clause for a resource.
// COLLATE BINARY keeps text ordering identical across SQLite versions.
func (c *SQLCompiler) stableOrderKey(resource string) string {
	pk, ok := c.PrimaryKeys[resource]
	if !ok {
		pk = "id"
	}
	return QuoteIdent(pk) + " ASC COLLATE BINARY"
}

func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	if p == nil {
		return "1 = 1", nil, nil
	}

	switch pred := p.(type) {
	case queryir.Equals:
		return c.compileEquals(pred)
	case *queryir.Equals:
		return c.compileEquals(*pred)
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileEquals compiles an Equals predicate to "field = ?".
// A null value compiles to "field = NULL", which matches no row.
func (c *SQLCompiler) compileEquals(eq queryir.Equals) (string, []any, error) {
	param, err := ParamValue(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("field %s: %w", eq.Field, err)
	}
	return QuoteIdent(eq.Field) + " = ?", []any{param}, nil
}

func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	var sqlParts []string
	var allParams []any
	for _, pred := range and.Predicates {
		sql, params, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		if _, nested := pred.(queryir.And); nested && len(and.Predicates) > 1 {
			sql = "(" + sql + ")"
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}

	return strings.Join(sqlParts, " AND "), allParams, nil
}

// QuoteIdent quotes an SQLite identifier, doubling embedded quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ParamValue converts an ir.IRValue to a Go value usable as an SQL parameter.
// Arrays and objects are stored as canonical JSON text, so they compare by
// their canonical encoding.
func ParamValue(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case nil, ir.IRNull:
		return nil, nil
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	case ir.IRArray, ir.IRObject:
		b, err := ir.MarshalCanonical(val)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		return nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}
