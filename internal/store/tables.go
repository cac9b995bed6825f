package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/resgate/internal/ir"
	"github.com/roach88/resgate/internal/querysql"
)

// Migrate registers resource schemas with the store and creates their tables.
//
// Existing tables gain columns for fields added since they were created.
// Columns of removed fields are left in place and ignored.
// This function is idempotent.
func (s *Store) Migrate(ctx context.Context, schemas ...*ir.ResourceSchema) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, schema := range schemas {
		if len(schema.PrimaryKey()) != 1 {
			return fmt.Errorf("migrate %s: resource needs exactly one primary key field", schema.Name)
		}
		if _, err := tx.ExecContext(ctx, createTableSQL(schema)); err != nil {
			return fmt.Errorf("migrate %s: create table: %w", schema.Name, err)
		}

		existing, err := tableColumns(ctx, tx, schema.Name)
		if err != nil {
			return fmt.Errorf("migrate %s: %w", schema.Name, err)
		}
		for _, f := range schema.Fields {
			if existing[f.Name] {
				continue
			}
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
				querysql.QuoteIdent(schema.Name), querysql.QuoteIdent(f.Name), columnType(f.Type))
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrate %s: add column %s: %w", schema.Name, f.Name, err)
			}
			s.logger.Info("added column", "resource", schema.Name, "field", f.Name)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, schema := range schemas {
		s.schemas[schema.Name] = schema
	}
	all := make([]*ir.ResourceSchema, 0, len(s.schemas))
	for _, schema := range s.schemas {
		all = append(all, schema)
	}
	s.compiler = querysql.NewSQLCompiler(all...)
	return nil
}

func createTableSQL(schema *ir.ResourceSchema) string {
	cols := make([]string, len(schema.Fields))
	for i, f := range schema.Fields {
		col := querysql.QuoteIdent(f.Name) + " " + columnType(f.Type)
		if f.PrimaryKey {
			col += " PRIMARY KEY"
		}
		cols[i] = col
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)",
		querysql.QuoteIdent(schema.Name), strings.Join(cols, ",\n    "))
}

// columnType maps a field type to its SQLite column type.
func columnType(typ string) string {
	switch typ {
	case "int", "bool":
		return "INTEGER"
	default:
		return "TEXT"
	}
}

// tableColumns returns the set of column names of a table.
func tableColumns(ctx context.Context, tx *sql.Tx, table string) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("table info: %w", err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		cols[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table info: %w", err)
	}
	return cols, nil
}
