package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/resgate/internal/ir"
	"github.com/roach88/resgate/internal/querysql"
)

// Create inserts a new record.
//
// Field defaults are applied to absent attributes, and a string primary key
// that was not supplied is generated. The complete attribute set is validated
// before anything is written; invalid input is a VALIDATION_FAILED error.
func (s *Store) Create(ctx context.Context, resource string, input ir.IRObject) (ir.Record, error) {
	schema, err := s.schemaFor(resource)
	if err != nil {
		return ir.Record{}, err
	}

	attrs := schema.ApplyDefaults(input)
	pk := schema.PrimaryKey()[0]
	if _, ok := attrs[pk]; !ok {
		if field, _ := schema.Field(pk); field.Type == "string" {
			id, err := s.ids.NewID()
			if err != nil {
				return ir.Record{}, fmt.Errorf("create %s: %w", resource, err)
			}
			attrs[pk] = ir.IRString(id)
		}
	}
	if errs := schema.ValidateAttributes(attrs, true); len(errs) > 0 {
		return ir.Record{}, ir.NewValidationError(errs...)
	}

	// Every declared field is stored; absent nullable fields are null.
	for _, f := range schema.Fields {
		if _, ok := attrs[f.Name]; !ok {
			attrs[f.Name] = ir.IRNull{}
		}
	}

	cols := make([]string, len(schema.Fields))
	marks := make([]string, len(schema.Fields))
	params := make([]any, len(schema.Fields))
	for i, f := range schema.Fields {
		cols[i] = querysql.QuoteIdent(f.Name)
		marks[i] = "?"
		params[i], err = encodeValue(attrs[f.Name])
		if err != nil {
			return ir.Record{}, fmt.Errorf("create %s: field %s: %w", resource, f.Name, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ir.Record{}, fmt.Errorf("create %s: begin tx: %w", resource, err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		querysql.QuoteIdent(resource), strings.Join(cols, ", "), strings.Join(marks, ", ")), params...)
	if err != nil {
		if isConstraintError(err) {
			return ir.Record{}, ir.NewValidationError(ir.FieldError{Field: pk, Message: "has already been taken"})
		}
		return ir.Record{}, fmt.Errorf("create %s: insert: %w", resource, err)
	}

	if err := tx.Commit(); err != nil {
		return ir.Record{}, fmt.Errorf("create %s: commit: %w", resource, err)
	}

	s.logger.Debug("record created", "resource", resource, "key", ir.ToGo(attrs[pk]))
	return ir.Record{Resource: resource, Attributes: attrs}, nil
}

// Update applies changes to an existing record and returns the stored result.
//
// Only the supplied attributes are validated and written. The primary key
// cannot change. Returns NOT_FOUND if the record no longer exists.
func (s *Store) Update(ctx context.Context, rec ir.Record, changes ir.IRObject) (ir.Record, error) {
	schema, err := s.schemaFor(rec.Resource)
	if err != nil {
		return ir.Record{}, err
	}

	pk := schema.PrimaryKey()[0]
	key, ok := rec.Get(pk)
	if !ok || ir.IsNull(key) {
		return ir.Record{}, ir.NewValidationError(ir.FieldError{Field: pk, Message: "record has no primary key"})
	}

	errs := schema.ValidateAttributes(changes, false)
	if v, ok := changes[pk]; ok && !ir.Equal(v, key) {
		errs = append(errs, ir.FieldError{Field: pk, Message: "cannot be changed"})
	}
	if len(errs) > 0 {
		return ir.Record{}, ir.NewValidationError(errs...)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ir.Record{}, fmt.Errorf("update %s: begin tx: %w", rec.Resource, err)
	}
	defer tx.Rollback() // No-op if committed

	keyParam, err := encodeValue(key)
	if err != nil {
		return ir.Record{}, fmt.Errorf("update %s: key: %w", rec.Resource, err)
	}

	if len(changes) > 0 {
		var sets []string
		var params []any
		for _, name := range changes.SortedKeys() {
			p, err := encodeValue(changes[name])
			if err != nil {
				return ir.Record{}, fmt.Errorf("update %s: field %s: %w", rec.Resource, name, err)
			}
			sets = append(sets, querysql.QuoteIdent(name)+" = ?")
			params = append(params, p)
		}
		params = append(params, keyParam)

		result, err := tx.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
			querysql.QuoteIdent(rec.Resource), strings.Join(sets, ", "), querysql.QuoteIdent(pk)), params...)
		if err != nil {
			return ir.Record{}, fmt.Errorf("update %s: %w", rec.Resource, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return ir.Record{}, fmt.Errorf("update %s: rows affected: %w", rec.Resource, err)
		}
		if n == 0 {
			return ir.Record{}, ir.NewNotFound(rec.Resource, "update")
		}
	}

	fields := schema.FieldNames()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = querysql.QuoteIdent(f)
	}
	row := tx.QueryRowContext(ctx, fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
		strings.Join(cols, ", "), querysql.QuoteIdent(rec.Resource), querysql.QuoteIdent(pk)), keyParam)
	updated, err := scanRecord(row, schema, fields)
	if err != nil {
		if isNoRows(err) {
			return ir.Record{}, ir.NewNotFound(rec.Resource, "update")
		}
		return ir.Record{}, err
	}

	if err := tx.Commit(); err != nil {
		return ir.Record{}, fmt.Errorf("update %s: commit: %w", rec.Resource, err)
	}

	s.logger.Debug("record updated", "resource", rec.Resource, "key", ir.ToGo(key), "fields", len(changes))
	return updated, nil
}

// WriteRequest journals a request.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) WriteRequest(ctx context.Context, req JournalRequest) error {
	argsJSON, err := marshalArgs(req.Args)
	if err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO journal_requests
		(id, kind, resource, target, interface, actor_id, tenant, args, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		req.ID,
		req.Kind,
		req.Resource,
		req.Target,
		req.Interface,
		req.ActorID,
		req.Tenant,
		argsJSON,
		req.Seq,
	)
	if err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	return nil
}

// WriteOutcome journals the outcome of a request.
// Each request has at most one outcome; a second write is silently ignored.
//
// Note: The request referenced by RequestID must exist (foreign key constraint).
func (s *Store) WriteOutcome(ctx context.Context, out JournalOutcome) error {
	valueJSON, err := marshalValue(out.Value)
	if err != nil {
		return fmt.Errorf("write outcome: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO journal_outcomes
		(id, request_id, outcome_case, value, error_code, error_message, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		out.ID,
		out.RequestID,
		out.Case,
		valueJSON,
		string(out.ErrorCode),
		out.ErrorMessage,
		out.Seq,
	)
	if err != nil {
		return fmt.Errorf("write outcome: %w", err)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isConstraintError reports a UNIQUE or PRIMARY KEY violation.
func isConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
