package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/resgate/internal/ir"
	"github.com/roach88/resgate/internal/queryir"
)

// Query runs a select and returns the matching records ordered by primary key.
// The query is validated against the resource schema first; an invalid query
// is a VALIDATION_FAILED error.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) Query(ctx context.Context, q queryir.Select) ([]ir.Record, error) {
	schema, err := s.schemaFor(q.From)
	if err != nil {
		return nil, err
	}
	if err := queryir.Validate(q, schema).Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	compiler := s.compiler
	s.mu.RUnlock()

	query, params, err := compiler.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("compile query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.From, err)
	}
	defer rows.Close()

	records := []ir.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows, schema, q.Fields)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", q.From, err)
	}

	return records, nil
}

// QueryOne runs a select expected to match at most one record.
// Returns found=false when nothing matches and a MULTIPLE_RESULTS error when
// more than one record does.
func (s *Store) QueryOne(ctx context.Context, q queryir.Select) (rec ir.Record, found bool, err error) {
	q.Limit = 2
	records, err := s.Query(ctx, q)
	if err != nil {
		return ir.Record{}, false, err
	}
	switch len(records) {
	case 0:
		return ir.Record{}, false, nil
	case 1:
		return records[0], true, nil
	default:
		return ir.Record{}, false, ir.NewMultipleResults(q.From, "")
	}
}

// Get reads one record by primary key.
// Returns a NOT_FOUND error if no record has that key.
func (s *Store) Get(ctx context.Context, resource string, key ir.IRValue) (ir.Record, error) {
	schema, err := s.schemaFor(resource)
	if err != nil {
		return ir.Record{}, err
	}
	rec, found, err := s.QueryOne(ctx, queryir.Select{
		From:   resource,
		Fields: schema.FieldNames(),
		Filter: queryir.Equals{Field: schema.PrimaryKey()[0], Value: key},
	})
	if err != nil {
		return ir.Record{}, err
	}
	if !found {
		return ir.Record{}, ir.NewNotFound(resource, "get")
	}
	return rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRecord reads one row whose columns are fields, in order.
func scanRecord(row scanner, schema *ir.ResourceSchema, fields []string) (ir.Record, error) {
	raw := make([]any, len(fields))
	dest := make([]any, len(fields))
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := row.Scan(dest...); err != nil {
		return ir.Record{}, fmt.Errorf("scan %s: %w", schema.Name, err)
	}

	attrs := make(ir.IRObject, len(fields))
	for i, name := range fields {
		field, _ := schema.Field(name)
		v, err := decodeValue(field, raw[i])
		if err != nil {
			return ir.Record{}, fmt.Errorf("decode %s: %w", schema.Name, err)
		}
		attrs[name] = v
	}
	return ir.Record{Resource: schema.Name, Attributes: attrs}, nil
}

// ReadJournal returns journaled requests with their outcomes, ordered by seq.
// A limit of 0 or less returns every entry.
//
// Returns an empty slice (not nil) if the journal is empty.
func (s *Store) ReadJournal(ctx context.Context, limit int) ([]JournalEntry, error) {
	query := `
		SELECT r.id, r.kind, r.resource, r.target, r.interface, r.actor_id, r.tenant, r.args, r.seq,
		       o.id, o.outcome_case, o.value, o.error_code, o.error_message, o.seq
		FROM journal_requests r
		LEFT JOIN journal_outcomes o ON o.request_id = r.id
		ORDER BY r.seq ASC, r.id COLLATE BINARY ASC`
	var params []any
	if limit > 0 {
		query += " LIMIT ?"
		params = append(params, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	entries := []JournalEntry{}
	for rows.Next() {
		entry, err := scanJournalEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

// ReadJournalEntry retrieves one journaled request and its outcome by request id.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadJournalEntry(ctx context.Context, requestID string) (JournalEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT r.id, r.kind, r.resource, r.target, r.interface, r.actor_id, r.tenant, r.args, r.seq,
		       o.id, o.outcome_case, o.value, o.error_code, o.error_message, o.seq
		FROM journal_requests r
		LEFT JOIN journal_outcomes o ON o.request_id = r.id
		WHERE r.id = ?`, requestID)
	entry, err := scanJournalEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return JournalEntry{}, sql.ErrNoRows
	}
	return entry, err
}

// LastSeq returns the highest seq in the journal, 0 when it is empty.
// A process reopening an existing journal resumes its clock from here.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(
			COALESCE((SELECT MAX(seq) FROM journal_requests), 0),
			COALESCE((SELECT MAX(seq) FROM journal_outcomes), 0)
		)`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("read last seq: %w", err)
	}
	return seq, nil
}

func scanJournalEntry(row scanner) (JournalEntry, error) {
	var (
		req      JournalRequest
		argsJSON string

		outID, outCase, outValue, outCode, outMessage sql.NullString
		outSeq                                        sql.NullInt64
	)
	err := row.Scan(
		&req.ID, &req.Kind, &req.Resource, &req.Target, &req.Interface, &req.ActorID, &req.Tenant, &argsJSON, &req.Seq,
		&outID, &outCase, &outValue, &outCode, &outMessage, &outSeq,
	)
	if err != nil {
		return JournalEntry{}, fmt.Errorf("scan journal entry: %w", err)
	}

	req.Args, err = unmarshalArgs(argsJSON)
	if err != nil {
		return JournalEntry{}, err
	}

	entry := JournalEntry{Request: req}
	if outID.Valid {
		value, err := unmarshalValue(outValue.String)
		if err != nil {
			return JournalEntry{}, err
		}
		entry.Outcome = &JournalOutcome{
			ID:           outID.String,
			RequestID:    req.ID,
			Case:         outCase.String,
			Value:        value,
			ErrorCode:    ir.ErrorCode(outCode.String),
			ErrorMessage: outMessage.String,
			Seq:          outSeq.Int64,
		}
	}
	return entry, nil
}
