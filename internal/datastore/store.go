// ABOUTME: Entity store orchestrating codec, schema mutation and query translation
// ABOUTME: Owns the transaction-handle and query-cursor registries

package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/openprm/datastore/internal/entity"
	"github.com/openprm/datastore/internal/query"
	"github.com/openprm/datastore/internal/schema"
)

// TxHandle references an open transaction. The zero value means "no
// transaction": the operation runs on an ad hoc connection and commits
// implicitly.
type TxHandle int64

// NoTransaction is the TxHandle for non-transactional operations.
const NoTransaction TxHandle = 0

// Store implements the entity operation set on top of a connection pool.
// Entities are value types: results carry no shared mutable state, and every
// entity passed to Put is defensively cloned before it is touched.
type Store struct {
	pool       Pool
	codec      *entity.Codec
	mapper     *schema.Mapper
	translator *query.Translator
	logger     *slog.Logger
	txs        *txRegistry
	cursors    *cursorRegistry
}

// New creates a store over the given pool with the default 1:1 codec.
func New(pool Pool) *Store {
	mapper := schema.NewMapper()
	return &Store{
		pool:       pool,
		codec:      entity.NewCodec(nil),
		mapper:     mapper,
		translator: query.NewTranslator(mapper),
		logger:     slog.Default().With("component", "datastore"),
		txs:        newTxRegistry(),
		cursors:    newCursorRegistry(),
	}
}

// connFor resolves the connection for an operation: the held transactional
// connection when a handle is presented, a fresh pool connection otherwise.
// The second return reports whether the connection is transaction-held and
// must not be released by the operation.
func (s *Store) connFor(ctx context.Context, tx TxHandle) (*sql.Conn, bool, error) {
	if tx == NoTransaction {
		conn, err := s.pool.Acquire(ctx)
		return conn, false, err
	}
	conn, ok := s.txs.get(int64(tx))
	if !ok {
		return nil, false, fmt.Errorf("%w: %d", ErrTransactionNotFound, tx)
	}
	return conn, true, nil
}

// Put writes the entities, creating or extending each kind's table as needed,
// and returns the resulting keys in order. An entity with a resolvable key
// replaces any existing row with that key; an entity with an incomplete key
// receives a storage-assigned integer id. Outside a transaction each row
// commits as it is written, so a mid-sequence failure leaves earlier entities
// stored; use an explicit transaction for all-or-nothing behavior.
func (s *Store) Put(ctx context.Context, tx TxHandle, entities []*entity.Entity) ([]entity.Key, error) {
	// Encode everything up front: a contract violation anywhere aborts the
	// whole Put before a single row is touched.
	clones := make([]*entity.Entity, 0, len(entities))
	encoded := make([]map[string]any, 0, len(entities))
	for _, ent := range entities {
		if ent.Key.Kind == "" {
			return nil, fmt.Errorf("put: entity has no kind")
		}
		clone := ent.Clone()
		values, err := s.codec.Encode(clone)
		if err != nil {
			return nil, fmt.Errorf("encoding entity %s: %w", clone.Key.Kind, err)
		}
		clones = append(clones, clone)
		encoded = append(encoded, values)
	}

	conn, held, err := s.connFor(ctx, tx)
	if err != nil {
		return nil, err
	}
	if !held {
		defer s.pool.Release(conn)
	}

	keys := make([]entity.Key, 0, len(clones))
	for i, clone := range clones {
		if err := s.putOne(ctx, conn, clone, encoded[i]); err != nil {
			return nil, err
		}
		keys = append(keys, clone.Key)
	}
	return keys, nil
}

// putOne writes a single encoded entity: delete-by-key for upsert semantics,
// additive schema migration, insert, and id capture for incomplete keys.
func (s *Store) putOne(ctx context.Context, conn *sql.Conn, clone *entity.Entity, values map[string]any) error {
	table := clone.Key.Kind

	// Replace-by-delete keeps upsert semantics without a SQL UPDATE. The key
	// columns join the inserted values so the row keeps its identity.
	if clone.Key.ID != 0 {
		if _, err := conn.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, entity.ColumnKeyInt),
			clone.Key.ID); err != nil && !isMissingTable(err) {
			return fmt.Errorf("deleting previous row: %w", err)
		}
		values[entity.ColumnKeyInt] = clone.Key.ID
	}
	if clone.Key.HasName() {
		if _, err := conn.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, entity.ColumnKeyString),
			clone.Key.Name); err != nil && !isMissingTable(err) {
			return fmt.Errorf("deleting previous row: %w", err)
		}
		values[entity.ColumnKeyString] = clone.Key.Name
	}

	mutations, err := s.mapper.SuggestMutation(ctx, conn, table, values, true)
	if err != nil {
		return err
	}
	for _, mutation := range mutations {
		if _, err := conn.ExecContext(ctx, mutation); err != nil {
			return fmt.Errorf("mutating schema for %s: %w", table, err)
		}
	}

	result, err := s.insertRow(ctx, conn, table, values)
	if err != nil {
		return fmt.Errorf("inserting into %s: %w", table, err)
	}

	if clone.Key.Incomplete() {
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading assigned id: %w", err)
		}
		clone.Key.ID = id
	}

	s.logger.Debug("put entity", "kind", table, "id", clone.Key.ID, "name", clone.Key.Name)
	return nil
}

// insertRow inserts one row from a column map. An entity with no encodable
// properties and no key still gets a row, so an id can be assigned.
func (s *Store) insertRow(ctx context.Context, conn *sql.Conn, table string, values map[string]any) (sql.Result, error) {
	if len(values) == 0 {
		return conn.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO %s (%s) VALUES (NULL)", table, entity.ColumnKeyString))
	}

	columns := make([]string, 0, len(values))
	for column := range values {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	args := make([]any, 0, len(columns))
	marks := make([]string, 0, len(columns))
	for _, column := range columns {
		args = append(args, values[column])
		marks = append(marks, "?")
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(marks, ", "))
	return conn.ExecContext(ctx, stmt, args...)
}

// Get fetches the entities for the given keys. The result has one slot per
// key, in order; a key with no stored row yields a nil slot, not an error.
func (s *Store) Get(ctx context.Context, tx TxHandle, keys []entity.Key) ([]*entity.Entity, error) {
	conn, held, err := s.connFor(ctx, tx)
	if err != nil {
		return nil, err
	}
	if !held {
		defer s.pool.Release(conn)
	}

	results := make([]*entity.Entity, len(keys))
	for i, key := range keys {
		column, param := entity.ColumnKeyInt, any(key.ID)
		if key.HasName() {
			column, param = entity.ColumnKeyString, any(key.Name)
		}

		values, err := s.queryOneRow(ctx, conn,
			fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", key.Kind, column), param)
		if err != nil {
			// A kind nobody has written yet is a miss, not a failure.
			if isMissingTable(err) {
				continue
			}
			return nil, err
		}
		if values == nil {
			continue
		}
		results[i] = &entity.Entity{Key: key, Properties: s.codec.Decode(values)}
	}
	return results, nil
}

// Delete is accepted but intentionally unimplemented. A real implementation
// would likely mirror the delete-by-key statement Put already issues for
// upserts.
func (s *Store) Delete(ctx context.Context, tx TxHandle, keys []entity.Key) error {
	s.logger.Debug("delete is not implemented", "keys", len(keys))
	return nil
}

// RunQuery translates and executes the query, buffers up to the clamped limit
// of results under a fresh cursor id, and reports whether any results exist.
// A query against a kind with no backing table yields an empty cursor, not an
// error.
func (s *Store) RunQuery(ctx context.Context, req query.Query) (cursor int64, more bool, err error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, false, err
	}
	defer s.pool.Release(conn)

	stmt, found, err := s.translator.Translate(ctx, conn, req)
	if err != nil {
		return 0, false, err
	}

	var results []*entity.Entity
	if found {
		results, err = s.collectRows(ctx, conn, req.Kind, stmt)
		if err != nil {
			return 0, false, err
		}
	}

	cursor = s.cursors.add(results)
	s.logger.Debug("registered query cursor", "kind", req.Kind, "cursor", cursor, "results", len(results))
	return cursor, len(results) > 0, nil
}

// collectRows executes the statement, discards the leading offset rows and
// materializes up to the clamped limit of entities with keys derived per row.
func (s *Store) collectRows(ctx context.Context, conn *sql.Conn, kind string, stmt *query.Statement) ([]*entity.Entity, error) {
	rows, err := conn.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading result columns: %w", err)
	}

	var results []*entity.Entity
	skipped := 0
	for rows.Next() {
		if skipped < stmt.Offset {
			skipped++
			continue
		}
		if len(results) >= stmt.Limit {
			break
		}

		values, err := scanRow(rows, columns)
		if err != nil {
			return nil, err
		}
		ent := &entity.Entity{Properties: s.codec.Decode(values)}
		if key, ok := entity.KeyFromRow(kind, values); ok {
			ent.Key = key
		} else {
			ent.Key = entity.Key{Kind: kind}
		}
		results = append(results, ent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query rows: %w", err)
	}
	return results, nil
}

// Next pops up to count leading entities from the cursor's remaining sequence
// and reports whether entities remain. An unknown cursor id fails with
// ErrCursorNotFound.
func (s *Store) Next(ctx context.Context, cursor int64, count int) ([]*entity.Entity, bool, error) {
	results, more, found := s.cursors.take(cursor, count)
	if !found {
		return nil, false, fmt.Errorf("%w: %d", ErrCursorNotFound, cursor)
	}
	return results, more, nil
}

// BeginTransaction acquires a connection, opens a transaction on it and
// registers it under a fresh handle. The connection stays checked out until
// Commit or Rollback; a caller that never finishes the transaction leaks it.
func (s *Store) BeginTransaction(ctx context.Context) (TxHandle, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return NoTransaction, err
	}
	if _, err := conn.ExecContext(ctx, "BEGIN"); err != nil {
		s.pool.Release(conn)
		return NoTransaction, fmt.Errorf("beginning transaction: %w", err)
	}
	handle := TxHandle(s.txs.add(conn))
	s.logger.Debug("began transaction", "handle", handle)
	return handle, nil
}

// Commit applies the transaction and releases its connection.
func (s *Store) Commit(ctx context.Context, tx TxHandle) error {
	return s.finishTransaction(ctx, tx, "COMMIT")
}

// Rollback abandons the transaction and releases its connection.
func (s *Store) Rollback(ctx context.Context, tx TxHandle) error {
	return s.finishTransaction(ctx, tx, "ROLLBACK")
}

func (s *Store) finishTransaction(ctx context.Context, tx TxHandle, stmt string) error {
	conn, ok := s.txs.remove(int64(tx))
	if !ok {
		return fmt.Errorf("%w: %d", ErrTransactionNotFound, tx)
	}
	_, err := conn.ExecContext(ctx, stmt)
	s.pool.Release(conn)
	if err != nil {
		return fmt.Errorf("finishing transaction %d: %w", tx, err)
	}
	s.logger.Debug("finished transaction", "handle", tx, "op", stmt)
	return nil
}

// Count is accepted but intentionally a no-op.
func (s *Store) Count(ctx context.Context, req query.Query) (int64, error) {
	return 0, nil
}

// The schema and index management calls below are part of the exposed
// operation set but intentionally do nothing in this design.

func (s *Store) GetSchema(ctx context.Context, app string) error { return nil }

func (s *Store) CreateIndex(ctx context.Context, kind string) (int64, error) { return 0, nil }

func (s *Store) GetIndices(ctx context.Context, app string) error { return nil }

func (s *Store) UpdateIndex(ctx context.Context, id int64) error { return nil }

func (s *Store) DeleteIndex(ctx context.Context, id int64) error { return nil }

// queryOneRow runs a single-row lookup and returns the row as a column map,
// or nil when no row matches.
func (s *Store) queryOneRow(ctx context.Context, conn *sql.Conn, stmt string, args ...any) (map[string]any, error) {
	rows, err := conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("executing lookup: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading result columns: %w", err)
	}
	return scanRow(rows, columns)
}

// scanRow scans the current row into driver-native values keyed by column.
func scanRow(rows *sql.Rows, columns []string) (map[string]any, error) {
	values := make([]any, len(columns))
	targets := make([]any, len(columns))
	for i := range values {
		targets[i] = &values[i]
	}
	if err := rows.Scan(targets...); err != nil {
		return nil, fmt.Errorf("scanning row: %w", err)
	}
	return entity.RowMap(columns, values), nil
}

// isMissingTable matches the engine's "no such table" error, which the upsert
// delete tolerates: the insert path creates the table right after.
func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}
