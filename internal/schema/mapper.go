// ABOUTME: Schema introspection and additive schema mutation for entity tables
// ABOUTME: Reconstructs the property→column mapping from live table metadata

package schema

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/openprm/datastore/internal/entity"
)

// Querier is the subset of database/sql needed for metadata reads. *sql.DB,
// *sql.Conn and *sql.Tx all satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Schema maps a logical property name to the physical column names storing
// it. A property generally maps to a single column, but the mapping is
// one-to-many so a property may appear under several type tags.
type Schema map[string][]string

// Mapper inspects and mutates the physical schema of entity tables. Schemas
// are always read fresh from table metadata, never cached, so they reflect
// the current state of the table.
type Mapper struct {
	logger *slog.Logger
}

// NewMapper returns a schema mapper.
func NewMapper() *Mapper {
	return &Mapper{logger: slog.Default().With("component", "schema")}
}

// GetSchema reads the table's column metadata and rebuilds the logical
// property→columns mapping. Returns nil (and no error) when the table does
// not exist. Columns without a type tag and the reserved pk_* columns are
// excluded.
func (m *Mapper) GetSchema(ctx context.Context, q Querier, table string) (Schema, error) {
	rows, err := q.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("reading table metadata for %s: %w", table, err)
	}
	defer rows.Close()

	result := make(Schema)
	hasTable := false
	for rows.Next() {
		var column string
		if err := rows.Scan(&column); err != nil {
			return nil, fmt.Errorf("scanning column metadata: %w", err)
		}
		hasTable = true
		i := strings.Index(column, "_")
		if i < 1 {
			continue
		}
		tag, property := column[:i], column[i+1:]
		if tag == "pk" {
			continue
		}
		result[property] = append(result[property], column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating table metadata: %w", err)
	}
	if !hasTable {
		return nil, nil
	}
	return result, nil
}

// SuggestMutation computes the DDL needed to make the table hold every column
// in the sample. A missing table yields a single CREATE TABLE statement,
// including the reserved key columns when addKeyColumns is set. An existing
// table yields one ALTER TABLE ADD COLUMN statement per new column, since not
// every engine accepts multiple additions in one statement. Schema evolution
// is strictly additive: columns are never removed or retyped.
func (m *Mapper) SuggestMutation(ctx context.Context, q Querier, table string, sample map[string]any, addKeyColumns bool) ([]string, error) {
	current, err := m.GetSchema(ctx, q, table)
	if err != nil {
		return nil, err
	}

	newColumns := make(map[string]any, len(sample))
	for column, val := range sample {
		newColumns[column] = val
	}
	// Key columns are created with the table, never as additions.
	delete(newColumns, entity.ColumnKeyInt)
	delete(newColumns, entity.ColumnKeyString)
	if current != nil {
		for _, columns := range current {
			for _, column := range columns {
				delete(newColumns, column)
			}
		}
	}

	if current != nil && len(newColumns) == 0 {
		return nil, nil
	}

	snippets, err := columnDefs(newColumns)
	if err != nil {
		return nil, err
	}

	if current == nil {
		if addKeyColumns {
			snippets = append(snippets,
				entity.ColumnKeyInt+" INTEGER PRIMARY KEY",
				entity.ColumnKeyString+" TEXT")
		}
		stmt := fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(snippets, ", "))
		m.logger.Debug("suggesting table creation", "table", table, "columns", len(snippets))
		return []string{stmt}, nil
	}

	stmts := make([]string, 0, len(snippets))
	for _, snippet := range snippets {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, snippet))
	}
	m.logger.Debug("suggesting column additions", "table", table, "columns", len(stmts))
	return stmts, nil
}

// columnDefs turns sample columns into "name TYPE" definitions, sorted by
// column name so the emitted DDL is deterministic.
func columnDefs(sample map[string]any) ([]string, error) {
	columns := make([]string, 0, len(sample))
	for column := range sample {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	defs := make([]string, 0, len(columns))
	for _, column := range columns {
		sqlType, err := columnType(sample[column])
		if err != nil {
			return nil, err
		}
		defs = append(defs, column+" "+sqlType)
	}
	return defs, nil
}

// columnType derives the SQL column type from a sample value's primitive
// type. Booleans never reach this point: the codec flattens them to integers.
func columnType(v any) (string, error) {
	switch v.(type) {
	case int64:
		return "INTEGER", nil
	case string:
		return "TEXT", nil
	case float64:
		return "DOUBLE", nil
	default:
		return "", fmt.Errorf("%w: sample value has type %T", entity.ErrUnsupportedType, v)
	}
}
