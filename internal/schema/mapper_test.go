// ABOUTME: Tests for schema introspection and additive mutation
// ABOUTME: Runs against a real SQLite database in a temp directory

package schema

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/openprm/datastore/internal/entity"
)

// setupTestDB opens a throwaway SQLite database for schema tests.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestMapper_GetSchema_MissingTable(t *testing.T) {
	db := setupTestDB(t)
	mapper := NewMapper()

	sch, err := mapper.GetSchema(context.Background(), db, "Nothing")
	require.NoError(t, err)
	assert.Nil(t, sch)
}

func TestMapper_CreateThenGetSchema(t *testing.T) {
	db := setupTestDB(t)
	mapper := NewMapper()
	ctx := context.Background()

	sample := map[string]any{
		"string_text":  "some text",
		"int64_number": int64(42),
	}

	stmts, err := mapper.SuggestMutation(ctx, db, "TestModel", sample, true)
	require.NoError(t, err)
	require.Len(t, stmts, 1, "a new table needs exactly one CREATE TABLE")

	_, err = db.ExecContext(ctx, stmts[0])
	require.NoError(t, err)

	sch, err := mapper.GetSchema(ctx, db, "TestModel")
	require.NoError(t, err)
	assert.Equal(t, Schema{
		"text":   {"string_text"},
		"number": {"int64_number"},
	}, sch, "pk columns must not appear in the logical schema")
}

func TestMapper_SuggestMutation_NoNewColumns(t *testing.T) {
	db := setupTestDB(t)
	mapper := NewMapper()
	ctx := context.Background()

	sample := map[string]any{"int64_number": int64(1)}
	stmts, err := mapper.SuggestMutation(ctx, db, "TestModel", sample, true)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, stmts[0])
	require.NoError(t, err)

	// Same sample again, including the key columns a Put would stamp in.
	again := map[string]any{
		"int64_number": int64(7),
		"pk_int":       int64(3),
		"pk_string":    "alpha",
	}
	stmts, err = mapper.SuggestMutation(ctx, db, "TestModel", again, true)
	require.NoError(t, err)
	assert.Empty(t, stmts)
}

func TestMapper_SuggestMutation_OneAlterPerNewColumn(t *testing.T) {
	db := setupTestDB(t)
	mapper := NewMapper()
	ctx := context.Background()

	stmts, err := mapper.SuggestMutation(ctx, db, "TestModel",
		map[string]any{"int64_number": int64(1)}, true)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, stmts[0])
	require.NoError(t, err)

	sample := map[string]any{
		"int64_number": int64(1),
		"double_ratio": 0.5,
		"string_text":  "x",
	}
	stmts, err = mapper.SuggestMutation(ctx, db, "TestModel", sample, true)
	require.NoError(t, err)
	require.Len(t, stmts, 2, "one ALTER TABLE per new column")
	assert.Equal(t, "ALTER TABLE TestModel ADD COLUMN double_ratio DOUBLE", stmts[0])
	assert.Equal(t, "ALTER TABLE TestModel ADD COLUMN string_text TEXT", stmts[1])

	for _, stmt := range stmts {
		_, err = db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	sch, err := mapper.GetSchema(ctx, db, "TestModel")
	require.NoError(t, err)
	assert.Equal(t, Schema{
		"number": {"int64_number"},
		"ratio":  {"double_ratio"},
		"text":   {"string_text"},
	}, sch)
}

func TestMapper_SuggestMutation_WithoutKeyColumns(t *testing.T) {
	db := setupTestDB(t)
	mapper := NewMapper()
	ctx := context.Background()

	stmts, err := mapper.SuggestMutation(ctx, db, "Plain",
		map[string]any{"string_text": "x"}, false)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	assert.Equal(t, "CREATE TABLE Plain (string_text TEXT)", stmts[0])
}

func TestMapper_SuggestMutation_UnsupportedSample(t *testing.T) {
	db := setupTestDB(t)
	mapper := NewMapper()

	_, err := mapper.SuggestMutation(context.Background(), db, "TestModel",
		map[string]any{"blob_data": []int{1, 2}}, true)
	assert.ErrorIs(t, err, entity.ErrUnsupportedType)
}

func TestMapper_GetSchema_PropertyUnderMultipleTags(t *testing.T) {
	db := setupTestDB(t)
	mapper := NewMapper()
	ctx := context.Background()

	_, err := db.ExecContext(ctx,
		"CREATE TABLE Mixed (int64_v INTEGER, string_v TEXT, pk_int INTEGER PRIMARY KEY, pk_string TEXT)")
	require.NoError(t, err)

	sch, err := mapper.GetSchema(ctx, db, "Mixed")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"int64_v", "string_v"}, sch["v"])
}
