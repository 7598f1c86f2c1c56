package catalog

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestMetastore creates a throwaway SQLite file with the DuckLake
// metastore tables the client reads.
func openTestMetastore(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "meta.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	stmts := []string{
		`CREATE TABLE ducklake_metadata (key TEXT, value TEXT)`,
		`CREATE TABLE ducklake_schema (schema_id INTEGER, schema_name TEXT, path TEXT, end_snapshot INTEGER)`,
		`CREATE TABLE ducklake_table (table_id INTEGER, schema_id INTEGER, table_name TEXT, path TEXT, path_is_relative INTEGER, end_snapshot INTEGER)`,
		`CREATE TABLE ducklake_tag (object_id INTEGER, key TEXT, value TEXT, end_snapshot INTEGER)`,
		`INSERT INTO ducklake_metadata VALUES ('data_path', 's3://lake/data/')`,
		`INSERT INTO ducklake_schema VALUES (1, 'bronze', 's3://lake/bronze', NULL)`,
		`INSERT INTO ducklake_schema VALUES (2, 'old_bronze', NULL, 42)`,
		`INSERT INTO ducklake_table VALUES (10, 1, 'edm_entity1', NULL, NULL, NULL)`,
		`INSERT INTO ducklake_table VALUES (11, 1, 'edm_address', 's3://elsewhere/addr', 0, NULL)`,
		`INSERT INTO ducklake_table VALUES (12, 1, 'edm_phone', 'phone/', 1, NULL)`,
		`INSERT INTO ducklake_table VALUES (13, 1, 'dropped_table', NULL, NULL, 42)`,
		`INSERT INTO ducklake_tag VALUES (10, 'unique_key', 'entity_id, source_system', NULL)`,
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}
	return db
}

func TestMetastoreClient_ListTables(t *testing.T) {
	client := NewMetastoreClient(openTestMetastore(t))

	names, err := client.ListTables(context.Background(), "bronze")

	require.NoError(t, err)
	// dropped_table has an end_snapshot and must not appear
	assert.Equal(t, []string{"edm_address", "edm_entity1", "edm_phone"}, names)
}

func TestMetastoreClient_ListTables_UnknownSchema(t *testing.T) {
	client := NewMetastoreClient(openTestMetastore(t))

	_, err := client.ListTables(context.Background(), "gold")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "gold")
}

func TestMetastoreClient_DescribeLocation(t *testing.T) {
	client := NewMetastoreClient(openTestMetastore(t))
	ctx := context.Background()

	t.Run("schema_path_plus_table_name", func(t *testing.T) {
		loc, err := client.DescribeLocation(ctx, "bronze", "edm_entity1")
		require.NoError(t, err)
		assert.Equal(t, "s3://lake/bronze/edm_entity1", loc)
	})

	t.Run("absolute_table_path", func(t *testing.T) {
		loc, err := client.DescribeLocation(ctx, "bronze", "edm_address")
		require.NoError(t, err)
		assert.Equal(t, "s3://elsewhere/addr", loc)
	})

	t.Run("relative_table_path_under_data_path", func(t *testing.T) {
		loc, err := client.DescribeLocation(ctx, "bronze", "edm_phone")
		require.NoError(t, err)
		assert.Equal(t, "s3://lake/data/phone/", loc)
	})

	t.Run("unknown_table", func(t *testing.T) {
		_, err := client.DescribeLocation(ctx, "bronze", "nope")
		require.Error(t, err)
	})
}

func TestMetastoreClient_TableKeyColumns(t *testing.T) {
	client := NewMetastoreClient(openTestMetastore(t))
	ctx := context.Background()

	cols, err := client.TableKeyColumns(ctx, "bronze", "edm_entity1")
	require.NoError(t, err)
	assert.Equal(t, []string{"entity_id", "source_system"}, cols)

	cols, err = client.TableKeyColumns(ctx, "bronze", "edm_address")
	require.NoError(t, err)
	assert.Empty(t, cols)
}

func TestMetastoreClient_SetTableProperty(t *testing.T) {
	db := openTestMetastore(t)
	client := NewMetastoreClient(db)
	ctx := context.Background()

	require.NoError(t, client.SetTableProperty(ctx, "bronze", "edm_address", "change_feed", "enabled"))
	// Second call must be an update, not a duplicate row.
	require.NoError(t, client.SetTableProperty(ctx, "bronze", "edm_address", "change_feed", "enabled"))

	var n int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM ducklake_tag WHERE object_id = 11 AND key = 'change_feed'`).Scan(&n))
	assert.Equal(t, 1, n)
}
