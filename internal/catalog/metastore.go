// Package catalog resolves per-table ingestion metadata from the lake catalog.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"lakeloader/internal/domain"
)

// MetastoreClient implements domain.CatalogClient against the SQLite DuckLake
// metastore. DuckLake keeps live rows with end_snapshot IS NULL; all queries
// filter on that.
type MetastoreClient struct {
	db *sql.DB
}

var _ domain.CatalogClient = (*MetastoreClient)(nil)

// NewMetastoreClient creates a MetastoreClient over an open metastore handle.
func NewMetastoreClient(db *sql.DB) *MetastoreClient {
	return &MetastoreClient{db: db}
}

// ListTables returns the current table names in a schema.
func (c *MetastoreClient) ListTables(ctx context.Context, schema string) ([]string, error) {
	schemaID, _, err := c.schemaRow(ctx, schema)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT table_name FROM ducklake_table WHERE schema_id = ? AND end_snapshot IS NULL ORDER BY table_name`,
		schemaID)
	if err != nil {
		return nil, fmt.Errorf("query ducklake_table: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DescribeLocation returns the effective storage path for a table by
// combining the global data_path, optional schema path, and optional table
// path, following DuckLake path resolution.
func (c *MetastoreClient) DescribeLocation(ctx context.Context, schema, table string) (string, error) {
	schemaID, schemaPath, err := c.schemaRow(ctx, schema)
	if err != nil {
		return "", err
	}

	var tablePath sql.NullString
	var pathIsRelative sql.NullInt64
	err = c.db.QueryRowContext(ctx,
		`SELECT path, path_is_relative FROM ducklake_table WHERE schema_id = ? AND table_name = ? AND end_snapshot IS NULL`,
		schemaID, table).Scan(&tablePath, &pathIsRelative)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("table %q not found in schema %q", table, schema)
	}
	if err != nil {
		return "", fmt.Errorf("query ducklake_table: %w", err)
	}

	if tablePath.Valid && tablePath.String != "" {
		if pathIsRelative.Valid && pathIsRelative.Int64 != 0 {
			dataPath, err := c.readDataPath(ctx)
			if err != nil {
				return "", err
			}
			return dataPath + tablePath.String, nil
		}
		return tablePath.String, nil
	}
	if schemaPath != "" {
		return strings.TrimSuffix(schemaPath, "/") + "/" + table, nil
	}

	dataPath, err := c.readDataPath(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(dataPath, "/") + "/" + table, nil
}

// TableKeyColumns returns the declared unique-key columns from the table's
// "unique_key" tag, empty when the tag is absent.
func (c *MetastoreClient) TableKeyColumns(ctx context.Context, schema, table string) ([]string, error) {
	tableID, err := c.tableID(ctx, schema, table)
	if err != nil {
		return nil, err
	}

	var value string
	err = c.db.QueryRowContext(ctx,
		`SELECT value FROM ducklake_tag WHERE object_id = ? AND key = 'unique_key' AND end_snapshot IS NULL`,
		tableID).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query ducklake_tag: %w", err)
	}

	var cols []string
	for _, col := range strings.Split(value, ",") {
		if col = strings.TrimSpace(col); col != "" {
			cols = append(cols, col)
		}
	}
	return cols, nil
}

// SetTableProperty sets a table tag idempotently: the live tag row is
// replaced when present, inserted otherwise.
func (c *MetastoreClient) SetTableProperty(ctx context.Context, schema, table, key, value string) error {
	tableID, err := c.tableID(ctx, schema, table)
	if err != nil {
		return err
	}

	res, err := c.db.ExecContext(ctx,
		`UPDATE ducklake_tag SET value = ? WHERE object_id = ? AND key = ? AND end_snapshot IS NULL`,
		value, tableID, key)
	if err != nil {
		return fmt.Errorf("update ducklake_tag: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO ducklake_tag (object_id, key, value) VALUES (?, ?, ?)`,
		tableID, key, value)
	if err != nil {
		return fmt.Errorf("insert ducklake_tag: %w", err)
	}
	return nil
}

func (c *MetastoreClient) schemaRow(ctx context.Context, schema string) (int64, string, error) {
	var schemaID int64
	var path sql.NullString
	err := c.db.QueryRowContext(ctx,
		`SELECT schema_id, path FROM ducklake_schema WHERE schema_name = ? AND end_snapshot IS NULL`,
		schema).Scan(&schemaID, &path)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", fmt.Errorf("schema %q not found", schema)
	}
	if err != nil {
		return 0, "", fmt.Errorf("query ducklake_schema: %w", err)
	}
	return schemaID, path.String, nil
}

func (c *MetastoreClient) tableID(ctx context.Context, schema, table string) (int64, error) {
	schemaID, _, err := c.schemaRow(ctx, schema)
	if err != nil {
		return 0, err
	}
	var tableID int64
	err = c.db.QueryRowContext(ctx,
		`SELECT table_id FROM ducklake_table WHERE schema_id = ? AND table_name = ? AND end_snapshot IS NULL`,
		schemaID, table).Scan(&tableID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("table %q not found in schema %q", table, schema)
	}
	if err != nil {
		return 0, fmt.Errorf("query ducklake_table: %w", err)
	}
	return tableID, nil
}

func (c *MetastoreClient) readDataPath(ctx context.Context) (string, error) {
	var dataPath string
	err := c.db.QueryRowContext(ctx,
		`SELECT value FROM ducklake_metadata WHERE key = 'data_path'`).Scan(&dataPath)
	if err != nil {
		return "", fmt.Errorf("read data_path from ducklake_metadata: %w", err)
	}
	return dataPath, nil
}
