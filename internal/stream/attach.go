package stream

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2"
)

// OpenLake opens an in-memory DuckDB handle and attaches the DuckLake
// catalog stored in the SQLite metastore. The attached catalog becomes the
// default so unqualified names resolve against it.
func OpenLake(ctx context.Context, metastorePath, catalogName string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	extensions := []string{
		"INSTALL ducklake; LOAD ducklake;",
		"INSTALL httpfs; LOAD httpfs;",
	}
	for _, ext := range extensions {
		if _, err := db.ExecContext(ctx, ext); err != nil {
			db.Close()
			return nil, fmt.Errorf("extension setup (%s): %w", ext, err)
		}
	}

	attachSQL := fmt.Sprintf(`ATTACH 'ducklake:sqlite:%s' AS %s`, metastorePath, quoteIdent(catalogName))
	if _, err := db.ExecContext(ctx, attachSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("attach ducklake: %w", err)
	}
	if _, err := db.ExecContext(ctx, "USE "+quoteIdent(catalogName)); err != nil {
		db.Close()
		return nil, fmt.Errorf("use %s: %w", catalogName, err)
	}
	return db, nil
}
