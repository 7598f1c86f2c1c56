package catalog

import (
	"context"
	"log/slog"

	"lakeloader/internal/domain"
)

// Resolver builds the per-run table metadata map. Metadata is rebuilt fresh
// every run so it reflects current catalog state; derived paths are stable
// across runs so resumed streams reuse the same checkpoint.
type Resolver struct {
	client domain.CatalogClient
	logger *slog.Logger
}

// NewResolver creates a Resolver over a catalog client.
func NewResolver(client domain.CatalogClient, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{client: client, logger: logger.With("component", "catalog")}
}

// Resolve maps every table in the schema to its ingestion metadata. A listing
// failure is fatal (CatalogUnavailableError); a describe failure for one
// table yields a skipped outcome for that table and does not block the rest.
func (r *Resolver) Resolve(ctx context.Context, schema string) (map[string]domain.TableMetadata, []domain.IngestionOutcome, error) {
	names, err := r.client.ListTables(ctx, schema)
	if err != nil {
		return nil, nil, domain.ErrCatalogUnavailable("list tables in %q: %v", schema, err)
	}

	tables := make(map[string]domain.TableMetadata, len(names))
	var skipped []domain.IngestionOutcome
	for _, name := range names {
		location, err := r.client.DescribeLocation(ctx, schema, name)
		if err != nil {
			derr := domain.ErrTableDescribe(name, "describe location: %v", err)
			r.logger.Warn("describe failed, skipping table", "table", name, "error", derr)
			skipped = append(skipped, domain.SkippedOutcome(name, domain.SkipDescribeFailed, derr.Error()))
			continue
		}

		keyCols, err := r.client.TableKeyColumns(ctx, schema, name)
		if err != nil {
			// A missing key declaration degrades to overwrite commits; a
			// failing lookup is treated like a describe failure.
			derr := domain.ErrTableDescribe(name, "key columns: %v", err)
			r.logger.Warn("key column lookup failed, skipping table", "table", name, "error", derr)
			skipped = append(skipped, domain.SkippedOutcome(name, domain.SkipDescribeFailed, derr.Error()))
			continue
		}

		meta := domain.TableMetadata{
			Name:       name,
			Location:   location,
			KeyColumns: keyCols,
		}.DerivePaths()
		tables[name] = meta
	}

	r.logger.Info("catalog resolved", "schema", schema, "tables", len(tables), "skipped", len(skipped))
	return tables, skipped, nil
}
