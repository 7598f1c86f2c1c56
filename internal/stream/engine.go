package stream

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"lakeloader/internal/domain"
)

// ChangeFeedProperty is set on every table after a successful commit so
// downstream consumers can read row-level changes. Setting it repeatedly is
// a no-op.
const (
	ChangeFeedProperty = "change_feed"
	ChangeFeedEnabled  = "enabled"
)

var _ domain.StreamEngine = (*DuckDBEngine)(nil)

// SecretSource yields the credential bundle the engine should present to
// the object store. Consulted at the start of every pass so a mid-run
// refresh takes effect on the next file.
type SecretSource func() (domain.CredentialBundle, bool)

// SecretConfig carries the backend parameters baked into the DuckDB storage
// secret.
type SecretConfig struct {
	Backend      string // "s3", "azure", or "gcs"
	S3Endpoint   string
	S3Region     string
	AzureAccount string
}

// DuckDBEngine ingests files with DuckDB SQL against an attached lake
// catalog. One engine serves a whole run; each RunOnce call is a bounded
// pass over a single file.
type DuckDBEngine struct {
	db          *sql.DB
	provider    domain.StoreProvider
	catalog     domain.CatalogClient
	secrets     SecretSource
	secretCfg   SecretConfig
	catalogName string
	clock       domain.Clock
	logger      *slog.Logger

	// Access key of the bundle baked into the current DuckDB secret.
	// A differing bundle triggers CREATE OR REPLACE SECRET.
	secretKeyID string
}

// NewDuckDBEngine wires an engine over an already attached DuckDB handle.
func NewDuckDBEngine(db *sql.DB, provider domain.StoreProvider, catalog domain.CatalogClient, secrets SecretSource, secretCfg SecretConfig, catalogName string, clock domain.Clock, logger *slog.Logger) *DuckDBEngine {
	if clock == nil {
		clock = domain.SystemClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DuckDBEngine{
		db:          db,
		provider:    provider,
		catalog:     catalog,
		secrets:     secrets,
		secretCfg:   secretCfg,
		catalogName: catalogName,
		clock:       clock,
		logger:      logger,
	}
}

// RunOnce ingests one file into one table and stops. The checkpoint marker
// makes the pass exactly-once: an existing marker short-circuits to a no-op
// success, and the marker is written only after the commit transaction
// succeeded.
func (e *DuckDBEngine) RunOnce(ctx context.Context, req domain.IngestRequest) (domain.IngestResult, error) {
	store, err := e.provider(ctx)
	if err != nil {
		return domain.IngestResult{}, domain.ErrIngestionCommit(req.File.Path, "obtain object store: %v", err)
	}

	done, err := MarkerExists(ctx, store, req.Table.CheckpointPath, req.File.Path)
	if err != nil {
		return domain.IngestResult{}, domain.ErrIngestionCommit(req.File.Path, "check checkpoint: %v", err)
	}
	if done {
		e.logger.Info("checkpoint already advanced, skipping ingest",
			"file", req.File.Path, "table", req.Table.Name)
		return domain.IngestResult{AlreadyIngested: true}, nil
	}

	if err := e.ensureSecret(ctx); err != nil {
		return domain.IngestResult{}, domain.ErrIngestionCommit(req.File.Path, "refresh storage secret: %v", err)
	}

	rows, err := e.commit(ctx, req)
	if err != nil {
		return domain.IngestResult{}, domain.ErrIngestionCommit(req.File.Path, "%v", err)
	}

	marker := Marker{
		RunID:       req.RunID,
		SourceFile:  req.File.Path,
		Table:       req.Table.Name,
		Rows:        rows,
		CommittedAt: e.clock.Now().UTC(),
	}
	if err := WriteMarker(ctx, store, req.Table.CheckpointPath, marker); err != nil {
		// The transaction landed but the checkpoint did not advance. The
		// file is not archived and the next run replays it; the replay is
		// safe because both commit modes are idempotent per batch.
		return domain.IngestResult{}, domain.ErrIngestionCommit(req.File.Path, "%v", err)
	}

	if err := e.catalog.SetTableProperty(ctx, req.Schema, req.Table.Name, ChangeFeedProperty, ChangeFeedEnabled); err != nil {
		e.logger.Warn("could not enable change feed", "table", req.Table.Name, "error", err)
	}

	e.logger.Info("file ingested",
		"file", req.File.Path, "table", req.Table.Name, "rows", rows, "keyed", req.Key.IsKeyed())
	return domain.IngestResult{Rows: rows, CheckpointAdvanced: true}, nil
}

// commit runs the staging read and the target write in one transaction.
func (e *DuckDBEngine) commit(ctx context.Context, req domain.IngestRequest) (int64, error) {
	readExpr, err := readExpression(req.File.Format, req.File.Path)
	if err != nil {
		return 0, err
	}

	target := qualifiedTable(e.catalogName, req.Schema, req.Table.Name)
	staging := quoteIdent("staging_" + req.Table.Name)

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// load_seq numbers rows in file order so keyed dedup can pick the last
	// write; ingestion_timestamp is one constant for the whole batch and
	// cannot order within it.
	stageSQL := fmt.Sprintf(
		`CREATE OR REPLACE TEMP TABLE %s AS
		 SELECT *, %s AS source_file, now() AS ingestion_timestamp, %s AS audit_id,
		        row_number() OVER () AS load_seq
		 FROM %s`,
		staging, quoteLiteral(req.File.Path), quoteLiteral(req.RunID), readExpr)
	if _, err := tx.ExecContext(ctx, stageSQL); err != nil {
		return 0, fmt.Errorf("stage %s: %w", req.File.Path, err)
	}

	var rows int64
	if req.Key.IsKeyed() {
		rows, err = e.mergeKeyed(ctx, tx, target, staging, req.Key.Columns)
	} else {
		rows, err = e.replaceAll(ctx, tx, target, staging)
	}
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE "+staging); err != nil {
		return 0, fmt.Errorf("drop staging table: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return rows, nil
}

// mergeKeyed deletes target rows matching the batch's key values and
// inserts the batch, deduplicated to one row per key. The window orders by
// load_seq descending so the last write in file order wins inside the
// batch.
func (e *DuckDBEngine) mergeKeyed(ctx context.Context, tx *sql.Tx, target, staging string, keyColumns []string) (int64, error) {
	quoted := make([]string, len(keyColumns))
	for i, c := range keyColumns {
		quoted[i] = quoteIdent(c)
	}
	keyList := strings.Join(quoted, ", ")

	deleteSQL := fmt.Sprintf(
		`DELETE FROM %s WHERE (%s) IN (SELECT %s FROM %s)`,
		target, keyList, keyList, staging)
	if _, err := tx.ExecContext(ctx, deleteSQL); err != nil {
		return 0, fmt.Errorf("delete matching keys: %w", err)
	}

	insertSQL := fmt.Sprintf(
		`INSERT INTO %s
		 SELECT * EXCLUDE (load_seq, rn) FROM (
		   SELECT *, row_number() OVER (PARTITION BY %s ORDER BY load_seq DESC) AS rn
		   FROM %s
		 ) WHERE rn = 1`,
		target, keyList, staging)
	res, err := tx.ExecContext(ctx, insertSQL)
	if err != nil {
		return 0, fmt.Errorf("insert batch: %w", err)
	}
	return res.RowsAffected()
}

// replaceAll replaces the full table contents with the batch in one
// transaction.
func (e *DuckDBEngine) replaceAll(ctx context.Context, tx *sql.Tx, target, staging string) (int64, error) {
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+target); err != nil {
		return 0, fmt.Errorf("clear target: %w", err)
	}
	res, err := tx.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s SELECT * EXCLUDE (load_seq) FROM %s", target, staging))
	if err != nil {
		return 0, fmt.Errorf("insert batch: %w", err)
	}
	return res.RowsAffected()
}

// ensureSecret keeps the DuckDB storage secret in sync with the current
// credential bundle.
func (e *DuckDBEngine) ensureSecret(ctx context.Context) error {
	if e.secrets == nil {
		return nil
	}
	bundle, ok := e.secrets()
	if !ok {
		return fmt.Errorf("no credential bundle held")
	}
	if bundle.AccessKey == e.secretKeyID {
		return nil
	}

	secretSQL, err := secretStatement(e.secretCfg, bundle)
	if err != nil {
		return err
	}
	if _, err := e.db.ExecContext(ctx, secretSQL); err != nil {
		return fmt.Errorf("create storage secret: %w", err)
	}
	e.secretKeyID = bundle.AccessKey
	e.logger.Info("storage secret refreshed", "backend", e.secretCfg.Backend)
	return nil
}

// readExpression returns the DuckDB table function reading one file. CSV
// assumes a header row with comma delimiter, text is tab delimited.
func readExpression(format domain.FileFormat, path string) (string, error) {
	p := quoteLiteral(path)
	switch format {
	case domain.FormatCSV:
		return fmt.Sprintf(`read_csv(%s, header = true, delim = ',')`, p), nil
	case domain.FormatText:
		return fmt.Sprintf(`read_csv(%s, header = true, delim = '\t')`, p), nil
	case domain.FormatJSON:
		return fmt.Sprintf(`read_json(%s)`, p), nil
	case domain.FormatParquet:
		return fmt.Sprintf(`read_parquet(%s)`, p), nil
	default:
		return "", fmt.Errorf("unsupported file format %q", format)
	}
}

func secretStatement(cfg SecretConfig, bundle domain.CredentialBundle) (string, error) {
	switch cfg.Backend {
	case "s3":
		stmt := fmt.Sprintf(
			`CREATE OR REPLACE SECRET loader_storage (
			 TYPE S3, KEY_ID %s, SECRET %s, SESSION_TOKEN %s, REGION %s, URL_STYLE 'path'`,
			quoteLiteral(bundle.AccessKey), quoteLiteral(bundle.SecretKey),
			quoteLiteral(bundle.SessionToken), quoteLiteral(cfg.S3Region))
		if cfg.S3Endpoint != "" {
			stmt += fmt.Sprintf(", ENDPOINT %s", quoteLiteral(cfg.S3Endpoint))
		}
		return stmt + ")", nil
	case "azure":
		connStr := fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s", cfg.AzureAccount, bundle.SecretKey)
		return fmt.Sprintf(
			`CREATE OR REPLACE SECRET loader_storage (TYPE AZURE, CONNECTION_STRING %s)`,
			quoteLiteral(connStr)), nil
	case "gcs":
		return fmt.Sprintf(
			`CREATE OR REPLACE SECRET loader_storage (TYPE GCS, KEY_ID %s, SECRET %s)`,
			quoteLiteral(bundle.AccessKey), quoteLiteral(bundle.SecretKey)), nil
	default:
		return "", fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

func qualifiedTable(catalog, schema, table string) string {
	return quoteIdent(catalog) + "." + quoteIdent(schema) + "." + quoteIdent(table)
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
