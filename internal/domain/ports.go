package domain

import (
	"context"
	"time"
)

// CatalogClient queries the managed table catalog. One bad table must not
// block ingestion of others, so DescribeLocation failures are scoped to a
// single table.
type CatalogClient interface {
	// ListTables returns the current table names in a catalog schema.
	ListTables(ctx context.Context, schema string) ([]string, error)

	// DescribeLocation returns the storage location of one table.
	DescribeLocation(ctx context.Context, schema, table string) (string, error)

	// TableKeyColumns returns the declared unique-key columns of a table,
	// empty when none are declared.
	TableKeyColumns(ctx context.Context, schema, table string) ([]string, error)

	// SetTableProperty sets a table property, idempotently.
	SetTableProperty(ctx context.Context, schema, table, key, value string) error
}

// ObjectStore abstracts the landing/archive object storage backend.
// Implementations are constructed per-use from the current credential
// bundle rather than cached across long-running operations.
type ObjectStore interface {
	// List returns all object paths under prefix, including directory
	// markers; callers filter those out.
	List(ctx context.Context, prefix string) ([]string, error)

	// Exists reports whether an object is present at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Copy performs a server-side copy from src to dst.
	Copy(ctx context.Context, src, dst string) error

	// Delete removes the object at path.
	Delete(ctx context.Context, path string) error

	// Get reads the full object at path.
	Get(ctx context.Context, path string) ([]byte, error)

	// Put writes data to path, replacing any existing object.
	Put(ctx context.Context, path string, data []byte) error
}

// StoreProvider yields an ObjectStore bound to the current credential
// bundle. Components call it at point of use so a mid-run refresh is
// picked up.
type StoreProvider func(ctx context.Context) (ObjectStore, error)

// IngestRequest binds one landed file to one target table for a single
// bounded ingestion pass.
type IngestRequest struct {
	File   CandidateFile
	Table  TableMetadata
	Schema string
	Key    BatchKey
	RunID  string
}

// IngestResult reports one bounded pass. CheckpointAdvanced is the commit
// success criterion: a pass without an advanced checkpoint must not trigger
// archiving.
type IngestResult struct {
	Rows               int64
	CheckpointAdvanced bool
	AlreadyIngested    bool
}

// StreamEngine ingests one file into one table, resuming from the named
// checkpoint, exactly once per checkpoint advance. RunOnce processes the
// available data and stops.
type StreamEngine interface {
	RunOnce(ctx context.Context, req IngestRequest) (IngestResult, error)
}

// CredentialIssuer exchanges a fixed identity for a time-boxed credential
// bundle over a trust-anchored channel.
type CredentialIssuer interface {
	Issue(ctx context.Context) (CredentialBundle, error)
}

// RunRecord is one persisted orchestration run.
type RunRecord struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt *time.Time
	Processed  int
	Skipped    int
	Status     string
}

// RunRepository persists run history. Observational only: failures are
// logged and never affect ingestion outcomes.
type RunRepository interface {
	InsertRun(ctx context.Context, rec RunRecord) error
	FinishRun(ctx context.Context, runID string, finishedAt time.Time, processed, skipped int, status string) error
	InsertOutcome(ctx context.Context, runID string, outcome IngestionOutcome) error
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
	GetRun(ctx context.Context, runID string) (*RunRecord, error)
	ListOutcomes(ctx context.Context, runID string) ([]IngestionOutcome, error)
}

// Clock abstracts wall-clock reads so expiry buffers are testable.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return ClockFunc(time.Now) }
