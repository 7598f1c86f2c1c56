package domain

import (
	"strings"
	"time"
)

// FileFormat identifies the reader used for a landed file.
type FileFormat string

// Supported file formats. Text files are read as tab-delimited lines, not
// with the raw extension.
const (
	FormatCSV     FileFormat = "csv"
	FormatJSON    FileFormat = "json"
	FormatParquet FileFormat = "parquet"
	FormatText    FileFormat = "text"
)

// CredentialBundle holds time-boxed storage credentials issued by the
// identity service. Bundles are replaced, never mutated in place.
type CredentialBundle struct {
	AccessKey    string
	SecretKey    string
	SessionToken string
	Expiry       time.Time
}

// IsExpiring reports whether the bundle expires within the given buffer of
// the supplied instant.
func (b CredentialBundle) IsExpiring(now time.Time, buffer time.Duration) bool {
	return !now.Add(buffer).Before(b.Expiry)
}

// RunContext is the per-invocation state of one orchestration run. It is
// owned by exactly one run and discarded at run end.
type RunContext struct {
	RunID         string
	LandingPrefix string
	ArchivePrefix string
	StartedAt     time.Time
}

// TableMetadata describes one catalog table's ingestion locations. Rebuilt
// fresh each run; schema and checkpoint paths are derived deterministically
// from the storage location so resumed streams reuse the same checkpoint.
type TableMetadata struct {
	Name           string
	Location       string
	SchemaPath     string
	CheckpointPath string
	KeyColumns     []string
}

// BatchKey is the declared merge key of an ingestion batch: either Keyed
// with one or more unique-key columns, or Unkeyed.
type BatchKey struct {
	Columns []string
}

// Keyed declares a batch merged by the given unique-key columns.
func Keyed(columns ...string) BatchKey {
	return BatchKey{Columns: columns}
}

// Unkeyed declares a batch with no unique key: commits fully overwrite the
// target table.
func Unkeyed() BatchKey {
	return BatchKey{}
}

// IsKeyed reports whether the batch declares unique-key columns.
func (k BatchKey) IsKeyed() bool { return len(k.Columns) > 0 }

// CandidateFile is a discovered landing-area object, annotated by the router.
type CandidateFile struct {
	Path      string
	BaseName  string
	TableName string
	Format    FileFormat
}

// DerivePaths fills SchemaPath and CheckpointPath from Location. Pure and
// stable: the same location always yields the same paths. A table without a
// storage location keeps empty paths; the router skips its files with
// MissingSchemaLocation.
func (m TableMetadata) DerivePaths() TableMetadata {
	if m.Location == "" {
		return m
	}
	loc := strings.TrimSuffix(m.Location, "/")
	m.SchemaPath = loc + "/schema/"
	m.CheckpointPath = loc + "/checkpoint/"
	return m
}
