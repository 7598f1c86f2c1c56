package domain

// SkipReason classifies why a discovered file or resolved table did not
// reach a successful commit.
type SkipReason string

// Skip reasons recorded in the run report. Every skip carries one.
const (
	SkipNoMatchingTable       SkipReason = "NoMatchingTable"
	SkipMissingSchemaLocation SkipReason = "MissingSchemaLocation"
	SkipUnsupportedFormat     SkipReason = "UnsupportedFormat"
	SkipDescribeFailed        SkipReason = "DescribeFailed"
	SkipIngestionFailed       SkipReason = "IngestionFailed"
	SkipArchiveFailed         SkipReason = "ArchiveFailed"
)

// IngestionOutcome is the single outcome every discovered file (or failed
// table describe) yields: Processed with a table name, or Skipped with a
// reason.
type IngestionOutcome struct {
	Identifier string // table name when processed, file or table name when skipped
	Processed  bool
	Reason     SkipReason // empty when processed, unless the archive move failed after commit
	Detail     string     // underlying error text, when any
}

// ProcessedOutcome records a successful commit into the named table.
func ProcessedOutcome(table string) IngestionOutcome {
	return IngestionOutcome{Identifier: table, Processed: true}
}

// ProcessedWithArchiveFailure records a committed ingestion whose archive
// move failed. The data is in the table; the source file stays in landing
// until a later run retries the move.
func ProcessedWithArchiveFailure(table, detail string) IngestionOutcome {
	return IngestionOutcome{Identifier: table, Processed: true, Reason: SkipArchiveFailed, Detail: detail}
}

// SkippedOutcome records a skip of the named file or table with a reason.
func SkippedOutcome(identifier string, reason SkipReason, detail string) IngestionOutcome {
	return IngestionOutcome{Identifier: identifier, Reason: reason, Detail: detail}
}
