// Package discovery lists landing-area files and routes them to catalog tables.
package discovery

import (
	"regexp"
	"strings"

	"lakeloader/internal/domain"
)

var (
	// leadingNameRE matches the usable leading run of a base name, mirroring
	// how table names are constrained in the catalog.
	leadingNameRE = regexp.MustCompile(`^[A-Za-z0-9_]+`)

	// dateStampRE matches a trailing date-stamp qualifier so that
	// edm_entity_2024-06-01.csv routes to edm_entity.
	dateStampRE = regexp.MustCompile(`_\d{4}-\d{2}-\d{2}$`)
)

// formatForExtension is the fixed extension-to-format mapping. Plain-text
// files are read as tab-delimited text rather than by their raw extension.
var formatForExtension = map[string]domain.FileFormat{
	"csv":     domain.FormatCSV,
	"json":    domain.FormatJSON,
	"parquet": domain.FormatParquet,
	"txt":     domain.FormatText,
}

// BaseName returns the final path segment of an object path.
func BaseName(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// TableNameFromPath derives the candidate table name from a file path: the
// base name with its extension stripped, any trailing date-stamp qualifier
// removed, truncated to the leading run of word characters. Returns "" when
// no usable name remains.
func TableNameFromPath(path string) string {
	base := BaseName(path)
	if i := strings.LastIndex(base, "."); i >= 0 {
		base = base[:i]
	}
	base = dateStampRE.ReplaceAllString(base, "")
	return leadingNameRE.FindString(base)
}

// FormatForExtension maps a file extension to its reader format. ok is false
// for extensions outside the supported set.
func FormatForExtension(path string) (domain.FileFormat, bool) {
	base := BaseName(path)
	i := strings.LastIndex(base, ".")
	if i < 0 || i == len(base)-1 {
		return "", false
	}
	format, ok := formatForExtension[strings.ToLower(base[i+1:])]
	return format, ok
}

// Routed is a candidate bound to its resolved table metadata.
type Routed struct {
	File  domain.CandidateFile
	Table domain.TableMetadata
}

// Route decides whether a discovered file maps to a resolved table. It never
// touches storage: unmatched files are recorded as skipped, never deleted.
func Route(path string, tables map[string]domain.TableMetadata) (Routed, *domain.IngestionOutcome) {
	base := BaseName(path)
	tableName := TableNameFromPath(path)
	if tableName == "" {
		skip := domain.SkippedOutcome(base, domain.SkipNoMatchingTable, "no table name derivable from file name")
		return Routed{}, &skip
	}

	format, ok := FormatForExtension(path)
	if !ok {
		skip := domain.SkippedOutcome(base, domain.SkipUnsupportedFormat, "extension not in supported set")
		return Routed{}, &skip
	}

	meta, ok := tables[tableName]
	if !ok {
		skip := domain.SkippedOutcome(base, domain.SkipNoMatchingTable, "table "+tableName+" not in catalog")
		return Routed{}, &skip
	}
	if meta.SchemaPath == "" {
		skip := domain.SkippedOutcome(base, domain.SkipMissingSchemaLocation, "table "+tableName+" has no schema location")
		return Routed{}, &skip
	}

	return Routed{
		File: domain.CandidateFile{
			Path:      path,
			BaseName:  base,
			TableName: tableName,
			Format:    format,
		},
		Table: meta,
	}, nil
}
