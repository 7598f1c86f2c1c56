package run

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"lakeloader/internal/domain"
)

func TestReporterProcessedTablesDeduplicatedSorted(t *testing.T) {
	r := NewReporter()
	r.Record(domain.ProcessedOutcome("edm_phone"))
	r.Record(domain.ProcessedOutcome("edm_entity"))
	r.Record(domain.ProcessedOutcome("edm_entity"))
	r.Record(domain.SkippedOutcome("stray.csv", domain.SkipNoMatchingTable, ""))

	assert.Equal(t, []string{"edm_entity", "edm_phone"}, r.ProcessedTables())

	processed, skipped := r.Counts()
	assert.Equal(t, 3, processed)
	assert.Equal(t, 1, skipped)
}

func TestReporterSkippedKeepsOrder(t *testing.T) {
	r := NewReporter()
	r.Record(domain.SkippedOutcome("b.csv", domain.SkipUnsupportedFormat, ""))
	r.Record(domain.ProcessedOutcome("edm_entity"))
	r.Record(domain.SkippedOutcome("a.csv", domain.SkipNoMatchingTable, "no such table"))

	skipped := r.Skipped()
	assert.Len(t, skipped, 2)
	assert.Equal(t, "b.csv", skipped[0].Identifier)
	assert.Equal(t, "a.csv", skipped[1].Identifier)
}

func TestReporterArchiveFailureIsSingleProcessedOutcome(t *testing.T) {
	r := NewReporter()
	r.Record(domain.ProcessedWithArchiveFailure("edm_entity", "access denied"))

	assert.Equal(t, []string{"edm_entity"}, r.ProcessedTables())
	assert.Empty(t, r.Skipped())
	failures := r.ArchiveFailures()
	assert.Len(t, failures, 1)
	assert.Equal(t, "edm_entity", failures[0].Identifier)

	processed, skipped := r.Counts()
	assert.Equal(t, 1, processed)
	assert.Equal(t, 0, skipped)

	out := r.String()
	assert.Contains(t, out, "Archive failures (1):")
	assert.Contains(t, out, "  edm_entity: access denied")
}

func TestReporterString(t *testing.T) {
	r := NewReporter()
	r.Record(domain.ProcessedOutcome("edm_entity"))
	r.Record(domain.SkippedOutcome("stray.avro", domain.SkipUnsupportedFormat, "extension not in supported set"))

	out := r.String()
	assert.Contains(t, out, "Processed tables (1):")
	assert.Contains(t, out, "  edm_entity")
	assert.Contains(t, out, "Skipped (1):")
	assert.Contains(t, out, "stray.avro: UnsupportedFormat (extension not in supported set)")
}

func TestReporterEmptyRun(t *testing.T) {
	r := NewReporter()
	assert.Empty(t, r.ProcessedTables())
	assert.Empty(t, r.Skipped())
	out := r.String()
	assert.Contains(t, out, "Processed tables (0):")
	assert.Contains(t, out, "Skipped (0):")
}
