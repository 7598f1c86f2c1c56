// Package run orchestrates one ingestion pass over the landing area and
// reports its outcomes.
package run

import (
	"fmt"
	"sort"
	"strings"

	"lakeloader/internal/domain"
)

// Reporter accumulates per-file outcomes over one run and renders the
// summary. Purely in-memory; persistence is the repository's concern.
type Reporter struct {
	outcomes []domain.IngestionOutcome
}

// NewReporter returns an empty reporter.
func NewReporter() *Reporter {
	return &Reporter{}
}

// Record appends one outcome.
func (r *Reporter) Record(outcome domain.IngestionOutcome) {
	r.outcomes = append(r.outcomes, outcome)
}

// Outcomes returns everything recorded, in order.
func (r *Reporter) Outcomes() []domain.IngestionOutcome {
	return r.outcomes
}

// ProcessedTables returns the distinct table names that received at least
// one commit, sorted.
func (r *Reporter) ProcessedTables() []string {
	seen := map[string]bool{}
	for _, o := range r.outcomes {
		if o.Processed {
			seen[o.Identifier] = true
		}
	}
	tables := make([]string, 0, len(seen))
	for t := range seen {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}

// Skipped returns every skipped outcome, in recording order.
func (r *Reporter) Skipped() []domain.IngestionOutcome {
	var skipped []domain.IngestionOutcome
	for _, o := range r.outcomes {
		if !o.Processed {
			skipped = append(skipped, o)
		}
	}
	return skipped
}

// ArchiveFailures returns processed outcomes whose archive move failed, in
// recording order.
func (r *Reporter) ArchiveFailures() []domain.IngestionOutcome {
	var failed []domain.IngestionOutcome
	for _, o := range r.outcomes {
		if o.Processed && o.Reason == domain.SkipArchiveFailed {
			failed = append(failed, o)
		}
	}
	return failed
}

// Counts returns (processed outcome count, skipped outcome count).
func (r *Reporter) Counts() (processed, skipped int) {
	for _, o := range r.outcomes {
		if o.Processed {
			processed++
		} else {
			skipped++
		}
	}
	return processed, skipped
}

// String renders the human-readable run summary.
func (r *Reporter) String() string {
	var b strings.Builder

	tables := r.ProcessedTables()
	b.WriteString(fmt.Sprintf("Processed tables (%d):\n", len(tables)))
	for _, t := range tables {
		b.WriteString("  " + t + "\n")
	}

	if failed := r.ArchiveFailures(); len(failed) > 0 {
		b.WriteString(fmt.Sprintf("Archive failures (%d):\n", len(failed)))
		for _, o := range failed {
			b.WriteString(fmt.Sprintf("  %s: %s\n", o.Identifier, o.Detail))
		}
	}

	skipped := r.Skipped()
	b.WriteString(fmt.Sprintf("Skipped (%d):\n", len(skipped)))
	for _, o := range skipped {
		line := fmt.Sprintf("  %s: %s", o.Identifier, o.Reason)
		if o.Detail != "" {
			line += " (" + o.Detail + ")"
		}
		b.WriteString(line + "\n")
	}

	return b.String()
}
