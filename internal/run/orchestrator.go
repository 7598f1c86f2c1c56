package run

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"lakeloader/internal/archive"
	"lakeloader/internal/catalog"
	"lakeloader/internal/credentials"
	"lakeloader/internal/discovery"
	"lakeloader/internal/domain"
)

// Orchestrator drives one sequential ingestion pass: refresh credentials,
// resolve table metadata, discover landed files, route each file, ingest,
// then archive. Files are independent; one bad file never stops the pass.
type Orchestrator struct {
	creds    *credentials.Manager
	resolver *catalog.Resolver
	provider domain.StoreProvider
	engine   domain.StreamEngine
	archiver *archive.Archiver
	repo     domain.RunRepository
	schema   string
	landing  string
	archRoot string
	clock    domain.Clock
	logger   *slog.Logger
}

// Options collects the orchestrator's collaborators. Repo may be nil when
// run history is disabled.
type Options struct {
	Credentials   *credentials.Manager
	Resolver      *catalog.Resolver
	StoreProvider domain.StoreProvider
	Engine        domain.StreamEngine
	Archiver      *archive.Archiver
	Repository    domain.RunRepository
	Schema        string
	LandingPrefix string
	ArchivePrefix string
	Clock         domain.Clock
	Logger        *slog.Logger
}

// NewOrchestrator wires an orchestrator from its collaborators.
func NewOrchestrator(opts Options) *Orchestrator {
	clock := opts.Clock
	if clock == nil {
		clock = domain.SystemClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		creds:    opts.Credentials,
		resolver: opts.Resolver,
		provider: opts.StoreProvider,
		engine:   opts.Engine,
		archiver: opts.Archiver,
		repo:     opts.Repository,
		schema:   opts.Schema,
		landing:  opts.LandingPrefix,
		archRoot: opts.ArchivePrefix,
		clock:    clock,
		logger:   logger,
	}
}

// Execute performs one full pass. A non-nil error is fatal for the run:
// credential exhaustion, catalog unavailability, or a landing-area listing
// failure. Per-file problems are recorded as skipped outcomes instead.
func (o *Orchestrator) Execute(ctx context.Context) (*Reporter, error) {
	rc := domain.RunContext{
		RunID:         uuid.NewString(),
		LandingPrefix: o.landing,
		ArchivePrefix: o.archRoot,
		StartedAt:     o.clock.Now().UTC(),
	}
	logger := o.logger.With("run_id", rc.RunID)
	logger.Info("ingestion run starting", "landing", rc.LandingPrefix, "schema", o.schema)

	o.recordRunStart(ctx, rc, logger)

	reporter := NewReporter()

	if err := o.creds.RefreshIfNeeded(ctx); err != nil {
		o.recordRunEnd(ctx, rc, reporter, "failed", logger)
		return nil, err
	}

	tables, resolveSkips, err := o.resolver.Resolve(ctx, o.schema)
	if err != nil {
		o.recordRunEnd(ctx, rc, reporter, "failed", logger)
		return nil, err
	}
	for _, skip := range resolveSkips {
		o.record(ctx, rc, reporter, skip, logger)
	}

	store, err := o.provider(ctx)
	if err != nil {
		o.recordRunEnd(ctx, rc, reporter, "failed", logger)
		return nil, domain.ErrStorageList("obtain object store: %v", err)
	}
	files, err := discovery.ListFiles(ctx, store, rc.LandingPrefix)
	if err != nil {
		o.recordRunEnd(ctx, rc, reporter, "failed", logger)
		return nil, err
	}
	logger.Info("landing area discovered", "files", len(files), "tables", len(tables))

	for _, path := range files {
		if err := o.processFile(ctx, rc, reporter, path, tables, logger); err != nil {
			o.recordRunEnd(ctx, rc, reporter, "failed", logger)
			return nil, err
		}
	}

	o.recordRunEnd(ctx, rc, reporter, "completed", logger)
	processed, skipped := reporter.Counts()
	logger.Info("ingestion run finished", "processed", processed, "skipped", skipped)
	return reporter, nil
}

// processFile handles one landed file. The returned error is fatal for the
// run; per-file failures become skipped outcomes instead.
func (o *Orchestrator) processFile(ctx context.Context, rc domain.RunContext, reporter *Reporter, path string, tables map[string]domain.TableMetadata, logger *slog.Logger) error {
	routed, skip := discovery.Route(path, tables)
	if skip != nil {
		logger.Info("file skipped", "file", path, "reason", skip.Reason, "detail", skip.Detail)
		o.record(ctx, rc, reporter, *skip, logger)
		return nil
	}

	// A bundle expiring mid-run is refreshed between files, never inside
	// an ingestion pass.
	if err := o.creds.RefreshIfNeeded(ctx); err != nil {
		return err
	}

	key := domain.Unkeyed()
	if len(routed.Table.KeyColumns) > 0 {
		key = domain.Keyed(routed.Table.KeyColumns...)
	}

	result, err := o.engine.RunOnce(ctx, domain.IngestRequest{
		File:   routed.File,
		Table:  routed.Table,
		Schema: o.schema,
		Key:    key,
		RunID:  rc.RunID,
	})
	if err != nil {
		logger.Warn("ingestion failed, file left in landing area",
			"file", path, "table", routed.Table.Name, "error", err)
		o.record(ctx, rc, reporter, domain.SkippedOutcome(routed.File.BaseName, domain.SkipIngestionFailed, err.Error()), logger)
		return nil
	}

	// Archive only after the checkpoint advanced (or had already advanced
	// on an earlier run). An un-checkpointed file must stay in landing.
	if !result.CheckpointAdvanced && !result.AlreadyIngested {
		o.record(ctx, rc, reporter, domain.SkippedOutcome(routed.File.BaseName, domain.SkipIngestionFailed, "checkpoint did not advance"), logger)
		return nil
	}

	if err := o.archiver.Archive(ctx, routed.File, routed.Table.Name); err != nil {
		// Non-fatal: the data is committed, only the relocation is stuck.
		// The next run finds the marker and retries the move. One outcome
		// per file, so the archive failure rides on the processed record.
		logger.Warn("archive failed, file remains in landing area", "file", path, "error", err)
		o.record(ctx, rc, reporter, domain.ProcessedWithArchiveFailure(routed.Table.Name, err.Error()), logger)
		return nil
	}

	o.record(ctx, rc, reporter, domain.ProcessedOutcome(routed.Table.Name), logger)
	return nil
}

// record adds an outcome to the reporter and best-effort persists it. Run
// history is observational and never affects the pass.
func (o *Orchestrator) record(ctx context.Context, rc domain.RunContext, reporter *Reporter, outcome domain.IngestionOutcome, logger *slog.Logger) {
	reporter.Record(outcome)
	if o.repo == nil {
		return
	}
	if err := o.repo.InsertOutcome(ctx, rc.RunID, outcome); err != nil {
		logger.Warn("could not persist outcome", "identifier", outcome.Identifier, "error", err)
	}
}

func (o *Orchestrator) recordRunStart(ctx context.Context, rc domain.RunContext, logger *slog.Logger) {
	if o.repo == nil {
		return
	}
	err := o.repo.InsertRun(ctx, domain.RunRecord{
		RunID:     rc.RunID,
		StartedAt: rc.StartedAt,
		Status:    "running",
	})
	if err != nil {
		logger.Warn("could not persist run start", "error", err)
	}
}

func (o *Orchestrator) recordRunEnd(ctx context.Context, rc domain.RunContext, reporter *Reporter, status string, logger *slog.Logger) {
	if o.repo == nil {
		return
	}
	processed, skipped := reporter.Counts()
	if err := o.repo.FinishRun(ctx, rc.RunID, o.clock.Now().UTC(), processed, skipped, status); err != nil {
		logger.Warn("could not persist run end", "error", err)
	}
}
