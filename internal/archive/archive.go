// Package archive relocates ingested files from the landing area into the
// archive area.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"lakeloader/internal/domain"
	"lakeloader/internal/objstore"
)

// Strategy derives the archive key for one ingested file. The key is
// appended to the archive prefix to form the destination path.
type Strategy interface {
	ArchiveKey(file domain.CandidateFile, table string) string
}

// ByTableStrategy files archives under the routed table name.
type ByTableStrategy struct{}

func (ByTableStrategy) ArchiveKey(file domain.CandidateFile, table string) string {
	return table + "/" + file.BaseName
}

// ByPrefixTokenStrategy files archives under the leading underscore token
// of the base name, so "edm_entity_2024-06-01.csv" lands under "edm/".
type ByPrefixTokenStrategy struct{}

func (ByPrefixTokenStrategy) ArchiveKey(file domain.CandidateFile, table string) string {
	token := file.BaseName
	if i := strings.Index(token, "_"); i > 0 {
		token = token[:i]
	}
	return token + "/" + file.BaseName
}

// StrategyNamed returns the strategy registered under name.
func StrategyNamed(name string) (Strategy, error) {
	switch name {
	case "table":
		return ByTableStrategy{}, nil
	case "prefix-token":
		return ByPrefixTokenStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown archive strategy %q", name)
	}
}

// Archiver moves files into the archive area with server-side copy then
// delete. Archiving is idempotent so a rerun after a partial move
// converges: an existing destination is a logged no-op and only the
// leftover source is removed.
type Archiver struct {
	provider      domain.StoreProvider
	strategy      Strategy
	archivePrefix string
	logger        *slog.Logger
}

// NewArchiver builds an archiver writing under archivePrefix.
func NewArchiver(provider domain.StoreProvider, strategy Strategy, archivePrefix string, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		provider:      provider,
		strategy:      strategy,
		archivePrefix: archivePrefix,
		logger:        logger,
	}
}

// Destination returns the archive path for one file.
func (a *Archiver) Destination(file domain.CandidateFile, table string) string {
	return objstore.JoinPath(a.archivePrefix, a.strategy.ArchiveKey(file, table))
}

// Archive relocates one ingested file. Failures never undo the ingestion;
// callers log them and move on.
func (a *Archiver) Archive(ctx context.Context, file domain.CandidateFile, table string) error {
	store, err := a.provider(ctx)
	if err != nil {
		return domain.ErrArchiveFailed(file.Path, "obtain object store: %v", err)
	}

	dst := a.Destination(file, table)

	exists, err := store.Exists(ctx, dst)
	if err != nil {
		return domain.ErrArchiveFailed(file.Path, "check destination %s: %v", dst, err)
	}
	if exists {
		a.logger.Info("archive destination already present, removing source only",
			"file", file.Path, "destination", dst)
	} else {
		if err := store.Copy(ctx, file.Path, dst); err != nil {
			return domain.ErrArchiveFailed(file.Path, "copy to %s: %v", dst, err)
		}
	}

	if err := store.Delete(ctx, file.Path); err != nil {
		return domain.ErrArchiveFailed(file.Path, "delete source after copy: %v", err)
	}

	a.logger.Info("file archived", "file", file.Path, "destination", dst)
	return nil
}
