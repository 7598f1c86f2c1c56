// Package stream ingests landed files into catalog tables through DuckDB,
// tracking progress with object-store checkpoint markers.
package stream

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"lakeloader/internal/domain"
	"lakeloader/internal/objstore"
)

// Marker records one committed (file, table) ingestion. Its presence under
// the table's checkpoint path is the exactly-once guarantee: a file whose
// marker exists is never re-ingested.
type Marker struct {
	RunID       string    `json:"run_id"`
	SourceFile  string    `json:"source_file"`
	Table       string    `json:"table"`
	Rows        int64     `json:"rows"`
	CommittedAt time.Time `json:"committed_at"`
}

var markerNameRE = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// MarkerPath derives the checkpoint marker location for one source file.
// The name is the sanitised base name plus a hash of the full source path:
// sanitising can collapse distinct names, and a shared marker would let one
// file mask another as already ingested.
func MarkerPath(checkpointPath, filePath string) string {
	base := filePath
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	name := markerNameRE.ReplaceAllString(base, "_")
	sum := sha256.Sum256([]byte(filePath))
	return objstore.JoinPath(checkpointPath, fmt.Sprintf("%s-%x.json", name, sum[:4]))
}

// MarkerExists reports whether the marker for filePath is already present.
func MarkerExists(ctx context.Context, store domain.ObjectStore, checkpointPath, filePath string) (bool, error) {
	return store.Exists(ctx, MarkerPath(checkpointPath, filePath))
}

// WriteMarker persists the marker. Called only after the commit transaction
// succeeded; a failure here means the checkpoint did not advance.
func WriteMarker(ctx context.Context, store domain.ObjectStore, checkpointPath string, m Marker) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint marker: %w", err)
	}
	path := MarkerPath(checkpointPath, m.SourceFile)
	if err := store.Put(ctx, path, data); err != nil {
		return fmt.Errorf("write checkpoint marker %s: %w", path, err)
	}
	return nil
}

// ReadMarker loads a previously written marker.
func ReadMarker(ctx context.Context, store domain.ObjectStore, checkpointPath, filePath string) (Marker, error) {
	path := MarkerPath(checkpointPath, filePath)
	data, err := store.Get(ctx, path)
	if err != nil {
		return Marker{}, fmt.Errorf("read checkpoint marker %s: %w", path, err)
	}
	var m Marker
	if err := json.Unmarshal(data, &m); err != nil {
		return Marker{}, fmt.Errorf("decode checkpoint marker %s: %w", path, err)
	}
	return m, nil
}
