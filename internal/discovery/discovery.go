package discovery

import (
	"context"
	"strings"

	"lakeloader/internal/domain"
)

// ListFiles returns every object under prefix that is not a directory marker
// (a path ending in the separator). A listing failure is fatal for the run.
func ListFiles(ctx context.Context, store domain.ObjectStore, prefix string) ([]string, error) {
	paths, err := store.List(ctx, prefix)
	if err != nil {
		return nil, domain.ErrStorageList("list %q: %v", prefix, err)
	}

	files := make([]string, 0, len(paths))
	for _, p := range paths {
		if strings.HasSuffix(p, "/") {
			continue
		}
		files = append(files, p)
	}
	return files, nil
}
