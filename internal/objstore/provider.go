package objstore

import (
	"context"
	"fmt"

	"lakeloader/internal/config"
	"lakeloader/internal/credentials"
	"lakeloader/internal/domain"
)

// NewProvider returns a StoreProvider dispatching on the configured
// backend. The provider reads the credential manager at point of use so
// every store is bound to the bundle current at that moment.
func NewProvider(cfg *config.Config, mgr *credentials.Manager) domain.StoreProvider {
	return func(ctx context.Context) (domain.ObjectStore, error) {
		switch cfg.StorageBackend {
		case config.BackendS3:
			bundle, ok := mgr.Current()
			if !ok {
				return nil, domain.ErrAuthFailure("no credential bundle held")
			}
			return NewS3Store(bundle, cfg.S3Endpoint, cfg.S3Region), nil
		case config.BackendAzure:
			bundle, ok := mgr.Current()
			if !ok {
				return nil, domain.ErrAuthFailure("no credential bundle held")
			}
			return NewAzureStore(bundle, cfg.AzureAccount)
		case config.BackendGCS:
			return NewGCSStore(ctx, cfg.GCSKeyFilePath)
		default:
			return nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
		}
	}
}
