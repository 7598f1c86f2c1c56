package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lakeloader/internal/domain"
)

type mockStore struct {
	ListFn   func(ctx context.Context, prefix string) ([]string, error)
	ExistsFn func(ctx context.Context, path string) (bool, error)
	CopyFn   func(ctx context.Context, src, dst string) error
	DeleteFn func(ctx context.Context, path string) error
	GetFn    func(ctx context.Context, path string) ([]byte, error)
	PutFn    func(ctx context.Context, path string, data []byte) error
}

func (m *mockStore) List(ctx context.Context, prefix string) ([]string, error) {
	return m.ListFn(ctx, prefix)
}
func (m *mockStore) Exists(ctx context.Context, path string) (bool, error) {
	return m.ExistsFn(ctx, path)
}
func (m *mockStore) Copy(ctx context.Context, src, dst string) error { return m.CopyFn(ctx, src, dst) }
func (m *mockStore) Delete(ctx context.Context, path string) error   { return m.DeleteFn(ctx, path) }
func (m *mockStore) Get(ctx context.Context, path string) ([]byte, error) {
	return m.GetFn(ctx, path)
}
func (m *mockStore) Put(ctx context.Context, path string, data []byte) error {
	return m.PutFn(ctx, path, data)
}

func TestListFiles(t *testing.T) {
	t.Run("filters_directory_markers", func(t *testing.T) {
		store := &mockStore{
			ListFn: func(_ context.Context, prefix string) ([]string, error) {
				assert.Equal(t, "s3://bucket/landing-zone/", prefix)
				return []string{
					"s3://bucket/landing-zone/",
					"s3://bucket/landing-zone/edm_entity1.csv",
					"s3://bucket/landing-zone/sub/",
					"s3://bucket/landing-zone/sub/edm_address.json",
				}, nil
			},
		}

		files, err := ListFiles(context.Background(), store, "s3://bucket/landing-zone/")

		require.NoError(t, err)
		assert.Equal(t, []string{
			"s3://bucket/landing-zone/edm_entity1.csv",
			"s3://bucket/landing-zone/sub/edm_address.json",
		}, files)
	})

	t.Run("list_failure_is_fatal", func(t *testing.T) {
		store := &mockStore{
			ListFn: func(context.Context, string) ([]string, error) {
				return nil, errors.New("access denied")
			},
		}

		_, err := ListFiles(context.Background(), store, "s3://bucket/landing-zone/")

		var listErr *domain.StorageListError
		require.ErrorAs(t, err, &listErr)
	})

	t.Run("empty_listing", func(t *testing.T) {
		store := &mockStore{
			ListFn: func(context.Context, string) ([]string, error) { return nil, nil },
		}

		files, err := ListFiles(context.Background(), store, "s3://bucket/landing-zone/")

		require.NoError(t, err)
		assert.Empty(t, files)
	})
}
