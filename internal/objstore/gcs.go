package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"lakeloader/internal/domain"
)

var _ domain.ObjectStore = (*GCSStore)(nil)

// GCSStore talks to Google Cloud Storage. Authentication uses a service
// account key file rather than the issued bundle, which only covers
// key-based backends.
type GCSStore struct {
	client *storage.Client
}

// NewGCSStore builds a store from a service account key file.
func NewGCSStore(ctx context.Context, keyFilePath string) (*GCSStore, error) {
	if keyFilePath == "" {
		return nil, fmt.Errorf("gcs key file path is required")
	}

	client, err := storage.NewClient(ctx, option.WithAuthCredentialsFile(option.ServiceAccount, keyFilePath))
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSStore{client: client}, nil
}

func (g *GCSStore) List(ctx context.Context, prefix string) ([]string, error) {
	_, bucket, key, err := ParsePath(prefix)
	if err != nil {
		return nil, err
	}

	var paths []string
	it := g.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: key})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gs://%s/%s: %w", bucket, key, err)
		}
		paths = append(paths, fmt.Sprintf("gs://%s/%s", bucket, attrs.Name))
	}
	return paths, nil
}

func (g *GCSStore) Exists(ctx context.Context, path string) (bool, error) {
	_, bucket, key, err := ParsePath(path)
	if err != nil {
		return false, err
	}

	_, err = g.client.Bucket(bucket).Object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("head %s: %w", path, err)
	}
	return true, nil
}

func (g *GCSStore) Copy(ctx context.Context, src, dst string) error {
	_, srcBucket, srcKey, err := ParsePath(src)
	if err != nil {
		return err
	}
	_, dstBucket, dstKey, err := ParsePath(dst)
	if err != nil {
		return err
	}

	srcObj := g.client.Bucket(srcBucket).Object(srcKey)
	dstObj := g.client.Bucket(dstBucket).Object(dstKey)
	if _, err := dstObj.CopierFrom(srcObj).Run(ctx); err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	return nil
}

func (g *GCSStore) Delete(ctx context.Context, path string) error {
	_, bucket, key, err := ParsePath(path)
	if err != nil {
		return err
	}

	if err := g.client.Bucket(bucket).Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (g *GCSStore) Get(ctx context.Context, path string) ([]byte, error) {
	_, bucket, key, err := ParsePath(path)
	if err != nil {
		return nil, err
	}

	r, err := g.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func (g *GCSStore) Put(ctx context.Context, path string, data []byte) error {
	_, bucket, key, err := ParsePath(path)
	if err != nil {
		return err
	}

	w := g.client.Bucket(bucket).Object(key).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("put %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("put %s: %w", path, err)
	}
	return nil
}
