package objstore

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"lakeloader/internal/domain"
)

var _ domain.ObjectStore = (*AzureStore)(nil)

// AzureStore talks to Azure Blob Storage with shared-key credentials. The
// issued bundle's secret key carries the account key.
type AzureStore struct {
	client  *azblob.Client
	account string
}

// NewAzureStore builds a store for one storage account.
func NewAzureStore(bundle domain.CredentialBundle, accountName string) (*AzureStore, error) {
	sharedKeyCred, err := azblob.NewSharedKeyCredential(accountName, bundle.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", accountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, sharedKeyCred, nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}

	return &AzureStore{client: client, account: accountName}, nil
}

func (a *AzureStore) List(ctx context.Context, prefix string) ([]string, error) {
	scheme, container, key, err := ParsePath(prefix)
	if err != nil {
		return nil, err
	}

	var paths []string
	pager := a.client.NewListBlobsFlatPager(container, &azblob.ListBlobsFlatOptions{
		Prefix: &key,
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s://%s/%s: %w", scheme, container, key, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			paths = append(paths, fmt.Sprintf("%s://%s/%s", scheme, container, *item.Name))
		}
	}
	return paths, nil
}

func (a *AzureStore) Exists(ctx context.Context, path string) (bool, error) {
	_, container, key, err := ParsePath(path)
	if err != nil {
		return false, err
	}

	blobClient := a.client.ServiceClient().NewContainerClient(container).NewBlobClient(key)
	if _, err := blobClient.GetProperties(ctx, nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("head %s: %w", path, err)
	}
	return true, nil
}

func (a *AzureStore) Copy(ctx context.Context, src, dst string) error {
	_, srcContainer, srcKey, err := ParsePath(src)
	if err != nil {
		return err
	}
	_, dstContainer, dstKey, err := ParsePath(dst)
	if err != nil {
		return err
	}

	srcURL := a.client.ServiceClient().NewContainerClient(srcContainer).NewBlobClient(srcKey).URL()
	dstClient := a.client.ServiceClient().NewContainerClient(dstContainer).NewBlobClient(dstKey)
	if _, err := dstClient.CopyFromURL(ctx, srcURL, nil); err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	return nil
}

func (a *AzureStore) Delete(ctx context.Context, path string) error {
	_, container, key, err := ParsePath(path)
	if err != nil {
		return err
	}

	if _, err := a.client.DeleteBlob(ctx, container, key, nil); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (a *AzureStore) Get(ctx context.Context, path string) ([]byte, error) {
	_, container, key, err := ParsePath(path)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.DownloadStream(ctx, container, key, nil)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func (a *AzureStore) Put(ctx context.Context, path string, data []byte) error {
	_, container, key, err := ParsePath(path)
	if err != nil {
		return err
	}

	if _, err := a.client.UploadBuffer(ctx, container, key, data, nil); err != nil {
		return fmt.Errorf("put %s: %w", path, err)
	}
	return nil
}
