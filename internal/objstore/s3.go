package objstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"lakeloader/internal/domain"
)

var _ domain.ObjectStore = (*S3Store)(nil)

// S3Store talks to an S3-compatible object store using static credentials
// from the current bundle. Path-style addressing is used so non-AWS
// endpoints work unchanged.
type S3Store struct {
	client *s3.Client
}

// NewS3Store builds a store bound to one credential bundle. Callers obtain
// a fresh store when the bundle is replaced.
func NewS3Store(bundle domain.CredentialBundle, endpoint, region string) *S3Store {
	opts := s3.Options{
		Region: region,
		Credentials: awscreds.NewStaticCredentialsProvider(
			bundle.AccessKey, bundle.SecretKey, bundle.SessionToken,
		),
		UsePathStyle: true,
	}
	if endpoint != "" {
		opts.BaseEndpoint = aws.String(fmt.Sprintf("https://%s", endpoint))
	}
	return &S3Store{client: s3.New(opts)}
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	_, bucket, key, err := ParsePath(prefix)
	if err != nil {
		return nil, err
	}

	var paths []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(key),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", bucket, key, err)
		}
		for _, obj := range page.Contents {
			paths = append(paths, fmt.Sprintf("s3://%s/%s", bucket, aws.ToString(obj.Key)))
		}
	}
	return paths, nil
}

func (s *S3Store) Exists(ctx context.Context, path string) (bool, error) {
	_, bucket, key, err := ParsePath(path)
	if err != nil {
		return false, err
	}

	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("head %s: %w", path, err)
	}
	return true, nil
}

func (s *S3Store) Copy(ctx context.Context, src, dst string) error {
	_, srcBucket, srcKey, err := ParsePath(src)
	if err != nil {
		return err
	}
	_, dstBucket, dstKey, err := ParsePath(dst)
	if err != nil {
		return err
	}

	_, err = s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(dstBucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(srcBucket + "/" + srcKey),
	})
	if err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	return nil
}

func (s *S3Store) Delete(ctx context.Context, path string) error {
	_, bucket, key, err := ParsePath(path)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, path string) ([]byte, error) {
	_, bucket, key, err := ParsePath(path)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func (s *S3Store) Put(ctx context.Context, path string, data []byte) error {
	_, bucket, key, err := ParsePath(path)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", path, err)
	}
	return nil
}
