package objstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		scheme  string
		bucket  string
		key     string
		wantErr bool
	}{
		{name: "s3_object", path: "s3://landing/incoming/edm_entity.csv", scheme: "s3", bucket: "landing", key: "incoming/edm_entity.csv"},
		{name: "azure_object", path: "az://container/dir/file.json", scheme: "az", bucket: "container", key: "dir/file.json"},
		{name: "gcs_object", path: "gs://bucket/a/b/c.parquet", scheme: "gs", bucket: "bucket", key: "a/b/c.parquet"},
		{name: "bare_bucket", path: "s3://landing", scheme: "s3", bucket: "landing", key: ""},
		{name: "trailing_slash", path: "s3://landing/incoming/", scheme: "s3", bucket: "landing", key: "incoming/"},
		{name: "no_scheme", path: "/local/path", wantErr: true},
		{name: "empty", path: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scheme, bucket, key, err := ParsePath(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.scheme, scheme)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestJoinPath(t *testing.T) {
	assert.Equal(t, "s3://landing/archive/edm_entity.csv",
		JoinPath("s3://landing/archive/", "edm_entity.csv"))
	assert.Equal(t, "s3://landing/archive/edm/f.csv",
		JoinPath("s3://landing/archive", "edm", "f.csv"))
	assert.Equal(t, "gs://b/x",
		JoinPath("gs://b", "/x/"))
}
