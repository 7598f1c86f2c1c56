// Package objstore implements the object storage backends used for the
// landing and archive areas.
package objstore

import (
	"fmt"
	"net/url"
	"strings"
)

// ParsePath splits a storage URI like "s3://bucket/path/to/file" into its
// scheme, bucket (or container), and key. The key may be empty for a bare
// bucket path.
func ParsePath(path string) (scheme, bucket, key string, err error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", "", "", fmt.Errorf("parse storage path %q: %w", path, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", "", "", fmt.Errorf("storage path %q must be scheme://bucket/key", path)
	}
	return u.Scheme, u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

// JoinPath appends segments to a storage URI, collapsing duplicate slashes.
func JoinPath(base string, segments ...string) string {
	out := strings.TrimSuffix(base, "/")
	for _, s := range segments {
		out += "/" + strings.Trim(s, "/")
	}
	return out
}
