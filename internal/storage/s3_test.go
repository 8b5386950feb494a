package storage

import (
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"

	"britearchive/internal/config"
)

func TestContentMD5(t *testing.T) {
	const sum = "9e107d9d372bb6826bd81d3542a419d6"
	cases := map[string]struct {
		etag string
		meta minio.StringMap
		want string
	}{
		"single part etag":        {etag: `"` + sum + `"`, want: sum},
		"multipart etag":          {etag: `"d41d8cd98f00b204e9800998ecf8427e-3"`, want: ""},
		"recorded digest wins":    {etag: `"d41d8cd98f00b204e9800998ecf8427e-3"`, meta: minio.StringMap{md5MetaKey: sum}, want: sum},
		"recorded digest lowered": {etag: "", meta: minio.StringMap{md5MetaKey: "9E107D9D372BB6826BD81D3542A419D6"}, want: sum},
	}
	for name, tc := range cases {
		if got := contentMD5(tc.etag, tc.meta); got != tc.want {
			t.Fatalf("%s: got %q want %q", name, got, tc.want)
		}
	}
}

func TestNewS3(t *testing.T) {
	c, err := NewS3(config.StorageConfig{Endpoint: "localhost:9000", Bucket: "brite"})
	require.NoError(t, err)
	require.Equal(t, "brite", c.bucket)
}
