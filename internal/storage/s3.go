package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"britearchive/internal/config"
	fileutil "britearchive/internal/file"
)

const (
	contentType = "text/plain"
	// md5MetaKey is stored as X-Amz-Meta-Md5; minio returns user metadata without the prefix.
	md5MetaKey = "Md5"
)

// S3 stores archive files as objects in one bucket, keyed by file name.
type S3 struct {
	api    *minio.Client
	bucket string
}

var _ Client = (*S3)(nil)

// NewS3 builds a client from the storage section of the config.
func NewS3(cfg config.StorageConfig) (*S3, error) {
	api, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &S3{api: api, bucket: cfg.Bucket}, nil
}

// Info returns ErrObjectNotFound when the object does not exist.
func (c *S3) Info(ctx context.Context, name string) (*FileInfo, error) {
	st, err := c.api.StatObject(ctx, c.bucket, name, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	return &FileInfo{
		Name:         name,
		Size:         st.Size,
		MD5:          contentMD5(st.ETag, st.UserMetadata),
		LastModified: st.LastModified,
	}, nil
}

// Put uploads the file and records its MD5 as user metadata.
func (c *S3) Put(ctx context.Context, localPath, name string) error {
	sum, _, err := fileutil.MD5(localPath)
	if err != nil {
		return err //nolint:wrapcheck
	}
	_, err = c.api.FPutObject(ctx, c.bucket, name, localPath, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{md5MetaKey: sum},
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", name, err)
	}
	return nil
}

func (c *S3) Get(ctx context.Context, name string, w io.Writer) error {
	obj, err := c.api.GetObject(ctx, c.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("get %s: %w", name, err)
	}
	defer func() { _ = obj.Close() }()
	if _, err := io.Copy(w, obj); err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	return nil
}

// List returns every object under prefix.
func (c *S3) List(ctx context.Context, prefix string) ([]FileInfo, error) {
	var out []FileInfo
	opts := minio.ListObjectsOptions{Prefix: prefix, Recursive: true}
	for obj := range c.api.ListObjects(ctx, c.bucket, opts) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		out = append(out, FileInfo{
			Name:         obj.Key,
			Size:         obj.Size,
			MD5:          contentMD5(obj.ETag, obj.UserMetadata),
			LastModified: obj.LastModified,
		})
	}
	return out, nil
}

// contentMD5 prefers the digest recorded by Put. Without it only a single-part ETag is a content
// MD5; multipart ETags end in "-<parts>" and yield "", which never matches a local checksum.
func contentMD5(etag string, meta minio.StringMap) string {
	if sum, ok := meta[md5MetaKey]; ok && sum != "" {
		return strings.ToLower(sum)
	}
	etag = strings.Trim(etag, `"`)
	if strings.Contains(etag, "-") {
		return ""
	}
	return etag
}
