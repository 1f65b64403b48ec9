package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicBaseURL prefixes object keys to form public URLs. Defaults to
	// <scheme>://<endpoint>/<bucket>.
	PublicBaseURL string
}

// objectAPI is the subset of *minio.Client the store uses.
type objectAPI interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error
	StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (*minio.Object, error)
}

// ErrNotFound is returned by Open for keys that are not in the bucket.
var ErrNotFound = errors.New("object not found")

const (
	statRetries    = 3
	statRetryDelay = 50 * time.Millisecond
)

// Object is an open blob. The caller must close Body.
type Object struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// MinioStore keeps gallery blobs in one bucket of an S3-compatible store.
type MinioStore struct {
	api     objectAPI
	bucket  string
	baseURL string
}

// NewMinioStore connects to the endpoint and makes sure the bucket exists.
func NewMinioStore(ctx context.Context, cfg Config) (*MinioStore, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	if i := strings.Index(endpoint, "/"); i != -1 {
		endpoint = endpoint[:i]
	}

	// Default transport keeps only 2 idle conns per host, which churns
	// connections when a batch of uploads arrives at once.
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
	}

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s/%s", scheme, endpoint, cfg.Bucket)
	}
	return newMinioStore(client, cfg.Bucket, baseURL), nil
}

func newMinioStore(api objectAPI, bucket, baseURL string) *MinioStore {
	return &MinioStore{api: api, bucket: bucket, baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (s *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := s.api.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put %q: %w", key, err)
	}
	if info.Key != "" {
		return info.Key, nil
	}
	return key, nil
}

func (s *MinioStore) PublicURL(path string) string {
	return s.baseURL + "/" + strings.TrimPrefix(path, "/")
}

func (s *MinioStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range s.api.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %q: %w", prefix, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// Remove deletes every path, skipping ones that are already gone, and
// reports the first failure after attempting all of them.
func (s *MinioStore) Remove(ctx context.Context, paths ...string) error {
	var firstErr error
	for _, p := range paths {
		if p == "" {
			continue
		}
		err := s.api.RemoveObject(ctx, s.bucket, p, minio.RemoveObjectOptions{})
		if err == nil || isNotFound(err) {
			continue
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("remove %q: %w", p, err)
		}
	}
	return firstErr
}

// Open streams one blob. It backs the object proxy for deployments where the
// bucket is not publicly readable.
func (s *MinioStore) Open(ctx context.Context, key string) (*Object, error) {
	// StatObject can intermittently return "Access Denied" under concurrent load.
	var (
		info minio.ObjectInfo
		err  error
	)
	for attempt := 0; attempt < statRetries; attempt++ {
		info, err = s.api.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
		if err == nil || !strings.Contains(err.Error(), "Access Denied") {
			break
		}
		if attempt < statRetries-1 {
			time.Sleep(statRetryDelay)
		}
	}
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("stat %q: %w", key, err)
	}

	obj, err := s.api.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return &Object{Body: obj, Size: info.Size, ContentType: info.ContentType}, nil
}

func isNotFound(err error) bool {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return true
	}
	return strings.Contains(err.Error(), "does not exist")
}
