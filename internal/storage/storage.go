package storage

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNoSuchKey reports that a requested object does not exist. Absence is
// an expected outcome for record lookups, so it gets its own sentinel
// instead of being folded into generic retrieval failures.
var ErrNoSuchKey = errors.New("no such key")

// ObjectStore is the durable store the engine publishes log files and
// sync records to.
type ObjectStore interface {
	Get(key string) ([]byte, error)
	Put(key string, data []byte, contentType string) error
	PutFile(key, path string) error
	Head(key string) (bool, error)
}

// MinioStore is the production ObjectStore backed by an S3-compatible
// bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// Options configures the MinIO connection.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewMinioStore builds the production store.
func NewMinioStore(opts Options) (*MinioStore, error) {
	tr := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure:       opts.UseSSL,
		Transport:    tr,
		Region:       "auto",
		BucketLookup: minio.BucketLookupAuto,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	return &MinioStore{client: client, bucket: opts.Bucket}, nil
}

// Get reads the full contents of one object. Returns ErrNoSuchKey when
// the object does not exist.
func (s *MinioStore) Get(key string) ([]byte, error) {
	obj, err := s.client.GetObject(context.Background(), s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNoSuchKey
		}
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// Put writes data under key, overwriting any prior object.
func (s *MinioStore) Put(key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(
		context.Background(),
		s.bucket,
		key,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

// PutFile uploads a local file under key, overwriting any prior object.
func (s *MinioStore) PutFile(key, path string) error {
	_, err := s.client.FPutObject(
		context.Background(),
		s.bucket,
		key,
		path,
		minio.PutObjectOptions{ContentType: "text/plain"},
	)
	if err != nil {
		return fmt.Errorf("failed to upload %s to %s: %w", path, key, err)
	}
	return nil
}

// Head reports whether an object exists under key.
func (s *MinioStore) Head(key string) (bool, error) {
	_, err := s.client.StatObject(context.Background(), s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s: %w", key, err)
	}
	return true, nil
}
