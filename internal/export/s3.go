package export

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/dpolishuk/sketch2code/internal/models"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Prefix    string
}

// S3Writer uploads each artifact file as <prefix>/<sessionID>/<path>.
type S3Writer struct {
	client   *minio.Client
	bucket   string
	region   string
	prefix   string
	initOnce sync.Once
	initErr  error
}

func NewS3Writer(cfg S3Config) (*S3Writer, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3Writer{
		client: client,
		bucket: bucket,
		region: region,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (w *S3Writer) ensureBucket(ctx context.Context) error {
	w.initOnce.Do(func() {
		exists, err := w.client.BucketExists(ctx, w.bucket)
		if err != nil {
			w.initErr = err
			return
		}
		if exists {
			return
		}
		w.initErr = w.client.MakeBucket(ctx, w.bucket, minio.MakeBucketOptions{Region: w.region})
	})
	return w.initErr
}

func (w *S3Writer) Write(ctx context.Context, sessionID string, artifact *models.GeneratedArtifact) (string, error) {
	files, err := plan(sessionID, artifact)
	if err != nil {
		return "", err
	}
	if err := w.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}

	keys := make([]string, 0, len(files))
	for rel := range files {
		keys = append(keys, rel)
	}
	sort.Strings(keys)

	base := path.Join(w.prefix, sessionID)
	for _, rel := range keys {
		content := files[rel]
		_, err := w.client.PutObject(ctx, w.bucket, path.Join(base, rel), bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
			ContentType: contentType(rel),
		})
		if err != nil {
			return "", fmt.Errorf("failed to upload %s: %w", rel, err)
		}
	}
	return fmt.Sprintf("s3://%s/%s/", w.bucket, base), nil
}

func contentType(name string) string {
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "text/plain; charset=utf-8"
}
