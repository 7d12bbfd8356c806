package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/gearbox-labs/auto-parts-api/config"
	"github.com/gearbox-labs/auto-parts-api/internal/api"
)

var _ ImageStore = (*MinioStore)(nil)

// MinioStore keeps images in an object storage bucket so multiple instances
// can share one image catalogue.
type MinioStore struct {
	logger *slog.Logger
	mc     *minio.Client
	bucket string
}

func NewMinioStore(cfg config.UploadsConfig, logger *slog.Logger) (*MinioStore, error) {
	if cfg.Minio.Endpoint == "" {
		return nil, errors.New("minio endpoint is required")
	}
	if cfg.Minio.AccessKey == "" || cfg.Minio.SecretKey == "" {
		return nil, errors.New("minio accessKey and secretKey are required")
	}

	mc, err := minio.New(cfg.Minio.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Minio.AccessKey, cfg.Minio.SecretKey, ""),
		Secure: cfg.Minio.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	bucket := cfg.Minio.Bucket
	if bucket == "" {
		bucket = "auto-parts"
	}

	return &MinioStore{logger: logger, mc: mc, bucket: bucket}, nil
}

// EnsureBucket creates the bucket on first run.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.mc.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := s.mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		s.logger.Info("Created bucket", slog.String("bucket", s.bucket))
	}
	return nil
}

func (s *MinioStore) Save(ctx context.Context, up *Upload) (string, error) {
	name := UniqueName(up.Filename)
	if err := s.Put(ctx, name, up); err != nil {
		return "", err
	}
	return name, nil
}

func (s *MinioStore) Put(ctx context.Context, name string, up *Upload) error {
	contentType := up.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	info, err := s.mc.PutObject(ctx, s.bucket, name, up.Content, up.Size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", name, errors.Join(api.ErrStorage, err))
	}

	s.logger.InfoContext(ctx, "Image saved to object storage",
		slog.String("name", name), slog.Int64("bytes", info.Size))
	return nil
}

// Open streams an object back. GetObject is lazy, so the object is stat'ed
// before the reader is handed out.
func (s *MinioStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	obj, err := s.mc.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", name, errors.Join(api.ErrStorage, err))
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil, fmt.Errorf("image %q: %w", name, api.ErrNotFound)
		}
		return nil, fmt.Errorf("stat %s: %w", name, errors.Join(api.ErrStorage, err))
	}
	return obj, nil
}
