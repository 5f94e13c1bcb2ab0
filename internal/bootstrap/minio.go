package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jonesrussell/gocatalog/internal/config"
	"github.com/jonesrussell/gocatalog/internal/logger"
)

const minioSetupTimeout = 10 * time.Second

// SetupMinio connects the raw response archive backend and ensures the
// archive bucket exists.
func SetupMinio(cfg *config.Config, log logger.Logger) (*minio.Client, error) {
	client, err := minio.New(cfg.Minio.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Minio.AccessKey, cfg.Minio.SecretKey, ""),
		Secure: cfg.Minio.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), minioSetupTimeout)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Minio.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Minio.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Minio.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Minio.Bucket, err)
		}
		log.Info("archive bucket created", logger.String("bucket", cfg.Minio.Bucket))
	}

	log.Info("minio connected",
		logger.String("endpoint", cfg.Minio.Endpoint),
		logger.String("bucket", cfg.Minio.Bucket),
	)
	return client, nil
}
