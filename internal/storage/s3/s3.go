package s3

import (
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	initTimeout = 5 * time.Second
)

type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	BucketName      string
}

// Connect creates a MinIO client and makes sure the transcript bucket exists
func Connect(ctx context.Context, cfg Config) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	if err := EnsureBucket(ctx, client, cfg.BucketName); err != nil {
		return nil, err
	}

	return client, nil
}

// EnsureBucket makes sure a bucket exists
func EnsureBucket(parentCtx context.Context, client *minio.Client, bucketName string) error {
	ctx, cancel := context.WithTimeout(parentCtx, initTimeout)
	defer cancel()

	exist, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("failed to check whether bucket %q exists: %w", bucketName, err)
	}

	if !exist {
		err = client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket %q: %w", bucketName, err)
		}
	}

	return nil
}
