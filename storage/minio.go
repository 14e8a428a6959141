package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"musaix/config"
	"musaix/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var minioClient *minio.Client

// ErrObjectExists is returned when an upload would overwrite an existing
// object. Uploads are keyed by filename and duplicates are rejected.
var ErrObjectExists = errors.New("object already exists")

// InitMinio initializes the MinIO client and ensures the audio bucket exists.
func InitMinio(cfg *config.Config) error {
	logger.Info("Connecting to MinIO",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.AudioBucket))

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.AudioBucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", cfg.AudioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.AudioBucket, minio.MakeBucketOptions{
			Region: cfg.MinioRegion,
		}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", cfg.AudioBucket, err)
		}
		logger.Info("Created bucket", logger.String("bucket", cfg.AudioBucket))
	}

	minioClient = client
	logger.Info("MinIO client initialized")
	return nil
}

// GetMinioClient returns the MinIO client instance.
func GetMinioClient() *minio.Client {
	return minioClient
}

// UploadAudio stores an audio object under its filename. Returns
// ErrObjectExists when an object with the same name is already present.
func UploadAudio(ctx context.Context, bucket, objectName string, reader io.Reader, size int64, contentType string) (minio.UploadInfo, error) {
	if minioClient == nil {
		return minio.UploadInfo{}, fmt.Errorf("MinIO client not initialized")
	}

	_, err := minioClient.StatObject(ctx, bucket, objectName, minio.StatObjectOptions{})
	if err == nil {
		return minio.UploadInfo{}, fmt.Errorf("%w: %s", ErrObjectExists, objectName)
	}
	var respErr minio.ErrorResponse
	if errors.As(err, &respErr) && respErr.Code != "NoSuchKey" {
		return minio.UploadInfo{}, fmt.Errorf("failed to stat object %s: %w", objectName, err)
	}

	info, err := minioClient.PutObject(ctx, bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return minio.UploadInfo{}, fmt.Errorf("failed to upload object %s: %w", objectName, err)
	}
	return info, nil
}

// OpenAudio opens an audio object for reading. The caller must close it.
func OpenAudio(ctx context.Context, bucket, objectName string) (io.ReadCloser, error) {
	if minioClient == nil {
		return nil, fmt.Errorf("MinIO client not initialized")
	}

	object, err := minioClient.GetObject(ctx, bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", objectName, err)
	}
	return object, nil
}
