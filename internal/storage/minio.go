package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/mmeshcher/eorimag/internal/validation"
)

// MinIOStore сохраняет загрузки в бакет S3-совместимого хранилища.
type MinIOStore struct {
	client     *minio.Client
	bucketName string
}

// NewMinIOStore создаёт клиент MinIO и бакет, если он ещё не существует.
func NewMinIOStore(ctx context.Context, endpoint, accessKey, secretKey, bucketName string, useSSL bool, logger *zap.Logger) (*MinIOStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
		logger.Info("bucket created", zap.String("bucket", bucketName))
	}

	return &MinIOStore{
		client:     client,
		bucketName: bucketName,
	}, nil
}

// Save загружает объект под новым уникальным именем и возвращает это имя.
func (m *MinIOStore) Save(ctx context.Context, originalName string, data []byte) (string, error) {
	if !validation.IsAllowedDocument(originalName) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, originalName)
	}

	name := uniqueName(originalName)

	_, err := m.client.PutObject(ctx, m.bucketName, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType(name),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	return name, nil
}

// Load скачивает объект по имени.
func (m *MinIOStore) Load(ctx context.Context, name string) ([]byte, error) {
	if !validStoredName(name) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	object, err := m.client.GetObject(ctx, m.bucketName, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("read object: %w", err)
	}

	return data, nil
}
