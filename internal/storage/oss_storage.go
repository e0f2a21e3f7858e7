package storage

import (
	"bytes"
	"context"
	"fmt"
	"sitegate/internal/config"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

type ossStorage struct {
	bucket *oss.Bucket
	prefix string
}

func NewOSSStorage(cfg config.Config) (Storage, error) {
	err := requireSettings(TypeOSS,
		setting{"STORAGE_OSS_ENDPOINT", cfg.StorageOSSEndpoint},
		setting{"STORAGE_OSS_BUCKET", cfg.StorageOSSBucket},
		setting{"STORAGE_OSS_ACCESS_KEY_ID", cfg.StorageOSSAccessKeyID},
		setting{"STORAGE_OSS_ACCESS_KEY_SECRET", cfg.StorageOSSAccessKeySecret},
	)
	if err != nil {
		return nil, err
	}

	client, err := oss.New(
		strings.TrimSpace(cfg.StorageOSSEndpoint),
		strings.TrimSpace(cfg.StorageOSSAccessKeyID),
		strings.TrimSpace(cfg.StorageOSSAccessKeySecret),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: create OSS client: %w", err)
	}
	bucket, err := client.Bucket(strings.TrimSpace(cfg.StorageOSSBucket))
	if err != nil {
		return nil, fmt.Errorf("storage: open OSS bucket: %w", err)
	}

	return &ossStorage{
		bucket: bucket,
		prefix: trimPrefix(cfg.StorageOSSPrefix),
	}, nil
}

func (s *ossStorage) Save(ctx context.Context, data []byte, opts SaveOptions) (string, error) {
	key, err := prepareSave(ctx, data, s.prefix, opts)
	if err != nil {
		return "", err
	}
	err = s.bucket.PutObject(key, bytes.NewReader(data), oss.WithContext(ctx), oss.ContentType(contentTypeFor(opts)))
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return key, nil
}

// Delete removes an object; OSS treats a missing object as deleted.
func (s *ossStorage) Delete(ctx context.Context, key string) error {
	name, err := objectName(key)
	if err != nil {
		return err
	}
	if err := s.bucket.DeleteObject(name, oss.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete object %s: %w", name, err)
	}
	return nil
}

var _ Storage = (*ossStorage)(nil)
