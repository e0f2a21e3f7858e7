package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sitegate/internal/config"
	"strings"

	"github.com/tencentyun/cos-go-sdk-v5"
)

type cosStorage struct {
	client *cos.Client
	prefix string
}

func NewCOSStorage(cfg config.Config) (Storage, error) {
	err := requireSettings(TypeCOS,
		setting{"STORAGE_COS_BUCKET_URL", cfg.StorageCOSBucketURL},
		setting{"STORAGE_COS_SECRET_ID", cfg.StorageCOSSecretID},
		setting{"STORAGE_COS_SECRET_KEY", cfg.StorageCOSSecretKey},
	)
	if err != nil {
		return nil, err
	}
	bucketURL, err := url.Parse(strings.TrimSpace(cfg.StorageCOSBucketURL))
	if err != nil || bucketURL.Host == "" {
		return nil, fmt.Errorf("storage: STORAGE_COS_BUCKET_URL must be an absolute URL: %q", cfg.StorageCOSBucketURL)
	}

	client := cos.NewClient(&cos.BaseURL{BucketURL: bucketURL}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  strings.TrimSpace(cfg.StorageCOSSecretID),
			SecretKey: strings.TrimSpace(cfg.StorageCOSSecretKey),
		},
	})

	return &cosStorage{
		client: client,
		prefix: trimPrefix(cfg.StorageCOSPrefix),
	}, nil
}

func (s *cosStorage) Save(ctx context.Context, data []byte, opts SaveOptions) (string, error) {
	key, err := prepareSave(ctx, data, s.prefix, opts)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Object.Put(ctx, key, bytes.NewReader(data), &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{ContentType: contentTypeFor(opts)},
	})
	closeBody(resp)
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return key, nil
}

// Delete removes an object; a missing object is not an error.
func (s *cosStorage) Delete(ctx context.Context, key string) error {
	name, err := objectName(key)
	if err != nil {
		return err
	}
	resp, err := s.client.Object.Delete(ctx, name)
	closeBody(resp)
	if err != nil && !cos.IsNotFoundError(err) {
		return fmt.Errorf("delete object %s: %w", name, err)
	}
	return nil
}

func closeBody(resp *cos.Response) {
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
}

var _ Storage = (*cosStorage)(nil)
