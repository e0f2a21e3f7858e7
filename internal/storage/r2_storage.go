package storage

import (
	"fmt"
	"sitegate/internal/config"
	"strings"
)

// r2Jurisdictions 之外的值视为配置错误
var r2Jurisdictions = map[string]bool{"": true, "default": true, "eu": true, "fedramp": true}

// NewR2Storage 通过 S3 兼容 API 访问 Cloudflare R2，R2 只接受 path-style 请求。
func NewR2Storage(cfg config.Config) (Storage, error) {
	err := requireSettings(TypeR2,
		setting{"STORAGE_R2_BUCKET", cfg.StorageR2Bucket},
		setting{"STORAGE_R2_ACCESS_KEY_ID", cfg.StorageR2AccessKeyID},
		setting{"STORAGE_R2_SECRET_ACCESS_KEY", cfg.StorageR2SecretAccessKey},
	)
	if err != nil {
		return nil, err
	}
	endpoint, err := r2Endpoint(cfg.StorageR2Endpoint, cfg.StorageR2AccountID, cfg.StorageR2Jurisdiction)
	if err != nil {
		return nil, err
	}

	region := strings.TrimSpace(cfg.StorageR2Region)
	if region == "" {
		region = "auto"
	}
	client := newS3Client(s3ClientOptions{
		Region:          region,
		Endpoint:        endpoint,
		AccessKeyID:     strings.TrimSpace(cfg.StorageR2AccessKeyID),
		SecretAccessKey: strings.TrimSpace(cfg.StorageR2SecretAccessKey),
		ForcePathStyle:  true,
	})
	return &remoteS3Storage{
		client: client,
		bucket: strings.TrimSpace(cfg.StorageR2Bucket),
		prefix: trimPrefix(cfg.StorageR2Prefix),
	}, nil
}

// r2Endpoint 显式 endpoint 优先，否则由账号 id 和管辖区拼出
// https://<account>[.<jurisdiction>].r2.cloudflarestorage.com
func r2Endpoint(endpoint, accountID, jurisdiction string) (string, error) {
	if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
		return endpoint, nil
	}
	accountID = strings.ToLower(strings.TrimSpace(accountID))
	if accountID == "" {
		return "", fmt.Errorf("storage: %s backend requires STORAGE_R2_ENDPOINT or STORAGE_R2_ACCOUNT_ID", TypeR2)
	}
	if strings.ContainsAny(accountID, "./:") {
		return "", fmt.Errorf("storage: invalid R2 account id %q", accountID)
	}
	jurisdiction = strings.ToLower(strings.TrimSpace(jurisdiction))
	if !r2Jurisdictions[jurisdiction] {
		return "", fmt.Errorf("storage: unknown R2 jurisdiction %q", jurisdiction)
	}
	if jurisdiction == "" || jurisdiction == "default" {
		return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID), nil
	}
	return fmt.Sprintf("https://%s.%s.r2.cloudflarestorage.com", accountID, jurisdiction), nil
}
