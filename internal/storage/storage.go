package storage

import (
	"context"
	"fmt"
	"sitegate/internal/config"
	"strings"
)

const (
	// TypeLocal 表示本地文件系统存储。
	TypeLocal = "local"
	// TypeS3 表示 Amazon S3 或兼容的存储后端。
	TypeS3 = "s3"
	// TypeOSS 表示阿里云 OSS 存储。
	TypeOSS = "oss"
	// TypeCOS 表示腾讯云 COS 存储。
	TypeCOS = "cos"
	// TypeR2 表示 Cloudflare R2 存储。
	TypeR2 = "r2"
)

const (
	// CategoryLogos 登录页 logo
	CategoryLogos = "logos"
	// CategoryExports 用户导出归档
	CategoryExports = "exports"
)

// SaveOptions 控制存储后端如何持久化文件。
//
// Category 用于组织对象路径，Extension 为不含前导点的扩展名，BaseName 为空时使用时间戳。
// ContentType 为空时根据 Extension 推断。
type SaveOptions struct {
	Category    string
	BaseName    string
	Extension   string
	ContentType string
}

// Storage 持久化二进制数据并返回对象 key（本地存储为相对路径）。
type Storage interface {
	Save(ctx context.Context, data []byte, opts SaveOptions) (string, error)
	Delete(ctx context.Context, key string) error
}

// LocalBaseDirProvider 由暴露可通过 HTTP 直接提供服务的本地目录的存储驱动实现。
type LocalBaseDirProvider interface {
	LocalBaseDir() string
}

// NewStorage 根据配置实例化存储后端。
func NewStorage(cfg config.Config) (Storage, error) {
	typeName := strings.ToLower(strings.TrimSpace(cfg.StorageType))
	switch typeName {
	case "", TypeLocal:
		return NewLocalStorage(cfg.StorageLocalDir)
	case TypeS3:
		return NewS3Storage(cfg)
	case TypeOSS:
		return NewOSSStorage(cfg)
	case TypeCOS:
		return NewCOSStorage(cfg)
	case TypeR2:
		return NewR2Storage(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.StorageType)
	}
}

// setting 远程后端的一项必填配置，name 为对应的环境变量
type setting struct {
	name  string
	value string
}

// requireSettings 一次列出所有缺失的配置项
func requireSettings(backend string, settings ...setting) error {
	var missing []string
	for _, s := range settings {
		if strings.TrimSpace(s.value) == "" {
			missing = append(missing, s.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("storage: %s backend requires %s", backend, strings.Join(missing, ", "))
	}
	return nil
}

// PublicURL 把对象 key 拼接到公开访问前缀上；已是绝对 URL 的保持不变。
func PublicURL(base, key string) string {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return trimmed
	}
	base = strings.TrimSpace(base)
	if base == "" {
		base = "/files"
	}
	return fmt.Sprintf("%s/%s", strings.TrimRight(base, "/"), strings.TrimLeft(trimmed, "/"))
}
