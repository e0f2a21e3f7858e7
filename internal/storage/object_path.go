package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

var (
	// ErrUnknownCategory 保存时使用了未登记的对象分类
	ErrUnknownCategory = errors.New("storage: unknown object category")

	errEmptyPayload = errors.New("empty payload")
)

// clock 可在测试中替换
var clock = time.Now

// prepareSave 校验载荷并返回对象 key，所有后端共用。
func prepareSave(ctx context.Context, data []byte, prefix string, opts SaveOptions) (string, error) {
	if len(data) == 0 {
		return "", errEmptyPayload
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return objectKey(prefix, opts)
}

// objectKey 生成 <prefix>/<category>/<yyyy>/<mm>/<dd>/<name>.<ext>。
//
// logo 追加随机后缀，替换 logo 后公开 URL 必然变化；导出归档追加时分秒，同一天多次导出互不覆盖。
func objectKey(prefix string, opts SaveOptions) (string, error) {
	category := strings.ToLower(strings.TrimSpace(opts.Category))
	if category != CategoryLogos && category != CategoryExports {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, opts.Category)
	}

	now := clock().UTC()
	name := slug(opts.BaseName)
	switch {
	case name == "":
		name = uuid.NewString()
	case category == CategoryLogos:
		name += "-" + uuid.NewString()[:8]
	case category == CategoryExports:
		name += "-" + now.Format("150405")
	}

	key := path.Join(category, now.Format("2006/01/02"), name+"."+extension(opts.Extension))
	if p := trimPrefix(prefix); p != "" {
		key = path.Join(p, key)
	}
	return key, nil
}

// slug 只保留小写字母、数字、- 和 _，空格和点变成 -
func slug(value string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return unicode.ToLower(r)
		case r == ' ', r == '.':
			return '-'
		}
		return -1
	}, strings.TrimSpace(value))
	return strings.Trim(mapped, "-_")
}

func extension(ext string) string {
	if normalized := slug(strings.TrimPrefix(strings.TrimSpace(ext), ".")); normalized != "" {
		return normalized
	}
	return "bin"
}

func contentTypeFor(opts SaveOptions) string {
	if ct := strings.TrimSpace(opts.ContentType); ct != "" {
		return ct
	}
	if typeName := mime.TypeByExtension("." + extension(opts.Extension)); typeName != "" {
		return typeName
	}
	return "application/octet-stream"
}

// objectName 规范化调用方传入的 key，用于删除
func objectName(key string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("empty object key")
	}
	return key, nil
}

func trimPrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}
