package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sitegate/internal/emaildomain"
	"sitegate/internal/entity"
	"sitegate/internal/storage"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrInvalidSettings = errors.New("invalid login settings")
	ErrInvalidLogo     = errors.New("invalid logo")

	hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

	logoExtensions = map[string]string{
		"png":  "image/png",
		"jpg":  "image/jpeg",
		"jpeg": "image/jpeg",
		"gif":  "image/gif",
		"webp": "image/webp",
		"svg":  "image/svg+xml",
	}
)

// SettingsService 登录页设置
type SettingsService struct {
	store      emaildomain.SettingStore
	storage    storage.Storage
	publicBase string
}

// NewSettingsService 创建设置服务；storage 为空时不支持上传 logo
func NewSettingsService(store emaildomain.SettingStore, files storage.Storage, publicBase string) *SettingsService {
	return &SettingsService{store: store, storage: files, publicBase: publicBase}
}

// LoginSettings 读取登录页设置，缺失或损坏时回退到默认值
func (s *SettingsService) LoginSettings(ctx context.Context) (entity.LoginSettings, error) {
	settings := entity.DefaultLoginSettings()
	raw, err := s.store.GetSetting(ctx, entity.SettingKeyLoginSettings)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return settings, nil
		}
		return settings, err
	}
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		logrus.WithError(err).Warn("stored login settings are corrupt, using defaults")
		return entity.DefaultLoginSettings(), nil
	}
	return fillDefaults(settings), nil
}

// UpdateLoginSettings 合并非空字段并校验后保存
func (s *SettingsService) UpdateLoginSettings(ctx context.Context, req entity.LoginSettingsUpdateRequest) (entity.LoginSettings, error) {
	current, err := s.LoginSettings(ctx)
	if err != nil {
		return current, err
	}
	next := current

	if req.Title != nil {
		next.Title = strings.TrimSpace(*req.Title)
		if next.Title == "" {
			return current, userError(ErrInvalidSettings, "Title cannot be empty.")
		}
	}
	if req.Message != nil {
		next.Message = strings.TrimSpace(*req.Message)
	}
	if req.LogoURL != nil {
		logo := strings.TrimSpace(*req.LogoURL)
		if logo != "" && !strings.HasPrefix(logo, "http://") && !strings.HasPrefix(logo, "https://") && !strings.HasPrefix(logo, "/") {
			return current, userError(ErrInvalidSettings, "Logo URL must be an absolute URL or path.")
		}
		if logo != next.LogoURL {
			next.LogoURL = logo
			next.LogoKey = ""
		}
	}
	colors := []struct {
		label string
		value *string
		dst   *string
	}{
		{label: "Background color", value: req.BackgroundColor, dst: &next.BackgroundColor},
		{label: "Form background", value: req.FormBackground, dst: &next.FormBackground},
		{label: "Primary color", value: req.PrimaryColor, dst: &next.PrimaryColor},
		{label: "Text color", value: req.TextColor, dst: &next.TextColor},
	}
	for _, c := range colors {
		if c.value == nil {
			continue
		}
		value := strings.TrimSpace(*c.value)
		if !hexColorPattern.MatchString(value) {
			return current, userError(ErrInvalidSettings, "%s must be a hex color like #0073aa.", c.label)
		}
		*c.dst = strings.ToLower(value)
	}

	if err := s.save(ctx, next); err != nil {
		return current, err
	}
	if current.LogoKey != "" && next.LogoKey == "" {
		s.removeLogo(ctx, current.LogoKey)
	}
	return next, nil
}

// UploadLogo 保存 logo 并更新设置，旧的已上传 logo 会被删除
func (s *SettingsService) UploadLogo(ctx context.Context, data []byte, ext string) (entity.LoginSettings, error) {
	if s.storage == nil {
		return entity.LoginSettings{}, errors.New("storage not configured")
	}
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	contentType, ok := logoExtensions[ext]
	if !ok {
		return entity.LoginSettings{}, userError(ErrInvalidLogo, "Logo must be a PNG, JPEG, GIF, WebP or SVG image.")
	}
	if len(data) == 0 {
		return entity.LoginSettings{}, userError(ErrInvalidLogo, "Logo file is empty.")
	}

	current, err := s.LoginSettings(ctx)
	if err != nil {
		return current, err
	}
	key, err := s.storage.Save(ctx, data, storage.SaveOptions{
		Category:    storage.CategoryLogos,
		Extension:   ext,
		ContentType: contentType,
	})
	if err != nil {
		return current, fmt.Errorf("save logo: %w", err)
	}

	next := current
	next.LogoKey = key
	next.LogoURL = storage.PublicURL(s.publicBase, key)
	if err := s.save(ctx, next); err != nil {
		s.removeLogo(ctx, key)
		return current, err
	}
	if current.LogoKey != "" {
		s.removeLogo(ctx, current.LogoKey)
	}
	return next, nil
}

// ResetLoginSettings 恢复默认设置
func (s *SettingsService) ResetLoginSettings(ctx context.Context) (entity.LoginSettings, error) {
	current, err := s.LoginSettings(ctx)
	if err != nil {
		return current, err
	}
	if err := s.store.DeleteSetting(ctx, entity.SettingKeyLoginSettings); err != nil {
		return current, err
	}
	if current.LogoKey != "" {
		s.removeLogo(ctx, current.LogoKey)
	}
	return entity.DefaultLoginSettings(), nil
}

func (s *SettingsService) save(ctx context.Context, settings entity.LoginSettings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode login settings: %w", err)
	}
	if err := s.store.SetSetting(ctx, entity.SettingKeyLoginSettings, string(raw)); err != nil {
		return fmt.Errorf("Failed to save login settings: %w", err)
	}
	return nil
}

func (s *SettingsService) removeLogo(ctx context.Context, key string) {
	if s.storage == nil || key == "" {
		return
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("failed to delete old logo")
	}
}

func fillDefaults(settings entity.LoginSettings) entity.LoginSettings {
	defaults := entity.DefaultLoginSettings()
	if strings.TrimSpace(settings.Title) == "" {
		settings.Title = defaults.Title
	}
	if !hexColorPattern.MatchString(settings.BackgroundColor) {
		settings.BackgroundColor = defaults.BackgroundColor
	}
	if !hexColorPattern.MatchString(settings.FormBackground) {
		settings.FormBackground = defaults.FormBackground
	}
	if !hexColorPattern.MatchString(settings.PrimaryColor) {
		settings.PrimaryColor = defaults.PrimaryColor
	}
	if !hexColorPattern.MatchString(settings.TextColor) {
		settings.TextColor = defaults.TextColor
	}
	return settings
}
