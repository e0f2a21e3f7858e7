package model

import (
	"context"
	"errors"
	"fmt"
	"sitegate/internal/config"
	"sitegate/internal/emaildomain"
	"sitegate/internal/entity"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SeedAllowedDomain stores ALLOWED_DOMAIN when no domain has been configured yet.
// A domain saved by an administrator is never overwritten.
func SeedAllowedDomain(ctx context.Context, repo SettingRepository, cfg config.Config) error {
	if repo == nil || cfg.AllowedDomain == "" {
		return nil
	}

	existing, err := repo.GetSetting(ctx, entity.SettingKeyAllowedDomain)
	switch {
	case err == nil && existing != "":
		return nil
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	domain := emaildomain.NormalizeDomain(cfg.AllowedDomain)
	if check := emaildomain.ValidateDomainFormat(domain); !check.Valid {
		return fmt.Errorf("ALLOWED_DOMAIN %q: %s", cfg.AllowedDomain, check.Message)
	}
	if err := repo.SetSetting(ctx, entity.SettingKeyAllowedDomain, domain); err != nil {
		return err
	}
	logrus.WithField("domain", domain).Info("seeded allowed domain")
	return nil
}
