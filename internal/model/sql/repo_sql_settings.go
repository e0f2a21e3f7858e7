package sql

import (
	"context"
	"fmt"
	"sitegate/internal/entity"
	"strings"

	"gorm.io/gorm/clause"
)

// GetSetting returns the stored value or gorm.ErrRecordNotFound.
func (r *GormRepository) GetSetting(ctx context.Context, key string) (string, error) {
	if err := r.ready(); err != nil {
		return "", err
	}
	var setting entity.DbSetting
	if err := r.db.WithContext(ctx).Where("option_name = ?", key).First(&setting).Error; err != nil {
		return "", err
	}
	return setting.Value, nil
}

// SetSetting inserts or replaces a single option.
func (r *GormRepository) SetSetting(ctx context.Context, key, value string) error {
	if err := r.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("setting key is empty")
	}
	setting := entity.DbSetting{Key: key, Value: value}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "option_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"option_value", "updated_at"}),
	}).Create(&setting).Error
}

// DeleteSetting removes an option; removing a missing option is not an error.
func (r *GormRepository) DeleteSetting(ctx context.Context, key string) error {
	if err := r.ready(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("option_name = ?", key).Delete(&entity.DbSetting{}).Error
}
