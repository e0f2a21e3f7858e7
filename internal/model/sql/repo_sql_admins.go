package sql

import (
	"context"
	"fmt"
	"sitegate/internal/entity"
	"strings"
)

// CreateAdmin persists a new administrator.
func (r *GormRepository) CreateAdmin(ctx context.Context, admin *entity.DbAdmin) error {
	if err := r.ready(); err != nil {
		return err
	}
	if admin == nil {
		return fmt.Errorf("admin is nil")
	}
	return r.db.WithContext(ctx).Create(admin).Error
}

// GetAdminByEmail loads an administrator by email.
func (r *GormRepository) GetAdminByEmail(ctx context.Context, email string) (*entity.DbAdmin, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return nil, fmt.Errorf("email is empty")
	}

	var admin entity.DbAdmin
	if err := r.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(trimmed)).First(&admin).Error; err != nil {
		return nil, err
	}
	return &admin, nil
}

// GetAdminByID loads an administrator by ID.
func (r *GormRepository) GetAdminByID(ctx context.Context, id uint) (*entity.DbAdmin, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, fmt.Errorf("invalid admin id")
	}
	var admin entity.DbAdmin
	if err := r.db.WithContext(ctx).First(&admin, id).Error; err != nil {
		return nil, err
	}
	return &admin, nil
}

// CountAdmins returns total administrator count.
func (r *GormRepository) CountAdmins(ctx context.Context) (int64, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.DbAdmin{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
