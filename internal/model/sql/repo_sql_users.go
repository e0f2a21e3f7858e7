package sql

import (
	"context"
	"fmt"
	"sitegate/internal/entity"
	"strings"

	"gorm.io/gorm"
)

var userSortColumns = map[string]string{
	"id":         "id",
	"name":       "name",
	"email":      "email",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// CreateUser persists a new allow-listed user.
func (r *GormRepository) CreateUser(ctx context.Context, user *entity.DbUser) error {
	if err := r.ready(); err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("user is nil")
	}
	return r.db.WithContext(ctx).Create(user).Error
}

// UpdateUser updates an existing user entry.
func (r *GormRepository) UpdateUser(ctx context.Context, id uint, updates entity.UserUpdates) error {
	if err := r.ready(); err != nil {
		return err
	}
	if id == 0 {
		return fmt.Errorf("invalid user")
	}
	if updates.IsEmpty() {
		return nil
	}
	return r.db.WithContext(ctx).Model(&entity.DbUser{}).Where("id = ?", id).Updates(updates.ToMap()).Error
}

// GetUserByEmail loads a user by email.
func (r *GormRepository) GetUserByEmail(ctx context.Context, email string) (*entity.DbUser, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return nil, fmt.Errorf("email is empty")
	}

	var user entity.DbUser
	if err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(trimmed)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByID loads a user by ID.
func (r *GormRepository) GetUserByID(ctx context.Context, id uint) (*entity.DbUser, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	var user entity.DbUser
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// likeEscaper makes search keywords match literally under ESCAPE '!'.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// ListUsers returns paginated users.
func (r *GormRepository) ListUsers(ctx context.Context, params *entity.UserQuery) ([]entity.DbUser, *entity.Meta, error) {
	if err := r.ready(); err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).Model(&entity.DbUser{})
	if params != nil {
		if keyword := strings.TrimSpace(params.Search); keyword != "" {
			kw := "%" + likeEscaper.Replace(strings.ToLower(keyword)) + "%"
			switch strings.ToLower(strings.TrimSpace(params.SearchField)) {
			case entity.UserSearchFieldEmail:
				query = query.Where("LOWER(email) LIKE ? ESCAPE '!'", kw)
			case entity.UserSearchFieldName:
				query = query.Where("LOWER(name) LIKE ? ESCAPE '!'", kw)
			default:
				query = query.Where("LOWER(email) LIKE ? ESCAPE '!' OR LOWER(name) LIKE ? ESCAPE '!'", kw, kw)
			}
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, err
	}

	page := 1
	pageSize := 20
	order := "id DESC"
	if params != nil {
		if params.Page > 0 {
			page = int(params.Page)
		}
		if params.PageSize > 0 {
			pageSize = int(params.PageSize)
		}
		order = userOrderClause(params.SortBy, params.Order)
	}

	offset := (page - 1) * pageSize
	if offset < 0 {
		offset = 0
	}

	var users []entity.DbUser
	if err := query.Order(order).Offset(offset).Limit(pageSize).Find(&users).Error; err != nil {
		return nil, nil, err
	}

	meta := r.calculatePagination(total, page, pageSize)
	return users, meta, nil
}

func userOrderClause(sortBy, order string) string {
	column, ok := userSortColumns[strings.ToLower(strings.TrimSpace(sortBy))]
	if !ok {
		column = "id"
	}
	direction := "DESC"
	if strings.EqualFold(strings.TrimSpace(order), "asc") {
		direction = "ASC"
	}
	return column + " " + direction
}

// ListAllUsers returns every user, newest first.
func (r *GormRepository) ListAllUsers(ctx context.Context) ([]entity.DbUser, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	var users []entity.DbUser
	if err := r.db.WithContext(ctx).Order("id DESC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// DeleteUser removes a user by ID.
func (r *GormRepository) DeleteUser(ctx context.Context, id uint) error {
	if err := r.ready(); err != nil {
		return err
	}
	if id == 0 {
		return fmt.Errorf("invalid user id")
	}
	result := r.db.WithContext(ctx).Delete(&entity.DbUser{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteUsers removes every listed user in one statement and reports how many rows went away.
func (r *GormRepository) DeleteUsers(ctx context.Context, ids []uint) (int64, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&entity.DbUser{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// CountUsers returns total user count.
func (r *GormRepository) CountUsers(ctx context.Context) (int64, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.DbUser{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// EmailTaken reports whether another user already owns email.
func (r *GormRepository) EmailTaken(ctx context.Context, email string, excludeID uint) (bool, error) {
	if err := r.ready(); err != nil {
		return false, err
	}
	query := r.db.WithContext(ctx).Model(&entity.DbUser{}).Where("email = ?", strings.ToLower(strings.TrimSpace(email)))
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
