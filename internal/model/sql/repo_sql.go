package sql

import (
	"fmt"
	"sitegate/internal/entity"

	"gorm.io/gorm"
)

// GormRepository implements Repository using GORM
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new repository instance
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) ready() error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	return nil
}

// calculatePagination calculates pagination metrics
func (r *GormRepository) calculatePagination(totalCount int64, page, pageSize int) *entity.Meta {
	if pageSize <= 0 {
		pageSize = 20
	}
	if page <= 0 {
		page = 1
	}

	totalPages := totalCount / int64(pageSize)
	if totalCount%int64(pageSize) != 0 {
		totalPages++
	}

	return &entity.Meta{
		Total:      totalCount,
		Page:       int64(page),
		PageSize:   int64(pageSize),
		TotalPages: totalPages,
	}
}
