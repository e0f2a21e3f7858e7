package sql

import (
	"context"
	"fmt"
	"sitegate/internal/entity"
	"strings"
	"time"

	"gorm.io/gorm/clause"
)

// SaveSession upserts a session row.
func (r *GormRepository) SaveSession(ctx context.Context, session *entity.DbSession) error {
	if err := r.ready(); err != nil {
		return err
	}
	if session == nil || strings.TrimSpace(session.ID) == "" {
		return fmt.Errorf("invalid session")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "expires_at", "updated_at"}),
	}).Create(session).Error
}

// LoadSession loads a session by ID.
func (r *GormRepository) LoadSession(ctx context.Context, id string) (*entity.DbSession, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	var session entity.DbSession
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// DeleteSession removes a session; missing rows are ignored.
func (r *GormRepository) DeleteSession(ctx context.Context, id string) error {
	if err := r.ready(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.DbSession{}).Error
}

// DeleteExpiredSessions purges sessions that expired before the given instant.
func (r *GormRepository) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	result := r.db.WithContext(ctx).Where("expires_at < ?", before).Delete(&entity.DbSession{})
	return result.RowsAffected, result.Error
}
