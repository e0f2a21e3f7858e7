package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sitegate/internal/entity"
	"sitegate/internal/model"
	"time"

	"gorm.io/gorm"
)

// DatabaseStore keeps sessions in the sessions table.
type DatabaseStore struct {
	repo model.SessionRepository
}

// NewDatabaseStore wraps a session repository.
func NewDatabaseStore(repo model.SessionRepository) *DatabaseStore {
	return &DatabaseStore{repo: repo}
}

func (s *DatabaseStore) Load(ctx context.Context, id string) (*Record, error) {
	row, err := s.repo.LoadSession(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !row.ExpiresAt.After(time.Now()) {
		return nil, ErrNotFound
	}

	var data Data
	if err := json.Unmarshal([]byte(row.Data), &data); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &Record{ID: row.ID, Data: data, ExpiresAt: row.ExpiresAt}, nil
}

func (s *DatabaseStore) Save(ctx context.Context, record *Record) error {
	if record == nil || record.ID == "" {
		return ErrInvalidRecord
	}
	raw, err := json.Marshal(record.Data)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.repo.SaveSession(ctx, &entity.DbSession{
		ID:        record.ID,
		Data:      string(raw),
		ExpiresAt: record.ExpiresAt,
	})
}

func (s *DatabaseStore) Delete(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}

func (s *DatabaseStore) Purge(ctx context.Context, now time.Time) (int64, error) {
	return s.repo.DeleteExpiredSessions(ctx, now)
}
