package model

import (
	"context"
	"sitegate/internal/entity"
	"time"
)

// Repository 定义数据库操作接口
type Repository interface {
	UserRepository
	AdminRepository
	SettingRepository
	SessionRepository
}

// UserRepository 允许访问的用户
type UserRepository interface {
	CreateUser(ctx context.Context, user *entity.DbUser) error
	UpdateUser(ctx context.Context, id uint, updates entity.UserUpdates) error
	GetUserByEmail(ctx context.Context, email string) (*entity.DbUser, error)
	GetUserByID(ctx context.Context, id uint) (*entity.DbUser, error)
	ListUsers(ctx context.Context, params *entity.UserQuery) ([]entity.DbUser, *entity.Meta, error)
	ListAllUsers(ctx context.Context) ([]entity.DbUser, error)
	DeleteUser(ctx context.Context, id uint) error
	DeleteUsers(ctx context.Context, ids []uint) (int64, error)
	CountUsers(ctx context.Context) (int64, error)
	EmailTaken(ctx context.Context, email string, excludeID uint) (bool, error)
}

// AdminRepository 站点管理员
type AdminRepository interface {
	CreateAdmin(ctx context.Context, admin *entity.DbAdmin) error
	GetAdminByEmail(ctx context.Context, email string) (*entity.DbAdmin, error)
	GetAdminByID(ctx context.Context, id uint) (*entity.DbAdmin, error)
	CountAdmins(ctx context.Context) (int64, error)
}

// SettingRepository 键值配置
type SettingRepository interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
}

// SessionRepository 数据库会话存储
type SessionRepository interface {
	SaveSession(ctx context.Context, session *entity.DbSession) error
	LoadSession(ctx context.Context, id string) (*entity.DbSession, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error)
}
