package service

import (
	"context"
	"errors"
	"fmt"
	"sitegate/internal/auth"
	"sitegate/internal/emaildomain"
	"sitegate/internal/entity"
	"sitegate/internal/model"
	"sitegate/internal/storage"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var (
	ErrInvalidName         = errors.New("invalid name")
	ErrInvalidEmail        = errors.New("invalid email")
	ErrEmailTaken          = errors.New("email already exists")
	ErrUserNotFound        = errors.New("user not found")
	ErrDomainNotConfigured = errors.New("allowed domain not configured")
	ErrNoUsersSelected     = errors.New("no users selected")
	ErrNothingToExport     = errors.New("no users to export")
	ErrUnsupportedFormat   = errors.New("unsupported file format")
)

// UserError 携带可直接展示给管理员的提示，Unwrap 返回对应的哨兵错误
type UserError struct {
	Kind    error
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Kind
}

func userError(kind error, format string, args ...interface{}) error {
	return &UserError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// DomainSource 提供当前允许的邮箱域名
type DomainSource interface {
	AllowedDomain(ctx context.Context) (string, error)
}

// UserService 白名单用户管理服务
type UserService struct {
	repo    model.UserRepository
	domains DomainSource
	archive storage.Storage
	now     func() time.Time
}

// NewUserService 创建用户服务实例
func NewUserService(repo model.UserRepository, domains DomainSource) *UserService {
	return &UserService{
		repo:    repo,
		domains: domains,
		now:     time.Now,
	}
}

// SetExportArchive 设置导出归档存储，为 nil 时不归档
func (s *UserService) SetExportArchive(store storage.Storage) {
	s.archive = store
}

// AddUser 新增用户；未提供密码时自动生成并仅在返回值中出现一次
func (s *UserService) AddUser(ctx context.Context, req entity.UserCreateRequest) (*entity.DbUser, string, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, "", userError(ErrInvalidName, "Name is required.")
	}
	email, err := s.checkEmail(ctx, req.Email)
	if err != nil {
		return nil, "", err
	}
	if err := s.ensureEmailFree(ctx, email, 0); err != nil {
		return nil, "", err
	}

	password := req.Password
	generated := ""
	if strings.TrimSpace(password) == "" {
		generated, err = auth.GeneratePassword(auth.GeneratedPasswordLength)
		if err != nil {
			return nil, "", fmt.Errorf("generate password: %w", err)
		}
		password = generated
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user := &entity.DbUser{Name: name, Email: email, Password: hash}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, "", userError(ErrEmailTaken, "This email already exists in the list.")
		}
		return nil, "", fmt.Errorf("Failed to add user. Database error: %w", err)
	}
	return user, generated, nil
}

// EditUser 修改用户名称、邮箱，密码非空时同时更新
func (s *UserService) EditUser(ctx context.Context, id uint, req entity.UserUpdateRequest) (*entity.DbUser, error) {
	if _, err := s.getUser(ctx, id); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, userError(ErrInvalidName, "Name is required.")
	}
	email, err := s.checkEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, email, id); err != nil {
		return nil, err
	}

	updates := entity.UserUpdates{Name: &name, Email: &email}
	if req.Password != nil && strings.TrimSpace(*req.Password) != "" {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		updates.Password = &hash
	}
	if err := s.repo.UpdateUser(ctx, id, updates); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, userError(ErrEmailTaken, "This email already exists in the list.")
		}
		return nil, fmt.Errorf("Failed to update user. Database error: %w", err)
	}
	return s.getUser(ctx, id)
}

// DeleteUser 删除单个用户
func (s *UserService) DeleteUser(ctx context.Context, id uint) error {
	if id == 0 {
		return userError(ErrUserNotFound, "Invalid user ID.")
	}
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return userError(ErrUserNotFound, "User not found.")
		}
		return fmt.Errorf("Failed to delete user. Database error: %w", err)
	}
	return nil
}

// BulkDelete 批量删除，返回实际删除的数量
func (s *UserService) BulkDelete(ctx context.Context, ids []uint) (int64, error) {
	unique := make([]uint, 0, len(ids))
	seen := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return 0, userError(ErrNoUsersSelected, "No users selected.")
	}
	deleted, err := s.repo.DeleteUsers(ctx, unique)
	if err != nil {
		return 0, fmt.Errorf("Failed to delete users. Database error: %w", err)
	}
	return deleted, nil
}

// ListUsers 分页查询用户
func (s *UserService) ListUsers(ctx context.Context, query *entity.UserQuery) ([]entity.DbUser, *entity.Meta, error) {
	if query == nil {
		query = &entity.UserQuery{}
	}
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PageSize <= 0 {
		query.PageSize = defaultPageSize
	}
	if query.PageSize > maxPageSize {
		query.PageSize = maxPageSize
	}
	return s.repo.ListUsers(ctx, query)
}

// ResetPassword 生成新密码，只持久化哈希，明文仅返回这一次
func (s *UserService) ResetPassword(ctx context.Context, id uint) (string, error) {
	if _, err := s.getUser(ctx, id); err != nil {
		return "", err
	}
	plain, err := auth.GeneratePassword(auth.GeneratedPasswordLength)
	if err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	hash, err := auth.HashPassword(plain)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdateUser(ctx, id, entity.UserUpdates{Password: &hash}); err != nil {
		return "", fmt.Errorf("Failed to reset password. Database error: %w", err)
	}
	return plain, nil
}

// FindByEmail 按邮箱查找用户
func (s *UserService) FindByEmail(ctx context.Context, email string) (*entity.DbUser, error) {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return nil, ErrUserNotFound
	}
	user, err := s.repo.GetUserByEmail(ctx, trimmed)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) getUser(ctx context.Context, id uint) (*entity.DbUser, error) {
	if id == 0 {
		return nil, userError(ErrUserNotFound, "Invalid user ID.")
	}
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, userError(ErrUserNotFound, "User not found.")
		}
		return nil, err
	}
	return user, nil
}

// checkEmail 校验邮箱格式与域名，返回规范化（小写）后的邮箱
func (s *UserService) checkEmail(ctx context.Context, raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", userError(ErrInvalidEmail, "Please enter a valid email address.")
	}
	domain, err := s.domains.AllowedDomain(ctx)
	if err != nil {
		return "", fmt.Errorf("read allowed domain: %w", err)
	}
	if domain == "" {
		return "", userError(ErrDomainNotConfigured, "Allowed domain is not configured.")
	}
	if !emaildomain.MatchesDomain(email, domain) {
		return "", userError(ErrInvalidEmail, "Invalid email: %s. Only emails with @%s are allowed.", email, domain)
	}
	return strings.ToLower(email), nil
}

func (s *UserService) ensureEmailFree(ctx context.Context, email string, excludeID uint) error {
	taken, err := s.repo.EmailTaken(ctx, email, excludeID)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if taken {
		return userError(ErrEmailTaken, "This email already exists in the list.")
	}
	return nil
}

func logImportSkip(row int, email string, err error) {
	logrus.WithFields(logrus.Fields{
		"row":   row,
		"email": email,
	}).WithError(err).Debug("import row skipped")
}
