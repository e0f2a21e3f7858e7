package service

import (
	"context"
	"errors"
	"fmt"
	"sitegate/internal/auth"
	"sitegate/internal/emaildomain"
	"sitegate/internal/entity"
	"sitegate/internal/session"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	MsgSecurityCheckFailed = "Security check failed"
	MsgPreviewLoginSuccess = "Preview login successful (Administrator)"
	MsgEmailNotAuthorized  = "Email not authorized for access."
	MsgInvalidPassword     = "Invalid password."
	MsgLoginSuccess        = "Login successful"
	MsgLogoutSuccess       = "Logged out successfully"
	MsgLoginUnavailable    = "Login is unavailable until an allowed email domain is configured."

	VisitorTypeRestricted = "restricted"
	VisitorTypePreview    = "preview"
	VisitorTypeAdmin      = "admin"

	previewUserIDPrefix = "admin_"
)

// UserLookup 按邮箱查找白名单用户，不存在时返回 ErrUserNotFound
type UserLookup interface {
	FindByEmail(ctx context.Context, email string) (*entity.DbUser, error)
}

// LoginInput 登录表单内容；Admin 为当前请求已识别的特权管理员，没有则为 nil
type LoginInput struct {
	Email       string
	Password    string
	RedirectURL string
	Preview     bool
	Admin       *entity.DbAdmin
}

// LoginResult 登录结果；Success 为 true 时 Session 为应写入会话的数据
type LoginResult struct {
	Success     bool
	Message     string
	RedirectURL string
	Session     session.Data
}

// AccessService 前台登录/登出处理
type AccessService struct {
	users   UserLookup
	domains DomainSource
}

// NewAccessService 创建访问服务实例
func NewAccessService(users UserLookup, domains DomainSource) *AccessService {
	return &AccessService{users: users, domains: domains}
}

// Login 校验凭据。返回 error 仅表示存储故障，凭据错误通过 Success=false 表达，且不产生任何状态变化
func (s *AccessService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	email := strings.TrimSpace(in.Email)
	redirect := in.RedirectURL
	if strings.TrimSpace(redirect) == "" {
		redirect = "/"
	}

	if in.Preview && in.Admin.IsPrivileged() {
		if strings.EqualFold(email, in.Admin.Email) && auth.VerifyPassword(in.Admin.PasswordHash, in.Password) == nil {
			name := in.Admin.DisplayName
			if name == "" {
				name = in.Admin.Email
			}
			logrus.WithField("admin_id", in.Admin.ID).Info("preview login")
			return &LoginResult{
				Success:     true,
				Message:     MsgPreviewLoginSuccess,
				RedirectURL: redirect,
				Session: session.Data{
					Authenticated: true,
					UserEmail:     in.Admin.Email,
					UserName:      name,
					UserID:        fmt.Sprintf("%s%d", previewUserIDPrefix, in.Admin.ID),
					PreviewMode:   true,
				},
			}, nil
		}
	}

	domain, err := s.domains.AllowedDomain(ctx)
	if err != nil {
		return nil, fmt.Errorf("read allowed domain: %w", err)
	}
	if domain == "" {
		return &LoginResult{Message: MsgLoginUnavailable}, nil
	}
	if !emaildomain.MatchesDomain(email, domain) {
		return &LoginResult{Message: fmt.Sprintf("Invalid email domain. Only @%s emails are allowed.", domain)}, nil
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			logrus.WithField("email", email).Warn("login rejected: email not authorized")
			return &LoginResult{Message: MsgEmailNotAuthorized}, nil
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if auth.VerifyPassword(user.Password, in.Password) != nil {
		logrus.WithField("email", email).Warn("login rejected: invalid password")
		return &LoginResult{Message: MsgInvalidPassword}, nil
	}

	return &LoginResult{
		Success:     true,
		Message:     MsgLoginSuccess,
		RedirectURL: redirect,
		Session: session.Data{
			Authenticated: true,
			UserEmail:     user.Email,
			UserName:      user.Name,
			UserID:        fmt.Sprintf("%d", user.ID),
			PreviewMode:   in.Preview,
		},
	}, nil
}

// Logout 清空会话数据；总是成功
func (s *AccessService) Logout() (session.Data, string) {
	return session.Data{}, MsgLogoutSuccess
}

// Identity 描述当前访客，管理员优先；未登录且非管理员时返回 nil
func (s *AccessService) Identity(data session.Data, admin *entity.DbAdmin) *entity.VisitorIdentity {
	if admin.IsPrivileged() {
		name := admin.DisplayName
		if name == "" {
			name = admin.Email
		}
		return &entity.VisitorIdentity{
			ID:       fmt.Sprintf("%s%d", previewUserIDPrefix, admin.ID),
			Name:     name,
			Email:    admin.Email,
			Type:     VisitorTypeAdmin,
			Greeting: "Welcome, " + name,
		}
	}
	if !data.IsAuthenticated() {
		return nil
	}

	name := data.UserName
	if name == "" {
		name = "User"
	}
	identity := &entity.VisitorIdentity{
		ID:          data.UserID,
		Name:        name,
		Email:       data.UserEmail,
		Type:        VisitorTypeRestricted,
		PreviewMode: data.PreviewMode,
		Greeting:    "Welcome, " + name,
	}
	if data.PreviewMode {
		identity.Type = VisitorTypePreview
		identity.Greeting += " (Preview Mode)"
	}
	return identity
}

// ParseFlag 解析表单中的布尔标记（"1"、"true"、"on"、"yes"）
func ParseFlag(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "on", "yes":
		return true
	default:
		return false
	}
}
