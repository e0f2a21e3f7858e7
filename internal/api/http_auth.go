package api

import (
	"context"
	"errors"
	"net/http"
	"sitegate/internal/auth"
	"sitegate/internal/entity"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Register 创建首个超级管理员，仅在管理员表为空时开放
func (h *HTTPHandler) Register(c *gin.Context) {
	var req entity.AuthRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, ErrCodeInvalidRequest, "invalid registration payload")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	count, err := h.repo.CountAdmins(ctx)
	if err != nil {
		logrus.WithError(err).Error("failed to count admins during registration")
		InternalError(c, "failed to process registration")
		return
	}
	if count > 0 {
		Forbidden(c, "registration disabled")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		logrus.WithError(err).Error("failed to hash password")
		InternalError(c, "failed to register admin")
		return
	}

	admin := &entity.DbAdmin{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Role:         entity.AdminRoleSuperAdmin,
		IsActive:     true,
	}
	if err := h.repo.CreateAdmin(ctx, admin); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			BadRequest(c, ErrCodeRegistrationClosed, "email already registered")
			return
		}
		logrus.WithError(err).Error("failed to create initial admin")
		InternalError(c, "failed to register admin")
		return
	}

	h.issueToken(c, http.StatusCreated, admin)
}

// Login 管理员登录，令牌同时写入 cookie 以便前台识别管理员
func (h *HTTPHandler) Login(c *gin.Context) {
	var req entity.AuthLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, ErrCodeInvalidRequest, "invalid login payload")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	admin, err := h.repo.GetAdminByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.WithError(err).Error("failed to load admin for login")
			InternalError(c, "failed to process login")
			return
		}
		logrus.WithField("email", email).Warn("admin login attempt failed")
		ErrorResponse(c, http.StatusUnauthorized, ErrCodeInvalidCredentials, "invalid email or password")
		return
	}
	if !admin.IsActive {
		ErrorResponse(c, http.StatusForbidden, ErrCodeAdminDisabled, "admin is disabled")
		return
	}
	if err := auth.VerifyPassword(admin.PasswordHash, req.Password); err != nil {
		logrus.WithField("email", email).Warn("admin password verification failed")
		ErrorResponse(c, http.StatusUnauthorized, ErrCodeInvalidCredentials, "invalid email or password")
		return
	}

	h.issueToken(c, http.StatusOK, admin)
}

// Logout 清除管理员 cookie；Bearer 令牌由客户端自行丢弃
func (h *HTTPHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AdminCookieName, "", -1, "/", "", h.cfg.SessionCookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *HTTPHandler) AuthStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	count, err := h.repo.CountAdmins(ctx)
	if err != nil {
		logrus.WithError(err).Error("failed to count admins for auth status")
		InternalError(c, "failed to check auth status")
		return
	}
	c.JSON(http.StatusOK, entity.AuthStatusResponse{HasAdmin: count > 0})
}

func (h *HTTPHandler) Me(c *gin.Context) {
	admin := CurrentAdmin(c)
	if admin == nil {
		Unauthorized(c, "authentication required")
		return
	}
	c.JSON(http.StatusOK, makeAdminSummary(admin))
}

func (h *HTTPHandler) issueToken(c *gin.Context, status int, admin *entity.DbAdmin) {
	token, expiresAt, err := h.authManager.GenerateToken(admin)
	if err != nil {
		logrus.WithError(err).Error("failed to generate token")
		InternalError(c, "failed to create session")
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AdminCookieName, token, int(h.authManager.Expiry().Seconds()), "/", "", h.cfg.SessionCookieSecure, true)
	c.JSON(status, entity.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Admin:     makeAdminSummary(admin),
	})
}

func makeAdminSummary(admin *entity.DbAdmin) entity.AdminSummary {
	if admin == nil {
		return entity.AdminSummary{}
	}
	return entity.AdminSummary{
		ID:          admin.ID,
		Email:       admin.Email,
		DisplayName: admin.DisplayName,
		Role:        admin.Role,
		IsActive:    admin.IsActive,
		CreatedAt:   admin.CreatedAt,
		UpdatedAt:   admin.UpdatedAt,
	}
}
