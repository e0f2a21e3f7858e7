package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"sitegate/internal/config"
	"sitegate/internal/entity"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	currentAdminContextKey = "current-admin"
	adminLookupContextKey  = "admin-lookup"

	// AdminCookieName 浏览器访问前台时携带的管理员令牌
	AdminCookieName = config.AdminCookieName
)

var (
	errMissingToken = errors.New("missing admin token")
	errInvalidToken = errors.New("invalid admin token")
	errAdminMissing = errors.New("admin not found")
	errAdminBlocked = errors.New("admin disabled")
)

// PrivilegeChecker 判断前台请求是否来自具有管理权限的管理员，不是则返回 nil
type PrivilegeChecker interface {
	PrivilegedAdmin(c *gin.Context) *entity.DbAdmin
}

type adminLookup struct {
	admin *entity.DbAdmin
	err   error
}

// AuthMiddleware JWT 认证中间件，令牌来自 Authorization 头或管理员 cookie
func (h *HTTPHandler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, err := h.resolveAdmin(c)
		switch {
		case err == nil:
		case errors.Is(err, errMissingToken):
			c.AbortWithStatusJSON(http.StatusUnauthorized, APIError{
				Code:    ErrCodeUnauthorized,
				Message: "缺少授权信息",
			})
			return
		case errors.Is(err, errInvalidToken):
			c.AbortWithStatusJSON(http.StatusUnauthorized, APIError{
				Code:    ErrCodeSessionExpired,
				Message: "Token 无效或已过期",
			})
			return
		case errors.Is(err, errAdminMissing):
			c.AbortWithStatusJSON(http.StatusUnauthorized, APIError{
				Code:    ErrCodeUnauthorized,
				Message: "管理员不存在",
			})
			return
		case errors.Is(err, errAdminBlocked):
			c.AbortWithStatusJSON(http.StatusForbidden, APIError{
				Code:    ErrCodeAdminDisabled,
				Message: "账户已被禁用",
			})
			return
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, APIError{
				Code:    ErrCodeInternalError,
				Message: "验证管理员失败",
			})
			return
		}

		c.Set(currentAdminContextKey, admin)
		c.Next()
	}
}

// RequireAdmin 管理员权限守卫中间件
func (h *HTTPHandler) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentAdmin(c).IsPrivileged() {
			c.AbortWithStatusJSON(http.StatusForbidden, APIError{
				Code:    ErrCodeForbidden,
				Message: "需要管理员权限",
			})
			return
		}
		c.Next()
	}
}

// CurrentAdmin 从上下文获取当前认证的管理员
func CurrentAdmin(c *gin.Context) *entity.DbAdmin {
	value, exists := c.Get(currentAdminContextKey)
	if !exists {
		return nil
	}
	admin, ok := value.(*entity.DbAdmin)
	if !ok {
		return nil
	}
	return admin
}

// PrivilegedAdmin 实现 PrivilegeChecker：令牌有效、账户启用且角色为管理员
func (h *HTTPHandler) PrivilegedAdmin(c *gin.Context) *entity.DbAdmin {
	admin, err := h.resolveAdmin(c)
	if err != nil || !admin.IsPrivileged() {
		return nil
	}
	return admin
}

// resolveAdmin 解析请求携带的管理员令牌，结果在单个请求内缓存
func (h *HTTPHandler) resolveAdmin(c *gin.Context) (*entity.DbAdmin, error) {
	if cached, ok := c.Get(adminLookupContextKey); ok {
		if lookup, ok := cached.(adminLookup); ok {
			return lookup.admin, lookup.err
		}
	}
	admin, err := h.lookupAdmin(c)
	c.Set(adminLookupContextKey, adminLookup{admin: admin, err: err})
	return admin, err
}

func (h *HTTPHandler) lookupAdmin(c *gin.Context) (*entity.DbAdmin, error) {
	tokenString := adminToken(c)
	if tokenString == "" {
		return nil, errMissingToken
	}

	claims, err := h.authManager.ParseToken(tokenString)
	if err != nil {
		logrus.WithError(err).Debug("failed to parse admin token")
		return nil, errInvalidToken
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	admin, err := h.repo.GetAdminByID(ctx, claims.AdminID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errAdminMissing
		}
		logrus.WithError(err).WithField("admin_id", claims.AdminID).Error("failed to load admin")
		return nil, err
	}
	if !admin.IsActive {
		return nil, errAdminBlocked
	}
	return admin, nil
}

// adminToken 优先读取 Bearer 头，其次读取管理员 cookie
func adminToken(c *gin.Context) string {
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := c.Cookie(AdminCookieName); err == nil {
		return strings.TrimSpace(cookie)
	}
	return ""
}
