package api

import (
	"errors"
	"net/http"
	"sitegate/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// 错误码定义
const (
	// 通用错误码
	ErrCodeInvalidRequest     = "ERR_INVALID_REQUEST"
	ErrCodeUnauthorized       = "ERR_UNAUTHORIZED"
	ErrCodeForbidden          = "ERR_FORBIDDEN"
	ErrCodeNotFound           = "ERR_NOT_FOUND"
	ErrCodeInternalError      = "ERR_INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "ERR_SERVICE_UNAVAILABLE"

	// 认证错误码
	ErrCodeInvalidCredentials = "ERR_INVALID_CREDENTIALS"
	ErrCodeRegistrationClosed = "ERR_REGISTRATION_CLOSED"
	ErrCodeAdminDisabled      = "ERR_ADMIN_DISABLED"
	ErrCodeSessionExpired     = "ERR_SESSION_EXPIRED"

	// 资源错误码
	ErrCodeUserNotFound = "ERR_USER_NOT_FOUND"

	// 业务逻辑错误码
	ErrCodeMissingField        = "ERR_MISSING_FIELD"
	ErrCodeInvalidName         = "ERR_INVALID_NAME"
	ErrCodeInvalidEmail        = "ERR_INVALID_EMAIL"
	ErrCodeEmailExists         = "ERR_EMAIL_EXISTS"
	ErrCodeDomainNotConfigured = "ERR_DOMAIN_NOT_CONFIGURED"
	ErrCodeInvalidDomain       = "ERR_INVALID_DOMAIN"
	ErrCodeNoUsersSelected     = "ERR_NO_USERS_SELECTED"
	ErrCodeNothingToExport     = "ERR_NOTHING_TO_EXPORT"
	ErrCodeUnsupportedFormat   = "ERR_UNSUPPORTED_FORMAT"
	ErrCodeInvalidSettings     = "ERR_INVALID_SETTINGS"
	ErrCodeInvalidLogo         = "ERR_INVALID_LOGO"
)

// APIError 统一的 API 错误响应结构
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse 返回统一格式的错误响应
func ErrorResponse(c *gin.Context, status int, code string, message string) {
	c.JSON(status, APIError{
		Code:    code,
		Message: message,
	})
}

// ErrorResponseWithDetails 返回带详情的错误响应
func ErrorResponseWithDetails(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, APIError{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// 常用错误响应快捷函数

// BadRequest 400 错误请求
func BadRequest(c *gin.Context, code string, message string) {
	ErrorResponse(c, http.StatusBadRequest, code, message)
}

// Unauthorized 401 未授权
func Unauthorized(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// Forbidden 403 禁止访问
func Forbidden(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusForbidden, ErrCodeForbidden, message)
}

// NotFound 404 资源不存在
func NotFound(c *gin.Context, code string, message string) {
	ErrorResponse(c, http.StatusNotFound, code, message)
}

// InternalError 500 服务器内部错误
func InternalError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusInternalServerError, ErrCodeInternalError, message)
}

// ServiceUnavailable 503 服务不可用
func ServiceUnavailable(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, message)
}

// MissingField 缺少必填字段
func MissingField(c *gin.Context, field string) {
	ErrorResponseWithDetails(c, http.StatusBadRequest, ErrCodeMissingField, field+" is required", gin.H{"field": field})
}

// InvalidPayload 无效的请求体
func InvalidPayload(c *gin.Context) {
	ErrorResponse(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request payload")
}

// serviceErrorStatus 将服务层哨兵错误映射为 HTTP 状态与错误码
func serviceErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidName):
		return http.StatusBadRequest, ErrCodeInvalidName
	case errors.Is(err, service.ErrInvalidEmail):
		return http.StatusBadRequest, ErrCodeInvalidEmail
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, ErrCodeEmailExists
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, ErrCodeUserNotFound
	case errors.Is(err, service.ErrDomainNotConfigured):
		return http.StatusConflict, ErrCodeDomainNotConfigured
	case errors.Is(err, service.ErrNoUsersSelected):
		return http.StatusBadRequest, ErrCodeNoUsersSelected
	case errors.Is(err, service.ErrNothingToExport):
		return http.StatusNotFound, ErrCodeNothingToExport
	case errors.Is(err, service.ErrUnsupportedFormat):
		return http.StatusBadRequest, ErrCodeUnsupportedFormat
	case errors.Is(err, service.ErrInvalidSettings):
		return http.StatusBadRequest, ErrCodeInvalidSettings
	case errors.Is(err, service.ErrInvalidLogo):
		return http.StatusBadRequest, ErrCodeInvalidLogo
	default:
		return http.StatusInternalServerError, ErrCodeInternalError
	}
}

// ServiceError 返回服务层错误；存储故障的细节仅对管理员可见
func ServiceError(c *gin.Context, err error) {
	status, code := serviceErrorStatus(err)
	if status == http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.Request.URL.Path).Error("service error")
	}
	ErrorResponse(c, status, code, err.Error())
}
