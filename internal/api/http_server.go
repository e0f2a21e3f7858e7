package api

import (
	"html/template"
	"net/http"
	"sitegate/internal/auth"
	"sitegate/internal/config"
	"sitegate/internal/emaildomain"
	"sitegate/internal/model"
	"sitegate/internal/service"
	"sitegate/internal/session"
	"sitegate/internal/storage"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPHandler HTTP 请求处理器
type HTTPHandler struct {
	cfg               config.Config
	repo              model.Repository
	storage           storage.Storage
	storagePublicBase string
	authManager       *auth.Manager
	nonces            *auth.NonceManager
	sessions          *session.Manager
	domains           *emaildomain.Validator
	privileges        PrivilegeChecker
	pages             *template.Template

	// 服务层
	userService     *service.UserService
	accessService   *service.AccessService
	settingsService *service.SettingsService
}

// NewHTTPHandler 创建 HTTP 处理器实例
func NewHTTPHandler(cfg config.Config, repo model.Repository, store storage.Storage, sessions *session.Manager) (*HTTPHandler, error) {
	expiry := time.Duration(cfg.JWTExpirationMinutes) * time.Minute
	authManager, err := auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer, expiry)
	if err != nil {
		return nil, err
	}
	nonces, err := auth.NewNonceManager(cfg.JWTSecret, time.Duration(cfg.NonceTTLMinutes)*time.Minute)
	if err != nil {
		return nil, err
	}
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}

	publicBase := normalisePublicBase(cfg.StoragePublicBaseURL)
	domains := emaildomain.NewValidator(repo)
	userSvc := service.NewUserService(repo, domains)
	if cfg.ExportArchive {
		userSvc.SetExportArchive(store)
	}

	handler := &HTTPHandler{
		cfg:               cfg,
		repo:              repo,
		storage:           store,
		storagePublicBase: publicBase,
		authManager:       authManager,
		nonces:            nonces,
		sessions:          sessions,
		domains:           domains,
		pages:             pages,
		userService:       userSvc,
		accessService:     service.NewAccessService(userSvc, domains),
		settingsService:   service.NewSettingsService(repo, store, publicBase),
	}
	handler.privileges = handler
	return handler, nil
}

// SetPrivilegeChecker 替换前台请求的管理员识别方式
func (h *HTTPHandler) SetPrivilegeChecker(checker PrivilegeChecker) {
	if checker != nil {
		h.privileges = checker
	}
}

// RegisterRoutes 注册管理 API、前台登录接口，并把其余路径交给受保护的站点内容
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine, content http.Handler) {
	r.SetHTMLTemplate(h.pages)

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	accessGroup := r.Group("/api/access")
	accessGroup.POST("/login", h.AccessLogin)
	accessGroup.POST("/logout", h.AccessLogout)
	accessGroup.GET("/me", h.AccessMe)

	adminGroup := r.Group("/api/admin")

	authGroup := adminGroup.Group("/auth")
	authGroup.GET("/status", h.AuthStatus)
	authGroup.POST("/register", h.Register)
	authGroup.POST("/login", h.Login)
	authGroup.POST("/logout", h.Logout)
	authGroup.GET("/me", h.AuthMiddleware(), h.Me)

	protected := adminGroup.Group("")
	protected.Use(h.AuthMiddleware(), h.RequireAdmin())

	users := protected.Group("/users")
	users.GET("", h.ListUsers)
	users.POST("", h.CreateUser)
	users.POST("/bulk-delete", h.BulkDeleteUsers)
	users.POST("/import", h.ImportUsers)
	users.GET("/export", h.ExportUsers)
	users.PATCH("/:id", h.UpdateUser)
	users.DELETE("/:id", h.DeleteUser)
	users.POST("/:id/reset-password", h.ResetUserPassword)

	settings := protected.Group("/settings")
	settings.GET("/domain", h.GetDomain)
	settings.PUT("/domain", h.UpdateDomain)
	settings.DELETE("/domain", h.ClearDomain)
	settings.POST("/domain/validate", h.ValidateDomain)
	settings.GET("/login-page", h.GetLoginSettings)
	settings.PUT("/login-page", h.UpdateLoginSettings)
	settings.DELETE("/login-page", h.ResetLoginSettings)
	settings.POST("/login-page/logo", h.UploadLogo)

	if localProvider, ok := h.storage.(storage.LocalBaseDirProvider); ok {
		if strings.HasPrefix(h.storagePublicBase, "/") {
			r.Static(h.storagePublicBase, localProvider.LocalBaseDir())
		}
	}

	if content == nil {
		content = http.NotFoundHandler()
	}
	r.NoRoute(h.GateMiddleware(), h.serveContent(content))
}

// normalisePublicBase 规范化公共 URL 基础路径
func normalisePublicBase(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		trimmed = "/files"
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return strings.TrimRight(trimmed, "/")
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	return strings.TrimRight(trimmed, "/")
}
