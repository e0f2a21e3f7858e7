package api

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"sitegate/internal/auth"
	"sitegate/internal/entity"
	"sitegate/internal/gate"
	"sitegate/internal/session"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var pageFS embed.FS

const (
	loginTemplate         = "login.html"
	setupRequiredTemplate = "setup_required.html"

	accessLoginPath = "/api/access/login"
)

type loginPageData struct {
	Settings    entity.LoginSettings
	Domain      string
	LoginURL    string
	RedirectURL string
	Nonce       string
	Preview     bool
	AdminEmail  string
}

type setupPageData struct {
	AdminLoginURL     string
	DomainSettingsURL string
}

func parsePages() (*template.Template, error) {
	return template.ParseFS(pageFS, "templates/*.html")
}

// renderLoginPage 渲染登录页；预览模式下预填管理员邮箱
func (h *HTTPHandler) renderLoginPage(c *gin.Context, sess *session.Session, admin *entity.DbAdmin, preview bool) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	settings, err := h.settingsService.LoginSettings(ctx)
	if err != nil {
		logrus.WithError(err).Error("failed to load login settings")
		settings = entity.DefaultLoginSettings()
	}
	domain, err := h.domains.AllowedDomain(ctx)
	if err != nil {
		logrus.WithError(err).Error("failed to read allowed domain")
	}

	// 随机数绑定会话 id，新会话需先落盘并下发 cookie
	if sess.IsNew() {
		if err := h.sessions.Save(c, sess); err != nil {
			logrus.WithError(err).Error("failed to persist session for login page")
		}
	}
	nonce, err := h.nonces.Create(sess.ID, auth.ActionLogin)
	if err != nil {
		logrus.WithError(err).Error("failed to create login nonce")
		InternalError(c, "failed to render login page")
		return
	}

	data := loginPageData{
		Settings:    settings,
		Domain:      domain,
		LoginURL:    accessLoginPath,
		RedirectURL: gate.RedirectURL(c.Request),
		Nonce:       nonce,
		Preview:     preview,
	}
	if preview && admin != nil {
		data.AdminEmail = admin.Email
	}

	c.Header("Cache-Control", "no-store")
	c.HTML(http.StatusOK, loginTemplate, data)
}

func (h *HTTPHandler) renderSetupRequired(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.HTML(http.StatusServiceUnavailable, setupRequiredTemplate, setupPageData{
		AdminLoginURL:     "/api/admin/auth/login",
		DomainSettingsURL: "/api/admin/settings/domain",
	})
}
