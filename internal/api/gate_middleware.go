package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"sitegate/internal/gate"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxGateFormSize = 1 << 20

// GateMiddleware 在前台内容之前判定访问权限，需要渲染页面时中止后续处理
func (h *HTTPHandler) GateMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		form, err := peekForm(c.Request)
		if err != nil {
			logrus.WithError(err).Warn("failed to read request form")
			BadRequest(c, ErrCodeInvalidRequest, "invalid request body")
			c.Abort()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		sess := h.sessions.Load(c)
		admin := h.privileges.PrivilegedAdmin(c)
		decision := gate.Evaluate(gate.Request{
			Path:             path,
			Method:           c.Request.Method,
			Query:            c.Request.URL.Query(),
			Form:             form,
			IsAdminSurface:   isAdminSurface(path),
			IsAsync:          isAsyncCall(path),
			IsPrivileged:     admin != nil,
			DomainConfigured: h.domains.IsConfigured(ctx),
			Session:          sess.Data,
		})
		logrus.WithFields(logrus.Fields{
			"path":     path,
			"decision": decision.String(),
		}).Debug("gate decision")

		switch decision {
		case gate.RenderPreview:
			h.renderLoginPage(c, sess, admin, true)
			c.Abort()
		case gate.LoginRequest:
			// 登录页本身由网关提供；表单直接提交到前台地址时交给登录处理
			if c.Request.Method == http.MethodPost {
				h.AccessLogin(c)
			} else {
				h.renderLoginPage(c, sess, nil, false)
			}
			c.Abort()
		case gate.SetupRequired:
			h.renderSetupRequired(c)
			c.Abort()
		case gate.RenderLogin:
			h.renderLoginPage(c, sess, nil, false)
			c.Abort()
		default:
			c.Next()
		}
	}
}

// serveContent 交给受保护站点；管理路径上的未知地址直接返回 404
func (h *HTTPHandler) serveContent(content http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isAdminSurface(c.Request.URL.Path) {
			NotFound(c, ErrCodeNotFound, "route not found")
			return
		}
		content.ServeHTTP(c.Writer, c.Request)
	}
}

func isAdminSurface(path string) bool {
	return path == "/health" || path == "/admin" ||
		strings.HasPrefix(path, "/admin/") || strings.HasPrefix(path, "/api/")
}

func isAsyncCall(path string) bool {
	return strings.HasPrefix(path, "/api/access/")
}

// peekForm 读取 urlencoded 表单并还原请求体，以便后续仍可代理到上游
func peekForm(r *http.Request) (url.Values, error) {
	if r.Method != http.MethodPost || r.Body == nil {
		return url.Values{}, nil
	}
	contentType := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		return url.Values{}, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxGateFormSize+1))
	if err != nil {
		return nil, err
	}
	r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(body), r.Body), Closer: r.Body}
	if len(body) > maxGateFormSize {
		return url.Values{}, nil
	}
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return url.Values{}, nil
	}
	return form, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}
