package api

import (
	"context"
	"net/http"
	"sitegate/internal/auth"
	"sitegate/internal/entity"
	"sitegate/internal/service"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const msgLoginFailed = "An error occurred. Please try again."

// AccessLogin 处理前台登录表单，响应使用 {success, data} 结构
func (h *HTTPHandler) AccessLogin(c *gin.Context) {
	var req entity.AccessLoginRequest
	if err := c.ShouldBind(&req); err != nil {
		accessFailure(c, http.StatusBadRequest, msgLoginFailed)
		return
	}

	sess := h.sessions.Load(c)
	if err := h.nonces.Verify(req.Nonce, sess.ID, auth.ActionLogin); err != nil {
		logrus.WithField("client_ip", c.ClientIP()).Warn("login rejected: nonce mismatch")
		accessFailure(c, http.StatusForbidden, service.MsgSecurityCheckFailed)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	result, err := h.accessService.Login(ctx, service.LoginInput{
		Email:       req.Email,
		Password:    req.Password,
		RedirectURL: req.RedirectURL,
		Preview:     service.ParseFlag(req.IsPreview),
		Admin:       h.privileges.PrivilegedAdmin(c),
	})
	if err != nil {
		logrus.WithError(err).Error("login failed")
		accessFailure(c, http.StatusInternalServerError, msgLoginFailed)
		return
	}
	if !result.Success {
		status := http.StatusUnauthorized
		if result.Message == service.MsgLoginUnavailable {
			status = http.StatusServiceUnavailable
		}
		accessFailure(c, status, result.Message)
		return
	}

	sess.Data = result.Session
	if err := h.sessions.Renew(c, sess); err != nil {
		logrus.WithError(err).Error("failed to save session after login")
		accessFailure(c, http.StatusInternalServerError, msgLoginFailed)
		return
	}
	logrus.WithFields(logrus.Fields{
		"email":   result.Session.UserEmail,
		"preview": result.Session.PreviewMode,
	}).Info("visitor logged in")

	c.JSON(http.StatusOK, entity.AccessResponse{
		Success: true,
		Data: entity.AccessResponseData{
			Message:     result.Message,
			RedirectURL: result.RedirectURL,
		},
	})
}

// AccessLogout 清空会话字段并总是返回成功；随机数不匹配只记录日志，会话 id 保持不变
func (h *HTTPHandler) AccessLogout(c *gin.Context) {
	var req entity.AccessLogoutRequest
	if err := c.ShouldBind(&req); err != nil {
		logrus.WithError(err).Debug("logout request without readable payload")
	}

	sess := h.sessions.Load(c)
	if err := h.nonces.Verify(req.Nonce, sess.ID, auth.ActionLogout); err != nil {
		logrus.WithField("client_ip", c.ClientIP()).Warn("logout nonce mismatch")
	}

	data, message := h.accessService.Logout()
	if !sess.IsNew() {
		sess.Data = data
		if err := h.sessions.Clear(c, sess); err != nil {
			logrus.WithError(err).Warn("failed to clear session on logout")
		}
	}
	c.JSON(http.StatusOK, entity.AccessResponse{
		Success: true,
		Data:    entity.AccessResponseData{Message: message},
	})
}

// AccessMe 返回当前访客身份及登出所需的随机数
func (h *HTTPHandler) AccessMe(c *gin.Context) {
	sess := h.sessions.Load(c)
	identity := h.accessService.Identity(sess.Data, h.privileges.PrivilegedAdmin(c))
	if identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "data": gin.H{"message": "Not logged in."}})
		return
	}

	data := gin.H{"identity": identity}
	if sess.Data.IsAuthenticated() && !sess.IsNew() {
		nonce, err := h.nonces.Create(sess.ID, auth.ActionLogout)
		if err != nil {
			logrus.WithError(err).Error("failed to create logout nonce")
			InternalError(c, "failed to load identity")
			return
		}
		data["logout_nonce"] = nonce
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func accessFailure(c *gin.Context, status int, message string) {
	c.JSON(status, entity.AccessResponse{
		Success: false,
		Data:    entity.AccessResponseData{Message: message},
	})
}
