package api

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"sitegate/internal/emaildomain"
	"sitegate/internal/entity"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxLogoSize = 2 << 20

func (h *HTTPHandler) GetDomain(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	domain, err := h.domains.AllowedDomain(ctx)
	if err != nil {
		logrus.WithError(err).Error("failed to read allowed domain")
		InternalError(c, "failed to read allowed domain")
		return
	}
	c.JSON(http.StatusOK, entity.DomainSettingResponse{Domain: domain, Configured: domain != ""})
}

func (h *HTTPHandler) UpdateDomain(c *gin.Context) {
	var req entity.DomainSettingRequest
	if err := c.ShouldBind(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	result, err := h.domains.SetAllowedDomain(ctx, req.Domain)
	if err != nil {
		logrus.WithError(err).Error("failed to save allowed domain")
		InternalError(c, result.Message)
		return
	}
	if result.Status != emaildomain.StatusSuccess {
		BadRequest(c, ErrCodeInvalidDomain, result.Message)
		return
	}
	logrus.WithFields(logrus.Fields{
		"domain":   result.Domain,
		"admin_id": CurrentAdmin(c).ID,
	}).Info("allowed domain updated")
	c.JSON(http.StatusOK, entity.DomainSettingResponse{Domain: result.Domain, Configured: true, Message: result.Message})
}

func (h *HTTPHandler) ClearDomain(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.domains.ClearAllowedDomain(ctx); err != nil {
		logrus.WithError(err).Error("failed to clear allowed domain")
		InternalError(c, "failed to clear allowed domain")
		return
	}
	logrus.WithField("admin_id", CurrentAdmin(c).ID).Warn("allowed domain cleared, site is closed")
	c.JSON(http.StatusOK, entity.DomainSettingResponse{Message: "Allowed domain removed. The site is closed until a domain is configured."})
}

// ValidateDomain 只做格式校验，不保存
func (h *HTTPHandler) ValidateDomain(c *gin.Context) {
	var req entity.DomainSettingRequest
	if err := c.ShouldBind(&req); err != nil {
		InvalidPayload(c)
		return
	}
	result := emaildomain.ValidateDomainFormat(emaildomain.NormalizeDomain(req.Domain))
	c.JSON(http.StatusOK, entity.DomainValidationResponse{Valid: result.Valid, Message: result.Message})
}

func (h *HTTPHandler) GetLoginSettings(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	settings, err := h.settingsService.LoginSettings(ctx)
	if err != nil {
		ServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *HTTPHandler) UpdateLoginSettings(c *gin.Context) {
	var req entity.LoginSettingsUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	settings, err := h.settingsService.UpdateLoginSettings(ctx, req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *HTTPHandler) ResetLoginSettings(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	settings, err := h.settingsService.ResetLoginSettings(ctx)
	if err != nil {
		ServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *HTTPHandler) UploadLogo(c *gin.Context) {
	fileHeader, err := c.FormFile("logo")
	if err != nil {
		MissingField(c, "logo")
		return
	}
	if fileHeader.Size > maxLogoSize {
		BadRequest(c, ErrCodeInvalidLogo, "Logo must be smaller than 2 MB.")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		logrus.WithError(err).Error("failed to open uploaded logo")
		InternalError(c, "failed to read logo")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxLogoSize+1))
	if err != nil {
		logrus.WithError(err).Error("failed to read uploaded logo")
		InternalError(c, "failed to read logo")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	settings, err := h.settingsService.UploadLogo(ctx, data, filepath.Ext(fileHeader.Filename))
	if err != nil {
		ServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}
