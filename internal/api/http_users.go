package api

import (
	"context"
	"fmt"
	"net/http"
	"sitegate/internal/entity"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxImportSize = 5 << 20

func (h *HTTPHandler) ListUsers(c *gin.Context) {
	var query entity.UserQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		BadRequest(c, ErrCodeInvalidRequest, "invalid query parameters")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	users, meta, err := h.userService.ListUsers(ctx, &query)
	if err != nil {
		logrus.WithError(err).Error("failed to list users")
		InternalError(c, "failed to load users")
		return
	}

	response := entity.UserListResponse{
		Users: make([]entity.UserSummary, 0, len(users)),
		Meta:  meta,
	}
	for idx := range users {
		response.Users = append(response.Users, makeUserSummary(&users[idx]))
	}
	c.JSON(http.StatusOK, response)
}

func (h *HTTPHandler) CreateUser(c *gin.Context) {
	var req entity.UserCreateRequest
	if err := c.ShouldBind(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	user, generated, err := h.userService.AddUser(ctx, req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"admin_id": CurrentAdmin(c).ID,
	}).Info("user added")

	c.JSON(http.StatusCreated, entity.UserMutationResponse{
		User:              makeUserSummary(user),
		Message:           "User added successfully.",
		GeneratedPassword: generated,
	})
}

func (h *HTTPHandler) UpdateUser(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}

	var req entity.UserUpdateRequest
	if err := c.ShouldBind(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	user, err := h.userService.EditUser(ctx, id, req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, entity.UserMutationResponse{
		User:    makeUserSummary(user),
		Message: "User updated successfully.",
	})
}

func (h *HTTPHandler) DeleteUser(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.userService.DeleteUser(ctx, id); err != nil {
		ServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) BulkDeleteUsers(c *gin.Context) {
	var req entity.UserBulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, ErrCodeNoUsersSelected, "No users selected.")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	deleted, err := h.userService.BulkDelete(ctx, req.IDs)
	if err != nil {
		ServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"deleted": deleted,
		"message": fmt.Sprintf("%d user(s) deleted.", deleted),
	})
}

func (h *HTTPHandler) ResetUserPassword(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	plain, err := h.userService.ResetPassword(ctx, id)
	if err != nil {
		ServiceError(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{
		"user_id":  id,
		"admin_id": CurrentAdmin(c).ID,
	}).Info("user password reset")

	c.JSON(http.StatusOK, entity.PasswordResetResponse{
		UserID:      id,
		NewPassword: plain,
		Message:     "Password reset successfully. Share the new password with the user; it will not be shown again.",
	})
}

func (h *HTTPHandler) ImportUsers(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		MissingField(c, "file")
		return
	}
	if fileHeader.Size > maxImportSize {
		BadRequest(c, ErrCodeInvalidRequest, "import file is too large")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		logrus.WithError(err).Error("failed to open uploaded import file")
		InternalError(c, "failed to read import file")
		return
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	report, err := h.userService.Import(ctx, fileHeader.Filename, file)
	if err != nil {
		ServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *HTTPHandler) ExportUsers(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	export, err := h.userService.Export(ctx, c.Query("format"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	if export.ArchiveKey != "" {
		c.Header("X-Export-Archive", export.ArchiveKey)
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, export.ContentType, export.Data)
}

func parseUserID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, ErrCodeInvalidRequest, "Invalid user ID.")
		return 0, false
	}
	return uint(id), true
}

func makeUserSummary(user *entity.DbUser) entity.UserSummary {
	if user == nil {
		return entity.UserSummary{}
	}
	return entity.UserSummary{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
