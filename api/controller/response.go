package controller

import (
	"errors"
	"net/http"
	"strconv"

	"codeinject-go-server/api/middleware"
	domainErrors "codeinject-go-server/domain/errors"

	"github.com/gin-gonic/gin"
)

// --- 响应结构定义 ---

// ErrorResponse 错误响应结构
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// MessageResponse 消息响应结构
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// statusOf 领域错误 → HTTP 状态码
func statusOf(err error) int {
	switch {
	case errors.Is(err, domainErrors.ErrTargetNotFound),
		errors.Is(err, domainErrors.ErrPageNotFound),
		errors.Is(err, domainErrors.ErrSiteNotFound),
		errors.Is(err, domainErrors.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainErrors.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domainErrors.ErrInvalidLocation),
		errors.Is(err, domainErrors.ErrInvalidTargetKind),
		errors.Is(err, domainErrors.ErrMissingTargetID),
		errors.Is(err, domainErrors.ErrInvalidFileIDs),
		errors.Is(err, domainErrors.ErrInvalidLanguage),
		errors.Is(err, domainErrors.ErrInvalidFileName),
		errors.Is(err, domainErrors.ErrInvalidPatch),
		errors.Is(err, domainErrors.ErrFileSiteMismatch):
		return http.StatusBadRequest
	case errors.Is(err, domainErrors.ErrRoomClosing):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError 4xx 带上错误原文，5xx 只记录到 gin 上下文由访问日志输出
func respondError(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(status, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

// currentUser 由 ClerkAuth 中间件写入
func currentUser(c *gin.Context) (string, bool) {
	userID := c.GetString(middleware.ContextKeyUserID)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing user"})
		return "", false
	}
	return userID, true
}

func pageIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("pageId"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "pageId must be a positive integer"})
		return 0, false
	}
	return uint(id), true
}

func fileIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("fileId"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "fileId must be a positive integer"})
		return 0, false
	}
	return id, true
}
