package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PurgeAuth 校验 X-Purge-Secret，未配置密钥时拒绝所有请求
func PurgeAuth(secret string, logger *zap.Logger) gin.HandlerFunc {
	if secret == "" {
		logger.Warn("[Purge] ⚠️ PURGE_SECRET not set, purge endpoint is disabled")
	}
	return func(c *gin.Context) {
		provided := c.GetHeader(HeaderPurgeSecret)
		if secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthorized"})
			return
		}
		c.Next()
	}
}
