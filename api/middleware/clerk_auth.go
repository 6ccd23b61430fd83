package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/clerk/clerk-sdk-go/v2/jwt"
	"github.com/gin-gonic/gin"
)

// TokenVerifier 校验会话 token，返回用户 ID
type TokenVerifier func(ctx context.Context, token string) (string, error)

// ClerkVerifier Clerk SDK 会自动拉取公钥并验证签名、过期时间
func ClerkVerifier(ctx context.Context, token string) (string, error) {
	claims, err := jwt.Verify(ctx, &jwt.VerifyParams{Token: token})
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func ClerkAuth(verify TokenVerifier) gin.HandlerFunc {
	if verify == nil {
		verify = ClerkVerifier
	}
	return func(c *gin.Context) {
		// 1. 获取 Token (支持 Bearer Token)
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")

		// 2. 验证 Token
		userID, err := verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "details": err.Error()})
			return
		}

		// 3. 将用户信息注入上下文，供后续 Controller 使用
		c.Set(ContextKeyUserID, userID)

		c.Next()
	}
}
