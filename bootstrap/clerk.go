package bootstrap

import (
	"github.com/clerk/clerk-sdk-go/v2"
	"go.uber.org/zap"
)

// InitClerk 设置 Clerk 全局密钥
// 没有密钥时 /api 与 /ws 的 JWT 验证都会失败，只记录警告不退出（本地调试 Delivery Endpoint 时很常见）
func InitClerk(secret string, logger *zap.Logger) {
	if secret == "" {
		logger.Warn("[Clerk] ⚠️ CLERK_SECRET_KEY not set, editor API will reject all tokens")
		return
	}
	clerk.SetKey(secret)
	logger.Info("[Clerk] ✅ initialized")
}
