package repository

import (
	"context"

	"codeinject-go-server/domain/entity"
)

// UserRepository 只由 Clerk Webhook 写入
type UserRepository interface {
	// Upsert = Update + Insert（存在则更新，不存在则创建）
	Upsert(ctx context.Context, user *entity.User) error

	Delete(ctx context.Context, userID string) error
}
