package repository

import (
	"context"

	"codeinject-go-server/domain/entity"
	domainRepo "codeinject-go-server/domain/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// userRepository GORM 实现 UserRepository 接口
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 构造函数
func NewUserRepository(db *gorm.DB) domainRepo.UserRepository {
	return &userRepository{db: db}
}

// Upsert 创建或更新用户（Clerk Webhook 同步使用）
// 使用 PostgreSQL ON CONFLICT 语法实现 upsert
func (r *userRepository) Upsert(ctx context.Context, user *entity.User) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}}, // 冲突字段
		DoUpdates: clause.AssignmentColumns([]string{"email", "name", "avatar_url", "updated_at"}),
	}).Create(user).Error
}

// Delete 用户删除事件，站点保留（所有者字段悬空，由运营处理）
func (r *userRepository) Delete(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Where("id = ?", userID).Delete(&entity.User{}).Error
}
