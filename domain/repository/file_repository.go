package repository

import (
	"context"

	"codeinject-go-server/domain/entity"
)

// FileRepository 代码片段仓库
type FileRepository interface {
	// GetByIDs 按 ID 集合读取，不存在的 ID 直接忽略
	GetByIDs(ctx context.Context, ids []int64) ([]entity.File, error)

	// Get 不存在返回 ErrFileNotFound
	Get(ctx context.Context, id int64) (*entity.File, error)

	ListBySite(ctx context.Context, siteID string) ([]entity.File, error)

	Create(ctx context.Context, file *entity.File) error

	// Update 只更新 name/language/code
	Update(ctx context.Context, file *entity.File) error

	Delete(ctx context.Context, id int64) error
}
