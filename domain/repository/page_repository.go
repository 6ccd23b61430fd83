package repository

import (
	"context"

	"codeinject-go-server/domain/entity"
)

// PageRepository 页面数据仓库接口
type PageRepository interface {
	// GetByID 根据本地 ID 获取页面，不存在返回 ErrPageNotFound
	GetByID(ctx context.Context, id uint) (*entity.Page, error)

	// ListBySite 列出站点下所有页面
	ListBySite(ctx context.Context, siteID string) ([]entity.Page, error)

	// CreateBatch 批量插入（同步流程的 insert 阶段）
	CreateBatch(ctx context.Context, pages []entity.Page) error

	// UpdateNames 批量更新名称（同步流程的 update 阶段）
	// 只允许修改 name，绝不触碰 head_files/body_files
	UpdateNames(ctx context.Context, siteID string, names map[string]string) error

	// DeleteByExternalIDs 批量删除（同步流程的 delete 阶段）
	DeleteByExternalIDs(ctx context.Context, siteID string, externalIDs []string) error

	// UpdateFiles 编辑器写入文件列表
	UpdateFiles(ctx context.Context, id uint, headFiles, bodyFiles entity.FileIDList) error
}
