package repository

import (
	"context"

	"codeinject-go-server/domain/entity"
)

// SiteRepository 站点数据仓库接口
type SiteRepository interface {
	// Get 不存在返回 ErrSiteNotFound
	Get(ctx context.Context, siteID string) (*entity.Site, error)

	List(ctx context.Context) ([]entity.Site, error)

	ListByOwner(ctx context.Context, ownerID string) ([]entity.Site, error)

	// Upsert 创建或更新站点基本信息（不覆盖文件列表与脚本绑定）
	Upsert(ctx context.Context, site *entity.Site) error

	UpdateFiles(ctx context.Context, siteID string, headFiles, bodyFiles entity.FileIDList) error

	// UpdateScriptBindings 空字符串表示该位置不变
	UpdateScriptBindings(ctx context.Context, siteID, headScriptID, bodyScriptID string) error
}
