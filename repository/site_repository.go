package repository

import (
	"context"
	"errors"
	"time"

	"codeinject-go-server/domain/entity"
	domainErrors "codeinject-go-server/domain/errors"
	domainRepo "codeinject-go-server/domain/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// siteRepository GORM 实现 SiteRepository 接口
type siteRepository struct {
	db *gorm.DB
}

func NewSiteRepository(db *gorm.DB) domainRepo.SiteRepository {
	return &siteRepository{db: db}
}

func (r *siteRepository) Get(ctx context.Context, siteID string) (*entity.Site, error) {
	var site entity.Site
	err := r.db.WithContext(ctx).Where("external_site_id = ?", siteID).First(&site).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainErrors.ErrSiteNotFound
	}
	if err != nil {
		return nil, err
	}
	return &site, nil
}

func (r *siteRepository) List(ctx context.Context) ([]entity.Site, error) {
	var sites []entity.Site
	err := r.db.WithContext(ctx).Order("external_site_id ASC").Find(&sites).Error
	return sites, err
}

func (r *siteRepository) ListByOwner(ctx context.Context, ownerID string) ([]entity.Site, error) {
	var sites []entity.Site
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("external_site_id ASC").
		Find(&sites).Error
	return sites, err
}

// Upsert 使用 PostgreSQL ON CONFLICT 语法
// 冲突时只更新基本信息，文件列表和脚本绑定保持不变
func (r *siteRepository) Upsert(ctx context.Context, site *entity.Site) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_site_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "owner_id", "updated_at"}),
	}).Create(site).Error
}

func (r *siteRepository) UpdateFiles(ctx context.Context, siteID string, headFiles, bodyFiles entity.FileIDList) error {
	result := r.db.WithContext(ctx).Model(&entity.Site{}).
		Where("external_site_id = ?", siteID).
		Updates(map[string]interface{}{
			"head_files": headFiles,
			"body_files": bodyFiles,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainErrors.ErrSiteNotFound
	}
	return nil
}

func (r *siteRepository) UpdateScriptBindings(ctx context.Context, siteID, headScriptID, bodyScriptID string) error {
	updates := map[string]interface{}{"updated_at": time.Now()}
	if headScriptID != "" {
		updates["head_script_id"] = headScriptID
	}
	if bodyScriptID != "" {
		updates["body_script_id"] = bodyScriptID
	}

	result := r.db.WithContext(ctx).Model(&entity.Site{}).
		Where("external_site_id = ?", siteID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainErrors.ErrSiteNotFound
	}
	return nil
}
