package repository

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"codeinject-go-server/domain/entity"
	domainErrors "codeinject-go-server/domain/errors"
	domainRepo "codeinject-go-server/domain/repository"

	"gorm.io/gorm"
)

// 批量插入时每批行数
const createBatchSize = 500

// pageRepository GORM 实现 PageRepository 接口
type pageRepository struct {
	db *gorm.DB
}

// NewPageRepository 构造函数
func NewPageRepository(db *gorm.DB) domainRepo.PageRepository {
	return &pageRepository{db: db}
}

// GetByID 根据本地 ID 查询页面
func (r *pageRepository) GetByID(ctx context.Context, id uint) (*entity.Page, error) {
	var page entity.Page
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&page).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainErrors.ErrPageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func (r *pageRepository) ListBySite(ctx context.Context, siteID string) ([]entity.Page, error) {
	var pages []entity.Page
	err := r.db.WithContext(ctx).
		Where("site_id = ?", siteID).
		Order("id ASC").
		Find(&pages).Error
	return pages, err
}

// CreateBatch 一次性批量插入
func (r *pageRepository) CreateBatch(ctx context.Context, pages []entity.Page) error {
	if len(pages) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&pages, createBatchSize).Error
}

// UpdateNames 用一条 UPDATE ... SET name = CASE ... 完成批量改名
// ⚠️ 关键：只更新 name/updated_at，文件列表可能正在被编辑器并发修改
func (r *pageRepository) UpdateNames(ctx context.Context, siteID string, names map[string]string) error {
	if len(names) == 0 {
		return nil
	}

	externalIDs := make([]string, 0, len(names))
	for id := range names {
		externalIDs = append(externalIDs, id)
	}
	sort.Strings(externalIDs)

	var sb strings.Builder
	args := make([]interface{}, 0, len(names)*2)
	sb.WriteString("CASE external_page_id")
	for _, id := range externalIDs {
		sb.WriteString(" WHEN ? THEN ?")
		args = append(args, id, names[id])
	}
	sb.WriteString(" ELSE name END")

	return r.db.WithContext(ctx).Model(&entity.Page{}).
		Where("site_id = ? AND external_page_id IN ?", siteID, externalIDs).
		Updates(map[string]interface{}{
			"name":       gorm.Expr(sb.String(), args...),
			"updated_at": time.Now(),
		}).Error
}

func (r *pageRepository) DeleteByExternalIDs(ctx context.Context, siteID string, externalIDs []string) error {
	if len(externalIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("site_id = ? AND external_page_id IN ?", siteID, externalIDs).
		Delete(&entity.Page{}).Error
}

// UpdateFiles 只更新文件列表字段
func (r *pageRepository) UpdateFiles(ctx context.Context, id uint, headFiles, bodyFiles entity.FileIDList) error {
	result := r.db.WithContext(ctx).Model(&entity.Page{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"head_files": headFiles,
			"body_files": bodyFiles,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainErrors.ErrPageNotFound
	}
	return nil
}
