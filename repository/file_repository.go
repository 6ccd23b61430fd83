package repository

import (
	"context"
	"errors"
	"time"

	"codeinject-go-server/domain/entity"
	domainErrors "codeinject-go-server/domain/errors"
	domainRepo "codeinject-go-server/domain/repository"

	"gorm.io/gorm"
)

type fileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) domainRepo.FileRepository {
	return &fileRepository{db: db}
}

// GetByIDs 一次查询取回所有文件，返回顺序不保证，调用方按列表顺序重排
func (r *fileRepository) GetByIDs(ctx context.Context, ids []int64) ([]entity.File, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var files []entity.File
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&files).Error
	return files, err
}

func (r *fileRepository) Get(ctx context.Context, id int64) (*entity.File, error) {
	var file entity.File
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainErrors.ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *fileRepository) ListBySite(ctx context.Context, siteID string) ([]entity.File, error) {
	var files []entity.File
	err := r.db.WithContext(ctx).
		Where("site_id = ?", siteID).
		Order("id ASC").
		Find(&files).Error
	return files, err
}

func (r *fileRepository) Create(ctx context.Context, file *entity.File) error {
	return r.db.WithContext(ctx).Create(file).Error
}

func (r *fileRepository) Update(ctx context.Context, file *entity.File) error {
	result := r.db.WithContext(ctx).Model(&entity.File{}).
		Where("id = ?", file.ID).
		Updates(map[string]interface{}{
			"name":       file.Name,
			"language":   file.Language,
			"code":       file.Code,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainErrors.ErrFileNotFound
	}
	return nil
}

func (r *fileRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.File{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainErrors.ErrFileNotFound
	}
	return nil
}
