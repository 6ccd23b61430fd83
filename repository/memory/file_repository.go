package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"codeinject-go-server/domain/entity"
	domainErrors "codeinject-go-server/domain/errors"
)

type FileRepository struct {
	mu     sync.RWMutex
	files  map[int64]entity.File
	nextID int64

	// 测试用：统计批量读取次数，用于观察缓存是否命中
	batchReads atomic.Int64
}

func NewFileRepository() *FileRepository {
	return &FileRepository{
		files:  make(map[int64]entity.File),
		nextID: 1,
	}
}

// BatchReads 返回 GetByIDs 被调用的次数
func (r *FileRepository) BatchReads() int64 {
	return r.batchReads.Load()
}

func (r *FileRepository) GetByIDs(ctx context.Context, ids []int64) ([]entity.File, error) {
	r.batchReads.Add(1)
	r.mu.RLock()
	defer r.mu.RUnlock()
	var files []entity.File
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if f, ok := r.files[id]; ok {
			files = append(files, f)
		}
	}
	return files, nil
}

func (r *FileRepository) Get(ctx context.Context, id int64) (*entity.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.files[id]
	if !ok {
		return nil, domainErrors.ErrFileNotFound
	}
	return &f, nil
}

func (r *FileRepository) ListBySite(ctx context.Context, siteID string) ([]entity.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var files []entity.File
	for _, f := range r.files {
		if f.SiteID == siteID {
			files = append(files, f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	return files, nil
}

func (r *FileRepository) Create(ctx context.Context, file *entity.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	file.ID = r.nextID
	file.CreatedAt = now
	file.UpdatedAt = now
	r.nextID++
	r.files[file.ID] = *file
	return nil
}

func (r *FileRepository) Update(ctx context.Context, file *entity.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.files[file.ID]
	if !ok {
		return domainErrors.ErrFileNotFound
	}
	existing.Name = file.Name
	existing.Language = file.Language
	existing.Code = file.Code
	existing.UpdatedAt = time.Now()
	r.files[file.ID] = existing
	return nil
}

func (r *FileRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[id]; !ok {
		return domainErrors.ErrFileNotFound
	}
	delete(r.files, id)
	return nil
}
