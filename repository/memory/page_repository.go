// Package memory 提供内存版仓库实现，用于 DB_TYPE=memory 的本地开发和单元测试
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"codeinject-go-server/domain/entity"
	domainErrors "codeinject-go-server/domain/errors"
)

type PageRepository struct {
	mu     sync.RWMutex
	pages  map[uint]entity.Page
	nextID uint
}

func NewPageRepository() *PageRepository {
	return &PageRepository{
		pages:  make(map[uint]entity.Page),
		nextID: 1,
	}
}

func (r *PageRepository) GetByID(ctx context.Context, id uint) (*entity.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	page, ok := r.pages[id]
	if !ok {
		return nil, domainErrors.ErrPageNotFound
	}
	return clonePage(page), nil
}

func (r *PageRepository) ListBySite(ctx context.Context, siteID string) ([]entity.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var pages []entity.Page
	for _, p := range r.pages {
		if p.SiteID == siteID {
			pages = append(pages, *clonePage(p))
		}
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].ID < pages[j].ID })
	return pages, nil
}

func (r *PageRepository) CreateBatch(ctx context.Context, pages []entity.Page) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for i := range pages {
		p := *clonePage(pages[i])
		p.ID = r.nextID
		p.CreatedAt = now
		p.UpdatedAt = now
		r.nextID++
		r.pages[p.ID] = p
		pages[i].ID = p.ID
	}
	return nil
}

func (r *PageRepository) UpdateNames(ctx context.Context, siteID string, names map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.pages {
		if p.SiteID != siteID {
			continue
		}
		if name, ok := names[p.ExternalPageID]; ok {
			p.Name = name
			p.UpdatedAt = time.Now()
			r.pages[id] = p
		}
	}
	return nil
}

func (r *PageRepository) DeleteByExternalIDs(ctx context.Context, siteID string, externalIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doomed := make(map[string]bool, len(externalIDs))
	for _, id := range externalIDs {
		doomed[id] = true
	}
	for id, p := range r.pages {
		if p.SiteID == siteID && doomed[p.ExternalPageID] {
			delete(r.pages, id)
		}
	}
	return nil
}

func (r *PageRepository) UpdateFiles(ctx context.Context, id uint, headFiles, bodyFiles entity.FileIDList) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pages[id]
	if !ok {
		return domainErrors.ErrPageNotFound
	}
	p.HeadFiles = append(entity.FileIDList{}, headFiles...)
	p.BodyFiles = append(entity.FileIDList{}, bodyFiles...)
	p.UpdatedAt = time.Now()
	r.pages[id] = p
	return nil
}

func clonePage(p entity.Page) *entity.Page {
	p.HeadFiles = append(entity.FileIDList{}, p.HeadFiles...)
	p.BodyFiles = append(entity.FileIDList{}, p.BodyFiles...)
	return &p
}
