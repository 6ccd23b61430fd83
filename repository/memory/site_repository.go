package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"codeinject-go-server/domain/entity"
	domainErrors "codeinject-go-server/domain/errors"
)

type SiteRepository struct {
	mu    sync.RWMutex
	sites map[string]entity.Site
}

func NewSiteRepository() *SiteRepository {
	return &SiteRepository{sites: make(map[string]entity.Site)}
}

func (r *SiteRepository) Get(ctx context.Context, siteID string) (*entity.Site, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	site, ok := r.sites[siteID]
	if !ok {
		return nil, domainErrors.ErrSiteNotFound
	}
	return cloneSite(site), nil
}

func (r *SiteRepository) List(ctx context.Context) ([]entity.Site, error) {
	return r.filter(func(entity.Site) bool { return true }), nil
}

func (r *SiteRepository) ListByOwner(ctx context.Context, ownerID string) ([]entity.Site, error) {
	return r.filter(func(s entity.Site) bool { return s.OwnerID == ownerID }), nil
}

func (r *SiteRepository) filter(keep func(entity.Site) bool) []entity.Site {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sites []entity.Site
	for _, s := range r.sites {
		if keep(s) {
			sites = append(sites, *cloneSite(s))
		}
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i].ExternalSiteID < sites[j].ExternalSiteID })
	return sites
}

func (r *SiteRepository) Upsert(ctx context.Context, site *entity.Site) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	existing, ok := r.sites[site.ExternalSiteID]
	if ok {
		existing.Name = site.Name
		existing.OwnerID = site.OwnerID
		existing.UpdatedAt = now
		r.sites[site.ExternalSiteID] = existing
		return nil
	}
	s := *cloneSite(*site)
	s.CreatedAt = now
	s.UpdatedAt = now
	r.sites[s.ExternalSiteID] = s
	return nil
}

func (r *SiteRepository) UpdateFiles(ctx context.Context, siteID string, headFiles, bodyFiles entity.FileIDList) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sites[siteID]
	if !ok {
		return domainErrors.ErrSiteNotFound
	}
	s.HeadFiles = append(entity.FileIDList{}, headFiles...)
	s.BodyFiles = append(entity.FileIDList{}, bodyFiles...)
	s.UpdatedAt = time.Now()
	r.sites[siteID] = s
	return nil
}

func (r *SiteRepository) UpdateScriptBindings(ctx context.Context, siteID, headScriptID, bodyScriptID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sites[siteID]
	if !ok {
		return domainErrors.ErrSiteNotFound
	}
	if headScriptID != "" {
		s.HeadScriptID = headScriptID
	}
	if bodyScriptID != "" {
		s.BodyScriptID = bodyScriptID
	}
	s.UpdatedAt = time.Now()
	r.sites[siteID] = s
	return nil
}

func cloneSite(s entity.Site) *entity.Site {
	s.HeadFiles = append(entity.FileIDList{}, s.HeadFiles...)
	s.BodyFiles = append(entity.FileIDList{}, s.BodyFiles...)
	return &s
}
