package usecase

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"codeinject-go-server/domain/entity"
	"codeinject-go-server/domain/repository"
	"codeinject-go-server/internal/platform"
	"codeinject-go-server/internal/telemetry"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PageSource 平台页面列表（platform.Client 实现）
type PageSource interface {
	ListPages(ctx context.Context, siteID string) ([]platform.RemotePage, error)
}

// CacheInvalidator 清除某个目标所有位置的缓存（BundleUseCase 实现）
type CacheInvalidator interface {
	InvalidateTarget(ctx context.Context, kind entity.TargetKind, id string)
}

// SyncPhase 同步流程的阶段
type SyncPhase string

const (
	PhaseFetch  SyncPhase = "fetch"
	PhaseLoad   SyncPhase = "load"
	PhaseInsert SyncPhase = "insert"
	PhaseUpdate SyncPhase = "update"
	PhaseDelete SyncPhase = "delete"
)

// SyncPhaseError 某个阶段失败；之前阶段的写入不会回滚
type SyncPhaseError struct {
	SiteID string
	Phase  SyncPhase
	Err    error
}

func (e *SyncPhaseError) Error() string {
	return fmt.Sprintf("sync site %s: %s phase failed: %v", e.SiteID, e.Phase, e.Err)
}

func (e *SyncPhaseError) Unwrap() error { return e.Err }

// SyncResult 一次同步的计数，阶段失败时只包含已完成阶段的计数
type SyncResult struct {
	SiteID  string `json:"siteId"`
	Remote  int    `json:"remote"`
	Added   int    `json:"added"`
	Updated int    `json:"updated"`
	Deleted int    `json:"deleted"`
}

// SiteSyncReport SyncAll 中单个站点的结果
type SiteSyncReport struct {
	SyncResult
	Error string `json:"error,omitempty"`
}

// SyncUseCase Page Reconciler：把平台页面列表对齐到本地 pages 表
type SyncUseCase struct {
	pages       repository.PageRepository
	sites       repository.SiteRepository
	source      PageSource
	invalidator CacheInvalidator
	metrics     *telemetry.Metrics
	logger      *zap.Logger
	concurrency int

	// 每个站点一个容量为 1 的信号量，同一站点的同步串行执行
	locksMu sync.Mutex
	locks   map[string]chan struct{}
}

func NewSyncUseCase(
	pages repository.PageRepository,
	sites repository.SiteRepository,
	source PageSource,
	invalidator CacheInvalidator,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
	concurrency int,
) *SyncUseCase {
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &SyncUseCase{
		pages:       pages,
		sites:       sites,
		source:      source,
		invalidator: invalidator,
		metrics:     metrics,
		logger:      logger.Named("sync"),
		concurrency: concurrency,
		locks:       make(map[string]chan struct{}),
	}
}

// lockSite 等待该站点上正在进行的同步结束，ctx 取消时放弃等待
func (uc *SyncUseCase) lockSite(ctx context.Context, siteID string) (func(), error) {
	uc.locksMu.Lock()
	sem, ok := uc.locks[siteID]
	if !ok {
		sem = make(chan struct{}, 1)
		uc.locks[siteID] = sem
	}
	uc.locksMu.Unlock()

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// requireSite 只同步已接入的站点，未知站点不会产生页面记录
func (uc *SyncUseCase) requireSite(ctx context.Context, siteID string) error {
	if _, err := uc.sites.Get(ctx, siteID); err != nil {
		return &SyncPhaseError{SiteID: siteID, Phase: PhaseLoad, Err: err}
	}
	return nil
}

// SyncSite 拉取平台页面列表并对齐
func (uc *SyncUseCase) SyncSite(ctx context.Context, siteID string) (SyncResult, error) {
	unlock, err := uc.lockSite(ctx, siteID)
	if err != nil {
		return SyncResult{SiteID: siteID}, &SyncPhaseError{SiteID: siteID, Phase: PhaseLoad, Err: err}
	}
	defer unlock()

	if err := uc.requireSite(ctx, siteID); err != nil {
		return SyncResult{SiteID: siteID}, err
	}
	remote, err := uc.source.ListPages(ctx, siteID)
	if err != nil {
		return SyncResult{SiteID: siteID}, &SyncPhaseError{SiteID: siteID, Phase: PhaseFetch, Err: err}
	}
	return uc.reconcile(ctx, siteID, remote)
}

// Reconcile 按 insert → update → delete 顺序写入
// 已存在的行只会改 name，文件列表不受同步影响
func (uc *SyncUseCase) Reconcile(ctx context.Context, siteID string, remote []platform.RemotePage) (SyncResult, error) {
	unlock, err := uc.lockSite(ctx, siteID)
	if err != nil {
		return SyncResult{SiteID: siteID}, &SyncPhaseError{SiteID: siteID, Phase: PhaseLoad, Err: err}
	}
	defer unlock()

	if err := uc.requireSite(ctx, siteID); err != nil {
		return SyncResult{SiteID: siteID}, err
	}
	return uc.reconcile(ctx, siteID, remote)
}

func (uc *SyncUseCase) reconcile(ctx context.Context, siteID string, remote []platform.RemotePage) (SyncResult, error) {
	result := SyncResult{SiteID: siteID, Remote: len(remote)}

	local, err := uc.pages.ListBySite(ctx, siteID)
	if err != nil {
		return result, &SyncPhaseError{SiteID: siteID, Phase: PhaseLoad, Err: err}
	}

	plan := planSync(siteID, local, remote)
	if plan.skipped > 0 {
		uc.logger.Warn("[Sync] ⚠️ remote pages without id skipped",
			zap.String("site", siteID), zap.Int("count", plan.skipped))
	}

	if len(plan.inserts) > 0 {
		if err := uc.pages.CreateBatch(ctx, plan.inserts); err != nil {
			return result, &SyncPhaseError{SiteID: siteID, Phase: PhaseInsert, Err: err}
		}
		result.Added = len(plan.inserts)
	}

	if len(plan.renames) > 0 {
		if err := uc.pages.UpdateNames(ctx, siteID, plan.renames); err != nil {
			return result, &SyncPhaseError{SiteID: siteID, Phase: PhaseUpdate, Err: err}
		}
		result.Updated = len(plan.renames)
	}

	if len(plan.deletes) > 0 {
		if err := uc.pages.DeleteByExternalIDs(ctx, siteID, plan.deletes); err != nil {
			return result, &SyncPhaseError{SiteID: siteID, Phase: PhaseDelete, Err: err}
		}
		result.Deleted = len(plan.deletes)

		if uc.invalidator != nil {
			for _, id := range plan.deletedIDs {
				uc.invalidator.InvalidateTarget(ctx, entity.TargetPage, strconv.FormatUint(uint64(id), 10))
			}
		}
	}

	uc.metrics.SyncChanges(ctx, result.Added, result.Updated, result.Deleted)
	uc.logger.Info("[Sync] ✅ site synced",
		zap.String("site", siteID),
		zap.Int("remote", result.Remote),
		zap.Int("added", result.Added),
		zap.Int("updated", result.Updated),
		zap.Int("deleted", result.Deleted),
	)
	return result, nil
}

// SyncAll 对所有已知站点做同步，单站失败不影响其它站点
func (uc *SyncUseCase) SyncAll(ctx context.Context) ([]SiteSyncReport, error) {
	sites, err := uc.sites.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}

	reports := make([]SiteSyncReport, len(sites))
	var g errgroup.Group
	g.SetLimit(uc.concurrency)
	for i, site := range sites {
		i, siteID := i, site.ExternalSiteID
		g.Go(func() error {
			result, err := uc.SyncSite(ctx, siteID)
			reports[i] = SiteSyncReport{SyncResult: result}
			if err != nil {
				reports[i].Error = err.Error()
				uc.logger.Error("[Sync] ❌ site sync failed", zap.String("site", siteID), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	return reports, nil
}

type syncPlan struct {
	inserts    []entity.Page
	renames    map[string]string
	deletes    []string
	deletedIDs []uint
	skipped    int
}

// planSync 纯计算：远端重复 ID 以最后一条为准，名称不变的行不进入 update
func planSync(siteID string, local []entity.Page, remote []platform.RemotePage) syncPlan {
	var plan syncPlan

	order := make([]string, 0, len(remote))
	names := make(map[string]string, len(remote))
	for _, rp := range remote {
		if rp.ID == "" {
			plan.skipped++
			continue
		}
		if _, seen := names[rp.ID]; !seen {
			order = append(order, rp.ID)
		}
		names[rp.ID] = ExtractPageName(rp)
	}

	existing := make(map[string]entity.Page, len(local))
	for _, p := range local {
		existing[p.ExternalPageID] = p
	}

	plan.renames = make(map[string]string)
	for _, id := range order {
		name := names[id]
		current, ok := existing[id]
		if !ok {
			plan.inserts = append(plan.inserts, entity.Page{
				ExternalPageID: id,
				SiteID:         siteID,
				Name:           name,
				HeadFiles:      entity.FileIDList{},
				BodyFiles:      entity.FileIDList{},
			})
			continue
		}
		if current.Name != name {
			plan.renames[id] = name
		}
	}

	for _, p := range local {
		if _, ok := names[p.ExternalPageID]; !ok {
			plan.deletes = append(plan.deletes, p.ExternalPageID)
			plan.deletedIDs = append(plan.deletedIDs, p.ID)
		}
	}
	return plan
}
