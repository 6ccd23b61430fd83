package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"codeinject-go-server/domain/entity"
	domainErrors "codeinject-go-server/domain/errors"
	"codeinject-go-server/domain/repository"
	"codeinject-go-server/internal/cache"
	"codeinject-go-server/internal/telemetry"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

// InvalidationNotifier 缓存失效后通知在线的编辑器预览（ws Hub 实现）
type InvalidationNotifier interface {
	NotifyInvalidated(target entity.Target)
}

// BundleResult GetBundle 的返回值
type BundleResult struct {
	Bundle   entity.Bundle
	ETag     string
	CachedAt time.Time
	CacheHit bool
}

// BundleUseCase Delivery Endpoint 与缓存失效的业务逻辑
// 读路径是 cache-aside：命中直接返回，未命中从 File + Page/Site 重建后写回
type BundleUseCase struct {
	pages    repository.PageRepository
	sites    repository.SiteRepository
	files    repository.FileRepository
	cache    cache.BundleCache
	notifier InvalidationNotifier
	metrics  *telemetry.Metrics
	logger   *zap.Logger
}

func NewBundleUseCase(
	pages repository.PageRepository,
	sites repository.SiteRepository,
	files repository.FileRepository,
	bundleCache cache.BundleCache,
	notifier InvalidationNotifier,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) *BundleUseCase {
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	return &BundleUseCase{
		pages:    pages,
		sites:    sites,
		files:    files,
		cache:    bundleCache,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger.Named("bundle"),
	}
}

// GetBundle 返回目标在该位置的代码包
// 目标不存在 → ErrTargetNotFound；读文件失败的结果不会写入缓存
func (uc *BundleUseCase) GetBundle(ctx context.Context, target entity.Target) (*BundleResult, error) {
	target, err := target.Canonical()
	if err != nil {
		return nil, err
	}
	key := target.Key()
	if entry, ok := uc.cache.Get(key); ok {
		uc.metrics.CacheLookup(ctx, true)
		return &BundleResult{Bundle: entry.Bundle, ETag: entry.ETag, CachedAt: entry.CachedAt, CacheHit: true}, nil
	}
	uc.metrics.CacheLookup(ctx, false)

	ids, err := uc.resolveFileIDs(ctx, target)
	if err != nil {
		uc.metrics.BundleBuild(ctx, string(target.Kind), false)
		return nil, err
	}

	bundle, err := uc.assemble(ctx, ids)
	if err != nil {
		uc.metrics.BundleBuild(ctx, string(target.Kind), false)
		return nil, fmt.Errorf("load files for %s: %w", key, err)
	}
	uc.metrics.BundleBuild(ctx, string(target.Kind), true)

	entry := &cache.Entry{Bundle: bundle, ETag: ComputeETag(bundle), CachedAt: time.Now()}
	uc.cache.Set(key, entry)
	return &BundleResult{Bundle: entry.Bundle, ETag: entry.ETag, CachedAt: entry.CachedAt}, nil
}

// resolveFileIDs 读取目标记录上对应位置的文件列表
func (uc *BundleUseCase) resolveFileIDs(ctx context.Context, target entity.Target) (entity.FileIDList, error) {
	switch target.Kind {
	case entity.TargetSite:
		site, err := uc.sites.Get(ctx, target.ID)
		if err != nil {
			return nil, notFoundAsTarget(err, target)
		}
		return site.FilesAt(target.Location), nil
	default:
		id, err := strconv.ParseUint(target.ID, 10, 64)
		if err != nil {
			// 非数字 ID 不可能对应本地页面
			return nil, fmt.Errorf("%w: page %q", domainErrors.ErrTargetNotFound, target.ID)
		}
		page, err := uc.pages.GetByID(ctx, uint(id))
		if err != nil {
			return nil, notFoundAsTarget(err, target)
		}
		return page.FilesAt(target.Location), nil
	}
}

func notFoundAsTarget(err error, target entity.Target) error {
	if isNotFound(err) {
		return fmt.Errorf("%w: %s %q", domainErrors.ErrTargetNotFound, target.Kind, target.ID)
	}
	return fmt.Errorf("resolve %s %q: %w", target.Kind, target.ID, err)
}

// assemble 一次性按 ID 集合读取文件，再按列表顺序分桶拼接
// 列表里引用了已删除的文件时直接跳过
func (uc *BundleUseCase) assemble(ctx context.Context, ids entity.FileIDList) (entity.Bundle, error) {
	if len(ids) == 0 {
		return entity.Bundle{}, nil
	}

	files, err := uc.files.GetByIDs(ctx, ids)
	if err != nil {
		return entity.Bundle{}, err
	}
	byID := make(map[int64]entity.File, len(files))
	for _, f := range files {
		byID[f.ID] = f
	}

	var markup, style, script []string
	for _, id := range ids {
		f, ok := byID[id]
		if !ok {
			continue
		}
		switch f.Language {
		case entity.LanguageMarkup:
			markup = append(markup, f.Code)
		case entity.LanguageStyle:
			style = append(style, f.Code)
		case entity.LanguageScript:
			script = append(script, f.Code)
		}
	}
	return entity.Bundle{
		HTML: strings.Join(markup, "\n"),
		CSS:  strings.Join(style, "\n"),
		JS:   strings.Join(script, "\n"),
	}, nil
}

// ComputeETag 对代码包内容做 xxhash，内容不变则 ETag 不变
func ComputeETag(b entity.Bundle) string {
	h := xxhash.New()
	for _, part := range []string{b.HTML, b.CSS, b.JS} {
		_, _ = h.WriteString(part)
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf(`"%016x"`, h.Sum64())
}

// Purge 删除单个缓存键，返回该键原本是否存在
// 未命中不是错误，由调用方决定如何响应
func (uc *BundleUseCase) Purge(ctx context.Context, target entity.Target) bool {
	target, err := target.Canonical()
	if err != nil {
		uc.metrics.CachePurge(ctx, false)
		return false
	}
	found := uc.cache.Delete(target.Key())
	uc.metrics.CachePurge(ctx, found)
	uc.logger.Info("[Purge] cache purge",
		zap.String("key", target.Key()), zap.Bool("found", found))
	uc.notify(target)
	return found
}

// InvalidateTarget 写路径使用：清掉目标在所有位置上的缓存
func (uc *BundleUseCase) InvalidateTarget(ctx context.Context, kind entity.TargetKind, id string) {
	for _, loc := range entity.Locations {
		t, err := entity.Target{Kind: kind, ID: id, Location: loc}.Canonical()
		if err != nil {
			uc.logger.Warn("[Purge] invalid target id", zap.String("id", id), zap.Error(err))
			return
		}
		if uc.cache.Delete(t.Key()) {
			uc.logger.Debug("[Purge] invalidated", zap.String("key", t.Key()))
		}
		uc.notify(t)
	}
}

func (uc *BundleUseCase) notify(target entity.Target) {
	if uc.notifier != nil {
		uc.notifier.NotifyInvalidated(target)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, domainErrors.ErrPageNotFound) ||
		errors.Is(err, domainErrors.ErrSiteNotFound) ||
		errors.Is(err, domainErrors.ErrFileNotFound)
}
