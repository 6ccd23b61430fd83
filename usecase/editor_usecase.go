package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"codeinject-go-server/domain/entity"
	domainErrors "codeinject-go-server/domain/errors"
	"codeinject-go-server/domain/repository"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"go.uber.org/zap"
)

// FileLists 编辑器读写文件列表时使用的文档形态，也是 JSON Patch 的作用对象
type FileLists struct {
	HeadFiles entity.FileIDList `json:"headFiles"`
	BodyFiles entity.FileIDList `json:"bodyFiles"`
}

// EditorUseCase 编辑器后台：站点、页面文件列表、代码片段
// 所有写操作都会让受影响目标的缓存失效
type EditorUseCase struct {
	sites       repository.SiteRepository
	pages       repository.PageRepository
	files       repository.FileRepository
	invalidator CacheInvalidator
	logger      *zap.Logger
}

func NewEditorUseCase(
	sites repository.SiteRepository,
	pages repository.PageRepository,
	files repository.FileRepository,
	invalidator CacheInvalidator,
	logger *zap.Logger,
) *EditorUseCase {
	return &EditorUseCase{
		sites:       sites,
		pages:       pages,
		files:       files,
		invalidator: invalidator,
		logger:      logger.Named("editor"),
	}
}

// AuthorizeSite 站点必须存在且属于当前用户
func (uc *EditorUseCase) AuthorizeSite(ctx context.Context, userID, siteID string) (*entity.Site, error) {
	site, err := uc.sites.Get(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if site.OwnerID != userID {
		return nil, domainErrors.ErrUnauthorized
	}
	return site, nil
}

// ========== 站点 ==========

func (uc *EditorUseCase) ListSites(ctx context.Context, userID string) ([]entity.Site, error) {
	return uc.sites.ListByOwner(ctx, userID)
}

// ConnectSite 登记站点；已被其他用户登记的站点不能抢占
func (uc *EditorUseCase) ConnectSite(ctx context.Context, userID, siteID, name string) (*entity.Site, error) {
	existing, err := uc.sites.Get(ctx, siteID)
	switch {
	case err == nil && existing.OwnerID != userID:
		return nil, domainErrors.ErrUnauthorized
	case err != nil && !isNotFound(err):
		return nil, err
	}

	site := &entity.Site{ExternalSiteID: siteID, Name: name, OwnerID: userID}
	if err := uc.sites.Upsert(ctx, site); err != nil {
		return nil, err
	}
	return uc.sites.Get(ctx, siteID)
}

// UpdateSiteFiles 整体替换站点级文件列表
func (uc *EditorUseCase) UpdateSiteFiles(ctx context.Context, userID, siteID string, lists FileLists) (*entity.Site, error) {
	if _, err := uc.AuthorizeSite(ctx, userID, siteID); err != nil {
		return nil, err
	}
	if err := uc.checkFiles(ctx, siteID, lists); err != nil {
		return nil, err
	}
	if err := uc.sites.UpdateFiles(ctx, siteID, lists.HeadFiles, lists.BodyFiles); err != nil {
		return nil, err
	}
	uc.invalidate(ctx, entity.TargetSite, siteID)
	return uc.sites.Get(ctx, siteID)
}

// ========== 页面 ==========

func (uc *EditorUseCase) ListPages(ctx context.Context, userID, siteID string) ([]entity.Page, error) {
	if _, err := uc.AuthorizeSite(ctx, userID, siteID); err != nil {
		return nil, err
	}
	return uc.pages.ListBySite(ctx, siteID)
}

func (uc *EditorUseCase) GetPage(ctx context.Context, userID string, pageID uint) (*entity.Page, error) {
	page, err := uc.pages.GetByID(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if _, err := uc.AuthorizeSite(ctx, userID, page.SiteID); err != nil {
		return nil, err
	}
	return page, nil
}

// UpdatePageFiles 整体替换页面文件列表
func (uc *EditorUseCase) UpdatePageFiles(ctx context.Context, userID string, pageID uint, lists FileLists) (*entity.Page, error) {
	page, err := uc.GetPage(ctx, userID, pageID)
	if err != nil {
		return nil, err
	}
	return uc.writePageFiles(ctx, page, lists)
}

// PatchPageFiles 对 {"headFiles":[],"bodyFiles":[]} 应用 RFC 6902 JSON Patch
func (uc *EditorUseCase) PatchPageFiles(ctx context.Context, userID string, pageID uint, patchBytes []byte) (*entity.Page, error) {
	page, err := uc.GetPage(ctx, userID, pageID)
	if err != nil {
		return nil, err
	}

	current, err := json.Marshal(FileLists{HeadFiles: page.HeadFiles, BodyFiles: page.BodyFiles})
	if err != nil {
		return nil, err
	}
	patched, err := ApplyPatch(current, patchBytes)
	if err != nil {
		return nil, err
	}

	var lists FileLists
	if err := json.Unmarshal(patched, &lists); err != nil {
		return nil, err
	}
	return uc.writePageFiles(ctx, page, lists)
}

// ApplyPatch 使用 json-patch 库应用 RFC 6902 补丁
func ApplyPatch(doc, patchBytes []byte) ([]byte, error) {
	patch, err := jsonpatch.DecodePatch(patchBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrInvalidPatch, err)
	}
	out, err := patch.Apply(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrInvalidPatch, err)
	}
	return out, nil
}

func (uc *EditorUseCase) writePageFiles(ctx context.Context, page *entity.Page, lists FileLists) (*entity.Page, error) {
	if err := uc.checkFiles(ctx, page.SiteID, lists); err != nil {
		return nil, err
	}
	if err := uc.pages.UpdateFiles(ctx, page.ID, lists.HeadFiles, lists.BodyFiles); err != nil {
		return nil, err
	}
	uc.invalidate(ctx, entity.TargetPage, strconv.FormatUint(uint64(page.ID), 10))
	return uc.pages.GetByID(ctx, page.ID)
}

// checkFiles 列表里的文件必须存在且属于同一站点
func (uc *EditorUseCase) checkFiles(ctx context.Context, siteID string, lists FileLists) error {
	ids := append(append(entity.FileIDList{}, lists.HeadFiles...), lists.BodyFiles...)
	if len(ids) == 0 {
		return nil
	}
	files, err := uc.files.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	owner := make(map[int64]string, len(files))
	for _, f := range files {
		owner[f.ID] = f.SiteID
	}
	for _, id := range ids {
		site, ok := owner[id]
		if !ok {
			return fmt.Errorf("%w: %d", domainErrors.ErrFileNotFound, id)
		}
		if site != siteID {
			return fmt.Errorf("%w: %d", domainErrors.ErrFileSiteMismatch, id)
		}
	}
	return nil
}

// ========== 代码片段 ==========

func (uc *EditorUseCase) ListFiles(ctx context.Context, userID, siteID string) ([]entity.File, error) {
	if _, err := uc.AuthorizeSite(ctx, userID, siteID); err != nil {
		return nil, err
	}
	return uc.files.ListBySite(ctx, siteID)
}

// CreateFile 新文件还没有被任何列表引用，不需要失效缓存
func (uc *EditorUseCase) CreateFile(ctx context.Context, userID string, file *entity.File) (*entity.File, error) {
	if _, err := uc.AuthorizeSite(ctx, userID, file.SiteID); err != nil {
		return nil, err
	}
	if err := normalizeFile(file); err != nil {
		return nil, err
	}
	if err := uc.files.Create(ctx, file); err != nil {
		return nil, err
	}
	return file, nil
}

// UpdateFile 修改 name/language/code，引用它的页面和站点全部失效
func (uc *EditorUseCase) UpdateFile(ctx context.Context, userID string, file *entity.File) (*entity.File, error) {
	existing, err := uc.files.Get(ctx, file.ID)
	if err != nil {
		return nil, err
	}
	if _, err := uc.AuthorizeSite(ctx, userID, existing.SiteID); err != nil {
		return nil, err
	}
	file.SiteID = existing.SiteID
	if err := normalizeFile(file); err != nil {
		return nil, err
	}
	if err := uc.files.Update(ctx, file); err != nil {
		return nil, err
	}
	uc.invalidateReferences(ctx, existing.SiteID, file.ID)
	return uc.files.Get(ctx, file.ID)
}

// DeleteFile 列表中残留的 ID 在组装 bundle 时会被跳过
func (uc *EditorUseCase) DeleteFile(ctx context.Context, userID string, fileID int64) error {
	existing, err := uc.files.Get(ctx, fileID)
	if err != nil {
		return err
	}
	if _, err := uc.AuthorizeSite(ctx, userID, existing.SiteID); err != nil {
		return err
	}
	if err := uc.files.Delete(ctx, fileID); err != nil {
		return err
	}
	uc.invalidateReferences(ctx, existing.SiteID, fileID)
	return nil
}

func normalizeFile(file *entity.File) error {
	file.Name = strings.TrimSpace(file.Name)
	if file.Name == "" {
		return domainErrors.ErrInvalidFileName
	}
	lang, ok := entity.ParseLanguage(string(file.Language))
	if !ok {
		return fmt.Errorf("%w: %q", domainErrors.ErrInvalidLanguage, file.Language)
	}
	file.Language = lang
	return nil
}

// invalidateReferences 找出站点内引用该文件的页面以及站点本身
func (uc *EditorUseCase) invalidateReferences(ctx context.Context, siteID string, fileID int64) {
	pages, err := uc.pages.ListBySite(ctx, siteID)
	if err != nil {
		// 列表读失败时只能等 TTL 过期
		uc.logger.Warn("[Editor] ⚠️ list pages for invalidation failed",
			zap.String("site", siteID), zap.Error(err))
	}
	for i := range pages {
		if pages[i].References(fileID) {
			uc.invalidate(ctx, entity.TargetPage, strconv.FormatUint(uint64(pages[i].ID), 10))
		}
	}

	site, err := uc.sites.Get(ctx, siteID)
	if err == nil && site.References(fileID) {
		uc.invalidate(ctx, entity.TargetSite, siteID)
	}
}

func (uc *EditorUseCase) invalidate(ctx context.Context, kind entity.TargetKind, id string) {
	if uc.invalidator != nil {
		uc.invalidator.InvalidateTarget(ctx, kind, id)
	}
}
