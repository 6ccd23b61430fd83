package usecase

import (
	"context"
	"strconv"
	"testing"

	"codeinject-go-server/domain/entity"
	domainErrors "codeinject-go-server/domain/errors"
	"codeinject-go-server/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const owner = "user_owner"

type editorFixture struct {
	sites *memory.SiteRepository
	pages *memory.PageRepository
	files *memory.FileRepository
	inv   *recordingInvalidator
	uc    *EditorUseCase
}

func newEditorFixture(t *testing.T) *editorFixture {
	t.Helper()
	f := &editorFixture{
		sites: memory.NewSiteRepository(),
		pages: memory.NewPageRepository(),
		files: memory.NewFileRepository(),
		inv:   &recordingInvalidator{},
	}
	f.uc = NewEditorUseCase(f.sites, f.pages, f.files, f.inv, zap.NewNop())

	ctx := context.Background()
	require.NoError(t, f.sites.Upsert(ctx, &entity.Site{ExternalSiteID: testSite, OwnerID: owner}))
	require.NoError(t, f.sites.Upsert(ctx, &entity.Site{ExternalSiteID: "other-site", OwnerID: "someone-else"}))
	require.NoError(t, f.pages.CreateBatch(ctx, []entity.Page{{ExternalPageID: "p", SiteID: testSite}}))
	return f
}

func (f *editorFixture) file(t *testing.T, siteID string) int64 {
	t.Helper()
	file, err := f.uc.CreateFile(context.Background(), ownerOf(siteID), &entity.File{Name: "f", Language: "css", Code: "a{}", SiteID: siteID})
	require.NoError(t, err)
	return file.ID
}

func ownerOf(siteID string) string {
	if siteID == testSite {
		return owner
	}
	return "someone-else"
}

func TestEditor_OwnershipEnforced(t *testing.T) {
	f := newEditorFixture(t)
	ctx := context.Background()

	_, err := f.uc.ListPages(ctx, "intruder", testSite)
	assert.ErrorIs(t, err, domainErrors.ErrUnauthorized)

	_, err = f.uc.GetPage(ctx, "intruder", 1)
	assert.ErrorIs(t, err, domainErrors.ErrUnauthorized)

	_, err = f.uc.ConnectSite(ctx, "intruder", testSite, "steal")
	assert.ErrorIs(t, err, domainErrors.ErrUnauthorized)

	_, err = f.uc.ListPages(ctx, owner, "missing")
	assert.ErrorIs(t, err, domainErrors.ErrSiteNotFound)
}

func TestEditor_ConnectSite(t *testing.T) {
	f := newEditorFixture(t)
	site, err := f.uc.ConnectSite(context.Background(), "new-user", "fresh", "Fresh Site")
	require.NoError(t, err)
	assert.Equal(t, "new-user", site.OwnerID)
	assert.Equal(t, "Fresh Site", site.Name)

	sites, err := f.uc.ListSites(context.Background(), "new-user")
	require.NoError(t, err)
	assert.Len(t, sites, 1)
}

func TestEditor_UpdatePageFilesInvalidates(t *testing.T) {
	f := newEditorFixture(t)
	a, b := f.file(t, testSite), f.file(t, testSite)

	page, err := f.uc.UpdatePageFiles(context.Background(), owner, 1, FileLists{
		HeadFiles: entity.FileIDList{b, a},
		BodyFiles: entity.FileIDList{a},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.FileIDList{b, a}, page.HeadFiles)
	assert.Equal(t, []string{"page:1"}, f.inv.calls())
}

func TestEditor_UpdatePageFilesRejectsForeignOrMissingFiles(t *testing.T) {
	f := newEditorFixture(t)
	foreign := f.file(t, "other-site")

	_, err := f.uc.UpdatePageFiles(context.Background(), owner, 1, FileLists{HeadFiles: entity.FileIDList{foreign}})
	assert.ErrorIs(t, err, domainErrors.ErrFileSiteMismatch)

	_, err = f.uc.UpdatePageFiles(context.Background(), owner, 1, FileLists{BodyFiles: entity.FileIDList{999}})
	assert.ErrorIs(t, err, domainErrors.ErrFileNotFound)
	assert.Empty(t, f.inv.calls())
}

func TestEditor_PatchPageFiles(t *testing.T) {
	f := newEditorFixture(t)
	a, b := f.file(t, testSite), f.file(t, testSite)
	ctx := context.Background()

	_, err := f.uc.UpdatePageFiles(ctx, owner, 1, FileLists{HeadFiles: entity.FileIDList{a}})
	require.NoError(t, err)

	patch := []byte(`[{"op":"add","path":"/headFiles/-","value":` + itoa(b) + `},{"op":"add","path":"/bodyFiles/0","value":` + itoa(a) + `}]`)
	page, err := f.uc.PatchPageFiles(ctx, owner, 1, patch)
	require.NoError(t, err)
	assert.Equal(t, entity.FileIDList{a, b}, page.HeadFiles)
	assert.Equal(t, entity.FileIDList{a}, page.BodyFiles)

	_, err = f.uc.PatchPageFiles(ctx, owner, 1, []byte(`not json`))
	assert.ErrorIs(t, err, domainErrors.ErrInvalidPatch)

	_, err = f.uc.PatchPageFiles(ctx, owner, 1, []byte(`[{"op":"remove","path":"/headFiles/9"}]`))
	assert.ErrorIs(t, err, domainErrors.ErrInvalidPatch)
}

func TestEditor_FileMutationsInvalidateReferences(t *testing.T) {
	f := newEditorFixture(t)
	ctx := context.Background()
	used, unused := f.file(t, testSite), f.file(t, testSite)

	_, err := f.uc.UpdatePageFiles(ctx, owner, 1, FileLists{BodyFiles: entity.FileIDList{used}})
	require.NoError(t, err)
	_, err = f.uc.UpdateSiteFiles(ctx, owner, testSite, FileLists{HeadFiles: entity.FileIDList{used}})
	require.NoError(t, err)
	f.inv.targets = nil

	_, err = f.uc.UpdateFile(ctx, owner, &entity.File{ID: unused, Name: "x", Language: "js", Code: "1"})
	require.NoError(t, err)
	assert.Empty(t, f.inv.calls())

	updated, err := f.uc.UpdateFile(ctx, owner, &entity.File{ID: used, Name: "y", Language: "html", Code: "<b>"})
	require.NoError(t, err)
	assert.Equal(t, entity.LanguageMarkup, updated.Language)
	assert.ElementsMatch(t, []string{"page:1", "site:" + testSite}, f.inv.calls())

	f.inv.targets = nil
	require.NoError(t, f.uc.DeleteFile(ctx, owner, used))
	assert.ElementsMatch(t, []string{"page:1", "site:" + testSite}, f.inv.calls())
}

func TestEditor_CreateFileValidation(t *testing.T) {
	f := newEditorFixture(t)
	ctx := context.Background()

	_, err := f.uc.CreateFile(ctx, owner, &entity.File{Name: " ", Language: "css", SiteID: testSite})
	assert.ErrorIs(t, err, domainErrors.ErrInvalidFileName)

	_, err = f.uc.CreateFile(ctx, owner, &entity.File{Name: "x", Language: "cobol", SiteID: testSite})
	assert.ErrorIs(t, err, domainErrors.ErrInvalidLanguage)

	_, err = f.uc.CreateFile(ctx, "intruder", &entity.File{Name: "x", Language: "css", SiteID: testSite})
	assert.ErrorIs(t, err, domainErrors.ErrUnauthorized)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
