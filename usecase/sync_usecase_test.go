package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"codeinject-go-server/domain/entity"
	domainErrors "codeinject-go-server/domain/errors"
	"codeinject-go-server/internal/platform"
	"codeinject-go-server/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSite = "site-1"

func seedPages(t *testing.T, repo *memory.PageRepository, pages ...entity.Page) {
	t.Helper()
	for i := range pages {
		pages[i].SiteID = testSite
	}
	require.NoError(t, repo.CreateBatch(context.Background(), pages))
}

func byExternalID(pages []entity.Page) map[string]entity.Page {
	out := make(map[string]entity.Page, len(pages))
	for _, p := range pages {
		out[p.ExternalPageID] = p
	}
	return out
}

// connectedSites 只有 testSite 已接入
func connectedSites(t *testing.T) *memory.SiteRepository {
	t.Helper()
	sites := memory.NewSiteRepository()
	require.NoError(t, sites.Upsert(context.Background(), &entity.Site{ExternalSiteID: testSite, OwnerID: "user_1"}))
	return sites
}

func newSyncUseCase(pages *memory.PageRepository, sites *memory.SiteRepository, source PageSource, inv CacheInvalidator) *SyncUseCase {
	return NewSyncUseCase(pages, sites, source, inv, nil, zap.NewNop(), 2)
}

func TestReconcile_AddUpdateDelete(t *testing.T) {
	ctx := context.Background()
	pages := memory.NewPageRepository()
	seedPages(t, pages,
		entity.Page{ExternalPageID: "a", Name: "Old A", HeadFiles: entity.FileIDList{1, 2}, BodyFiles: entity.FileIDList{3}},
		entity.Page{ExternalPageID: "b", Name: "B"},
		entity.Page{ExternalPageID: "c", Name: "C"},
	)
	inv := &recordingInvalidator{}
	uc := newSyncUseCase(pages, connectedSites(t), nil, inv)

	result, err := uc.Reconcile(ctx, testSite, []platform.RemotePage{
		{ID: "a", DisplayName: "New A"},
		{ID: "b", DisplayName: "B"},
		{ID: "d", Slug: strPtr("about-us")},
	})
	require.NoError(t, err)

	assert.Equal(t, SyncResult{SiteID: testSite, Remote: 3, Added: 1, Updated: 1, Deleted: 1}, result)

	local, err := pages.ListBySite(ctx, testSite)
	require.NoError(t, err)
	got := byExternalID(local)
	assert.Len(t, got, 3)
	assert.Equal(t, "New A", got["a"].Name)
	// 改名不能动文件列表
	assert.Equal(t, entity.FileIDList{1, 2}, got["a"].HeadFiles)
	assert.Equal(t, entity.FileIDList{3}, got["a"].BodyFiles)
	assert.Equal(t, "About Us", got["d"].Name)
	assert.Empty(t, got["d"].HeadFiles)
	assert.NotContains(t, got, "c")

	// 被删除页面 c（本地 ID 3）的缓存需要失效
	assert.Equal(t, []string{"page:3"}, inv.calls())
}

func TestReconcile_Idempotent(t *testing.T) {
	ctx := context.Background()
	pages := memory.NewPageRepository()
	uc := newSyncUseCase(pages, connectedSites(t), nil, nil)
	remote := []platform.RemotePage{{ID: "a", Title: "A"}, {ID: "b", Slug: strPtr("/")}}

	first, err := uc.Reconcile(ctx, testSite, remote)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Added)

	second, err := uc.Reconcile(ctx, testSite, remote)
	require.NoError(t, err)
	assert.Equal(t, SyncResult{SiteID: testSite, Remote: 2}, second)
}

func TestReconcile_DuplicateRemoteIDsLastWins(t *testing.T) {
	ctx := context.Background()
	pages := memory.NewPageRepository()
	uc := newSyncUseCase(pages, connectedSites(t), nil, nil)

	result, err := uc.Reconcile(ctx, testSite, []platform.RemotePage{
		{ID: "a", DisplayName: "First"},
		{ID: "a", DisplayName: "Second"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Added)

	local, err := pages.ListBySite(ctx, testSite)
	require.NoError(t, err)
	require.Len(t, local, 1)
	assert.Equal(t, "Second", local[0].Name)
}

func TestReconcile_EmptyRemoteDeletesEverything(t *testing.T) {
	ctx := context.Background()
	pages := memory.NewPageRepository()
	seedPages(t, pages, entity.Page{ExternalPageID: "a"}, entity.Page{ExternalPageID: "b"})
	uc := newSyncUseCase(pages, connectedSites(t), nil, nil)

	result, err := uc.Reconcile(ctx, testSite, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Deleted)

	local, err := pages.ListBySite(ctx, testSite)
	require.NoError(t, err)
	assert.Empty(t, local)
}

func TestReconcile_SkipsRemoteWithoutID(t *testing.T) {
	pages := memory.NewPageRepository()
	uc := newSyncUseCase(pages, connectedSites(t), nil, nil)

	result, err := uc.Reconcile(context.Background(), testSite, []platform.RemotePage{{DisplayName: "ghost"}, {ID: "a"}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Added)
}

func TestReconcile_PhaseFailureStopsLaterPhases(t *testing.T) {
	ctx := context.Background()
	repo := new(MockPageRepository)
	boom := errors.New("db down")

	repo.On("ListBySite", mock.Anything, testSite).Return([]entity.Page{
		{ID: 1, ExternalPageID: "a", SiteID: testSite, Name: "Old"},
		{ID: 2, ExternalPageID: "gone", SiteID: testSite, Name: "Gone"},
	}, nil)
	repo.On("CreateBatch", mock.Anything, mock.Anything).Return(nil)
	repo.On("UpdateNames", mock.Anything, testSite, map[string]string{"a": "New"}).Return(boom)

	uc := NewSyncUseCase(repo, connectedSites(t), nil, nil, nil, zap.NewNop(), 1)
	result, err := uc.Reconcile(ctx, testSite, []platform.RemotePage{
		{ID: "a", DisplayName: "New"},
		{ID: "b", DisplayName: "B"},
	})

	var phaseErr *SyncPhaseError
	require.ErrorAs(t, err, &phaseErr)
	assert.Equal(t, PhaseUpdate, phaseErr.Phase)
	assert.ErrorIs(t, err, boom)
	// insert 已完成，update/delete 没有计数
	assert.Equal(t, 1, result.Added)
	assert.Zero(t, result.Updated)
	assert.Zero(t, result.Deleted)
	repo.AssertNotCalled(t, "DeleteByExternalIDs", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestSyncSite_FetchFailure(t *testing.T) {
	source := new(MockPageSource)
	source.On("ListPages", mock.Anything, testSite).Return(nil, errors.New("platform 503"))
	pages := memory.NewPageRepository()
	seedPages(t, pages, entity.Page{ExternalPageID: "keep"})

	uc := newSyncUseCase(pages, connectedSites(t), source, nil)
	_, err := uc.SyncSite(context.Background(), testSite)

	var phaseErr *SyncPhaseError
	require.ErrorAs(t, err, &phaseErr)
	assert.Equal(t, PhaseFetch, phaseErr.Phase)

	// 拉取失败不能把本地页面当作已删除
	local, err := pages.ListBySite(context.Background(), testSite)
	require.NoError(t, err)
	assert.Len(t, local, 1)
}

func TestSyncSite_UnknownSiteWritesNothing(t *testing.T) {
	ctx := context.Background()
	source := new(MockPageSource)
	pages := memory.NewPageRepository()
	uc := newSyncUseCase(pages, connectedSites(t), source, nil)

	_, err := uc.SyncSite(ctx, "never-connected")
	var phaseErr *SyncPhaseError
	require.ErrorAs(t, err, &phaseErr)
	assert.Equal(t, PhaseLoad, phaseErr.Phase)
	assert.ErrorIs(t, err, domainErrors.ErrSiteNotFound)
	source.AssertNotCalled(t, "ListPages", mock.Anything, mock.Anything)

	result, err := uc.Reconcile(ctx, "never-connected", []platform.RemotePage{{ID: "p1"}})
	assert.ErrorIs(t, err, domainErrors.ErrSiteNotFound)
	assert.Zero(t, result.Added)

	local, err := pages.ListBySite(ctx, "never-connected")
	require.NoError(t, err)
	assert.Empty(t, local)
}

// gatedSource 记录同时进行中的 ListPages 调用数，release 关闭前一直阻塞
type gatedSource struct {
	started  chan struct{}
	release  chan struct{}
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func newGatedSource() *gatedSource {
	return &gatedSource{started: make(chan struct{}, 16), release: make(chan struct{})}
}

func (g *gatedSource) ListPages(ctx context.Context, siteID string) ([]platform.RemotePage, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		seen := g.maxSeen.Load()
		if n <= seen || g.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	g.started <- struct{}{}
	<-g.release
	return []platform.RemotePage{{ID: "p1", DisplayName: "Home"}}, nil
}

func TestSyncSite_SameSiteRunsSerially(t *testing.T) {
	ctx := context.Background()
	pages := memory.NewPageRepository()
	source := newGatedSource()
	uc := newSyncUseCase(pages, connectedSites(t), source, nil)

	const callers = 4
	results := make(chan SyncResult, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := uc.SyncSite(ctx, testSite)
			assert.NoError(t, err)
			results <- result
		}()
	}

	<-source.started
	// 第一个调用卡在 ListPages，其余调用必须在锁上等待
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, source.started, 0)
	close(source.release)
	wg.Wait()
	close(results)

	added := 0
	for r := range results {
		added += r.Added
	}
	assert.Equal(t, 1, added)
	assert.Equal(t, int32(1), source.maxSeen.Load())

	local, err := pages.ListBySite(ctx, testSite)
	require.NoError(t, err)
	assert.Len(t, local, 1)
}

func TestSyncSite_WaitRespectsContext(t *testing.T) {
	source := newGatedSource()
	uc := newSyncUseCase(memory.NewPageRepository(), connectedSites(t), source, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = uc.SyncSite(context.Background(), testSite)
	}()
	<-source.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := uc.SyncSite(ctx, testSite)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(source.release)
	<-done
}

func TestSyncAll_ReportsPerSite(t *testing.T) {
	ctx := context.Background()
	sites := memory.NewSiteRepository()
	require.NoError(t, sites.Upsert(ctx, &entity.Site{ExternalSiteID: "ok", OwnerID: "u"}))
	require.NoError(t, sites.Upsert(ctx, &entity.Site{ExternalSiteID: "bad", OwnerID: "u"}))

	source := new(MockPageSource)
	source.On("ListPages", mock.Anything, "ok").Return([]platform.RemotePage{{ID: "p1"}}, nil)
	source.On("ListPages", mock.Anything, "bad").Return(nil, errors.New("boom"))

	uc := newSyncUseCase(memory.NewPageRepository(), sites, source, nil)
	reports, err := uc.SyncAll(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	bySite := map[string]SiteSyncReport{}
	for _, r := range reports {
		bySite[r.SiteID] = r
	}
	assert.Equal(t, 1, bySite["ok"].Added)
	assert.Empty(t, bySite["ok"].Error)
	assert.Contains(t, bySite["bad"].Error, "fetch phase failed")
}
