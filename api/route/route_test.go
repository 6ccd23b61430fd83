package route

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"codeinject-go-server/api/controller"
	"codeinject-go-server/api/middleware"
	"codeinject-go-server/domain/entity"
	"codeinject-go-server/internal/cache"
	"codeinject-go-server/internal/platform"
	"codeinject-go-server/internal/ws"
	"codeinject-go-server/repository/memory"
	"codeinject-go-server/usecase"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	purgeSecret    = "purge-s3cret"
	platformSecret = "platform-s3cret"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakePlatform 平台的进程内替身，并发安全（webhook 同步在后台 goroutine 里调用）
type fakePlatform struct {
	mu     sync.Mutex
	pages  map[string][]platform.RemotePage
	custom map[string][]platform.ScriptBinding
	nextID int
	listed int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		pages:  make(map[string][]platform.RemotePage),
		custom: make(map[string][]platform.ScriptBinding),
	}
}

func (f *fakePlatform) ListPages(_ context.Context, siteID string) ([]platform.RemotePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed++
	return append([]platform.RemotePage(nil), f.pages[siteID]...), nil
}

func (f *fakePlatform) RegisterInlineScript(_ context.Context, _ string, req platform.RegisterScriptRequest) (*platform.RegisteredScript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return &platform.RegisteredScript{ID: "script_" + strconv.Itoa(f.nextID), DisplayName: req.DisplayName, Version: req.Version}, nil
}

func (f *fakePlatform) GetPageCustomCode(_ context.Context, pageID string) ([]platform.ScriptBinding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.custom["page:"+pageID], nil
}

func (f *fakePlatform) UpsertPageCustomCode(_ context.Context, pageID string, scripts []platform.ScriptBinding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.custom["page:"+pageID] = scripts
	return nil
}

func (f *fakePlatform) UpsertSiteCustomCode(_ context.Context, siteID string, scripts []platform.ScriptBinding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.custom["site:"+siteID] = scripts
	return nil
}

func (f *fakePlatform) DeleteSiteCustomCode(_ context.Context, siteID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.custom, "site:"+siteID)
	return nil
}

func (f *fakePlatform) listCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listed
}

type testServer struct {
	router   *gin.Engine
	pages    *memory.PageRepository
	sites    *memory.SiteRepository
	files    *memory.FileRepository
	users    *memory.UserRepository
	platform *fakePlatform
}

// fakeVerify "token-<userID>" 视为合法
func fakeVerify(_ context.Context, token string) (string, error) {
	if userID, ok := strings.CutPrefix(token, "token-"); ok && userID != "" {
		return userID, nil
	}
	return "", errors.New("invalid token")
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()

	pages := memory.NewPageRepository()
	sites := memory.NewSiteRepository()
	files := memory.NewFileRepository()
	users := memory.NewUserRepository()
	fake := newFakePlatform()

	hub := ws.NewHub(logger)
	go hub.Run()
	t.Cleanup(hub.Shutdown)

	bundleCache := cache.NewTTLCache(time.Hour, 100)
	bundles := usecase.NewBundleUseCase(pages, sites, files, bundleCache, hub, nil, logger)
	editor := usecase.NewEditorUseCase(sites, pages, files, bundles, logger)
	syncer := usecase.NewSyncUseCase(pages, sites, fake, bundles, nil, logger, 2)
	scripts := usecase.NewScriptUseCase(pages, sites, fake, usecase.ScriptConfig{EndpointBase: "https://inject.example.com"}, nil, logger)

	router := gin.New()
	Setup(router, &Dependencies{
		BundleController:  controller.NewBundleController(bundles, time.Hour),
		PurgeController:   controller.NewPurgeController(bundles),
		SiteController:    controller.NewSiteController(editor, syncer, scripts),
		PageController:    controller.NewPageController(editor, scripts),
		FileController:    controller.NewFileController(editor),
		LoaderController:  controller.NewLoaderController(editor, "https://inject.example.com"),
		WebhookController: controller.NewWebhookController(users, syncer, "", platformSecret, logger),
		WSHandler:         controller.NewWSHandler(hub, editor, fakeVerify, nil, logger),
		Auth:              middleware.ClerkAuth(fakeVerify),
		PurgeAuth:         middleware.PurgeAuth(purgeSecret, logger),
	})

	return &testServer{router: router, pages: pages, sites: sites, files: files, users: users, platform: fake}
}

// seed 站点 s1（属于 user_1），三个文件，页面 1 的 head 引用 style + markup
func (s *testServer) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.sites.Upsert(ctx, &entity.Site{ExternalSiteID: "s1", Name: "Demo", OwnerID: "user_1"}))

	for _, f := range []entity.File{
		{Name: "style", Language: entity.LanguageStyle, Code: "body{color:red}", SiteID: "s1"},
		{Name: "banner", Language: entity.LanguageMarkup, Code: "<div>hi</div>", SiteID: "s1"},
		{Name: "track", Language: entity.LanguageScript, Code: "console.log(1)", SiteID: "s1"},
	} {
		f := f
		require.NoError(t, s.files.Create(ctx, &f))
	}

	require.NoError(t, s.pages.CreateBatch(ctx, []entity.Page{
		{ExternalPageID: "p_home", SiteID: "s1", Name: "Home Page", HeadFiles: entity.FileIDList{1, 2}},
	}))
	require.NoError(t, s.sites.UpdateFiles(ctx, "s1", nil, entity.FileIDList{3}))
}

func (s *testServer) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func asUser(userID string) map[string]string {
	return map[string]string{"Authorization": "Bearer token-" + userID}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// --- Delivery Endpoint ---

func TestBundle_GetThenCached(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	w := s.do(http.MethodGet, "/bundle?id=1&location=head", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Equal(t, "public, max-age=3600", w.Header().Get("Cache-Control"))
	etag := w.Header().Get("ETag")
	assert.Regexp(t, `^"[0-9a-f]{16}"$`, etag)

	bundle := decode[entity.Bundle](t, w)
	assert.Equal(t, entity.Bundle{HTML: "<div>hi</div>", CSS: "body{color:red}"}, bundle)

	w = s.do(http.MethodGet, "/bundle?id=1&location=head", "", nil)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, etag, w.Header().Get("ETag"))

	w = s.do(http.MethodGet, "/bundle?id=1&location=head", "", map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestBundle_PostAcceptsNumericID(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	w := s.do(http.MethodPost, "/bundle", `{"id":1,"location":"head"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "body{color:red}", decode[entity.Bundle](t, w).CSS)

	w = s.do(http.MethodPost, "/bundle", `{"id":"s1","location":"body","type":"site"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, entity.Bundle{JS: "console.log(1)"}, decode[entity.Bundle](t, w))

	// 页面 body 没有引用任何文件
	w = s.do(http.MethodPost, "/bundle", `{"id":"1","location":"body"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"html":"","css":"","js":""}`, w.Body.String())
}

func TestBundle_BadRequests(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	testCases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"missing id", http.MethodGet, "/bundle?location=head", "", http.StatusBadRequest},
		{"bad location", http.MethodGet, "/bundle?id=1&location=footer", "", http.StatusBadRequest},
		{"bad type", http.MethodGet, "/bundle?id=1&location=head&type=folder", "", http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/bundle", `{"id":`, http.StatusBadRequest},
		{"object id", http.MethodPost, "/bundle", `{"id":{},"location":"head"}`, http.StatusBadRequest},
		{"unknown page", http.MethodGet, "/bundle?id=999&location=head", "", http.StatusNotFound},
		{"non numeric page", http.MethodGet, "/bundle?id=abc&location=head", "", http.StatusNotFound},
		{"unknown site", http.MethodGet, "/bundle?id=nope&location=head&type=site", "", http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := s.do(tc.method, tc.path, tc.body, nil)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

// --- Cache purge ---

func TestPurge(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)
	secret := map[string]string{middleware.HeaderPurgeSecret: purgeSecret}
	body := `{"targetId":1,"location":"head","type":"page"}`

	w := s.do(http.MethodPost, "/cache/purge", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/cache/purge", body, secret)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"no cache entry for bundle:page:1:head"}`, w.Body.String())

	s.do(http.MethodGet, "/bundle?id=1&location=head", "", nil)

	w = s.do(http.MethodPost, "/cache/purge", body, secret)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"purged bundle:page:1:head"}`, w.Body.String())

	w = s.do(http.MethodGet, "/bundle?id=1&location=head", "", nil)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	w = s.do(http.MethodPost, "/cache/purge", `{"location":"head"}`, secret)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Editor API ---

func TestEditor_RequiresAuthAndOwnership(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/sites", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/sites", "", map[string]string{"Authorization": "Bearer forged"}).Code)

	w := s.do(http.MethodGet, "/api/pages/1", "", asUser("user_2"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/api/pages/1", "", asUser("user_1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p_home", decode[entity.Page](t, w).ExternalPageID)

	w = s.do(http.MethodGet, "/api/pages/abc", "", asUser("user_1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	sites := decode[[]entity.Site](t, s.do(http.MethodGet, "/api/sites", "", asUser("user_1")))
	require.Len(t, sites, 1)
	assert.Equal(t, "s1", sites[0].ExternalSiteID)
	assert.Empty(t, decode[[]entity.Site](t, s.do(http.MethodGet, "/api/sites", "", asUser("user_2"))))
}

func TestEditor_ConnectSite(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	w := s.do(http.MethodPost, "/api/sites", `{"siteId":"s2","name":"Other"}`, asUser("user_2"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "user_2", decode[entity.Site](t, w).OwnerID)

	w = s.do(http.MethodPost, "/api/sites", `{"siteId":"s1"}`, asUser("user_2"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/sites", `{}`, asUser("user_2"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEditor_UpdatePageFilesInvalidatesBundle(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	s.do(http.MethodGet, "/bundle?id=1&location=body", "", nil)

	w := s.do(http.MethodPut, "/api/pages/1/files", `{"headFiles":[1],"bodyFiles":[3]}`, asUser("user_1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	page := decode[entity.Page](t, w)
	assert.Equal(t, entity.FileIDList{3}, page.BodyFiles)

	w = s.do(http.MethodGet, "/bundle?id=1&location=body", "", nil)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Equal(t, "console.log(1)", decode[entity.Bundle](t, w).JS)
}

func TestEditor_RejectsUnknownAndForeignFiles(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)
	require.NoError(t, s.sites.Upsert(context.Background(), &entity.Site{ExternalSiteID: "s2", OwnerID: "user_2"}))
	foreign := &entity.File{Name: "x", Language: entity.LanguageScript, SiteID: "s2"}
	require.NoError(t, s.files.Create(context.Background(), foreign))

	w := s.do(http.MethodPut, "/api/pages/1/files", `{"headFiles":[42]}`, asUser("user_1"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPut, "/api/pages/1/files", `{"headFiles":[`+strconv.FormatInt(foreign.ID, 10)+`]}`, asUser("user_1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEditor_PatchPageFiles(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	w := s.do(http.MethodPatch, "/api/pages/1/files", `[{"op":"add","path":"/headFiles/-","value":3}]`, asUser("user_1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, entity.FileIDList{1, 2, 3}, decode[entity.Page](t, w).HeadFiles)

	w = s.do(http.MethodPatch, "/api/pages/1/files", `[{"op":"remove","path":"/headFiles/9"}]`, asUser("user_1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEditor_FileLifecycle(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	w := s.do(http.MethodPost, "/api/files", `{"siteId":"s1","name":"extra","language":"css","code":"a{}"}`, asUser("user_1"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[entity.File](t, w)
	assert.Equal(t, entity.LanguageStyle, created.Language)

	w = s.do(http.MethodPost, "/api/files", `{"siteId":"s1","name":"bad","language":"cobol"}`, asUser("user_1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/files", `{"siteId":"s1","name":"x","language":"js"}`, asUser("user_2"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	// 修改被页面引用的文件后，页面 bundle 重新构建
	s.do(http.MethodGet, "/bundle?id=1&location=head", "", nil)
	w = s.do(http.MethodPut, "/api/files/1", `{"name":"style","language":"style","code":"body{color:blue}"}`, asUser("user_1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/bundle?id=1&location=head", "", nil)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Equal(t, "body{color:blue}", decode[entity.Bundle](t, w).CSS)

	files := decode[[]entity.File](t, s.do(http.MethodGet, "/api/sites/s1/files", "", asUser("user_1")))
	assert.Len(t, files, 4)

	w = s.do(http.MethodDelete, "/api/files/"+strconv.FormatInt(created.ID, 10), "", asUser("user_1"))
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodDelete, "/api/files/999", "", asUser("user_1"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEditor_SyncSite(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)
	s.platform.pages["s1"] = []platform.RemotePage{
		{ID: "p_home", DisplayName: "Start"},
		{ID: "p_about", Name: "About"},
	}

	w := s.do(http.MethodPost, "/api/sites/s1/sync", "", asUser("user_2"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/sites/s1/sync", "", asUser("user_1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, usecase.SyncResult{SiteID: "s1", Remote: 2, Added: 1, Updated: 1}, decode[usecase.SyncResult](t, w))

	pages := decode[[]entity.Page](t, s.do(http.MethodGet, "/api/sites/s1/pages", "", asUser("user_1")))
	require.Len(t, pages, 2)
	assert.Equal(t, "Start", pages[0].Name)
	assert.Equal(t, entity.FileIDList{1, 2}, pages[0].HeadFiles, "sync must not touch file lists")
	assert.Equal(t, "About", pages[1].Name)
}

func TestEditor_RegisterPageScripts(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	w := s.do(http.MethodPost, "/api/pages/1/scripts", "", asUser("user_1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	report := decode[usecase.RegistrationReport](t, w)
	assert.True(t, report.Head.Registered)
	assert.True(t, report.Body.Registered)
	assert.Equal(t, "1.0.0", report.Head.Version)

	bindings := s.platform.custom["page:p_home"]
	require.Len(t, bindings, 2)
	assert.Equal(t, platform.LocationHeader, bindings[0].Location)
	assert.Equal(t, platform.LocationFooter, bindings[1].Location)

	w = s.do(http.MethodPost, "/api/pages/1/scripts", "", asUser("user_2"))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestEditor_LoaderPreview(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	w := s.do(http.MethodGet, "/api/loader?id=1&location=head", "", asUser("user_1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "application/javascript")
	assert.Contains(t, w.Body.String(), `"https://inject.example.com/bundle"`)

	w = s.do(http.MethodGet, "/api/loader?id=s1&location=body&type=site", "", asUser("user_2"))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// --- Webhooks ---

func TestPlatformWebhook(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	signed := func(body string) map[string]string {
		ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
		return map[string]string{
			platform.HeaderWebhookTimestamp: ts,
			platform.HeaderWebhookSignature: platform.SignWebhook(platformSecret, ts, []byte(body)),
		}
	}

	body := `{"triggerType":"page_created","payload":{"siteId":"s1","pageId":"p_new"}}`
	w := s.do(http.MethodPost, "/webhook/platform", body, map[string]string{
		platform.HeaderWebhookTimestamp: strconv.FormatInt(time.Now().UnixMilli(), 10),
		platform.HeaderWebhookSignature: "deadbeef",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	ignored := `{"triggerType":"form_submission","payload":{"siteId":"s1"}}`
	w = s.do(http.MethodPost, "/webhook/platform", ignored, signed(ignored))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true,"sync":false}`, w.Body.String())

	w = s.do(http.MethodPost, "/webhook/platform", body, signed(body))
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"received":true,"sync":true}`, w.Body.String())

	assert.Eventually(t, func() bool { return s.platform.listCalls() == 1 }, time.Second, 10*time.Millisecond)
}

func TestClerkWebhook_UserLifecycle(t *testing.T) {
	s := newTestServer(t)

	created := `{"type":"user.created","data":{"id":"user_9","email_addresses":[{"email_address":"ada@example.com"}],"first_name":"Ada","last_name":"Lovelace","image_url":"https://img/ada.png"}}`
	w := s.do(http.MethodPost, "/webhook/clerk", created, nil)
	require.Equal(t, http.StatusOK, w.Code)

	u, ok := s.users.Get("user_9")
	require.True(t, ok)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, "Ada Lovelace", u.Name)
	assert.Equal(t, "https://img/ada.png", u.AvatarURL)

	w = s.do(http.MethodPost, "/webhook/clerk", `{"type":"user.deleted","data":{"id":"user_9"}}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, ok = s.users.Get("user_9")
	assert.False(t, ok)

	w = s.do(http.MethodPost, "/webhook/clerk", `{"type":"session.created","data":{}}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/webhook/clerk", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, w)["status"])
}
