package usecase

import (
	"context"
	"sync"

	"codeinject-go-server/domain/entity"
	"codeinject-go-server/internal/platform"

	"github.com/stretchr/testify/mock"
)

// ========== MockPageRepository ==========
// 实现 repository.PageRepository，用于模拟同步流程中某个阶段失败

type MockPageRepository struct {
	mock.Mock
}

func (m *MockPageRepository) GetByID(ctx context.Context, id uint) (*entity.Page, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Page), args.Error(1)
}

func (m *MockPageRepository) ListBySite(ctx context.Context, siteID string) ([]entity.Page, error) {
	args := m.Called(ctx, siteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Page), args.Error(1)
}

func (m *MockPageRepository) CreateBatch(ctx context.Context, pages []entity.Page) error {
	args := m.Called(ctx, pages)
	return args.Error(0)
}

func (m *MockPageRepository) UpdateNames(ctx context.Context, siteID string, names map[string]string) error {
	args := m.Called(ctx, siteID, names)
	return args.Error(0)
}

func (m *MockPageRepository) DeleteByExternalIDs(ctx context.Context, siteID string, externalIDs []string) error {
	args := m.Called(ctx, siteID, externalIDs)
	return args.Error(0)
}

func (m *MockPageRepository) UpdateFiles(ctx context.Context, id uint, headFiles, bodyFiles entity.FileIDList) error {
	args := m.Called(ctx, id, headFiles, bodyFiles)
	return args.Error(0)
}

// ========== MockPageSource ==========

type MockPageSource struct {
	mock.Mock
}

func (m *MockPageSource) ListPages(ctx context.Context, siteID string) ([]platform.RemotePage, error) {
	args := m.Called(ctx, siteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]platform.RemotePage), args.Error(1)
}

// ========== MockScriptPlatform ==========

type MockScriptPlatform struct {
	mock.Mock
}

func (m *MockScriptPlatform) RegisterInlineScript(ctx context.Context, siteID string, req platform.RegisterScriptRequest) (*platform.RegisteredScript, error) {
	args := m.Called(ctx, siteID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*platform.RegisteredScript), args.Error(1)
}

func (m *MockScriptPlatform) GetPageCustomCode(ctx context.Context, pageID string) ([]platform.ScriptBinding, error) {
	args := m.Called(ctx, pageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]platform.ScriptBinding), args.Error(1)
}

func (m *MockScriptPlatform) UpsertPageCustomCode(ctx context.Context, pageID string, scripts []platform.ScriptBinding) error {
	args := m.Called(ctx, pageID, scripts)
	return args.Error(0)
}

func (m *MockScriptPlatform) UpsertSiteCustomCode(ctx context.Context, siteID string, scripts []platform.ScriptBinding) error {
	args := m.Called(ctx, siteID, scripts)
	return args.Error(0)
}

func (m *MockScriptPlatform) DeleteSiteCustomCode(ctx context.Context, siteID string) error {
	args := m.Called(ctx, siteID)
	return args.Error(0)
}

// ========== 记录型替身 ==========

// recordingInvalidator 记录 InvalidateTarget 调用
type recordingInvalidator struct {
	mu      sync.Mutex
	targets []string
}

func (r *recordingInvalidator) InvalidateTarget(ctx context.Context, kind entity.TargetKind, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets = append(r.targets, string(kind)+":"+id)
}

func (r *recordingInvalidator) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.targets...)
}

// recordingNotifier 记录推送给 ws 的失效事件
type recordingNotifier struct {
	mu      sync.Mutex
	targets []entity.Target
}

func (r *recordingNotifier) NotifyInvalidated(target entity.Target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets = append(r.targets, target)
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.targets)
}
