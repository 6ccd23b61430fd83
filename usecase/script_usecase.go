package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"codeinject-go-server/domain/entity"
	"codeinject-go-server/domain/repository"
	"codeinject-go-server/internal/loader"
	"codeinject-go-server/internal/platform"
	"codeinject-go-server/internal/telemetry"

	"github.com/avast/retry-go"
	"go.uber.org/zap"
)

// 平台对 displayName 的长度限制
const maxDisplayNameLen = 50

// 版本尝试上限默认值
const (
	DefaultPageMaxAttempts = 5
	DefaultSiteMaxAttempts = 50
)

// ScriptPlatform 脚本注册与绑定需要的平台能力（platform.Client 实现）
type ScriptPlatform interface {
	RegisterInlineScript(ctx context.Context, siteID string, req platform.RegisterScriptRequest) (*platform.RegisteredScript, error)
	GetPageCustomCode(ctx context.Context, pageID string) ([]platform.ScriptBinding, error)
	UpsertPageCustomCode(ctx context.Context, pageID string, scripts []platform.ScriptBinding) error
	UpsertSiteCustomCode(ctx context.Context, siteID string, scripts []platform.ScriptBinding) error
	DeleteSiteCustomCode(ctx context.Context, siteID string) error
}

// AttemptsExhaustedError 所有候选版本都已被占用
type AttemptsExhaustedError struct {
	DisplayName string
	Attempts    int
}

func (e *AttemptsExhaustedError) Error() string {
	return fmt.Sprintf("script %s: all %d versions already registered", e.DisplayName, e.Attempts)
}

// LocationResult 单个位置的注册结果；Registered 表示已注册且已绑定
type LocationResult struct {
	Location   entity.Location `json:"location"`
	Registered bool            `json:"registered"`
	ScriptID   string          `json:"scriptId,omitempty"`
	Version    string          `json:"version,omitempty"`
	Attempts   int             `json:"attempts"`
	Error      string          `json:"error,omitempty"`
	Err        error           `json:"-"`
}

func (r *LocationResult) fail(err error) {
	r.Registered = false
	r.Err = err
	r.Error = err.Error()
}

// RegistrationReport 一次注册的汇总，head/body 互不影响
type RegistrationReport struct {
	Kind     entity.TargetKind `json:"type"`
	TargetID string            `json:"targetId"`
	Head     LocationResult    `json:"head"`
	Body     LocationResult    `json:"body"`
}

func (r *RegistrationReport) at(loc entity.Location) *LocationResult {
	if loc == entity.LocationHead {
		return &r.Head
	}
	return &r.Body
}

type ScriptConfig struct {
	// EndpointBase Delivery Endpoint 的公网地址
	EndpointBase    string
	PageMaxAttempts int
	SiteMaxAttempts int
}

// ScriptUseCase Script Registrar：生成 loader、协商版本、绑定到页面或站点
type ScriptUseCase struct {
	pages    repository.PageRepository
	sites    repository.SiteRepository
	platform ScriptPlatform
	cfg      ScriptConfig
	metrics  *telemetry.Metrics
	logger   *zap.Logger
}

func NewScriptUseCase(
	pages repository.PageRepository,
	sites repository.SiteRepository,
	p ScriptPlatform,
	cfg ScriptConfig,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) *ScriptUseCase {
	if cfg.PageMaxAttempts < 1 {
		cfg.PageMaxAttempts = DefaultPageMaxAttempts
	}
	if cfg.SiteMaxAttempts < 1 {
		cfg.SiteMaxAttempts = DefaultSiteMaxAttempts
	}
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	return &ScriptUseCase{
		pages:    pages,
		sites:    sites,
		platform: p,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger.Named("registrar"),
	}
}

// DisplayName 由 (类型, 位置, 目标 ID) 决定，同一组合永远得到同一个名字
// 只保留字母数字，超长时截取 ID 尾部
func DisplayName(kind entity.TargetKind, loc entity.Location, targetID string) string {
	prefix := "CodeInject" + capitalize(string(kind)) + capitalize(string(loc))
	var b strings.Builder
	for _, r := range targetID {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	id := b.String()
	if room := maxDisplayNameLen - len(prefix); len(id) > room {
		id = id[len(id)-room:]
	}
	return prefix + id
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func bindingLocation(loc entity.Location) string {
	if loc == entity.LocationHead {
		return platform.LocationHeader
	}
	return platform.LocationFooter
}

func locationOf(binding string) entity.Location {
	if binding == platform.LocationHeader {
		return entity.LocationHead
	}
	return entity.LocationBody
}

// ScriptVersion 第 n 次尝试（从 0 开始）使用的版本号
func ScriptVersion(attempt int) string {
	return "1.0." + strconv.Itoa(attempt)
}

// RegisterPage 为页面 head/body 各注册一个 loader，并合并进页面现有的自定义代码
func (uc *ScriptUseCase) RegisterPage(ctx context.Context, pageID uint) (*RegistrationReport, error) {
	page, err := uc.pages.GetByID(ctx, pageID)
	if err != nil {
		return nil, err
	}
	targetID := strconv.FormatUint(uint64(page.ID), 10)
	report := &RegistrationReport{Kind: entity.TargetPage, TargetID: targetID}

	bindings := uc.registerLocations(ctx, report, page.SiteID, targetID, uc.cfg.PageMaxAttempts)
	if len(bindings) > 0 {
		if err := uc.bindPage(ctx, page.ExternalPageID, bindings); err != nil {
			uc.logger.Error("[Registrar] ❌ bind page custom code failed",
				zap.String("page", page.ExternalPageID), zap.Error(err))
			for _, b := range bindings {
				report.at(locationOf(b.Location)).fail(fmt.Errorf("bind: %w", err))
			}
		}
	}

	uc.record(ctx, report)
	return report, nil
}

// bindPage 替换同位置的旧绑定，其它位置原样保留
func (uc *ScriptUseCase) bindPage(ctx context.Context, externalPageID string, bindings []platform.ScriptBinding) error {
	existing, err := uc.platform.GetPageCustomCode(ctx, externalPageID)
	if err != nil {
		return err
	}
	replaced := make(map[string]bool, len(bindings))
	for _, b := range bindings {
		replaced[b.Location] = true
	}
	merged := make([]platform.ScriptBinding, 0, len(existing)+len(bindings))
	for _, b := range existing {
		if !replaced[b.Location] {
			merged = append(merged, b)
		}
	}
	merged = append(merged, bindings...)
	return uc.platform.UpsertPageCustomCode(ctx, externalPageID, merged)
}

// RegisterSite 为站点 head/body 各注册一个 loader
// 先清空站点自定义代码（失败只记日志），再一次性写入本次成功的绑定
func (uc *ScriptUseCase) RegisterSite(ctx context.Context, siteID string) (*RegistrationReport, error) {
	site, err := uc.sites.Get(ctx, siteID)
	if err != nil {
		return nil, err
	}
	report := &RegistrationReport{Kind: entity.TargetSite, TargetID: site.ExternalSiteID}

	bindings := uc.registerLocations(ctx, report, site.ExternalSiteID, site.ExternalSiteID, uc.cfg.SiteMaxAttempts)
	if len(bindings) > 0 {
		if err := uc.platform.DeleteSiteCustomCode(ctx, site.ExternalSiteID); err != nil {
			uc.logger.Warn("[Registrar] ⚠️ clear site custom code failed",
				zap.String("site", site.ExternalSiteID), zap.Error(err))
		}
		if err := uc.platform.UpsertSiteCustomCode(ctx, site.ExternalSiteID, bindings); err != nil {
			uc.logger.Error("[Registrar] ❌ bind site custom code failed",
				zap.String("site", site.ExternalSiteID), zap.Error(err))
			for _, b := range bindings {
				report.at(locationOf(b.Location)).fail(fmt.Errorf("bind: %w", err))
			}
		} else if err := uc.sites.UpdateScriptBindings(ctx, site.ExternalSiteID, report.Head.ScriptID, report.Body.ScriptID); err != nil {
			uc.logger.Warn("[Registrar] ⚠️ store script ids failed",
				zap.String("site", site.ExternalSiteID), zap.Error(err))
		}
	}

	uc.record(ctx, report)
	return report, nil
}

// registerLocations 两个位置独立协商，返回成功注册的绑定
func (uc *ScriptUseCase) registerLocations(ctx context.Context, report *RegistrationReport, siteID, targetID string, maxAttempts int) []platform.ScriptBinding {
	var bindings []platform.ScriptBinding
	for _, loc := range entity.Locations {
		res := report.at(loc)
		res.Location = loc

		src, err := loader.Generate(loader.Params{
			TargetID:     targetID,
			Kind:         report.Kind,
			Location:     loc,
			EndpointBase: uc.cfg.EndpointBase,
		})
		if err != nil {
			res.fail(err)
			continue
		}

		name := DisplayName(report.Kind, loc, targetID)
		script, attempts, err := uc.negotiate(ctx, siteID, name, src, report.Kind, maxAttempts)
		res.Attempts = attempts
		if err != nil {
			uc.logger.Error("[Registrar] ❌ register script failed",
				zap.String("name", name), zap.Int("attempts", attempts), zap.Error(err))
			res.fail(err)
			continue
		}

		res.Registered = true
		res.ScriptID = script.ID
		res.Version = script.Version
		// 平台按 (id, version) 查找已注册脚本，固定的 "1.0.0" 在协商到更高版本时会指向旧代码
		bindings = append(bindings, platform.ScriptBinding{
			ID:       script.ID,
			Location: bindingLocation(loc),
			Version:  script.Version,
		})
	}
	return bindings
}

// negotiate 依次尝试 1.0.0, 1.0.1, ...，只有版本冲突才继续，其它错误立即返回
func (uc *ScriptUseCase) negotiate(ctx context.Context, siteID, displayName, source string, kind entity.TargetKind, maxAttempts int) (*platform.RegisteredScript, int, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var script *platform.RegisteredScript
	attempts := 0
	err := retry.Do(
		func() error {
			version := ScriptVersion(attempts)
			attempts++
			uc.metrics.ScriptAttempt(ctx, string(kind))
			s, err := uc.platform.RegisterInlineScript(ctx, siteID, platform.RegisterScriptRequest{
				SourceCode:  source,
				Version:     version,
				DisplayName: displayName,
			})
			if err != nil {
				return err
			}
			script = s
			return nil
		},
		retry.Attempts(uint(maxAttempts)),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, platform.ErrDuplicateScriptVersion)
		}),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			uc.logger.Debug("[Registrar] version taken, trying next",
				zap.String("name", displayName), zap.String("next", ScriptVersion(int(n)+1)))
		}),
	)
	if err != nil {
		if errors.Is(err, platform.ErrDuplicateScriptVersion) {
			return nil, attempts, &AttemptsExhaustedError{DisplayName: displayName, Attempts: attempts}
		}
		return nil, attempts, err
	}
	return script, attempts, nil
}

func (uc *ScriptUseCase) record(ctx context.Context, report *RegistrationReport) {
	for _, loc := range entity.Locations {
		res := report.at(loc)
		uc.metrics.Registration(ctx, string(report.Kind), string(loc), res.Registered)
	}
	uc.logger.Info("[Registrar] registration finished",
		zap.String("type", string(report.Kind)),
		zap.String("target", report.TargetID),
		zap.Bool("head", report.Head.Registered),
		zap.Bool("body", report.Body.Registered),
	)
}
