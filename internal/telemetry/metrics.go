package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics 业务指标集合
// meter 为 nil 时使用 noop 实现，单元测试无需初始化 exporter
type Metrics struct {
	cacheLookups  metric.Int64Counter
	cachePurges   metric.Int64Counter
	bundleBuilds  metric.Int64Counter
	scriptTries   metric.Int64Counter
	registrations metric.Int64Counter
	syncChanges   metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(meterName)
	}

	m := &Metrics{}
	var err error
	if m.cacheLookups, err = meter.Int64Counter("bundle_cache_lookups_total",
		metric.WithDescription("Bundle cache lookups by result")); err != nil {
		return nil, err
	}
	if m.cachePurges, err = meter.Int64Counter("bundle_cache_purges_total",
		metric.WithDescription("Bundle cache purge requests by result")); err != nil {
		return nil, err
	}
	if m.bundleBuilds, err = meter.Int64Counter("bundle_builds_total",
		metric.WithDescription("Bundle rebuilds by result")); err != nil {
		return nil, err
	}
	if m.scriptTries, err = meter.Int64Counter("script_register_attempts_total",
		metric.WithDescription("Registered script version attempts")); err != nil {
		return nil, err
	}
	if m.registrations, err = meter.Int64Counter("script_registrations_total",
		metric.WithDescription("Loader script registrations by outcome")); err != nil {
		return nil, err
	}
	if m.syncChanges, err = meter.Int64Counter("page_sync_changes_total",
		metric.WithDescription("Pages added, updated or deleted by sync")); err != nil {
		return nil, err
	}
	return m, nil
}

// NopMetrics 测试用
func NopMetrics() *Metrics {
	m, _ := NewMetrics(nil)
	return m
}

func (m *Metrics) CacheLookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *Metrics) CachePurge(ctx context.Context, found bool) {
	result := "not_found"
	if found {
		result = "purged"
	}
	m.cachePurges.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *Metrics) BundleBuild(ctx context.Context, kind string, ok bool) {
	result := "error"
	if ok {
		result = "ok"
	}
	m.bundleBuilds.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("result", result),
	))
}

func (m *Metrics) ScriptAttempt(ctx context.Context, kind string) {
	m.scriptTries.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) Registration(ctx context.Context, kind, location string, ok bool) {
	result := "failed"
	if ok {
		result = "registered"
	}
	m.registrations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("location", location),
		attribute.String("result", result),
	))
}

func (m *Metrics) SyncChanges(ctx context.Context, added, updated, deleted int) {
	m.syncChanges.Add(ctx, int64(added), metric.WithAttributes(attribute.String("op", "added")))
	m.syncChanges.Add(ctx, int64(updated), metric.WithAttributes(attribute.String("op", "updated")))
	m.syncChanges.Add(ctx, int64(deleted), metric.WithAttributes(attribute.String("op", "deleted")))
}
