package internaltelemetry

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// StorageMetrics holds the metric instruments for the buffer pool and
// the structures built on top of it.
type StorageMetrics struct {
	PageHitsCounter        metric.Int64Counter
	PageMissesCounter      metric.Int64Counter
	EvictionsCounter       metric.Int64Counter
	DirtyWritebacksCounter metric.Int64Counter
	DiskReadsCounter       metric.Int64Counter
	DiskWritesCounter      metric.Int64Counter
	PinnedPagesUpDown      metric.Int64UpDownCounter
}

// NewStorageMetrics creates and registers all storage engine metrics.
func NewStorageMetrics(meter metric.Meter) (*StorageMetrics, error) {
	pageHits, err := meter.Int64Counter(
		"kagedb.buffer.page_hits_total",
		metric.WithDescription("Fetches satisfied from a resident frame."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	pageMisses, err := meter.Int64Counter(
		"kagedb.buffer.page_misses_total",
		metric.WithDescription("Fetches that required a disk read."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	evictions, err := meter.Int64Counter(
		"kagedb.buffer.evictions_total",
		metric.WithDescription("Frames reclaimed through the replacer."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	dirtyWritebacks, err := meter.Int64Counter(
		"kagedb.buffer.dirty_writebacks_total",
		metric.WithDescription("Dirty victim pages written back before frame reuse."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	diskReads, err := meter.Int64Counter(
		"kagedb.disk.reads_total",
		metric.WithDescription("Page reads issued to the disk scheduler."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	diskWrites, err := meter.Int64Counter(
		"kagedb.disk.writes_total",
		metric.WithDescription("Page writes issued to the disk scheduler."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	pinnedPages, err := meter.Int64UpDownCounter(
		"kagedb.buffer.pinned_pages",
		metric.WithDescription("Pages currently pinned in the buffer pool."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	return &StorageMetrics{
		PageHitsCounter:        pageHits,
		PageMissesCounter:      pageMisses,
		EvictionsCounter:       evictions,
		DirtyWritebacksCounter: dirtyWritebacks,
		DiskReadsCounter:       diskReads,
		DiskWritesCounter:      diskWrites,
		PinnedPagesUpDown:      pinnedPages,
	}, nil
}

// Hit records a buffer pool hit; all helpers are nil-safe so callers
// can carry a nil *StorageMetrics when telemetry is disabled.
func (m *StorageMetrics) Hit(ctx context.Context) {
	if m != nil {
		m.PageHitsCounter.Add(ctx, 1)
	}
}

func (m *StorageMetrics) Miss(ctx context.Context) {
	if m != nil {
		m.PageMissesCounter.Add(ctx, 1)
	}
}

func (m *StorageMetrics) Eviction(ctx context.Context) {
	if m != nil {
		m.EvictionsCounter.Add(ctx, 1)
	}
}

func (m *StorageMetrics) DirtyWriteback(ctx context.Context) {
	if m != nil {
		m.DirtyWritebacksCounter.Add(ctx, 1)
	}
}

func (m *StorageMetrics) DiskRead(ctx context.Context) {
	if m != nil {
		m.DiskReadsCounter.Add(ctx, 1)
	}
}

func (m *StorageMetrics) DiskWrite(ctx context.Context) {
	if m != nil {
		m.DiskWritesCounter.Add(ctx, 1)
	}
}

func (m *StorageMetrics) PinDelta(ctx context.Context, delta int64) {
	if m != nil {
		m.PinnedPagesUpDown.Add(ctx, delta)
	}
}
