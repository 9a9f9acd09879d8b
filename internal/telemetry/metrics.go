package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// StorageMetrics groups the counters the storage core reports through a
// Telemetry.Meter. All fields are safe zero-effort no-ops when built from
// a disabled Telemetry (New returns a noop meter in that case).
type StorageMetrics struct {
	DiskReads   metric.Int64Counter
	DiskWrites  metric.Int64Counter
	DiskFlushes metric.Int64Counter

	BufferHits    metric.Int64Counter
	BufferMisses  metric.Int64Counter
	BufferEvicted metric.Int64Counter

	HashSplits metric.Int64Counter
	HashMerges metric.Int64Counter
}

// NewStorageMetrics registers the storage core's instruments against the
// given meter. Call once per PoolManager/Manager/Table stack.
func NewStorageMetrics(meter metric.Meter) (*StorageMetrics, error) {
	var m StorageMetrics
	var err error

	if m.DiskReads, err = meter.Int64Counter("storage.disk.reads",
		metric.WithDescription("pages read from the backing file")); err != nil {
		return nil, err
	}
	if m.DiskWrites, err = meter.Int64Counter("storage.disk.writes",
		metric.WithDescription("pages written to the backing file")); err != nil {
		return nil, err
	}
	if m.DiskFlushes, err = meter.Int64Counter("storage.disk.flushes",
		metric.WithDescription("fsync calls issued against the backing file")); err != nil {
		return nil, err
	}
	if m.BufferHits, err = meter.Int64Counter("storage.buffer.hits",
		metric.WithDescription("page fetches served from a resident frame")); err != nil {
		return nil, err
	}
	if m.BufferMisses, err = meter.Int64Counter("storage.buffer.misses",
		metric.WithDescription("page fetches that required disk I/O")); err != nil {
		return nil, err
	}
	if m.BufferEvicted, err = meter.Int64Counter("storage.buffer.evictions",
		metric.WithDescription("frames reclaimed by the replacer")); err != nil {
		return nil, err
	}
	if m.HashSplits, err = meter.Int64Counter("storage.hash.splits",
		metric.WithDescription("bucket splits performed by the extendible hash table")); err != nil {
		return nil, err
	}
	if m.HashMerges, err = meter.Int64Counter("storage.hash.merges",
		metric.WithDescription("bucket merges performed by the extendible hash table")); err != nil {
		return nil, err
	}
	return &m, nil
}

// Noop returns a StorageMetrics whose counters discard every increment,
// for callers that construct a component without a Telemetry (tests,
// short-lived tools) and don't want to nil-check on every hot path.
func Noop() *StorageMetrics {
	c := noopCounter{}
	return &StorageMetrics{
		DiskReads: c, DiskWrites: c, DiskFlushes: c,
		BufferHits: c, BufferMisses: c, BufferEvicted: c,
		HashSplits: c, HashMerges: c,
	}
}

type noopCounter struct{ metric.Int64Counter }

func (noopCounter) Add(context.Context, int64, ...metric.AddOption) {}
