// Package disk provides synchronous fixed-size block I/O against a single
// backing file (Manager), and a single-worker FIFO request queue on top
// of it (Scheduler).
package disk

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/arnavsood/pagevault/internal/telemetry"
	"github.com/arnavsood/pagevault/storage/dbstore"
)

// Manager performs synchronous, fixed-size page I/O against one file.
// All access is serialized by an internal mutex; reads past end-of-file
// zero-fill rather than error, and writes past end-of-file extend the
// file, matching spec.md §4.1.
type Manager struct {
	mu       sync.Mutex
	file     *os.File
	pageSize int

	numWrites  uint64
	numFlushes uint64
	numDeletes uint64

	log     *zap.Logger
	metrics *telemetry.StorageMetrics
}

// Stats is a snapshot of the Manager's I/O counters.
type Stats struct {
	Writes  uint64
	Flushes uint64
	Deletes uint64
}

// NewManager opens (creating if necessary) filePath as the backing store
// for pageSize-sized pages.
func NewManager(filePath string, pageSize int, log *zap.Logger, metrics *telemetry.StorageMetrics) (*Manager, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = telemetry.Noop()
	}
	f, err := os.OpenFile(filePath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", dbstore.ErrIO, filePath, err)
	}
	return &Manager{
		file:     f,
		pageSize: pageSize,
		log:      log.With(zap.String("component", "disk.Manager")),
		metrics:  metrics,
	}, nil
}

// PageSize returns the fixed page size this Manager was constructed with.
func (m *Manager) PageSize() int { return m.pageSize }

// ReadPage fills dst (len(dst) == PageSize()) with the contents of
// pageID's block. A read that runs past the current end of file is not
// an error: the remainder of dst is zero-filled.
func (m *Manager) ReadPage(pageID dbstore.PageID, dst []byte) error {
	if len(dst) != m.pageSize {
		return fmt.Errorf("%w: buffer size %d != page size %d", dbstore.ErrIO, len(dst), m.pageSize)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	offset := int64(pageID) * int64(m.pageSize)
	n, err := m.file.ReadAt(dst, offset)
	if err != nil && err != io.EOF {
		m.log.Error("read failed", zap.Int32("page_id", int32(pageID)), zap.Error(err))
		return fmt.Errorf("%w: reading page %d: %v", dbstore.ErrIO, pageID, err)
	}
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
	m.metrics.DiskReads.Add(context.Background(), 1)
	m.log.Debug("read page", zap.Int32("page_id", int32(pageID)), zap.Int("bytes", n))
	return nil
}

// WritePage writes src (len(src) == PageSize()) to pageID's block and
// flushes it to stable storage before returning.
func (m *Manager) WritePage(pageID dbstore.PageID, src []byte) error {
	if len(src) != m.pageSize {
		return fmt.Errorf("%w: buffer size %d != page size %d", dbstore.ErrIO, len(src), m.pageSize)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	offset := int64(pageID) * int64(m.pageSize)
	if _, err := m.file.WriteAt(src, offset); err != nil {
		m.log.Error("write failed", zap.Int32("page_id", int32(pageID)), zap.Error(err))
		return fmt.Errorf("%w: writing page %d: %v", dbstore.ErrIO, pageID, err)
	}
	if err := m.file.Sync(); err != nil {
		m.log.Error("flush failed", zap.Int32("page_id", int32(pageID)), zap.Error(err))
		return fmt.Errorf("%w: flushing page %d: %v", dbstore.ErrIO, pageID, err)
	}
	m.numWrites++
	m.numFlushes++
	m.metrics.DiskWrites.Add(context.Background(), 1)
	m.metrics.DiskFlushes.Add(context.Background(), 1)
	m.log.Debug("wrote page", zap.Int32("page_id", int32(pageID)))
	return nil
}

// DeallocatePage is a best-effort bookkeeping hook: this design never
// reclaims on-disk space (spec.md §4.4 delete_page note), so it only
// bumps a counter for observability.
func (m *Manager) DeallocatePage(pageID dbstore.PageID) {
	m.mu.Lock()
	m.numDeletes++
	m.mu.Unlock()
}

// Stats returns a snapshot of the manager's I/O counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{Writes: m.numWrites, Flushes: m.numFlushes, Deletes: m.numDeletes}
}

// Close syncs and closes the backing file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.file.Sync(); err != nil {
		m.log.Warn("sync on close failed", zap.Error(err))
	}
	return m.file.Close()
}
