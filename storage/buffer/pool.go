// Package buffer implements the fixed-size in-memory page cache: the
// LRU-K replacer, the buffer pool manager, and the page guard RAII-style
// handles built on top of it.
package buffer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/arnavsood/pagevault/internal/telemetry"
	"github.com/arnavsood/pagevault/storage/dbstore"
	"github.com/arnavsood/pagevault/storage/disk"
)

// PoolManager owns a fixed array of frames, the page table mapping
// resident PageIDs to frames, the free list, the replacer, and the disk
// scheduler. A single mutex guards the frame table, free list, and every
// frame's pin count and dirty bit (spec.md §4.4). Page latches are
// acquired only by guard constructors, after this mutex has been
// released.
type PoolManager struct {
	mu sync.Mutex

	poolSize  int
	pageSize  int
	frames    []*page
	pageTable map[dbstore.PageID]dbstore.FrameID
	freeList  []dbstore.FrameID

	replacer  *LRUKReplacer
	scheduler *disk.Scheduler

	nextPageID atomic.Int32

	log     *zap.Logger
	metrics *telemetry.StorageMetrics
}

// NewPoolManager allocates poolSize frames of pageSize bytes, backed by
// scheduler for I/O and replacer for eviction selection.
func NewPoolManager(poolSize, pageSize int, scheduler *disk.Scheduler, replacer *LRUKReplacer, log *zap.Logger, metrics *telemetry.StorageMetrics) *PoolManager {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = telemetry.Noop()
	}
	bpm := &PoolManager{
		poolSize:  poolSize,
		pageSize:  pageSize,
		frames:    make([]*page, poolSize),
		pageTable: make(map[dbstore.PageID]dbstore.FrameID, poolSize),
		freeList:  make([]dbstore.FrameID, poolSize),
		replacer:  replacer,
		scheduler: scheduler,
		log:       log.With(zap.String("component", "buffer.PoolManager")),
		metrics:   metrics,
	}
	for i := 0; i < poolSize; i++ {
		bpm.frames[i] = newPage(pageSize)
		bpm.freeList[i] = dbstore.FrameID(i)
	}
	return bpm
}

// allocatePageID returns the next monotonically increasing page id.
// Callers must hold mu.
func (bpm *PoolManager) allocatePageID() dbstore.PageID {
	return dbstore.PageID(bpm.nextPageID.Add(1) - 1)
}

// acquireFrame picks a frame for a new or fetched page: the front of the
// free list if non-empty, otherwise whatever the replacer evicts. If the
// chosen frame holds a dirty page it is flushed first. Callers must hold
// mu. Returns (frame, oldPageID, ok).
func (bpm *PoolManager) acquireFrame() (dbstore.FrameID, dbstore.PageID, bool) {
	if len(bpm.freeList) > 0 {
		f := bpm.freeList[0]
		bpm.freeList = bpm.freeList[1:]
		return f, dbstore.InvalidPageID, true
	}

	frame, ok := bpm.replacer.Evict()
	if !ok {
		return dbstore.InvalidFrameID, dbstore.InvalidPageID, false
	}
	bpm.metrics.BufferEvicted.Add(context.Background(), 1)
	p := bpm.frames[frame]
	oldID := p.id
	if p.dirty {
		if err := bpm.scheduler.ScheduleWrite(p.id, p.data); err != nil {
			bpm.log.Error("flush of evicted frame failed", zap.Int32("frame_id", int32(frame)), zap.Error(err))
		}
	}
	delete(bpm.pageTable, oldID)
	return frame, oldID, true
}

// NewPage allocates a fresh page id, binds it to a frame, pins it, and
// returns a handle to its data. Fails if no frame is available.
func (bpm *PoolManager) NewPage() (dbstore.PageID, []byte, error) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frame, _, ok := bpm.acquireFrame()
	if !ok {
		return dbstore.InvalidPageID, nil, dbstore.ErrBufferPoolFull
	}

	id := bpm.allocatePageID()
	p := bpm.frames[frame]
	p.reset()
	p.id = id
	p.pinCount = 1

	bpm.pageTable[id] = frame
	bpm.replacer.RecordAccess(frame)
	bpm.replacer.SetEvictable(frame, false)

	bpm.log.Debug("new page", zap.Int32("page_id", int32(id)), zap.Int32("frame_id", int32(frame)))
	return id, p.data, nil
}

// FetchPage pins pageID, reading it from disk through the scheduler if
// it isn't already resident. Fetching does not clear the dirty bit
// (spec.md §4.4 note).
func (bpm *PoolManager) FetchPage(pageID dbstore.PageID) ([]byte, error) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	if frame, ok := bpm.pageTable[pageID]; ok {
		p := bpm.frames[frame]
		p.pinCount++
		bpm.replacer.RecordAccess(frame)
		bpm.replacer.SetEvictable(frame, false)
		bpm.metrics.BufferHits.Add(context.Background(), 1)
		return p.data, nil
	}

	bpm.metrics.BufferMisses.Add(context.Background(), 1)
	frame, _, ok := bpm.acquireFrame()
	if !ok {
		return nil, dbstore.ErrBufferPoolFull
	}

	p := bpm.frames[frame]
	p.reset()
	if err := bpm.scheduler.ScheduleRead(pageID, p.data); err != nil {
		return nil, fmt.Errorf("%w: fetching page %d: %v", dbstore.ErrIO, pageID, err)
	}
	p.id = pageID
	p.pinCount = 1

	bpm.pageTable[pageID] = frame
	bpm.replacer.RecordAccess(frame)
	bpm.replacer.SetEvictable(frame, false)

	bpm.log.Debug("fetched page", zap.Int32("page_id", int32(pageID)), zap.Int32("frame_id", int32(frame)))
	return p.data, nil
}

// UnpinPage decrements pageID's pin count, ORing isDirty into the dirty
// bit (a false argument never clears a previously-set dirty bit). When
// the pin count reaches zero the frame becomes evictable.
func (bpm *PoolManager) UnpinPage(pageID dbstore.PageID, isDirty bool) error {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frame, ok := bpm.pageTable[pageID]
	if !ok {
		return fmt.Errorf("%w: page %d", dbstore.ErrPageNotFound, pageID)
	}
	p := bpm.frames[frame]
	if p.pinCount <= 0 {
		return fmt.Errorf("%w: page %d already unpinned", dbstore.ErrPagePinned, pageID)
	}
	p.dirty = p.dirty || isDirty
	p.pinCount--
	if p.pinCount == 0 {
		bpm.replacer.SetEvictable(frame, true)
	}
	return nil
}

// FlushPage writes pageID through the scheduler and clears its dirty
// bit. The page remains resident.
func (bpm *PoolManager) FlushPage(pageID dbstore.PageID) error {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()
	return bpm.flushLocked(pageID)
}

func (bpm *PoolManager) flushLocked(pageID dbstore.PageID) error {
	frame, ok := bpm.pageTable[pageID]
	if !ok {
		return fmt.Errorf("%w: page %d", dbstore.ErrPageNotFound, pageID)
	}
	p := bpm.frames[frame]
	if err := bpm.scheduler.ScheduleWrite(pageID, p.data); err != nil {
		return fmt.Errorf("%w: flushing page %d: %v", dbstore.ErrIO, pageID, err)
	}
	p.dirty = false
	return nil
}

// FlushAllPages flushes every resident page.
func (bpm *PoolManager) FlushAllPages() error {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()
	var firstErr error
	for pageID := range bpm.pageTable {
		if err := bpm.flushLocked(pageID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeletePage removes pageID from the pool. It is a no-op success if the
// page isn't resident, and fails if the page is still pinned.
func (bpm *PoolManager) DeletePage(pageID dbstore.PageID) error {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frame, ok := bpm.pageTable[pageID]
	if !ok {
		return nil
	}
	p := bpm.frames[frame]
	if p.pinCount > 0 {
		return fmt.Errorf("%w: page %d", dbstore.ErrPagePinned, pageID)
	}
	if p.dirty {
		if err := bpm.flushLocked(pageID); err != nil {
			return err
		}
	}
	p.reset()
	delete(bpm.pageTable, pageID)
	bpm.replacer.Remove(frame)
	bpm.freeList = append(bpm.freeList, frame)
	return nil
}

// PageSize returns the fixed page size frames were allocated with.
func (bpm *PoolManager) PageSize() int { return bpm.pageSize }

// frameFor exposes the resident frame's page struct to guard
// constructors. It takes bpm.mu itself, so it must not be called while
// mu is held; guard constructors call it right after NewPage or
// FetchPage has pinned the page, and a pinned page cannot be evicted in
// between.
func (bpm *PoolManager) frameFor(pageID dbstore.PageID) (*page, bool) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()
	frame, ok := bpm.pageTable[pageID]
	if !ok {
		return nil, false
	}
	return bpm.frames[frame], true
}
