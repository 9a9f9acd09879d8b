package buffer

import (
	"go.uber.org/zap"

	"github.com/arnavsood/pagevault/internal/common"
	"github.com/arnavsood/pagevault/storage/dbstore"
)

// BasicGuard is a move-only, scoped handle on a pinned page. On Drop it
// unpins the page, marking it dirty iff a mutable data accessor
// (Mutable) was ever used. The compiler does not forbid copying a
// BasicGuard value; Move hands ownership to the returned guard and marks
// the source inert (valid = false) so only one of them unpins on Drop.
// Callers that need to share access must pass the guard by pointer and
// call Move explicitly, matching spec.md §4.5's move-only contract.
type BasicGuard struct {
	pool    *PoolManager
	pageID  dbstore.PageID
	frame   *page
	dirtied bool
	valid   bool
}

func newBasicGuard(pool *PoolManager, pageID dbstore.PageID, frame *page) BasicGuard {
	return BasicGuard{pool: pool, pageID: pageID, frame: frame, valid: true}
}

// PageID returns the guarded page's id. Calling it on an inert guard
// returns dbstore.InvalidPageID.
func (g *BasicGuard) PageID() dbstore.PageID {
	if !g.valid {
		return dbstore.InvalidPageID
	}
	return g.pageID
}

// Data returns a read-only view of the page's bytes.
func (g *BasicGuard) Data() []byte {
	g.mustBeValid()
	return g.frame.Data()
}

// Mutable returns a writable view of the page's bytes and marks the
// guard so its eventual Drop sets the dirty bit.
func (g *BasicGuard) Mutable() []byte {
	g.mustBeValid()
	g.dirtied = true
	return g.frame.Data()
}

// Drop unpins the page. Repeated Drops are safe; Drop on an already
// moved-from guard is a no-op.
func (g *BasicGuard) Drop() {
	if !g.valid {
		return
	}
	if err := g.pool.UnpinPage(g.pageID, g.dirtied); err != nil {
		g.pool.log.Warn("drop: unpin failed", zap.Int32("page_id", int32(g.pageID)), zap.Error(err))
	} else {
		g.pool.log.Debug("drop: unpinned", zap.Int32("page_id", int32(g.pageID)),
			zap.Bool("dirtied", g.dirtied), zap.Int64("goroutine_id", common.GoID()))
	}
	g.valid = false
}

// Move transfers ownership of g's page to the returned guard and leaves
// g inert. Operating on g afterward is undefined; types that embed
// BasicGuard should not be copied once moved from.
func (g *BasicGuard) Move() BasicGuard {
	g.mustBeValid()
	moved := *g
	g.valid = false
	return moved
}

// UpgradeRead consumes g (leaving it inert) and returns a ReadGuard
// holding a shared latch on the same page.
func (g *BasicGuard) UpgradeRead() ReadGuard {
	g.mustBeValid()
	frame := g.frame
	pool, pageID, dirtied := g.pool, g.pageID, g.dirtied
	g.valid = false
	frame.RLock()
	return ReadGuard{basic: BasicGuard{pool: pool, pageID: pageID, frame: frame, dirtied: dirtied, valid: true}}
}

// UpgradeWrite consumes g (leaving it inert) and returns a WriteGuard
// holding an exclusive latch on the same page.
func (g *BasicGuard) UpgradeWrite() WriteGuard {
	g.mustBeValid()
	frame := g.frame
	pool, pageID, dirtied := g.pool, g.pageID, g.dirtied
	g.valid = false
	frame.Lock()
	return WriteGuard{basic: BasicGuard{pool: pool, pageID: pageID, frame: frame, dirtied: dirtied, valid: true}}
}

func (g *BasicGuard) mustBeValid() {
	if !g.valid {
		g.pool.log.Fatal("use of inert page guard", zap.Int32("page_id", int32(g.pageID)))
	}
}

// ReadGuard additionally holds a shared latch, released on Drop.
type ReadGuard struct {
	basic BasicGuard
}

func (g *ReadGuard) PageID() dbstore.PageID { return g.basic.PageID() }
func (g *ReadGuard) Data() []byte           { return g.basic.Data() }

// Drop releases the read latch, then unpins the page.
func (g *ReadGuard) Drop() {
	if !g.basic.valid {
		return
	}
	g.basic.frame.RUnlock()
	g.basic.Drop()
}

// Move transfers ownership, leaving g inert.
func (g *ReadGuard) Move() ReadGuard {
	moved := *g
	g.basic.valid = false
	return moved
}

// WriteGuard additionally holds an exclusive latch, released on Drop.
// Any access through Mutable marks the page dirty on Drop.
type WriteGuard struct {
	basic BasicGuard
}

func (g *WriteGuard) PageID() dbstore.PageID { return g.basic.PageID() }
func (g *WriteGuard) Data() []byte           { return g.basic.Data() }
func (g *WriteGuard) Mutable() []byte        { return g.basic.Mutable() }

// Drop releases the write latch, then unpins the page (dirty iff
// Mutable was ever called).
func (g *WriteGuard) Drop() {
	if !g.basic.valid {
		return
	}
	g.basic.frame.Unlock()
	g.basic.Drop()
}

// Move transfers ownership, leaving g inert.
func (g *WriteGuard) Move() WriteGuard {
	moved := *g
	g.basic.valid = false
	return moved
}

// NewPageGuarded allocates a fresh page and returns a BasicGuard over
// it.
func (bpm *PoolManager) NewPageGuarded() (BasicGuard, error) {
	id, _, err := bpm.NewPage()
	if err != nil {
		return BasicGuard{}, err
	}
	frame, ok := bpm.frameFor(id)
	if !ok {
		return BasicGuard{}, dbstore.ErrPageNotFound
	}
	return newBasicGuard(bpm, id, frame), nil
}

// FetchPageBasic fetches pageID and returns a BasicGuard over it.
func (bpm *PoolManager) FetchPageBasic(pageID dbstore.PageID) (BasicGuard, error) {
	if _, err := bpm.FetchPage(pageID); err != nil {
		return BasicGuard{}, err
	}
	frame, ok := bpm.frameFor(pageID)
	if !ok {
		return BasicGuard{}, dbstore.ErrPageNotFound
	}
	return newBasicGuard(bpm, pageID, frame), nil
}

// FetchPageRead fetches pageID and returns it behind a shared latch.
func (bpm *PoolManager) FetchPageRead(pageID dbstore.PageID) (ReadGuard, error) {
	g, err := bpm.FetchPageBasic(pageID)
	if err != nil {
		return ReadGuard{}, err
	}
	return g.UpgradeRead(), nil
}

// FetchPageWrite fetches pageID and returns it behind an exclusive
// latch.
func (bpm *PoolManager) FetchPageWrite(pageID dbstore.PageID) (WriteGuard, error) {
	g, err := bpm.FetchPageBasic(pageID)
	if err != nil {
		return WriteGuard{}, err
	}
	return g.UpgradeWrite(), nil
}
