package buffer

import (
	"sync"

	"github.com/arnavsood/pagevault/storage/dbstore"
)

// page is one frame's backing buffer plus the metadata spec.md's data
// model calls out: {page_id, pin_count, dirty, reader/writer latch}.
// Frames are preallocated and reused across logical pages; only the
// PoolManager's mutex may mutate id/pinCount/dirty, and only while
// holding it. The latch is acquired separately, by guard constructors,
// after the PoolManager's lock has been released (spec.md §4.4
// concurrency contract).
type page struct {
	id       dbstore.PageID
	data     []byte
	pinCount int
	dirty    bool

	latch sync.RWMutex
}

func newPage(size int) *page {
	return &page{id: dbstore.InvalidPageID, data: make([]byte, size)}
}

func (p *page) reset() {
	p.id = dbstore.InvalidPageID
	p.pinCount = 0
	p.dirty = false
	for i := range p.data {
		p.data[i] = 0
	}
}

// PageID returns the page currently resident in this frame.
func (p *page) PageID() dbstore.PageID { return p.id }

// Data returns the frame's backing buffer. Callers must hold an
// appropriate guard for the duration of any access.
func (p *page) Data() []byte { return p.data }

func (p *page) RLock()   { p.latch.RLock() }
func (p *page) RUnlock() { p.latch.RUnlock() }
func (p *page) Lock()    { p.latch.Lock() }
func (p *page) Unlock()  { p.latch.Unlock() }
