package hash

import (
	"encoding/binary"

	"github.com/arnavsood/pagevault/storage/dbstore"
)

// MaxHeaderDepth is the largest H this implementation supports, matching
// the original bustub source's HTABLE_HEADER_MAX_DEPTH (SPEC_FULL.md
// §4). 2^MaxHeaderDepth directory-page-id slots must fit in one page.
const MaxHeaderDepth = 9

const headerDirSlots = 1 << MaxHeaderDepth // 512

// headerPage's on-disk layout (little-endian, spec.md §6):
//
//	uint32 directory_page_ids[2^MaxHeaderDepth]
//	uint32 max_depth
//
// header only ever uses the first 2^H of the 512 slots; the rest is
// reserved, and InitHeaderPage sets it to InvalidPageID like the live
// slots.
const headerPageBytes = headerDirSlots*4 + 4

// HeaderPage is a typed view over a page guard's byte slice. It does not
// own the bytes; callers hold the guard for the duration of any access,
// per spec.md §5's shared-resource policy.
type HeaderPage struct {
	buf []byte
}

// NewHeaderPageView wraps buf (must be at least headerPageBytes long).
func NewHeaderPageView(buf []byte) HeaderPage {
	return HeaderPage{buf: buf}
}

// InitHeaderPage sets every one of buf's directory slots to
// InvalidPageID and records maxDepth.
func InitHeaderPage(buf []byte, maxDepth uint32) {
	h := HeaderPage{buf: buf}
	for i := 0; i < headerDirSlots; i++ {
		h.setDirectoryPageIDAt(i, dbstore.InvalidPageID)
	}
	binary.LittleEndian.PutUint32(buf[headerDirSlots*4:], maxDepth)
}

// MaxDepth returns H.
func (h HeaderPage) MaxDepth() uint32 {
	return binary.LittleEndian.Uint32(h.buf[headerDirSlots*4:])
}

// MaxSize returns 2^H, the number of directory pages this header can
// address.
func (h HeaderPage) MaxSize() uint32 {
	return 1 << h.MaxDepth()
}

// HashToDirectoryIndex returns (H > 0) ? hash >> (32 - H) : 0, per
// spec.md §4.6.
func (h HeaderPage) HashToDirectoryIndex(hash uint32) uint32 {
	d := h.MaxDepth()
	if d == 0 {
		return 0
	}
	return hash >> (32 - d)
}

// DirectoryPageID returns the directory page id stored at index i, or
// InvalidPageID if unallocated.
func (h HeaderPage) DirectoryPageID(i uint32) dbstore.PageID {
	return h.directoryPageIDAt(int(i))
}

// SetDirectoryPageID records id at index i.
func (h HeaderPage) SetDirectoryPageID(i uint32, id dbstore.PageID) {
	h.setDirectoryPageIDAt(int(i), id)
}

func (h HeaderPage) directoryPageIDAt(i int) dbstore.PageID {
	raw := binary.LittleEndian.Uint32(h.buf[i*4:])
	return decodePageID(raw)
}

func (h HeaderPage) setDirectoryPageIDAt(i int, id dbstore.PageID) {
	binary.LittleEndian.PutUint32(h.buf[i*4:], encodePageID(id))
}

func encodePageID(id dbstore.PageID) uint32 { return uint32(int32(id)) }
func decodePageID(raw uint32) dbstore.PageID { return dbstore.PageID(int32(raw)) }
