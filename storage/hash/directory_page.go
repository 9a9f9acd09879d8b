package hash

import (
	"encoding/binary"

	"github.com/arnavsood/pagevault/storage/dbstore"
)

// MaxDirectoryDepth is the largest D_max this implementation supports,
// matching the original bustub source's HTABLE_DIRECTORY_MAX_DEPTH
// (SPEC_FULL.md §4).
const MaxDirectoryDepth = 9

const directorySlots = 1 << MaxDirectoryDepth // 512

// directoryPage's on-disk layout (little-endian, spec.md §6):
//
//	uint32 max_depth
//	uint32 global_depth
//	uint8  local_depths[2^MaxDirectoryDepth]
//	uint32 bucket_page_ids[2^MaxDirectoryDepth]
const (
	dirMaxDepthOff     = 0
	dirGlobalDepthOff  = 4
	dirLocalDepthsOff  = 8
	dirBucketIDsOff    = dirLocalDepthsOff + directorySlots
	directoryPageBytes = dirBucketIDsOff + directorySlots*4
)

// DirectoryPage is a typed view over a page guard's byte slice.
type DirectoryPage struct {
	buf []byte
}

// NewDirectoryPageView wraps buf (must be at least directoryPageBytes long).
func NewDirectoryPageView(buf []byte) DirectoryPage {
	return DirectoryPage{buf: buf}
}

// InitDirectoryPage sets max_depth = maxDepth, global_depth = 0, and
// clears every local depth and bucket id slot.
func InitDirectoryPage(buf []byte, maxDepth uint32) {
	d := DirectoryPage{buf: buf}
	binary.LittleEndian.PutUint32(buf[dirMaxDepthOff:], maxDepth)
	binary.LittleEndian.PutUint32(buf[dirGlobalDepthOff:], 0)
	for i := uint32(0); i < directorySlots; i++ {
		d.SetLocalDepth(i, 0)
		d.SetBucketPageID(i, dbstore.InvalidPageID)
	}
}

// MaxDepth returns D_max.
func (d DirectoryPage) MaxDepth() uint32 {
	return binary.LittleEndian.Uint32(d.buf[dirMaxDepthOff:])
}

// GlobalDepth returns g.
func (d DirectoryPage) GlobalDepth() uint32 {
	return binary.LittleEndian.Uint32(d.buf[dirGlobalDepthOff:])
}

func (d DirectoryPage) setGlobalDepth(g uint32) {
	binary.LittleEndian.PutUint32(d.buf[dirGlobalDepthOff:], g)
}

// Size returns 2^global_depth, the number of live directory entries.
func (d DirectoryPage) Size() uint32 { return 1 << d.GlobalDepth() }

// MaxSize returns 2^max_depth, the directory's full slot count.
func (d DirectoryPage) MaxSize() uint32 { return 1 << d.MaxDepth() }

// GlobalDepthMask returns (1 << global_depth) - 1.
func (d DirectoryPage) GlobalDepthMask() uint32 { return d.Size() - 1 }

// LocalDepthMask returns (1 << local_depths[i]) - 1. spec.md §9's open
// question notes the original reads this mask from the wrong array; this
// implementation reads local_depths[i], which is the corrected source.
func (d DirectoryPage) LocalDepthMask(i uint32) uint32 {
	return (uint32(1) << d.GetLocalDepth(i)) - 1
}

// HashToBucketIndex returns hash & global_depth_mask.
func (d DirectoryPage) HashToBucketIndex(hash uint32) uint32 {
	return hash & d.GlobalDepthMask()
}

// SplitImageIndex returns i with bit (local_depths[i] - 1) flipped. It
// must be called with local_depths[i] already incremented for the
// split in progress: the split image is the sibling that differs from
// i only in the newly-significant bit, one below the new depth.
func (d DirectoryPage) SplitImageIndex(i uint32) uint32 {
	return i ^ (1 << (d.GetLocalDepth(i) - 1))
}

// GetLocalDepth returns local_depths[i].
func (d DirectoryPage) GetLocalDepth(i uint32) uint8 {
	return d.buf[dirLocalDepthsOff+int(i)]
}

// SetLocalDepth records local_depths[i] = depth.
func (d DirectoryPage) SetLocalDepth(i uint32, depth uint8) {
	d.buf[dirLocalDepthsOff+int(i)] = depth
}

// IncrLocalDepth increments local_depths[i].
func (d DirectoryPage) IncrLocalDepth(i uint32) {
	d.SetLocalDepth(i, d.GetLocalDepth(i)+1)
}

// DecrLocalDepth decrements local_depths[i].
func (d DirectoryPage) DecrLocalDepth(i uint32) {
	d.SetLocalDepth(i, d.GetLocalDepth(i)-1)
}

// GetBucketPageID returns bucket_page_ids[i].
func (d DirectoryPage) GetBucketPageID(i uint32) dbstore.PageID {
	raw := binary.LittleEndian.Uint32(d.buf[dirBucketIDsOff+int(i)*4:])
	return decodePageID(raw)
}

// SetBucketPageID records bucket_page_ids[i] = id.
func (d DirectoryPage) SetBucketPageID(i uint32, id dbstore.PageID) {
	binary.LittleEndian.PutUint32(d.buf[dirBucketIDsOff+int(i)*4:], encodePageID(id))
}

// IncrGlobalDepth doubles the live directory: for each new index i in
// [2^g, 2^(g+1)), copies bucket_page_id and local_depth from index
// (i - 2^g); then increments g. spec.md §4.7.
func (d DirectoryPage) IncrGlobalDepth() {
	g := d.GlobalDepth()
	span := uint32(1) << g
	for i := span; i < span*2; i++ {
		src := i - span
		d.SetBucketPageID(i, d.GetBucketPageID(src))
		d.SetLocalDepth(i, d.GetLocalDepth(src))
	}
	d.setGlobalDepth(g + 1)
}

// DecrGlobalDepth halves the live directory. Callers must ensure
// CanShrink() first.
func (d DirectoryPage) DecrGlobalDepth() {
	d.setGlobalDepth(d.GlobalDepth() - 1)
}

// CanShrink reports whether every live local depth is strictly less
// than the global depth.
func (d DirectoryPage) CanShrink() bool {
	g := d.GlobalDepth()
	for i := uint32(0); i < d.Size(); i++ {
		if d.GetLocalDepth(i) >= uint8(g) {
			return false
		}
	}
	return true
}

// BucketSlot is a read-only snapshot of one live directory entry, used
// by tests and diagnostics to assert on directory shape directly
// (SPEC_FULL.md §4).
type BucketSlot struct {
	Index      uint32
	BucketID   dbstore.PageID
	LocalDepth uint8
}

// Structure returns a snapshot of every live directory entry.
func (d DirectoryPage) Structure() []BucketSlot {
	slots := make([]BucketSlot, 0, d.Size())
	for i := uint32(0); i < d.Size(); i++ {
		slots = append(slots, BucketSlot{Index: i, BucketID: d.GetBucketPageID(i), LocalDepth: d.GetLocalDepth(i)})
	}
	return slots
}
