package hash

import "encoding/binary"

// bucketHeaderBytes is the fixed prefix before the entry array:
//
//	uint32 size
//	uint32 max_size
const bucketHeaderBytes = 8

// BucketCapacity returns how many (key, value) entries of the given
// codecs fit in a pageSize-byte page after the header.
func BucketCapacity(pageSize int, keySize, valueSize int) int {
	return (pageSize - bucketHeaderBytes) / (keySize + valueSize)
}

// BucketPage[K, V] is a typed view over a page guard's byte slice,
// implementing spec.md §4.8's fixed-capacity key/value array. It is
// generic over K/V but stores each entry using the fixed-width Codec
// pair supplied at construction, matching the "monomorphized generics"
// guidance of spec.md §9.
type BucketPage[K, V any] struct {
	buf       []byte
	keyCodec  Codec[K]
	valCodec  Codec[V]
	entrySize int
	capacity  int
}

// NewBucketPageView wraps buf using the given codecs. capacity is
// derived from len(buf) and the codecs' sizes.
func NewBucketPageView[K, V any](buf []byte, keyCodec Codec[K], valCodec Codec[V]) BucketPage[K, V] {
	entrySize := keyCodec.Size + valCodec.Size
	return BucketPage[K, V]{
		buf: buf, keyCodec: keyCodec, valCodec: valCodec,
		entrySize: entrySize,
		capacity:  (len(buf) - bucketHeaderBytes) / entrySize,
	}
}

// InitBucketPage zeroes size and records the bucket's max size.
func InitBucketPage[K, V any](buf []byte, keyCodec Codec[K], valCodec Codec[V]) {
	b := NewBucketPageView(buf, keyCodec, valCodec)
	binary.LittleEndian.PutUint32(buf[0:], 0)
	binary.LittleEndian.PutUint32(buf[4:], uint32(b.capacity))
}

// Size returns the number of live entries.
func (b BucketPage[K, V]) Size() int {
	return int(binary.LittleEndian.Uint32(b.buf[0:]))
}

func (b BucketPage[K, V]) setSize(n int) {
	binary.LittleEndian.PutUint32(b.buf[0:], uint32(n))
}

// MaxSize returns M, the bucket's fixed capacity.
func (b BucketPage[K, V]) MaxSize() int {
	return int(binary.LittleEndian.Uint32(b.buf[4:]))
}

// IsFull reports whether Size() == MaxSize().
func (b BucketPage[K, V]) IsFull() bool { return b.Size() >= b.MaxSize() }

// IsEmpty reports whether Size() == 0.
func (b BucketPage[K, V]) IsEmpty() bool { return b.Size() == 0 }

func (b BucketPage[K, V]) entryOffset(i int) int {
	return bucketHeaderBytes + i*b.entrySize
}

// KeyAt returns the key stored at slot i.
func (b BucketPage[K, V]) KeyAt(i int) K {
	off := b.entryOffset(i)
	return b.keyCodec.Decode(b.buf[off : off+b.keyCodec.Size])
}

// ValueAt returns the value stored at slot i.
func (b BucketPage[K, V]) ValueAt(i int) V {
	off := b.entryOffset(i) + b.keyCodec.Size
	return b.valCodec.Decode(b.buf[off : off+b.valCodec.Size])
}

// EntryAt returns both the key and value stored at slot i.
func (b BucketPage[K, V]) EntryAt(i int) (K, V) {
	return b.KeyAt(i), b.ValueAt(i)
}

func (b BucketPage[K, V]) setEntry(i int, key K, value V) {
	off := b.entryOffset(i)
	b.keyCodec.Encode(key, b.buf[off:off+b.keyCodec.Size])
	b.valCodec.Encode(value, b.buf[off+b.keyCodec.Size:off+b.entrySize])
}

// Lookup performs a linear scan for key, returning the first matching
// value.
func (b BucketPage[K, V]) Lookup(key K, cmp Comparator[K]) (V, bool) {
	for i := 0; i < b.Size(); i++ {
		if cmp(b.KeyAt(i), key) {
			return b.ValueAt(i), true
		}
	}
	var zero V
	return zero, false
}

// Insert appends (key, value) at position Size() and increments Size().
// It reports false without modifying the bucket if the bucket is full or
// key is already present under cmp.
func (b BucketPage[K, V]) Insert(key K, value V, cmp Comparator[K]) bool {
	if b.IsFull() {
		return false
	}
	if _, found := b.Lookup(key, cmp); found {
		return false
	}
	b.setEntry(b.Size(), key, value)
	b.setSize(b.Size() + 1)
	return true
}

// Remove scans for key and, on a match, swaps it with the last live
// entry and shrinks Size() by one (spec.md §4.8's swap-on-remove, which
// does not preserve relative order).
func (b BucketPage[K, V]) Remove(key K, cmp Comparator[K]) bool {
	for i := 0; i < b.Size(); i++ {
		if cmp(b.KeyAt(i), key) {
			b.RemoveAt(i)
			return true
		}
	}
	return false
}

// RemoveAt removes the entry at slot i by swapping in the last live
// entry, the way Remove does after finding its match by key. Kept
// separate from Remove so callers that have already located a match by
// index (as the split-migration loop does) don't pay for a second
// linear scan.
func (b BucketPage[K, V]) RemoveAt(i int) {
	last := b.Size() - 1
	if i != last {
		k, v := b.EntryAt(last)
		b.setEntry(i, k, v)
	}
	b.setSize(last)
}
