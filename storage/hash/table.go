package hash

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/arnavsood/pagevault/internal/telemetry"
	"github.com/arnavsood/pagevault/storage/buffer"
	"github.com/arnavsood/pagevault/storage/dbstore"
)

// Table is a disk-backed extendible hash table: a header page routes on
// the top bits of a key's hash to a directory page, which routes on the
// low bits to a bucket page holding the actual entries. All page access
// goes through a *buffer.PoolManager and its page guards, and follows a
// strict top-down latching order header -> directory -> bucket, never
// holding latches on sibling pages at the same depth (spec.md §5).
type Table[K, V any] struct {
	bpm *buffer.PoolManager

	headerPageID dbstore.PageID

	hashFn HashFunc[K]
	cmp    Comparator[K]

	keyCodec Codec[K]
	valCodec Codec[V]

	headerMaxDepth    uint32
	directoryMaxDepth uint32

	log     *zap.Logger
	metrics *telemetry.StorageMetrics
}

// Config configures the shape of a new Table.
type Config[K, V any] struct {
	HashFn            HashFunc[K]
	Comparator        Comparator[K]
	KeyCodec          Codec[K]
	ValueCodec        Codec[V]
	HeaderMaxDepth    uint32 // H; 0 means a single directory slot
	DirectoryMaxDepth uint32 // D_max
}

// NewTable allocates a fresh header page and returns a Table over it.
func NewTable[K, V any](bpm *buffer.PoolManager, cfg Config[K, V], log *zap.Logger, metrics *telemetry.StorageMetrics) (*Table[K, V], error) {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = telemetry.Noop()
	}
	t := &Table[K, V]{
		bpm: bpm, hashFn: cfg.HashFn, cmp: cfg.Comparator,
		keyCodec: cfg.KeyCodec, valCodec: cfg.ValueCodec,
		headerMaxDepth: cfg.HeaderMaxDepth, directoryMaxDepth: cfg.DirectoryMaxDepth,
		log: log.With(zap.String("component", "hash.Table")), metrics: metrics,
	}

	guard, err := bpm.NewPageGuarded()
	if err != nil {
		return nil, fmt.Errorf("allocating header page: %w", err)
	}
	InitHeaderPage(guard.Mutable(), t.headerMaxDepth)
	t.headerPageID = guard.PageID()
	guard.Drop()
	return t, nil
}

// OpenTable wraps an existing header page, for reopening a hash table
// that already has entries on disk.
func OpenTable[K, V any](bpm *buffer.PoolManager, headerPageID dbstore.PageID, cfg Config[K, V], log *zap.Logger, metrics *telemetry.StorageMetrics) *Table[K, V] {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = telemetry.Noop()
	}
	return &Table[K, V]{
		bpm: bpm, headerPageID: headerPageID,
		hashFn: cfg.HashFn, cmp: cfg.Comparator,
		keyCodec: cfg.KeyCodec, valCodec: cfg.ValueCodec,
		headerMaxDepth: cfg.HeaderMaxDepth, directoryMaxDepth: cfg.DirectoryMaxDepth,
		log: log.With(zap.String("component", "hash.Table")), metrics: metrics,
	}
}

// HeaderPageID returns the table's root page id.
func (t *Table[K, V]) HeaderPageID() dbstore.PageID { return t.headerPageID }

func (t *Table[K, V]) bucketView(buf []byte) BucketPage[K, V] {
	return NewBucketPageView(buf, t.keyCodec, t.valCodec)
}

// Insert adds (key, value), splitting buckets as needed. It reports
// false, with no error, if key is already present, and false with
// dbstore.ErrDirectoryFull if the target bucket is full and the
// directory is already at its configured max depth and cannot grow
// further to make room (spec.md §4.9, §7).
func (t *Table[K, V]) Insert(key K, value V) (bool, error) {
	hash := t.hashFn(key)

	headerGuard, err := t.bpm.FetchPageWrite(t.headerPageID)
	if err != nil {
		return false, fmt.Errorf("fetching header page: %w", err)
	}
	header := NewHeaderPageView(headerGuard.Mutable())
	dirIndex := header.HashToDirectoryIndex(hash)
	directoryID := header.DirectoryPageID(dirIndex)

	if directoryID == dbstore.InvalidPageID {
		ok, err := t.insertIntoNewDirectory(header, dirIndex, key, value)
		headerGuard.Drop()
		return ok, err
	}
	headerGuard.Drop()

	directoryGuard, err := t.bpm.FetchPageWrite(directoryID)
	if err != nil {
		return false, fmt.Errorf("fetching directory page: %w", err)
	}
	defer directoryGuard.Drop()
	directory := NewDirectoryPageView(directoryGuard.Mutable())

	return t.insertIntoBucket(directory, hash, key, value)
}

// insertIntoNewDirectory handles spec.md §4.9 step 2: the directory slot
// for this hash is unallocated, so a fresh directory and its first
// bucket are created. Caller holds the header write guard.
func (t *Table[K, V]) insertIntoNewDirectory(header HeaderPage, dirIndex uint32, key K, value V) (bool, error) {
	directoryGuard, err := t.bpm.NewPageGuarded()
	if err != nil {
		return false, fmt.Errorf("allocating directory page: %w", err)
	}
	defer directoryGuard.Drop()
	InitDirectoryPage(directoryGuard.Mutable(), t.directoryMaxDepth)
	directory := NewDirectoryPageView(directoryGuard.Mutable())

	bucketGuard, err := t.bpm.NewPageGuarded()
	if err != nil {
		return false, fmt.Errorf("allocating bucket page: %w", err)
	}
	defer bucketGuard.Drop()
	InitBucketPage(bucketGuard.Mutable(), t.keyCodec, t.valCodec)
	bucket := t.bucketView(bucketGuard.Mutable())
	bucket.Insert(key, value, t.cmp)

	directory.SetBucketPageID(0, bucketGuard.PageID())
	directory.SetLocalDepth(0, 0)
	header.SetDirectoryPageID(dirIndex, directoryGuard.PageID())

	return true, nil
}

// insertIntoBucket handles spec.md §4.9 steps 3-5: the directory already
// exists, so route to (and if necessary split) the target bucket.
// Caller holds the directory write guard.
func (t *Table[K, V]) insertIntoBucket(directory DirectoryPage, hash uint32, key K, value V) (bool, error) {
	for {
		bucketIndex := directory.HashToBucketIndex(hash)
		bucketID := directory.GetBucketPageID(bucketIndex)

		bucketGuard, err := t.bpm.FetchPageWrite(bucketID)
		if err != nil {
			return false, fmt.Errorf("fetching bucket page: %w", err)
		}
		bucket := t.bucketView(bucketGuard.Mutable())

		if !bucket.IsFull() {
			ok := bucket.Insert(key, value, t.cmp)
			bucketGuard.Drop()
			return ok, nil
		}

		i := bucketIndex
		localDepth := directory.GetLocalDepth(i)
		if localDepth == uint8(directory.GlobalDepth()) && directory.GlobalDepth() == directory.MaxDepth() {
			bucketGuard.Drop()
			return false, dbstore.ErrDirectoryFull
		}

		newBucketGuard, err := t.bpm.NewPageGuarded()
		if err != nil {
			bucketGuard.Drop()
			return false, fmt.Errorf("allocating split bucket: %w", err)
		}
		InitBucketPage(newBucketGuard.Mutable(), t.keyCodec, t.valCodec)
		newBucket := t.bucketView(newBucketGuard.Mutable())

		if uint32(localDepth) == directory.GlobalDepth() {
			directory.IncrLocalDepth(i)
			directory.IncrGlobalDepth()
		} else {
			directory.IncrLocalDepth(i)
		}
		newLocalDepth := directory.GetLocalDepth(i)
		newBucketIndex := directory.SplitImageIndex(i)
		directory.SetBucketPageID(newBucketIndex, newBucketGuard.PageID())
		directory.SetLocalDepth(newBucketIndex, newLocalDepth)

		newMask := directory.LocalDepthMask(newBucketIndex)
		migrateSplitEntries(bucket, newBucket, t.hashFn, t.cmp, newMask, newBucketIndex)

		bucketGuard.Drop()
		newBucketGuard.Drop()
		t.metrics.HashSplits.Add(context.Background(), 1)
		t.log.Debug("split bucket", zap.Int32("old_index", int32(i)), zap.Int32("new_index", int32(newBucketIndex)))
		// loop: recompute the target index under the (possibly new) global
		// depth mask and retry, covering the pathological case where a
		// single split still leaves the target bucket full.
	}
}

// migrateSplitEntries moves every entry of old whose hash routes to
// newIndex under newMask into fresh. spec.md §4.9 step (f) only
// guarantees relative order "as much as swap-on-remove allows", so this
// walks forward and only advances past entries that stay put.
func migrateSplitEntries[K, V any](old, fresh BucketPage[K, V], hashFn HashFunc[K], cmp Comparator[K], newMask, newIndex uint32) {
	i := 0
	for i < old.Size() {
		k, v := old.EntryAt(i)
		if hashFn(k)&newMask == newIndex {
			fresh.Insert(k, v, cmp)
			old.RemoveAt(i)
			continue
		}
		i++
	}
}

// Lookup returns the value for key, if present. Because buckets enforce
// key uniqueness (spec.md §4.8), the result set is always of size 0 or
// 1; the slice return matches spec.md §4.9's "lookup(key, out results)"
// shape.
func (t *Table[K, V]) Lookup(key K) ([]V, error) {
	hash := t.hashFn(key)

	headerGuard, err := t.bpm.FetchPageRead(t.headerPageID)
	if err != nil {
		return nil, fmt.Errorf("fetching header page: %w", err)
	}
	header := NewHeaderPageView(headerGuard.Data())
	dirIndex := header.HashToDirectoryIndex(hash)
	directoryID := header.DirectoryPageID(dirIndex)
	headerGuard.Drop()

	if directoryID == dbstore.InvalidPageID {
		return nil, nil
	}

	directoryGuard, err := t.bpm.FetchPageRead(directoryID)
	if err != nil {
		return nil, fmt.Errorf("fetching directory page: %w", err)
	}
	directory := NewDirectoryPageView(directoryGuard.Data())
	bucketIndex := directory.HashToBucketIndex(hash)
	bucketID := directory.GetBucketPageID(bucketIndex)
	directoryGuard.Drop()

	if bucketID == dbstore.InvalidPageID {
		return nil, nil
	}

	bucketGuard, err := t.bpm.FetchPageRead(bucketID)
	if err != nil {
		return nil, fmt.Errorf("fetching bucket page: %w", err)
	}
	defer bucketGuard.Drop()
	bucket := t.bucketView(bucketGuard.Data())

	if v, found := bucket.Lookup(key, t.cmp); found {
		return []V{v}, nil
	}
	return nil, nil
}

// Remove deletes key. It reports false if key is not present. Merging
// empty buckets and shrinking the directory is spec.md §4.9's optional
// behavior; this implementation does not merge, matching the reference
// source (SPEC_FULL.md / spec.md §9 Open Questions).
func (t *Table[K, V]) Remove(key K) (bool, error) {
	hash := t.hashFn(key)

	headerGuard, err := t.bpm.FetchPageRead(t.headerPageID)
	if err != nil {
		return false, fmt.Errorf("fetching header page: %w", err)
	}
	header := NewHeaderPageView(headerGuard.Data())
	dirIndex := header.HashToDirectoryIndex(hash)
	directoryID := header.DirectoryPageID(dirIndex)
	headerGuard.Drop()

	if directoryID == dbstore.InvalidPageID {
		return false, nil
	}

	directoryGuard, err := t.bpm.FetchPageRead(directoryID)
	if err != nil {
		return false, fmt.Errorf("fetching directory page: %w", err)
	}
	directory := NewDirectoryPageView(directoryGuard.Data())
	bucketIndex := directory.HashToBucketIndex(hash)
	bucketID := directory.GetBucketPageID(bucketIndex)
	directoryGuard.Drop()

	if bucketID == dbstore.InvalidPageID {
		return false, nil
	}

	bucketGuard, err := t.bpm.FetchPageWrite(bucketID)
	if err != nil {
		return false, fmt.Errorf("fetching bucket page: %w", err)
	}
	defer bucketGuard.Drop()
	bucket := t.bucketView(bucketGuard.Mutable())

	return bucket.Remove(key, t.cmp), nil
}
