package dbstore

import "errors"

// Sentinel errors returned by storage/disk, storage/buffer and
// storage/hash. Routine "not possible right now" conditions (spec.md
// §7) wrap one of these with fmt.Errorf("...: %w", ...); programming
// faults are not represented here because they abort rather than
// return.
var (
	// ErrPageNotFound is returned when an operation needs a page that is
	// not currently resident in the buffer pool.
	ErrPageNotFound = errors.New("page not found in buffer pool")
	// ErrBufferPoolFull is returned when every frame is pinned and no
	// frame can be evicted to satisfy a new/fetch request.
	ErrBufferPoolFull = errors.New("buffer pool is full: no frame available")
	// ErrPagePinned is returned by DeletePage when the page's pin count
	// is greater than zero.
	ErrPagePinned = errors.New("page is pinned and cannot be deleted")
	// ErrIO wraps an underlying filesystem error from the disk manager.
	ErrIO = errors.New("disk i/o error")
	// ErrSchedulerClosed is returned when a request is submitted to a
	// disk scheduler whose worker has already been shut down.
	ErrSchedulerClosed = errors.New("disk scheduler is closed")

	// ErrDirectoryFull is returned by the hash table when a bucket split
	// would require growing the directory past its configured max depth.
	// Whether a key was inserted or not (spec.md §7's "insert returns
	// false" for this case) is carried by Table.Insert's bool result;
	// this error exists only so a caller can distinguish that outcome
	// from "key already present" without an extra lookup.
	ErrDirectoryFull = errors.New("hash directory at max depth, cannot grow")
)
