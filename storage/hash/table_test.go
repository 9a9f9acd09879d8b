package hash

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arnavsood/pagevault/storage/buffer"
	"github.com/arnavsood/pagevault/storage/dbstore"
	"github.com/arnavsood/pagevault/storage/disk"
)

func newTestPoolManager(t *testing.T, poolSize int) *buffer.PoolManager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pages.db")
	m, err := disk.NewManager(path, dbstore.DefaultPageSize, zap.NewNop(), nil)
	require.NoError(t, err)
	s := disk.NewScheduler(m, zap.NewNop())
	replacer := buffer.NewLRUKReplacer(poolSize, 2, zap.NewNop())
	return buffer.NewPoolManager(poolSize, dbstore.DefaultPageSize, s, replacer, zap.NewNop(), nil)
}

func newTestTable(t *testing.T, poolSize int, headerMaxDepth, directoryMaxDepth uint32) *Table[uint32, uint32] {
	t.Helper()
	bpm := newTestPoolManager(t, poolSize)
	table, err := NewTable(bpm, Config[uint32, uint32]{
		HashFn:            Uint32HashFunc,
		Comparator:        Uint32Comparator,
		KeyCodec:          Uint32Codec,
		ValueCodec:        Uint32Codec,
		HeaderMaxDepth:    headerMaxDepth,
		DirectoryMaxDepth: directoryMaxDepth,
	}, zap.NewNop(), nil)
	require.NoError(t, err)
	return table
}

func TestTable_InsertLookupRemoveRoundTrip(t *testing.T) {
	table := newTestTable(t, 16, 2, 3)

	ok, err := table.Insert(10, 100)
	require.NoError(t, err)
	require.True(t, ok)

	vals, err := table.Lookup(10)
	require.NoError(t, err)
	require.Equal(t, []uint32{100}, vals)

	removed, err := table.Remove(10)
	require.NoError(t, err)
	require.True(t, removed)

	vals, err = table.Lookup(10)
	require.NoError(t, err)
	require.Nil(t, vals)
}

func TestTable_InsertRejectsDuplicateKey(t *testing.T) {
	table := newTestTable(t, 16, 2, 3)

	ok, err := table.Insert(1, 1)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = table.Insert(1, 2)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTable_LookupMissingKeyReturnsNil(t *testing.T) {
	table := newTestTable(t, 16, 2, 3)
	vals, err := table.Lookup(999)
	require.NoError(t, err)
	require.Nil(t, vals)
}

func TestTable_RemoveMissingKeyReturnsFalse(t *testing.T) {
	table := newTestTable(t, 16, 2, 3)
	removed, err := table.Remove(999)
	require.NoError(t, err)
	require.False(t, removed)
}

// TestTable_SplitsBucketsAsCapacityFills drives enough sequential-key
// inserts to force repeated bucket splits under a small directory max
// depth, then asserts the table saturates cleanly with ErrDirectoryFull
// once every bucket at max depth is full, and that every key inserted so
// far is still reachable.
func TestTable_SplitsBucketsAsCapacityFills(t *testing.T) {
	table := newTestTable(t, 32, 2, 2)

	capacity := BucketCapacity(dbstore.DefaultPageSize, Uint32Codec.Size, Uint32Codec.Size)
	total := capacity * 4 // 2^directoryMaxDepth buckets, each full

	for k := uint32(0); k < uint32(total); k++ {
		ok, err := table.Insert(k, k*10)
		require.NoErrorf(t, err, "inserting key %d", k)
		require.Truef(t, ok, "insert of key %d unexpectedly rejected", k)
	}

	_, err := table.Insert(uint32(total), 0)
	require.ErrorIs(t, err, dbstore.ErrDirectoryFull)

	for k := uint32(0); k < uint32(total); k += 97 {
		vals, err := table.Lookup(k)
		require.NoError(t, err)
		require.Equal(t, []uint32{k * 10}, vals)
	}
}

func TestTable_ReopenAfterSplitsPreservesData(t *testing.T) {
	bpm := newTestPoolManager(t, 16)
	cfg := Config[uint32, uint32]{
		HashFn: Uint32HashFunc, Comparator: Uint32Comparator,
		KeyCodec: Uint32Codec, ValueCodec: Uint32Codec,
		HeaderMaxDepth: 2, DirectoryMaxDepth: 3,
	}
	table, err := NewTable(bpm, cfg, zap.NewNop(), nil)
	require.NoError(t, err)

	// four buckets' worth of sequential keys: more than one bucket holds,
	// so the directory splits before the reopen.
	capacity := BucketCapacity(dbstore.DefaultPageSize, Uint32Codec.Size, Uint32Codec.Size)
	for k := uint32(0); k < uint32(capacity*4); k++ {
		ok, err := table.Insert(k, k+1000)
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.NoError(t, bpm.FlushAllPages())

	reopened := OpenTable(bpm, table.HeaderPageID(), cfg, zap.NewNop(), nil)
	vals, err := reopened.Lookup(25)
	require.NoError(t, err)
	require.Equal(t, []uint32{1025}, vals)
}
