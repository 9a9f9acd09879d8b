package hash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestBucket(t *testing.T, capacity int) BucketPage[uint32, uint32] {
	t.Helper()
	buf := make([]byte, bucketHeaderBytes+capacity*8)
	InitBucketPage(buf, Uint32Codec, Uint32Codec)
	return NewBucketPageView(buf, Uint32Codec, Uint32Codec)
}

func TestBucketPage_InsertLookupRemove(t *testing.T) {
	b := newTestBucket(t, 4)

	require.True(t, b.Insert(1, 10, Uint32Comparator))
	require.True(t, b.Insert(2, 20, Uint32Comparator))
	require.Equal(t, 2, b.Size())

	v, ok := b.Lookup(2, Uint32Comparator)
	require.True(t, ok)
	require.Equal(t, uint32(20), v)

	require.True(t, b.Remove(1, Uint32Comparator))
	require.Equal(t, 1, b.Size())
	_, ok = b.Lookup(1, Uint32Comparator)
	require.False(t, ok)

	// removing the first entry swaps the last one into its slot, which
	// must not disturb the survivor
	v, ok = b.Lookup(2, Uint32Comparator)
	require.True(t, ok)
	require.Equal(t, uint32(20), v)
}

func TestBucketPage_InsertRejectsDuplicateKey(t *testing.T) {
	b := newTestBucket(t, 4)
	require.True(t, b.Insert(5, 50, Uint32Comparator))
	require.False(t, b.Insert(5, 99, Uint32Comparator))
	require.Equal(t, 1, b.Size())
}

func TestBucketPage_InsertFailsWhenFull(t *testing.T) {
	b := newTestBucket(t, 2)
	require.True(t, b.Insert(1, 1, Uint32Comparator))
	require.True(t, b.Insert(2, 2, Uint32Comparator))
	require.True(t, b.IsFull())
	require.False(t, b.Insert(3, 3, Uint32Comparator))
}

func TestBucketPage_RemoveAtSwapsWithLast(t *testing.T) {
	b := newTestBucket(t, 3)
	b.Insert(1, 1, Uint32Comparator)
	b.Insert(2, 2, Uint32Comparator)
	b.Insert(3, 3, Uint32Comparator)

	b.RemoveAt(0)
	require.Equal(t, 2, b.Size())
	k, v := b.EntryAt(0)
	require.Equal(t, uint32(3), k)
	require.Equal(t, uint32(3), v)
}
