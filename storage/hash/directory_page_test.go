package hash

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arnavsood/pagevault/storage/dbstore"
)

func TestDirectoryPage_InitStartsAtGlobalDepthZero(t *testing.T) {
	buf := make([]byte, directoryPageBytes)
	InitDirectoryPage(buf, 3)
	d := NewDirectoryPageView(buf)

	require.Equal(t, uint32(3), d.MaxDepth())
	require.Equal(t, uint32(0), d.GlobalDepth())
	require.Equal(t, uint32(1), d.Size())
	require.Equal(t, dbstore.InvalidPageID, d.GetBucketPageID(0))
}

func TestDirectoryPage_IncrGlobalDepthCopiesMirroredHalf(t *testing.T) {
	buf := make([]byte, directoryPageBytes)
	InitDirectoryPage(buf, 3)
	d := NewDirectoryPageView(buf)

	d.SetBucketPageID(0, 7)
	d.SetLocalDepth(0, 0)
	d.IncrGlobalDepth()

	require.Equal(t, uint32(1), d.GlobalDepth())
	require.Equal(t, uint32(2), d.Size())
	require.Equal(t, dbstore.PageID(7), d.GetBucketPageID(1))
	require.Equal(t, uint8(0), d.GetLocalDepth(1))
}

func TestDirectoryPage_SplitImageIndex(t *testing.T) {
	buf := make([]byte, directoryPageBytes)
	InitDirectoryPage(buf, 3)
	d := NewDirectoryPageView(buf)

	// local_depths[0] is already post-increment here: a bucket split from
	// depth 1 to depth 2 flips bit 1 (depth-1), not bit 2.
	d.SetLocalDepth(0, 2)
	require.Equal(t, uint32(2), d.SplitImageIndex(0))
}

func TestDirectoryPage_CanShrinkReflectsLocalDepths(t *testing.T) {
	buf := make([]byte, directoryPageBytes)
	InitDirectoryPage(buf, 3)
	d := NewDirectoryPageView(buf)
	d.IncrGlobalDepth()

	require.True(t, d.CanShrink())

	d.SetLocalDepth(0, uint8(d.GlobalDepth()))
	require.False(t, d.CanShrink())
}

func TestDirectoryPage_StructureReportsLiveEntriesOnly(t *testing.T) {
	buf := make([]byte, directoryPageBytes)
	InitDirectoryPage(buf, 3)
	d := NewDirectoryPageView(buf)
	d.SetBucketPageID(0, 1)
	d.IncrGlobalDepth()
	d.SetBucketPageID(1, 2)

	structure := d.Structure()
	require.Len(t, structure, 2)
	require.Equal(t, dbstore.PageID(1), structure[0].BucketID)
	require.Equal(t, dbstore.PageID(2), structure[1].BucketID)
}
