package hash

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arnavsood/pagevault/storage/dbstore"
)

func TestHeaderPage_InitLeavesSlotsInvalid(t *testing.T) {
	buf := make([]byte, headerPageBytes)
	InitHeaderPage(buf, 2)

	h := NewHeaderPageView(buf)
	require.Equal(t, uint32(2), h.MaxDepth())
	require.Equal(t, uint32(4), h.MaxSize())
	require.Equal(t, dbstore.InvalidPageID, h.DirectoryPageID(0))
}

// TestHeaderPage_HashToDirectoryIndex reproduces the H=2 identity-hash
// worked scenario: the top 2 bits of the hash select the directory slot.
func TestHeaderPage_HashToDirectoryIndex(t *testing.T) {
	buf := make([]byte, headerPageBytes)
	InitHeaderPage(buf, 2)
	h := NewHeaderPageView(buf)

	require.Equal(t, uint32(0), h.HashToDirectoryIndex(0))
	require.Equal(t, uint32(1), h.HashToDirectoryIndex(1<<30))
	require.Equal(t, uint32(3), h.HashToDirectoryIndex(0xFFFFFFFF))
}

func TestHeaderPage_ZeroDepthAlwaysRoutesToSlotZero(t *testing.T) {
	buf := make([]byte, headerPageBytes)
	InitHeaderPage(buf, 0)
	h := NewHeaderPageView(buf)

	require.Equal(t, uint32(0), h.HashToDirectoryIndex(0xABCDEF01))
}

func TestHeaderPage_SetDirectoryPageIDRoundTrips(t *testing.T) {
	buf := make([]byte, headerPageBytes)
	InitHeaderPage(buf, 2)
	h := NewHeaderPageView(buf)

	h.SetDirectoryPageID(1, 42)
	require.Equal(t, dbstore.PageID(42), h.DirectoryPageID(1))
	require.Equal(t, dbstore.InvalidPageID, h.DirectoryPageID(0))
}
