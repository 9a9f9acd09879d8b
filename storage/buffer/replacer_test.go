package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arnavsood/pagevault/storage/dbstore"
)

// TestLRUKReplacer_PrefersFewerThanKAccesses walks through the n=4, k=2
// sequential-single-access scenario: every frame starts with +Inf
// backward distance, so eviction order follows access order until a
// frame gets a second access.
func TestLRUKReplacer_PrefersFewerThanKAccesses(t *testing.T) {
	r := NewLRUKReplacer(4, 2, zap.NewNop())

	for f := dbstore.FrameID(1); f <= 4; f++ {
		r.RecordAccess(f)
		r.SetEvictable(f, true)
	}
	require.Equal(t, 4, r.Size())

	victim, ok := r.Evict()
	require.True(t, ok)
	require.Equal(t, dbstore.FrameID(1), victim)

	r.RecordAccess(1)
	r.SetEvictable(1, true)

	victim, ok = r.Evict()
	require.True(t, ok)
	require.Equal(t, dbstore.FrameID(2), victim)
}

// TestLRUKReplacer_TieBreaksByOldestAccess reproduces the A B C A B C D
// sequence (k=2, D non-evictable): A's second-most-recent access is the
// oldest among evictable frames, so A is evicted first.
func TestLRUKReplacer_TieBreaksByOldestAccess(t *testing.T) {
	r := NewLRUKReplacer(4, 2, zap.NewNop())

	frames := map[byte]dbstore.FrameID{'A': 1, 'B': 2, 'C': 3, 'D': 4}
	for _, ch := range []byte("ABCABC") {
		f := frames[ch]
		r.RecordAccess(f)
		r.SetEvictable(f, true)
	}
	r.RecordAccess(frames['D'])
	r.SetEvictable(frames['D'], false)

	victim, ok := r.Evict()
	require.True(t, ok)
	require.Equal(t, frames['A'], victim)
}

func TestLRUKReplacer_EvictReturnsFalseWhenNothingEvictable(t *testing.T) {
	r := NewLRUKReplacer(2, 2, zap.NewNop())
	r.RecordAccess(1)

	_, ok := r.Evict()
	require.False(t, ok)
}

func TestLRUKReplacer_RemoveDropsEvictableFrame(t *testing.T) {
	r := NewLRUKReplacer(2, 2, zap.NewNop())
	r.RecordAccess(1)
	r.SetEvictable(1, true)
	require.Equal(t, 1, r.Size())

	r.Remove(1)
	require.Equal(t, 0, r.Size())

	_, ok := r.Evict()
	require.False(t, ok)
}
