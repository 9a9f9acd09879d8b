package buffer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arnavsood/pagevault/storage/dbstore"
	"github.com/arnavsood/pagevault/storage/disk"
)

func TestBasicGuard_DropUnpinsAndMarksDirtyOnlyIfMutated(t *testing.T) {
	bpm := newTestPool(t, 2, 2)

	g, err := bpm.NewPageGuarded()
	require.NoError(t, err)
	id := g.PageID()
	g.Drop()
	frame := bpm.frames[bpm.pageTable[id]]
	require.Equal(t, 0, frame.pinCount)
	require.False(t, frame.dirty)

	fetched, err := bpm.FetchPageBasic(id)
	require.NoError(t, err)
	fetched.Mutable()[0] = 1
	fetched.Drop()
	require.Equal(t, 0, frame.pinCount)
	require.True(t, frame.dirty)

	require.NoError(t, bpm.FlushPage(id))
}

func TestWriteGuard_MutableMarksPageDirty(t *testing.T) {
	bpm := newTestPool(t, 2, 2)

	basic, err := bpm.NewPageGuarded()
	require.NoError(t, err)
	id := basic.PageID()
	basic.Drop()

	wg, err := bpm.FetchPageWrite(id)
	require.NoError(t, err)
	wg.Mutable()[0] = 5
	wg.Drop()
	require.True(t, bpm.frames[bpm.pageTable[id]].dirty)

	rg, err := bpm.FetchPageRead(id)
	require.NoError(t, err)
	require.Equal(t, byte(5), rg.Data()[0])
	rg.Drop()
}

func TestReadGuard_DoesNotBlockOtherReaders(t *testing.T) {
	bpm := newTestPool(t, 2, 2)

	basic, err := bpm.NewPageGuarded()
	require.NoError(t, err)
	id := basic.PageID()
	basic.Drop()

	g1, err := bpm.FetchPageRead(id)
	require.NoError(t, err)
	g2, err := bpm.FetchPageRead(id)
	require.NoError(t, err)
	g1.Drop()
	g2.Drop()
}

func TestBasicGuard_UpgradeWriteThenDropFlushesThroughScheduler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages.db")
	m, err := disk.NewManager(path, dbstore.DefaultPageSize, zap.NewNop(), nil)
	require.NoError(t, err)
	s := disk.NewScheduler(m, zap.NewNop())
	bpm := NewPoolManager(2, dbstore.DefaultPageSize, s, NewLRUKReplacer(2, 2, zap.NewNop()), zap.NewNop(), nil)

	basic, err := bpm.NewPageGuarded()
	require.NoError(t, err)
	id := basic.PageID()
	wg := basic.UpgradeWrite()
	wg.Mutable()[0] = 11
	wg.Drop()

	require.NoError(t, bpm.FlushPage(id))

	got := make([]byte, m.PageSize())
	require.NoError(t, m.ReadPage(id, got))
	require.Equal(t, byte(11), got[0])
}
