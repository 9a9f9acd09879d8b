package disk

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arnavsood/pagevault/storage/dbstore"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pages.db")
	m, err := NewManager(path, dbstore.DefaultPageSize, zap.NewNop(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestManager_WriteThenReadRoundTrip(t *testing.T) {
	m := newTestManager(t)

	want := make([]byte, m.PageSize())
	for i := range want {
		want[i] = byte(i % 251)
	}
	require.NoError(t, m.WritePage(3, want))

	got := make([]byte, m.PageSize())
	require.NoError(t, m.ReadPage(3, got))
	require.Equal(t, want, got)
}

func TestManager_ReadBeyondEOFReturnsZeroedPage(t *testing.T) {
	m := newTestManager(t)

	got := make([]byte, m.PageSize())
	for i := range got {
		got[i] = 0xFF
	}
	require.NoError(t, m.ReadPage(7, got))

	want := make([]byte, m.PageSize())
	require.Equal(t, want, got)
}

func TestManager_StatsCountWritesAndFlushes(t *testing.T) {
	m := newTestManager(t)
	buf := make([]byte, m.PageSize())

	require.NoError(t, m.WritePage(0, buf))
	require.NoError(t, m.WritePage(1, buf))

	stats := m.Stats()
	require.Equal(t, uint64(2), stats.Writes)
	require.Equal(t, uint64(2), stats.Flushes)
}

func TestManager_SurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages.db")

	m1, err := NewManager(path, dbstore.DefaultPageSize, zap.NewNop(), nil)
	require.NoError(t, err)
	buf := make([]byte, m1.PageSize())
	buf[0] = 42
	require.NoError(t, m1.WritePage(2, buf))
	require.NoError(t, m1.Close())

	m2, err := NewManager(path, dbstore.DefaultPageSize, zap.NewNop(), nil)
	require.NoError(t, err)
	defer m2.Close()

	got := make([]byte, m2.PageSize())
	require.NoError(t, m2.ReadPage(2, got))
	require.Equal(t, byte(42), got[0])
}
