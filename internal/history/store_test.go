package history

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, maxEntries int) (*Store, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "history.db")
	store, err := NewStore(dbPath, maxEntries)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, dbPath
}

func TestRecordAndRecent(t *testing.T) {
	store, _ := newTestStore(t, 0)

	require.NoError(t, store.Record("example:10666", "map map07"))
	require.NoError(t, store.Record("example:10666", "say hello"))
	require.NoError(t, store.Record("example:10666", "kick player"))

	entries, err := store.Recent("example:10666", 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "map map07", entries[0].Command)
	require.Equal(t, "say hello", entries[1].Command)
	require.Equal(t, "kick player", entries[2].Command)
	require.False(t, entries[0].At.IsZero())
}

func TestRecordSkipsConsecutiveDuplicate(t *testing.T) {
	store, _ := newTestStore(t, 0)

	require.NoError(t, store.Record("srv", "say again"))
	require.NoError(t, store.Record("srv", "say again"))
	require.NoError(t, store.Record("srv", "maplist"))
	require.NoError(t, store.Record("srv", "say again"))

	entries, err := store.Recent("srv", 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "say again", entries[0].Command)
	require.Equal(t, "maplist", entries[1].Command)
	require.Equal(t, "say again", entries[2].Command)
}

func TestRecordIgnoresEmptyCommand(t *testing.T) {
	store, _ := newTestStore(t, 0)

	require.NoError(t, store.Record("srv", ""))
	count, err := store.Count("srv")
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestRetentionTrimsOldest(t *testing.T) {
	store, _ := newTestStore(t, 3)

	for _, cmd := range []string{"one", "two", "three", "four", "five"} {
		require.NoError(t, store.Record("srv", cmd))
	}

	count, err := store.Count("srv")
	require.NoError(t, err)
	require.Equal(t, 3, count)

	entries, err := store.Recent("srv", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"three", "four", "five"}, commands(entries))
}

func TestServersAreIsolated(t *testing.T) {
	store, _ := newTestStore(t, 0)

	require.NoError(t, store.Record("a:10666", "say a"))
	require.NoError(t, store.Record("b:10666", "say b"))

	entries, err := store.Recent("a:10666", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"say a"}, commands(entries))

	entries, err = store.Recent("b:10666", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"say b"}, commands(entries))
}

func TestRecentOnEmptyStore(t *testing.T) {
	store, _ := newTestStore(t, 0)

	entries, err := store.Recent("nobody", 10)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestHistorySurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")

	store, err := NewStore(dbPath, 0)
	require.NoError(t, err)
	require.NoError(t, store.Record("srv", "rcon rules"))
	require.NoError(t, store.Close())

	reopened, err := NewStore(dbPath, 0)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.Recent("srv", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"rcon rules"}, commands(entries))
}

func commands(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Command)
	}
	return out
}
