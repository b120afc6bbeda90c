// internal/status/tracker_test.go
package status

import (
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repohealth/internal/cache"
)

func testTracker(t *testing.T) *Tracker {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	store, err := cache.NewStore(t.TempDir(), logger)
	require.NoError(t, err)
	return NewTracker(store, logger)
}

func TestTracker(t *testing.T) {
	const id = "octo/demo"

	t.Run("begin appends and closes previous entry", func(t *testing.T) {
		tracker := testTracker(t)

		require.NoError(t, tracker.Begin(id, "Initial validation of repo", true))
		require.NoError(t, tracker.Begin(id, "Fetching GitHub API data", false))

		entries, err := tracker.Read(id)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "Initial validation of repo", entries[0].Status)
		assert.NotEmpty(t, entries[0].Start)
		assert.NotEmpty(t, entries[0].End, "previous entry must be closed")
		assert.Equal(t, "Fetching GitHub API data", entries[1].Status)
		assert.Empty(t, entries[1].End, "current entry stays open")
	})

	t.Run("fresh begin discards the previous log", func(t *testing.T) {
		tracker := testTracker(t)

		require.NoError(t, tracker.Begin(id, "old stage", true))
		require.NoError(t, tracker.Begin(id, "new run", true))

		entries, err := tracker.Read(id)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "new run", entries[0].Status)
	})

	t.Run("end closes the open entry", func(t *testing.T) {
		tracker := testTracker(t)

		require.NoError(t, tracker.Begin(id, "stage", true))
		require.NoError(t, tracker.End(id))

		entries, err := tracker.Read(id)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.NotEmpty(t, entries[0].End)
	})

	t.Run("end with no active entry is a no-op", func(t *testing.T) {
		tracker := testTracker(t)

		require.NoError(t, tracker.End(id))
		entries, err := tracker.Read(id)
		require.NoError(t, err)
		assert.Empty(t, entries)

		require.NoError(t, tracker.Begin(id, "stage", true))
		require.NoError(t, tracker.End(id))
		require.NoError(t, tracker.End(id), "second end is still a no-op")
	})

	t.Run("missing document reads as empty", func(t *testing.T) {
		tracker := testTracker(t)
		entries, err := tracker.Read("never/seen")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("concurrent writers and readers never see a torn document", func(t *testing.T) {
		tracker := testTracker(t)
		require.NoError(t, tracker.Begin(id, "warmup", true))

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				assert.NoError(t, tracker.Begin(id, "stage", false))
			}()
			go func() {
				defer wg.Done()
				_, err := tracker.Read(id)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		entries, err := tracker.Read(id)
		require.NoError(t, err)
		assert.Len(t, entries, 9)
	})
}
