// internal/gitrepo/parser_test.go
package gitrepo

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	custom_errors "repohealth/internal/errors"
)

func TestParseLog(t *testing.T) {
	t.Run("commit with stats followed by empty commit", func(t *testing.T) {
		raw := "2024-01-01T00:00:00Z|Ann|ann@x|abc123|\n" +
			" 1 file changed, 3 insertions(+), 1 deletion(-)\n" +
			"2024-01-02T00:00:00Z|Bob|bob@x|def456|\n"

		records, err := ParseLog(raw)
		require.NoError(t, err)
		require.Len(t, records, 2)

		assert.Equal(t, "Ann", records[0].Name)
		assert.Equal(t, "ann@x", records[0].Email)
		assert.Equal(t, "abc123", records[0].SHA)
		assert.Equal(t, 1, records[0].ChangedFiles)
		assert.Equal(t, 3, records[0].Insertions)
		assert.Equal(t, 1, records[0].Deletions)

		assert.Equal(t, "def456", records[1].SHA)
		assert.Zero(t, records[1].ChangedFiles)
		assert.Zero(t, records[1].Insertions)
		assert.Zero(t, records[1].Deletions)
	})

	t.Run("clause order does not matter", func(t *testing.T) {
		stats := []string{
			" 3 files changed, 10 insertions(+), 2 deletions(-)",
			" 10 insertions(+), 2 deletions(-), 3 files changed",
			" 2 deletions(-), 3 files changed, 10 insertions(+)",
		}
		for _, stat := range stats {
			raw := "2024-05-01T12:00:00Z|Ann|ann@x|abc123|\n" + stat + "\n"
			records, err := ParseLog(raw)
			require.NoError(t, err, "stat line %q", stat)
			require.Len(t, records, 1)
			assert.Equal(t, 3, records[0].ChangedFiles)
			assert.Equal(t, 10, records[0].Insertions)
			assert.Equal(t, 2, records[0].Deletions)
		}
	})

	t.Run("singular clause forms", func(t *testing.T) {
		raw := "2024-05-01T12:00:00Z|Ann|ann@x|abc123|\n" +
			" 1 file changed, 1 insertion(+), 1 deletion(-)\n"
		records, err := ParseLog(raw)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, 1, records[0].ChangedFiles)
		assert.Equal(t, 1, records[0].Insertions)
		assert.Equal(t, 1, records[0].Deletions)
	})

	t.Run("records sorted ascending by timestamp", func(t *testing.T) {
		// `git log --all` spans refs, so input order is not chronological.
		raw := "2024-03-01T00:00:00Z|C|c@x|ccc|\n" +
			"2024-01-01T00:00:00Z|A|a@x|aaa|\n" +
			"2024-02-01T00:00:00Z|B|b@x|bbb|\n"

		records, err := ParseLog(raw)
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.True(t, sort.SliceIsSorted(records, func(i, j int) bool {
			return records[i].Date.Before(records[j].Date)
		}))
		assert.Equal(t, "aaa", records[0].SHA)
		assert.Equal(t, "ccc", records[2].SHA)
	})

	t.Run("timezone-aware dates", func(t *testing.T) {
		raw := "2024-01-01T12:00:00+02:00|Ann|ann@x|abc123|\n"
		records, err := ParseLog(raw)
		require.NoError(t, err)
		require.Len(t, records, 1)
		want := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
		assert.True(t, records[0].Date.Equal(want))
	})

	t.Run("unhandled stat clause is fatal", func(t *testing.T) {
		raw := "2024-01-01T00:00:00Z|Ann|ann@x|abc123|\n" +
			" 3 files changed, 4 renames(?)\n"
		_, err := ParseLog(raw)
		require.Error(t, err)
		var clauseErr *custom_errors.ErrUnhandledStatClause
		assert.ErrorAs(t, err, &clauseErr)
		assert.Equal(t, "4 renames(?)", clauseErr.Clause)
	})

	t.Run("stat line before any commit is an error", func(t *testing.T) {
		_, err := ParseLog(" 1 file changed, 1 insertion(+)\n")
		require.Error(t, err)
	})

	t.Run("empty input yields no records", func(t *testing.T) {
		records, err := ParseLog("")
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("malformed date is an error", func(t *testing.T) {
		_, err := ParseLog("yesterday|Ann|ann@x|abc123|\n")
		require.Error(t, err)
	})
}
