// internal/report/transforms_test.go
package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repohealth/internal/model"
)

func payload() model.PipelineResult {
	return model.PipelineResult{
		Status: 200,
		Commits: []model.CommitRecord{
			{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Name: "Ann", Email: "ann@x", SHA: "aaa", Insertions: 10, Deletions: 2},
			{Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Name: "Bob", Email: "bob@x", SHA: "bbb", Insertions: 5, Deletions: 1},
			{Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Name: "Ann", Email: "ann@x", SHA: "ccc", Insertions: 1, Deletions: 4},
		},
		GitHub: &model.Report{
			Stargazers: []model.StarRecord{
				{"starred_at": "2024-02-01T00:00:00Z", "user/login": "bob"},
				{"starred_at": "2024-01-01T00:00:00Z", "user/login": "ann"},
			},
		},
	}
}

func TestRegistry_Validate(t *testing.T) {
	t.Run("built-in registry is complete", func(t *testing.T) {
		require.NoError(t, NewRegistry().Validate())
	})

	t.Run("missing tag fails fast", func(t *testing.T) {
		r := NewRegistry()
		delete(r, "stargazers")
		assert.Error(t, r.Validate())
	})

	t.Run("incomplete transform fails fast", func(t *testing.T) {
		r := NewRegistry()
		entry := r["all_commits"]
		entry.Visualize = nil
		r["all_commits"] = entry
		assert.Error(t, r.Validate())
	})
}

func TestRegistry_Figures(t *testing.T) {
	figures, failures := NewRegistry().Figures(payload())

	assert.Empty(t, failures)
	require.Len(t, figures, 4)

	t.Run("new contributors deduplicates by email", func(t *testing.T) {
		fig := figures["new_contributors"]
		require.Len(t, fig.Series, 1)
		assert.Equal(t, []int{1, 2}, fig.Series[0].Y)
		assert.Equal(t, []string{"Ann", "Bob"}, fig.Series[0].Text)
	})

	t.Run("loc delta is cumulative", func(t *testing.T) {
		fig := figures["commit_loc_delta"]
		require.Len(t, fig.Series, 1)
		assert.Equal(t, []int{8, 12, 9}, fig.Series[0].Y)
	})

	t.Run("stargazers sorted by starred_at", func(t *testing.T) {
		fig := figures["stargazers"]
		require.Len(t, fig.Series, 1)
		assert.Equal(t, []string{"2024-01-01T00:00:00Z", "2024-02-01T00:00:00Z"}, fig.Series[0].X)
		assert.Equal(t, []int{1, 2}, fig.Series[0].Y)
	})
}

func TestRegistry_FigureFailureIsIsolated(t *testing.T) {
	p := payload()
	p.GitHub = nil

	figures, failures := NewRegistry().Figures(p)

	assert.Contains(t, failures, "stargazers")
	assert.Len(t, figures, 3, "one failing transform must not lose the rest")
}
