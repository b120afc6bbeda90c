// internal/gitrepo/repo_test.go
package gitrepo

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initSourceRepo builds a small repository with two commits, one of them
// empty, to exercise the full clone-and-parse path.
func initSourceRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=Ann", "GIT_AUTHOR_EMAIL=ann@x",
			"GIT_COMMITTER_NAME=Ann", "GIT_COMMITTER_EMAIL=ann@x",
		)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}

	run("init")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("hello\n"), 0o644))
	run("add", "README")
	run("commit", "-m", "add readme")
	run("commit", "--allow-empty", "-m", "empty commit")
	return dir
}

func TestCloner(t *testing.T) {
	source := initSourceRepo(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	cloner := NewCloner(logger)
	ctx := context.Background()

	target := filepath.Join(t.TempDir(), "clone")

	t.Run("clones when the directory is absent", func(t *testing.T) {
		existed, err := cloner.CloneOrFetch(ctx, source, target)
		require.NoError(t, err)
		assert.False(t, existed)
		assert.DirExists(t, target)
	})

	t.Run("fetches when the clone already exists", func(t *testing.T) {
		existed, err := cloner.CloneOrFetch(ctx, source, target)
		require.NoError(t, err)
		assert.True(t, existed)
	})

	t.Run("commits parses the full history", func(t *testing.T) {
		commits, err := cloner.Commits(ctx, target)
		require.NoError(t, err)
		require.Len(t, commits, 2)

		assert.Equal(t, "Ann", commits[0].Name)
		assert.Equal(t, "ann@x", commits[0].Email)
		assert.Equal(t, 1, commits[0].ChangedFiles)
		assert.Equal(t, 1, commits[0].Insertions)

		// The empty commit still yields a record with zeroed stats.
		assert.Zero(t, commits[1].ChangedFiles)
		assert.Zero(t, commits[1].Insertions)
		assert.Zero(t, commits[1].Deletions)

		assert.True(t, !commits[1].Date.Before(commits[0].Date))
	})
}
