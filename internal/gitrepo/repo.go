// internal/gitrepo/repo.go
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	git "github.com/go-git/go-git/v5"

	"repohealth/internal/model"
)

// logArgs emit, per commit: ISO-8601 author date, author name, author
// email, abbreviated hash. --shortstat appends the diff summary line that
// ParseLog consumes.
var logArgs = []string{"log", "--all", "--format=%aI|%aN|%aE|%h|", "--reverse", "--shortstat"}

// Cloner acquires a local clone of a remote repository and produces its
// parsed commit history.
type Cloner struct {
	logger *slog.Logger
}

// NewCloner creates a Cloner.
func NewCloner(logger *slog.Logger) *Cloner {
	return &Cloner{logger: logger}
}

// CloneOrFetch ensures dir holds an up-to-date clone of cloneURL. When the
// directory already exists it is opened and every remote is fetched;
// otherwise a full clone is performed. The returned flag reports whether the
// clone pre-existed, so the caller knows whether the clone is its to delete.
func (c *Cloner) CloneOrFetch(ctx context.Context, cloneURL, dir string) (existed bool, err error) {
	if _, statErr := os.Stat(dir); statErr == nil {
		c.logger.Info("Fetching remotes from cached clone", "dir", dir)
		repo, err := git.PlainOpen(dir)
		if err != nil {
			return true, fmt.Errorf("failed to open cached clone: %w", err)
		}
		remotes, err := repo.Remotes()
		if err != nil {
			return true, fmt.Errorf("failed to list remotes: %w", err)
		}
		for _, remote := range remotes {
			err := remote.FetchContext(ctx, &git.FetchOptions{})
			if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
				return true, fmt.Errorf("failed to fetch remote %s: %w", remote.Config().Name, err)
			}
		}
		return true, nil
	}

	c.logger.Info("Cloning repo", "url", cloneURL, "dir", dir)
	if _, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{URL: cloneURL}); err != nil {
		return false, fmt.Errorf("failed to clone %s: %w", cloneURL, err)
	}
	return false, nil
}

// Commits runs the log command over the clone's full ref history and parses
// the output. This is a blocking call and belongs on a dedicated worker.
func (c *Cloner) Commits(ctx context.Context, dir string) ([]model.CommitRecord, error) {
	cmd := exec.CommandContext(ctx, "git", logArgs...)
	cmd.Dir = dir

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git log failed in %s: %w", dir, err)
	}
	return ParseLog(string(out))
}
