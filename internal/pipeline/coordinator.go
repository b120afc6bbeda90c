// internal/pipeline/coordinator.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"repohealth/internal/cache"
	custom_errors "repohealth/internal/errors"
	"repohealth/internal/github"
	"repohealth/internal/metrics"
	"repohealth/internal/model"
	"repohealth/internal/status"
)

const userAgent = "repohealth"

// GitHubAPI is the single-call side of the remote API: repository metadata
// and existence validation, plus the endpoint URLs for the paginated
// resources.
type GitHubAPI interface {
	GetRepository(ctx context.Context, owner, name string) (*github.Repo, error)
	IssuesURL(owner, name string) string
	StargazersURL(owner, name string) string
}

// PageFetcher retrieves every record of a paginated list endpoint.
type PageFetcher interface {
	FetchAll(ctx context.Context, url string, headers map[string]string) ([]map[string]any, error)
}

// RepoCloner acquires a local clone and parses its commit history.
type RepoCloner interface {
	CloneOrFetch(ctx context.Context, cloneURL, dir string) (existed bool, err error)
	Commits(ctx context.Context, dir string) ([]model.CommitRecord, error)
}

// Coordinator drives the acquisition pipeline for one repository:
// validation, API data fetch-or-load, clone and commit-log parse-or-load,
// status updates, and error capture. One Run executes on one worker; the
// cache directory is the only state shared between runs.
type Coordinator struct {
	api     GitHubAPI
	fetcher PageFetcher
	cloner  RepoCloner
	store   *cache.Store
	status  *status.Tracker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(api GitHubAPI, fetcher PageFetcher, cloner RepoCloner, store *cache.Store, tracker *status.Tracker, m *metrics.Metrics, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		api:     api,
		fetcher: fetcher,
		cloner:  cloner,
		store:   store,
		status:  tracker,
		metrics: m,
		logger:  logger,
	}
}

// Prepare ensures the cache is populated for the identifier and returns the
// terminal status code. It does not hand back the payload.
func (c *Coordinator) Prepare(ctx context.Context, id, token string) int {
	return c.Run(ctx, id, token).Status
}

// Run produces the full pipeline result for the identifier, computing and
// caching whatever is missing. With a fully populated cache it is a pure,
// fast, read-only operation. Any failure is persisted as an error snapshot
// and returned as a structured document; callers never see a raw error.
// Context cancellation is the one exception: it means the worker is being
// torn down, so nothing is persisted and the error propagates in the
// returned document without being cached.
func (c *Coordinator) Run(ctx context.Context, id, token string) model.PipelineResult {
	// A cached error is a terminal result; do not contact the remote again
	// until the cache is explicitly invalidated.
	var cached model.ErrorResult
	if ok, err := c.store.Load(id, cache.KindError, &cached); err == nil && ok {
		return model.PipelineResult{Status: cached.Status, Message: cached.Message, Traceback: cached.Traceback}
	}

	start := time.Now()
	result, err := c.run(ctx, id, token)
	if err != nil {
		c.metrics.PipelineRuns.WithLabelValues("error").Inc()
		return c.capture(ctx, id, err)
	}
	c.metrics.PipelineRuns.WithLabelValues("success").Inc()
	c.metrics.StageDuration.WithLabelValues("total").Observe(time.Since(start).Seconds())
	return result
}

// capture converts a stage failure into the persisted error snapshot. A
// typed not-found is a deliberate outcome and carries no traceback; anything
// else is an internal failure worth diagnosing.
func (c *Coordinator) capture(ctx context.Context, id string, err error) model.PipelineResult {
	var notFound *custom_errors.ErrRepoNotFound
	if errors.As(err, &notFound) {
		res := model.ErrorResult{Status: 404, Message: notFound.Error()}
		if saveErr := c.store.Save(id, cache.KindError, res); saveErr != nil {
			c.logger.Error("Failed to persist error snapshot", "repo", id, "error", saveErr)
		}
		return model.PipelineResult{Status: res.Status, Message: res.Message}
	}

	if ctx.Err() != nil {
		// Worker is being terminated; write nothing so a retry starts clean.
		return model.PipelineResult{Status: 500, Message: err.Error()}
	}

	c.logger.Error("Pipeline run failed", "repo", id, "error", err)
	res := model.ErrorResult{Status: 500, Message: err.Error(), Traceback: string(debug.Stack())}
	if saveErr := c.store.Save(id, cache.KindError, res); saveErr != nil {
		c.logger.Error("Failed to persist error snapshot", "repo", id, "error", saveErr)
	}
	return model.PipelineResult{Status: res.Status, Message: res.Message, Traceback: res.Traceback}
}

func (c *Coordinator) run(ctx context.Context, id, token string) (result model.PipelineResult, err error) {
	// The boundary also catches panics from collaborators so a bad payload
	// can never take the worker down without leaving an error snapshot.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during pipeline run: %v", r)
		}
	}()

	owner, name, ok := strings.Cut(id, "/")
	if !ok {
		return model.PipelineResult{}, &custom_errors.ErrInvalidRepoFormat{Repo: id}
	}

	report, err := c.apiData(ctx, id, owner, name, token)
	if err != nil {
		return model.PipelineResult{}, err
	}

	commits, err := c.commitData(ctx, id, report)
	if err != nil {
		return model.PipelineResult{}, err
	}

	// Round off the status so the last stage has an end time.
	if err := c.status.End(id); err != nil {
		return model.PipelineResult{}, err
	}

	return model.PipelineResult{Status: 200, Commits: commits, GitHub: report}, nil
}

// apiData loads the API snapshot, or validates the repository and fetches
// metadata, issues and stargazers to build it.
func (c *Coordinator) apiData(ctx context.Context, id, owner, name, token string) (*model.Report, error) {
	var report model.Report
	if ok, err := c.store.Load(id, cache.KindAPI, &report); err != nil {
		return nil, err
	} else if ok {
		if err := c.status.Begin(id, "Load GitHub API data from ephemeral cache", true); err != nil {
			return nil, err
		}
		return &report, nil
	}

	start := time.Now()
	defer func() {
		c.metrics.StageDuration.WithLabelValues("api_data").Observe(time.Since(start).Seconds())
	}()

	if err := c.status.Begin(id, "Initial validation of repo", true); err != nil {
		return nil, err
	}
	repo, err := c.api.GetRepository(ctx, owner, name)
	if err != nil {
		return nil, err
	}

	if err := c.status.Begin(id, "Fetching GitHub API data", false); err != nil {
		return nil, err
	}
	report.Repo = repo.Raw

	if err := c.status.Begin(id, "Fetching GitHub issues data", false); err != nil {
		return nil, err
	}
	issues, err := c.fetcher.FetchAll(ctx, c.api.IssuesURL(owner, name), c.headers(token, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch issues: %w", err)
	}
	report.Issues = flattenIssues(issues)

	if err := c.status.Begin(id, "Fetching GitHub stargazer data", false); err != nil {
		return nil, err
	}
	stars, err := c.fetcher.FetchAll(ctx, c.api.StargazersURL(owner, name), c.headers(token, github.StarMediaType))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stargazers: %w", err)
	}
	report.Stargazers = flattenStars(stars)

	if len(stars) != repo.Stargazers {
		c.logger.Warn("Stargazer count mismatch",
			"repo", id, "expected", repo.Stargazers, "got", len(stars))
	}

	if err := c.store.Save(id, cache.KindAPI, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// commitData loads the commit snapshot, or clones (or updates) the
// repository and parses its log to build it. A clone this run created is
// deleted afterwards to bound disk usage; a pre-existing clone is assumed
// managed externally and left untouched.
func (c *Coordinator) commitData(ctx context.Context, id string, report *model.Report) ([]model.CommitRecord, error) {
	var commits []model.CommitRecord
	if ok, err := c.store.Load(id, cache.KindCommit, &commits); err != nil {
		return nil, err
	} else if ok {
		if err := c.status.Begin(id, "Load commit from ephemeral cache", false); err != nil {
			return nil, err
		}
		return commits, nil
	}

	start := time.Now()
	defer func() {
		c.metrics.StageDuration.WithLabelValues("commit_data").Observe(time.Since(start).Seconds())
	}()

	cloneURL, _ := report.Repo["clone_url"].(string)
	if cloneURL == "" {
		return nil, fmt.Errorf("repository metadata for %s has no clone_url", id)
	}

	dir := c.store.ClonePath(id)
	message := "Cloning repo"
	if _, err := os.Stat(dir); err == nil {
		message = "Fetching remotes from cached clone"
	}
	if err := c.status.Begin(id, message, false); err != nil {
		return nil, err
	}

	existed, err := c.cloner.CloneOrFetch(ctx, cloneURL, dir)
	if err != nil {
		return nil, err
	}

	if err := c.status.Begin(id, "Analysing commits", false); err != nil {
		return nil, err
	}
	commits, err = c.cloner.Commits(ctx, dir)
	if err != nil {
		return nil, err
	}

	if err := c.store.Save(id, cache.KindCommit, commits); err != nil {
		return nil, err
	}

	if !existed {
		// This was ours to clone, so nuke it now.
		if err := os.RemoveAll(dir); err != nil {
			c.logger.Warn("Failed to remove throwaway clone", "dir", dir, "error", err)
		}
	}

	return commits, nil
}

func (c *Coordinator) headers(token, accept string) map[string]string {
	h := map[string]string{"User-Agent": userAgent}
	if token != "" {
		h["Authorization"] = "token " + token
	}
	if accept != "" {
		h["Accept"] = accept
	}
	return h
}
