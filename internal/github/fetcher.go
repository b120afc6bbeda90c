// internal/github/fetcher.go
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"repohealth/internal/metrics"
)

// StarMediaType is the accept header required to receive starred_at
// timestamps from the stargazers endpoint.
const StarMediaType = "application/vnd.github.v3.star+json"

// Fetcher retrieves a paginated list endpoint in full. Page 1 is fetched
// synchronously to learn the page count from the Link header; the remaining
// pages are issued through a bounded task group. A shared error budget
// governs retries: once it is spent the fetch pauses for one cooldown, and
// pages that keep failing afterwards are dropped with a warning so the fetch
// completes with a partial result instead of failing the whole job.
type Fetcher struct {
	client      *http.Client
	logger      *slog.Logger
	metrics     *metrics.Metrics
	pageSize    int
	maxInflight int
	errorBudget int
	cooldown    time.Duration
}

// NewFetcher creates a Fetcher. All page requests for one FetchAll call go
// through the single shared client.
func NewFetcher(client *http.Client, m *metrics.Metrics, logger *slog.Logger, pageSize, maxInflight, errorBudget int, cooldown time.Duration) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{
		client:      client,
		logger:      logger,
		metrics:     m,
		pageSize:    pageSize,
		maxInflight: maxInflight,
		errorBudget: errorBudget,
		cooldown:    cooldown,
	}
}

// FetchAll returns every mapping-typed record of the paginated resource at
// baseURL. Non-mapping elements are discarded: some error payloads arrive
// inside otherwise well-formed list responses. Record order across pages is
// unspecified.
func (f *Fetcher) FetchAll(ctx context.Context, baseURL string, headers map[string]string) ([]map[string]any, error) {
	first, link, err := f.fetchPage(ctx, baseURL, headers, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch first page of %s: %w", baseURL, err)
	}

	lastPage := lastPageNumber(link)
	if lastPage <= 1 {
		// No pagination header, or no "last" relation: single page.
		return first, nil
	}

	var (
		mu       sync.Mutex
		records  = first
		errCount atomic.Int64
		coolOnce sync.Once
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.maxInflight)

	for page := 2; page <= lastPage; page++ {
		page := page
		g.Go(func() error {
			for attempt := 1; ; attempt++ {
				recs, _, err := f.fetchPage(gctx, baseURL, headers, page)
				if err == nil {
					mu.Lock()
					records = append(records, recs...)
					mu.Unlock()
					return nil
				}
				if gctx.Err() != nil {
					return gctx.Err()
				}

				f.metrics.PageRetries.Inc()
				spent := errCount.Add(1) >= int64(f.errorBudget)
				if spent {
					// Give the API some time to get over our requests
					// before anyone retries again. Only one task pays the
					// cooldown; the rest retry immediately after it.
					coolOnce.Do(func() {
						f.logger.Warn("Fetch error budget spent, backing off", "url", baseURL, "cooldown", f.cooldown)
						select {
						case <-time.After(f.cooldown):
						case <-gctx.Done():
						}
					})
				}

				if spent && attempt >= f.errorBudget {
					f.logger.Warn("Dropping page after repeated failures", "url", baseURL, "page", page, "attempts", attempt, "error", err)
					f.metrics.PagesDropped.Inc()
					return nil
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// fetchPage requests one page and returns its mapping-typed elements along
// with the response's Link header.
func (f *Fetcher) fetchPage(ctx context.Context, baseURL string, headers map[string]string, page int) ([]map[string]any, string, error) {
	u, err := pageURL(baseURL, f.pageSize, page)
	if err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, "", fmt.Errorf("unexpected status %d for page %d", resp.StatusCode, page)
	}

	var elements []any
	if err := json.NewDecoder(resp.Body).Decode(&elements); err != nil {
		return nil, "", fmt.Errorf("failed to decode page %d: %w", page, err)
	}

	records := make([]map[string]any, 0, len(elements))
	for _, el := range elements {
		if m, ok := el.(map[string]any); ok {
			records = append(records, m)
		} else {
			f.metrics.RecordsDropped.Inc()
		}
	}
	f.metrics.PagesFetched.Inc()
	return records, resp.Header.Get("Link"), nil
}

// pageURL appends per_page and page parameters to the resource URL,
// preserving any query it already carries.
func pageURL(baseURL string, pageSize, page int) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid resource URL %q: %w", baseURL, err)
	}
	q := u.Query()
	q.Set("per_page", strconv.Itoa(pageSize))
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// lastPageNumber extracts the final page number from a Link header.
// Relations are matched by their rel attribute, not by position, and a
// missing header or missing "last" relation means the resource fits on the
// page already fetched.
func lastPageNumber(link string) int {
	if link == "" {
		return 1
	}
	for _, entry := range strings.Split(link, ",") {
		urlPart, relPart, found := strings.Cut(entry, ";")
		if !found || !strings.Contains(relPart, `rel="last"`) {
			continue
		}
		raw := strings.Trim(strings.TrimSpace(urlPart), "<>")
		u, err := url.Parse(raw)
		if err != nil {
			return 1
		}
		page, err := strconv.Atoi(u.Query().Get("page"))
		if err != nil {
			return 1
		}
		return page
	}
	return 1
}
