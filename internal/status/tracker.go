// internal/status/tracker.go
package status

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"repohealth/internal/cache"
	"repohealth/internal/model"
)

// timeLayout matches the timestamps the web layer renders.
const timeLayout = "2006-01-02T15:04:05Z"

// Tracker is an append-only log of pipeline stage transitions, persisted to
// a per-identifier status document. Every read and write takes a named
// interprocess lock scoped to the identifier, so concurrent pipeline workers
// and web-request readers never observe a partially written document.
type Tracker struct {
	store  *cache.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewTracker creates a Tracker writing status documents through the store's
// path templates.
func NewTracker(store *cache.Store, logger *slog.Logger) *Tracker {
	return &Tracker{store: store, logger: logger, now: time.Now}
}

// Begin appends a stage entry with the current time and closes the previous
// open entry. With fresh set, any existing log is discarded first - used
// when a brand-new pipeline run starts.
func (t *Tracker) Begin(id, message string, fresh bool) error {
	t.logger.Debug("Pipeline stage", "repo", id, "status", message)
	return t.update(id, func(entries []model.StatusEntry) []model.StatusEntry {
		if fresh {
			entries = entries[:0]
		}
		entries = closeLast(entries, t.stamp())
		return append(entries, model.StatusEntry{Status: message, Start: t.stamp()})
	})
}

// End closes the currently open entry, if any. Calling it with no active
// entry is a no-op.
func (t *Tracker) End(id string) error {
	return t.update(id, func(entries []model.StatusEntry) []model.StatusEntry {
		return closeLast(entries, t.stamp())
	})
}

// Read returns the ordered stage entries for the identifier. A missing
// document yields an empty slice.
func (t *Tracker) Read(id string) ([]model.StatusEntry, error) {
	lock := flock.New(t.store.LockPath(id))
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("failed to acquire status lock for %s: %w", id, err)
	}
	defer lock.Unlock()

	return t.read(id)
}

func (t *Tracker) update(id string, fn func([]model.StatusEntry) []model.StatusEntry) error {
	path := t.store.StatusPath(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create status dir for %s: %w", id, err)
	}

	lock := flock.New(t.store.LockPath(id))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire status lock for %s: %w", id, err)
	}
	defer lock.Unlock()

	entries, err := t.read(id)
	if err != nil {
		return err
	}
	entries = fn(entries)

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode status for %s: %w", id, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write status for %s: %w", id, err)
	}
	return nil
}

// read loads the document without locking; callers hold the lock.
func (t *Tracker) read(id string) ([]model.StatusEntry, error) {
	data, err := os.ReadFile(t.store.StatusPath(id))
	if os.IsNotExist(err) {
		return []model.StatusEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read status for %s: %w", id, err)
	}

	var entries []model.StatusEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode status for %s: %w", id, err)
	}
	return entries, nil
}

func (t *Tracker) stamp() string {
	return t.now().UTC().Format(timeLayout)
}

func closeLast(entries []model.StatusEntry, stamp string) []model.StatusEntry {
	if n := len(entries); n > 0 && entries[n-1].End == "" {
		entries[n-1].End = stamp
	}
	return entries
}
