// internal/cache/store.go
package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	custom_errors "repohealth/internal/errors"
)

// Kind names one of the persisted artifact kinds for a repository.
type Kind string

const (
	KindAPI    Kind = "github"
	KindCommit Kind = "commits"
	KindError  Kind = "exception"
)

// suffix returns the filename suffix for the artifact kind, appended to
// the identifier inside the cache root.
func (k Kind) suffix() string {
	return "." + string(k) + ".json"
}

// NormalizeIdentifier validates and case-folds an "owner/name" repository
// identifier. The normalized form is the cache key, so it must contain
// exactly one path separator.
func NormalizeIdentifier(id string) (string, error) {
	parts := strings.Split(id, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", &custom_errors.ErrInvalidRepoFormat{Repo: id}
	}
	return strings.ToLower(parts[0]) + "/" + strings.ToLower(parts[1]), nil
}

// Store maps repository identifiers to file-backed JSON artifacts under a
// single root directory. Identifiers contain one path separator, so each
// owner gets a subdirectory and artifacts sit beside the clone directory:
//
//	<root>/<owner>/<name>.github.json
//	<root>/<owner>/<name>.commits.json
//	<root>/<owner>/<name>.exception.json
//	<root>/<owner>/<name>.status.json
//	<root>/<owner>/<name>.status.lock
//	<root>/<owner>/<name>/          (repository clone)
type Store struct {
	root   string
	logger *slog.Logger
}

// NewStore creates a Store rooted at dir. The root is created if absent.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache root: %w", err)
	}
	return &Store{root: dir, logger: logger}, nil
}

// Root returns the cache root directory.
func (s *Store) Root() string {
	return s.root
}

// ArtifactPath returns the on-disk path of an artifact for an identifier.
func (s *Store) ArtifactPath(id string, kind Kind) string {
	return filepath.Join(s.root, filepath.FromSlash(id)+kind.suffix())
}

// StatusPath returns the path of the status document for an identifier.
func (s *Store) StatusPath(id string) string {
	return filepath.Join(s.root, filepath.FromSlash(id)+".status.json")
}

// LockPath returns the path of the interprocess status lock file.
func (s *Store) LockPath(id string) string {
	return filepath.Join(s.root, filepath.FromSlash(id)+".status.lock")
}

// ClonePath returns the directory holding the repository clone.
func (s *Store) ClonePath(id string) string {
	return filepath.Join(s.root, filepath.FromSlash(id))
}

// Exists reports whether the given artifact has been persisted.
func (s *Store) Exists(id string, kind Kind) bool {
	_, err := os.Stat(s.ArtifactPath(id, kind))
	return err == nil
}

// Has reports whether a terminal result is cached for the identifier:
// either both data snapshots, or an error snapshot. A cached error is a
// result too - it stops us hammering the remote API for a known failure.
func (s *Store) Has(id string) bool {
	return (s.Exists(id, KindAPI) && s.Exists(id, KindCommit)) || s.Exists(id, KindError)
}

// Save persists v as the given artifact kind, creating the identifier's
// directory if needed.
func (s *Store) Save(id string, kind Kind, v any) error {
	path := s.ArtifactPath(id, kind)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir for %s: %w", id, err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s artifact for %s: %w", kind, id, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s artifact for %s: %w", kind, id, err)
	}
	return nil
}

// Load reads an artifact into out. It returns false without error when the
// artifact does not exist.
func (s *Store) Load(id string, kind Kind, out any) (bool, error) {
	data, err := os.ReadFile(s.ArtifactPath(id, kind))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s artifact for %s: %w", kind, id, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to decode %s artifact for %s: %w", kind, id, err)
	}
	return true, nil
}

// Invalidate removes all three artifact kinds for the identifier along with
// any on-disk repository clone, forcing the next request to recompute.
// Missing files are not an error.
func (s *Store) Invalidate(id string) error {
	s.logger.Info("Spoiling the cache", "repo", id)
	for _, kind := range []Kind{KindAPI, KindCommit, KindError} {
		if err := os.Remove(s.ArtifactPath(id, kind)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s artifact for %s: %w", kind, id, err)
		}
	}
	if err := os.RemoveAll(s.ClonePath(id)); err != nil {
		return fmt.Errorf("failed to remove clone for %s: %w", id, err)
	}
	return nil
}

// List returns the sorted identifiers holding complete caches, i.e. both an
// API snapshot and a commit snapshot. The two artifact sets are recovered by
// globbing their templates and intersected by identifier.
func (s *Store) List() ([]string, error) {
	gh, err := s.glob(KindAPI)
	if err != nil {
		return nil, err
	}
	cm, err := s.glob(KindCommit)
	if err != nil {
		return nil, err
	}

	var both []string
	for id := range gh {
		if cm[id] {
			both = append(both, id)
		}
	}
	sort.Strings(both)
	return both, nil
}

// glob collects the identifiers that have the given artifact kind on disk,
// inverting the path template to recover the "owner/name" substring.
func (s *Store) glob(kind Kind) (map[string]bool, error) {
	pattern := filepath.Join(s.root, "*", "*"+kind.suffix())
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob %s artifacts: %w", kind, err)
	}

	ids := make(map[string]bool, len(matches))
	for _, m := range matches {
		rel, err := filepath.Rel(s.root, m)
		if err != nil {
			continue
		}
		id := strings.TrimSuffix(filepath.ToSlash(rel), kind.suffix())
		ids[id] = true
	}
	return ids, nil
}
