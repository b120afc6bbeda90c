// internal/errors/errors.go
package errors

import "fmt"

// ErrInvalidRepoFormat is returned when a repository identifier is not in 'owner/name' format.
type ErrInvalidRepoFormat struct {
	Repo string
}

func (e *ErrInvalidRepoFormat) Error() string {
	return fmt.Sprintf("invalid repository format: %q, expected 'owner/name'", e.Repo)
}

// ErrRepoNotFound is the typed outcome of the validation stage when an
// identifier does not resolve to an existing remote repository. It is a
// deliberate domain result, not an internal failure.
type ErrRepoNotFound struct {
	Repo string
}

func (e *ErrRepoNotFound) Error() string {
	return fmt.Sprintf("Repository %q not found.", e.Repo)
}

// ErrUnhandledStatClause is returned by the commit-log parser when a
// shortstat clause matches none of the known categories. It signals an
// upstream format change and aborts the run rather than producing bad stats.
type ErrUnhandledStatClause struct {
	Clause string
}

func (e *ErrUnhandledStatClause) Error() string {
	return fmt.Sprintf("unhandled shortstat clause %q", e.Clause)
}
