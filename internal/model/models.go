// internal/model/models.go
package model

import "time"

// CommitRecord is one parsed entry of the repository's commit log.
// Stats default to zero for commits that touched no files.
type CommitRecord struct {
	Date         time.Time `json:"date"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	SHA          string    `json:"sha"`
	ChangedFiles int       `json:"changed_files"`
	Insertions   int       `json:"insertions"`
	Deletions    int       `json:"deletions"`
}

// IssueRecord and StarRecord are flattened views of the raw API payloads.
// Nested user fields are lifted to "user/<key>" so a record is a single
// flat mapping.
type IssueRecord map[string]any

type StarRecord map[string]any

// Report is the GitHub-sourced half of a health report: raw repository
// metadata plus the flattened issue and stargazer listings.
type Report struct {
	Repo       map[string]any `json:"repo"`
	Issues     []IssueRecord  `json:"issues"`
	Stargazers []StarRecord   `json:"stargazers"`
}

// PipelineResult is the final payload for one repository: the parsed
// commit history merged with the GitHub report, or a terminal error
// document. Status is 200 on success.
type PipelineResult struct {
	Status    int            `json:"status"`
	Message   string         `json:"message,omitempty"`
	Traceback string         `json:"traceback,omitempty"`
	Commits   []CommitRecord `json:"commits,omitempty"`
	GitHub    *Report        `json:"github,omitempty"`
}

// OK reports whether the result carries data rather than an error document.
func (r PipelineResult) OK() bool {
	return r.Status == 200
}

// ErrorResult is the persisted error-snapshot document.
type ErrorResult struct {
	Status    int    `json:"status"`
	Message   string `json:"message"`
	Traceback string `json:"traceback,omitempty"`
}

// StatusEntry is one stage transition in a pipeline's status log.
// End is empty while the stage is still running.
type StatusEntry struct {
	Status string `json:"status"`
	Start  string `json:"start"`
	End    string `json:"end,omitempty"`
}
