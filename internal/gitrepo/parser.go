// internal/gitrepo/parser.go
package gitrepo

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	custom_errors "repohealth/internal/errors"
	"repohealth/internal/model"
)

// ParseLog turns raw commit-log text into ordered commit records.
//
// The input is produced by `git log --all --format=%aI|%aN|%aE|%h| --reverse
// --shortstat`: one pipe-delimited metadata line per commit, optionally
// followed by an indented shortstat line ("3 files changed, 10
// insertions(+), 2 deletions(-)"). Empty commits have no shortstat line and
// get zeroed stats. The returned records are sorted ascending by timestamp;
// with --all the log spans every ref, so input order is not trusted.
func ParseLog(raw string) ([]model.CommitRecord, error) {
	var records []model.CommitRecord

	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		if line[0] == ' ' || line[0] == '\t' {
			// Shortstat continuation of the previous commit.
			if len(records) == 0 {
				return nil, fmt.Errorf("shortstat line with no preceding commit: %q", line)
			}
			files, ins, del, err := parseShortstat(line)
			if err != nil {
				return nil, err
			}
			rec := &records[len(records)-1]
			rec.ChangedFiles = files
			rec.Insertions = ins
			rec.Deletions = del
			continue
		}

		rec, err := parseCommitLine(strings.TrimSpace(line))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})
	return records, nil
}

// parseCommitLine parses one "date|name|email|hash|" metadata line. Stats
// stay zero until a shortstat continuation fills them in.
func parseCommitLine(line string) (model.CommitRecord, error) {
	parts := strings.Split(line, "|")
	if len(parts) < 4 {
		return model.CommitRecord{}, fmt.Errorf("malformed commit line %q", line)
	}

	date, err := time.Parse(time.RFC3339, parts[0])
	if err != nil {
		return model.CommitRecord{}, fmt.Errorf("malformed commit date %q: %w", parts[0], err)
	}

	return model.CommitRecord{
		Date:  date,
		Name:  parts[1],
		Email: parts[2],
		SHA:   parts[3],
	}, nil
}

// parseShortstat parses a diff-stat summary line into (files, insertions,
// deletions). Clause order is not guaranteed, so each comma-separated clause
// is categorized by substring. An unrecognized clause is fatal: it means the
// upstream format changed and silent zeros would corrupt the report.
func parseShortstat(line string) (files, insertions, deletions int, err error) {
	for _, clause := range strings.Split(strings.TrimSpace(line), ", ") {
		countStr, _, found := strings.Cut(clause, " ")
		if !found {
			return 0, 0, 0, &custom_errors.ErrUnhandledStatClause{Clause: clause}
		}
		count, convErr := strconv.Atoi(countStr)
		if convErr != nil {
			return 0, 0, 0, &custom_errors.ErrUnhandledStatClause{Clause: clause}
		}

		switch {
		case strings.Contains(clause, "delet"):
			deletions = count
		case strings.Contains(clause, "insert"):
			insertions = count
		case strings.Contains(clause, "file"):
			files = count
		default:
			return 0, 0, 0, &custom_errors.ErrUnhandledStatClause{Clause: clause}
		}
	}
	return files, insertions, deletions, nil
}
