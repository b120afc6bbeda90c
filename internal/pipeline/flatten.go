// internal/pipeline/flatten.go
package pipeline

import "repohealth/internal/model"

// The snapshots keep a fixed field subset per record, with nested user
// fields lifted to "user/<key>".
var (
	userKeys  = []string{"login", "id"}
	issueKeys = []string{"number", "comments", "created_at", "state", "closed_at"}
	starKeys  = []string{"starred_at"}
)

func flattenIssues(raw []map[string]any) []model.IssueRecord {
	records := make([]model.IssueRecord, 0, len(raw))
	for _, issue := range raw {
		records = append(records, flatten(issue, issueKeys))
	}
	return records
}

func flattenStars(raw []map[string]any) []model.StarRecord {
	records := make([]model.StarRecord, 0, len(raw))
	for _, star := range raw {
		records = append(records, flatten(star, starKeys))
	}
	return records
}

func flatten(record map[string]any, keys []string) map[string]any {
	out := make(map[string]any, len(keys)+len(userKeys))
	if user, ok := record["user"].(map[string]any); ok {
		for _, key := range userKeys {
			out["user/"+key] = user[key]
		}
	}
	for _, key := range keys {
		out[key] = record[key]
	}
	return out
}
