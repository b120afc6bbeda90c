// internal/report/transforms.go
package report

import (
	"fmt"
	"sort"

	"repohealth/internal/model"
)

// Dataset is the prepared intermediate between a pipeline payload and a
// figure: parallel series keyed by axis role.
type Dataset struct {
	X    []string `json:"x"`
	Y    []int    `json:"y"`
	Text []string `json:"text,omitempty"`
}

// Series is one named trace of a figure.
type Series struct {
	Name string   `json:"name"`
	X    []string `json:"x"`
	Y    []int    `json:"y"`
	Text []string `json:"text,omitempty"`
}

// Figure is plain plot data for the front end to render. Building actual
// chart markup is the web layer's problem.
type Figure struct {
	Title  string   `json:"title"`
	Series []Series `json:"series"`
}

// Transform pairs the two pure functions producing one visualization.
type Transform struct {
	Title     string
	Prepare   func(model.PipelineResult) (Dataset, error)
	Visualize func(Dataset) Figure
}

// Registry is the fixed mapping from visualization tag to transform.
// Validate at startup so an unknown or incomplete entry fails fast rather
// than at render time.
type Registry map[string]Transform

// Tags in render order.
var order = []string{"all_commits", "new_contributors", "commit_loc_delta", "stargazers"}

// NewRegistry returns the built-in transforms.
func NewRegistry() Registry {
	return Registry{
		"all_commits": {
			Title:     "All commits",
			Prepare:   prepareCommits,
			Visualize: vizCumulative("Commits"),
		},
		"new_contributors": {
			Title:     "First commit date of new contributors",
			Prepare:   prepareNewContributors,
			Visualize: vizCumulative("New contributors"),
		},
		"commit_loc_delta": {
			Title:     "Lines of change per commit",
			Prepare:   prepareLOCDelta,
			Visualize: vizCumulative("Insertions"),
		},
		"stargazers": {
			Title:     "Repository stargazers",
			Prepare:   prepareStargazers,
			Visualize: vizCumulative("Stargazers"),
		},
	}
}

// Validate checks that every registered tag carries both functions and that
// the tag order covers the registry exactly.
func (r Registry) Validate() error {
	if len(order) != len(r) {
		return fmt.Errorf("transform registry has %d entries, expected %d", len(r), len(order))
	}
	for _, tag := range order {
		t, ok := r[tag]
		if !ok {
			return fmt.Errorf("transform registry missing tag %q", tag)
		}
		if t.Prepare == nil || t.Visualize == nil {
			return fmt.Errorf("transform %q is incomplete", tag)
		}
	}
	return nil
}

// Figures runs every transform over the payload. A transform that fails is
// skipped so one bad dataset never loses the rest of the report; the error
// is reported per tag.
func (r Registry) Figures(payload model.PipelineResult) (map[string]Figure, map[string]error) {
	figures := make(map[string]Figure, len(r))
	failures := make(map[string]error)
	for _, tag := range order {
		t := r[tag]
		data, err := t.Prepare(payload)
		if err != nil {
			failures[tag] = err
			continue
		}
		fig := t.Visualize(data)
		fig.Title = t.Title
		figures[tag] = fig
	}
	return figures, failures
}

func prepareCommits(p model.PipelineResult) (Dataset, error) {
	d := Dataset{}
	for _, c := range p.Commits {
		d.X = append(d.X, c.Date.Format("2006-01-02T15:04:05Z07:00"))
		d.Y = append(d.Y, 1)
		d.Text = append(d.Text, c.SHA)
	}
	return d, nil
}

func prepareNewContributors(p model.PipelineResult) (Dataset, error) {
	seen := make(map[string]bool)
	d := Dataset{}
	for _, c := range p.Commits {
		if seen[c.Email] {
			continue
		}
		seen[c.Email] = true
		d.X = append(d.X, c.Date.Format("2006-01-02T15:04:05Z07:00"))
		d.Y = append(d.Y, len(seen))
		d.Text = append(d.Text, c.Name)
	}
	return d, nil
}

func prepareLOCDelta(p model.PipelineResult) (Dataset, error) {
	d := Dataset{}
	total := 0
	for _, c := range p.Commits {
		total += c.Insertions - c.Deletions
		d.X = append(d.X, c.Date.Format("2006-01-02T15:04:05Z07:00"))
		d.Y = append(d.Y, total)
		d.Text = append(d.Text, c.SHA)
	}
	return d, nil
}

func prepareStargazers(p model.PipelineResult) (Dataset, error) {
	if p.GitHub == nil {
		return Dataset{}, fmt.Errorf("payload has no github report")
	}
	var stamps []string
	for _, star := range p.GitHub.Stargazers {
		if at, ok := star["starred_at"].(string); ok {
			stamps = append(stamps, at)
		}
	}
	sort.Strings(stamps)

	d := Dataset{}
	for i, at := range stamps {
		d.X = append(d.X, at)
		d.Y = append(d.Y, i+1)
	}
	return d, nil
}

func vizCumulative(name string) func(Dataset) Figure {
	return func(d Dataset) Figure {
		return Figure{Series: []Series{{Name: name, X: d.X, Y: d.Y, Text: d.Text}}}
	}
}
