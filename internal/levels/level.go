// Package levels holds the static per-level content: persona prompt,
// scripted opening, the Verilog under dispute and the goals to win.
package levels

import "slices"

// Level is one persona argument. Levels are read-only after loading.
type Level struct {
	ID             string `yaml:"id" json:"id"`
	Title          string `yaml:"title" json:"title"`
	Scenario       string `yaml:"scenario" json:"scenario,omitempty"`
	OpeningMessage string `yaml:"opening_message" json:"opening_message"`
	CodeSnippet    string `yaml:"code_snippet" json:"code_snippet"`
	SystemPrompt   string `yaml:"system_prompt" json:"-"`
	Goals          []Goal `yaml:"goals" json:"goals"`
}

// Goal is a concept the student must articulate. Requirement is the judging
// criterion given to the model; Label is for display.
type Goal struct {
	ID          string `yaml:"id" json:"id"`
	Label       string `yaml:"label" json:"label"`
	Requirement string `yaml:"requirement" json:"requirement"`
}

// GoalIDs returns the goal IDs in declaration order.
func (l *Level) GoalIDs() []string {
	ids := make([]string, len(l.Goals))
	for i, g := range l.Goals {
		ids[i] = g.ID
	}
	return ids
}

// HasGoal reports whether id is one of the level's goals.
func (l *Level) HasGoal(id string) bool {
	return slices.ContainsFunc(l.Goals, func(g Goal) bool { return g.ID == id })
}

// Goal returns the goal with the given ID.
func (l *Level) Goal(id string) (Goal, bool) {
	i := slices.IndexFunc(l.Goals, func(g Goal) bool { return g.ID == id })
	if i < 0 {
		return Goal{}, false
	}
	return l.Goals[i], true
}
