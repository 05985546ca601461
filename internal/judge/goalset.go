package judge

import (
	"slices"

	"github.com/sustech/latch/internal/levels"
)

// GoalSet is a set of goal IDs. The zero value is an empty set.
type GoalSet map[string]struct{}

// NewGoalSet builds a set from ids.
func NewGoalSet(ids ...string) GoalSet {
	s := make(GoalSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set.
func (s GoalSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of goals in the set.
func (s GoalSet) Len() int {
	return len(s)
}

// Union returns a new set holding the goals of both sets.
func (s GoalSet) Union(other GoalSet) GoalSet {
	out := make(GoalSet, len(s)+len(other))
	for id := range s {
		out[id] = struct{}{}
	}
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}

// Difference returns the goals in s that are not in other.
func (s GoalSet) Difference(other GoalSet) GoalSet {
	out := make(GoalSet)
	for id := range s {
		if !other.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Sorted returns the IDs in the level's declaration order. IDs the level
// does not declare are appended in lexical order.
func (s GoalSet) Sorted(level *levels.Level) []string {
	out := make([]string, 0, len(s))
	seen := make(map[string]bool, len(s))
	if level != nil {
		for _, g := range level.Goals {
			if s.Has(g.ID) {
				out = append(out, g.ID)
				seen[g.ID] = true
			}
		}
	}
	var rest []string
	for id := range s {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}

// Covers reports whether every goal of the level is in the set. A level with
// no goals is never covered.
func (s GoalSet) Covers(level *levels.Level) bool {
	if level == nil || len(level.Goals) == 0 {
		return false
	}
	for _, g := range level.Goals {
		if !s.Has(g.ID) {
			return false
		}
	}
	return true
}
