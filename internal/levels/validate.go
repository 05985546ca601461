package levels

import (
	"fmt"
	"strings"
)

// validateLevels performs all structural checks on the given level set.
// Returns a combined error describing all problems found, or nil if valid.
func validateLevels(levels []Level) error {
	var errs []string

	if len(levels) == 0 {
		errs = append(errs, "no levels defined")
	}

	seen := make(map[string]bool, len(levels))
	for i, l := range levels {
		name := l.ID
		if name == "" {
			name = fmt.Sprintf("#%d", i+1)
			errs = append(errs, fmt.Sprintf("level %s has an empty ID", name))
		} else if seen[l.ID] {
			errs = append(errs, fmt.Sprintf("duplicate level ID: %q", l.ID))
		}
		seen[l.ID] = true

		if strings.TrimSpace(l.SystemPrompt) == "" {
			errs = append(errs, fmt.Sprintf("level %s has an empty system prompt", name))
		}

		goalSeen := make(map[string]bool, len(l.Goals))
		for j, g := range l.Goals {
			if g.ID == "" {
				errs = append(errs, fmt.Sprintf("level %s goal #%d has an empty ID", name, j+1))
				continue
			}
			if goalSeen[g.ID] {
				errs = append(errs, fmt.Sprintf("level %s has duplicate goal ID %q", name, g.ID))
			}
			goalSeen[g.ID] = true
			if strings.TrimSpace(g.Requirement) == "" {
				errs = append(errs, fmt.Sprintf("level %s goal %q has an empty requirement", name, g.ID))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid levels:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}
