// Package judge asks the model which of a level's goals the student has
// satisfied so far.
package judge

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"text/template"

	"github.com/sustech/latch/internal/levels"
	"github.com/sustech/latch/internal/llm"
	"github.com/sustech/latch/internal/logging"
)

// Config holds configuration for the judge.
type Config struct {
	MaxTokens   int // 0 = provider default
	Temperature float64
}

// DefaultConfig leaves the output length to the model. Thinking models count
// their reasoning against the cap, so a small one can leave no verdict.
func DefaultConfig() Config {
	return Config{}
}

// Evaluator judges goal satisfaction with a single model call. It is
// best-effort: every failure yields an empty set.
type Evaluator struct {
	provider llm.Provider
	levels   *levels.Registry
	cfg      Config
}

// NewEvaluator creates a goal evaluator.
func NewEvaluator(provider llm.Provider, reg *levels.Registry, cfg Config) *Evaluator {
	return &Evaluator{provider: provider, levels: reg, cfg: cfg}
}

// judgeOutput is the raw model response.
type judgeOutput struct {
	SatisfiedGoals []string `json:"satisfied_goals"`
}

// Evaluate returns the goals of levelID that the student clearly satisfied
// in transcript. IDs the level does not declare are discarded. It never
// fails and never retries.
func (e *Evaluator) Evaluate(ctx context.Context, levelID string, transcript []llm.Message) GoalSet {
	level, ok := e.levels.Lookup(levelID)
	if !ok || len(level.Goals) == 0 {
		return GoalSet{}
	}
	if !slices.ContainsFunc(transcript, func(m llm.Message) bool { return m.Role == llm.RoleUser }) {
		// Nothing the student said yet.
		return GoalSet{}
	}

	system, err := buildJudgePrompt(level)
	if err != nil {
		logging.Error().Add(logging.Level(levelID)).Add(logging.ErrorField(err)).Msg("build judge prompt")
		return GoalSet{}
	}

	resp, err := e.provider.Generate(llm.WithPurpose(ctx, "judge"), llm.Request{
		System:      system,
		Messages:    slices.Clone(transcript),
		Schema:      JudgeSchema,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
	})
	if err != nil {
		logging.Warn().Add(logging.Level(levelID)).Add(logging.ErrorField(err)).Msg("judge call failed")
		return GoalSet{}
	}

	var out judgeOutput
	if err := llm.DecodeJSON(resp.Content, &out); err != nil {
		logging.Warn().Add(logging.Level(levelID)).Add(logging.ErrorField(err)).Msg("judge response is not JSON")
		return GoalSet{}
	}

	set := GoalSet{}
	for _, id := range out.SatisfiedGoals {
		id = strings.TrimSpace(id)
		if !level.HasGoal(id) {
			// The model returned an ID not in the goal list; treat as no match.
			logging.Debug().Add(logging.Level(levelID)).Add(logging.Str("goal_id", id)).Msg("discarding unknown goal")
			continue
		}
		set[id] = struct{}{}
	}

	logging.Debug().
		Add(logging.Level(levelID)).
		Add(logging.Goals("satisfied", set.Len())).
		Add(logging.Goals("total", len(level.Goals))).
		Msg("goals judged")
	return set
}

const judgeSystemTemplate = `You are an impartial Judge for a digital logic educational game.
Your task is to analyze the conversation history between a Student (User) and a Stubborn Software Engineer (AI).
Check if the Student has successfully explained or achieved the following specific goals.

Goals to check:
{{range .Goals}}- ID: {{.ID}}
  Requirement: {{.Requirement}}
{{end}}
Return a JSON object with a list of IDs of the goals that have been CLEARLY satisfied by the student in the conversation history.
Only mark a goal as satisfied if the student has explicitly mentioned the concept or provided the correct explanation/solution.
Use only the IDs listed above. Return an empty list if none are satisfied.`

var judgeTemplate = template.Must(template.New("judge").Parse(judgeSystemTemplate))

func buildJudgePrompt(level *levels.Level) (string, error) {
	var buf bytes.Buffer
	if err := judgeTemplate.Execute(&buf, level); err != nil {
		return "", err
	}
	return buf.String(), nil
}
