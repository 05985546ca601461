// Package game runs a play session: it keeps the transcript, calls the
// dialog driver and the judge each round, and accumulates satisfied goals.
package game

import (
	"time"

	"github.com/sustech/latch/internal/dialog"
	"github.com/sustech/latch/internal/judge"
	"github.com/sustech/latch/internal/levels"
	"github.com/sustech/latch/internal/llm"
)

// Session is one player's argument with a level's persona. A Session is not
// safe for concurrent use; each round must finish before the next starts.
type Session struct {
	// ID is the persisted session ID, empty when no store is configured.
	ID        string
	Level     *levels.Level
	StartedAt time.Time

	// Transcript is the full conversation, oldest first, seeded with the
	// scripted opening as the first assistant turn.
	Transcript []llm.Message

	// Satisfied accumulates goals across rounds; goals stay satisfied.
	Satisfied judge.GoalSet

	// Complete is set once every goal of the level is satisfied.
	Complete bool
}

// Turn reports the outcome of one round.
type Turn struct {
	Reply string

	// SystemError is true when Reply is an in-band error, not persona text.
	SystemError bool

	// NewGoals are the goals first satisfied this round, in level order.
	NewGoals []string

	// Satisfied lists every goal satisfied so far, in level order.
	Satisfied []string

	// Completed is true on the round that satisfied the last goal.
	Completed bool
}

// Remaining returns the goals not yet satisfied, in level order.
func (s *Session) Remaining() []levels.Goal {
	var out []levels.Goal
	for _, g := range s.Level.Goals {
		if !s.Satisfied.Has(g.ID) {
			out = append(out, g)
		}
	}
	return out
}

// modelTranscript is the transcript sent to the model: in-band error replies
// are shown to the player but never fed back as persona turns.
func (s *Session) modelTranscript() []llm.Message {
	out := make([]llm.Message, 0, len(s.Transcript))
	for _, m := range s.Transcript {
		if m.Role == llm.RoleAssistant && dialog.IsSystemError(m.Content) {
			continue
		}
		out = append(out, m)
	}
	return out
}
