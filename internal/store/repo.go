package store

import (
	"context"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int       // max results (0 = unlimited)
	Purpose string    // LLM events only; empty = any
	LevelID string    // sessions only; empty = any
	From    time.Time // timestamp >= From
	To      time.Time // timestamp <= To
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMRequestEvent is a stored LLM request.
type LLMRequestEvent struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// LLMUsage aggregates token usage for one purpose or one model.
type LLMUsage struct {
	Purpose      string
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// EventRepo provides append and query access to LLM request events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEvent, error)

	// GetLLMEvent returns one event, or nil if it does not exist.
	GetLLMEvent(ctx context.Context, id int) (*LLMRequestEvent, error)

	// LLMUsageByPurpose aggregates usage per purpose label.
	LLMUsageByPurpose(ctx context.Context) ([]LLMUsage, error)

	// LLMUsageByModel aggregates usage per model.
	LLMUsageByModel(ctx context.Context) ([]LLMUsage, error)
}

// SessionRecord is a stored play session.
type SessionRecord struct {
	ID          string
	LevelID     string
	StartedAt   time.Time
	CompletedAt *time.Time
	Messages    []MessageRecord
	GoalIDs     []string // in the order they were satisfied
}

// MessageRecord is one stored transcript entry.
type MessageRecord struct {
	Sequence  int64
	Timestamp time.Time
	Role      string
	Content   string
}

// SessionSummary is a session row without its transcript.
type SessionSummary struct {
	ID           string
	LevelID      string
	StartedAt    time.Time
	CompletedAt  *time.Time
	MessageCount int
	GoalCount    int
}

// SessionRepo persists play sessions, their transcripts and goal progress.
type SessionRepo interface {
	// CreateSession starts a new session for the level and returns its ID.
	CreateSession(ctx context.Context, levelID string) (string, error)

	// AppendMessage adds a transcript entry to the session.
	AppendMessage(ctx context.Context, sessionID, role, content string) error

	// RecordGoals stores newly satisfied goals. Goals already recorded for
	// the session are ignored.
	RecordGoals(ctx context.Context, sessionID string, goalIDs []string) error

	// CompleteSession marks the session as won.
	CompleteSession(ctx context.Context, sessionID string) error

	// GetSession returns the full session, or nil if it does not exist.
	GetSession(ctx context.Context, id string) (*SessionRecord, error)

	// ListSessions returns session summaries newest first.
	ListSessions(ctx context.Context, opts QueryOpts) ([]SessionSummary, error)
}
