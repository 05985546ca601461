package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/samber/lo"

	"github.com/sustech/latch/internal/levels"
	"github.com/sustech/latch/internal/llm"
	"github.com/sustech/latch/internal/logging"
	"github.com/sustech/latch/internal/store"
)

// Message is a transcript entry on the wire. Role is "user" or "assistant";
// "model" is accepted as an alias for "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TranscriptRequest is the body of the reply and evaluate endpoints.
type TranscriptRequest struct {
	Messages []Message `json:"messages"`
}

// ReplyResponse carries the persona's next turn. Reply may be an in-band
// "[System Error] ..." message.
type ReplyResponse struct {
	Reply string `json:"reply"`
}

// EvaluateResponse lists satisfied goals in level order.
type EvaluateResponse struct {
	SatisfiedGoals []string `json:"satisfied_goals"`
}

// LevelSummary is a level without its goals.
type LevelSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Scenario  string `json:"scenario,omitempty"`
	GoalCount int    `json:"goal_count"`
}

// SessionSummaryResponse is a stored session without its transcript.
type SessionSummaryResponse struct {
	ID           string     `json:"id"`
	LevelID      string     `json:"level_id"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	MessageCount int        `json:"message_count"`
	GoalCount    int        `json:"goal_count"`
}

// SessionMessage is a stored transcript entry.
type SessionMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionResponse is a stored session.
type SessionResponse struct {
	ID          string           `json:"id"`
	LevelID     string           `json:"level_id"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Goals       []string         `json:"satisfied_goals"`
	Messages    []SessionMessage `json:"messages,omitempty"`
}

func (s *Server) listLevels(w http.ResponseWriter, r *http.Request) {
	out := lo.Map(s.levels.All(), func(l levels.Level, _ int) LevelSummary {
		return LevelSummary{ID: l.ID, Title: l.Title, Scenario: l.Scenario, GoalCount: len(l.Goals)}
	})
	writeJSONResponse(w, http.StatusOK, out)
}

func (s *Server) getLevel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	l, ok := s.levels.Lookup(id)
	if !ok {
		writeErrorResponse(w, http.StatusNotFound, fmt.Sprintf("level %q not found", id))
		return
	}
	writeJSONResponse(w, http.StatusOK, l)
}

// reply answers for unknown levels too, with the generic assistant prompt.
func (s *Server) reply(w http.ResponseWriter, r *http.Request) {
	levelID := mux.Vars(r)["id"]

	transcript, err := decodeTranscript(w, r)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	text := s.driver.Reply(r.Context(), levelID, transcript)
	writeJSONResponse(w, http.StatusOK, ReplyResponse{Reply: text})
}

// evaluate answers an empty transcript with no goals rather than an error.
func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	levelID := mux.Vars(r)["id"]

	transcript, err := decodeTranscript(w, r)
	if errors.Is(err, errNoMessages) {
		writeJSONResponse(w, http.StatusOK, EvaluateResponse{SatisfiedGoals: []string{}})
		return
	}
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	level, _ := s.levels.Lookup(levelID)
	goals := s.evaluator.Evaluate(r.Context(), levelID, transcript)
	writeJSONResponse(w, http.StatusOK, EvaluateResponse{SatisfiedGoals: goals.Sorted(level)})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	opts := store.QueryOpts{LevelID: r.URL.Query().Get("level")}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeErrorResponse(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		opts.Limit = n
	}

	sums, err := s.sessions.ListSessions(r.Context(), opts)
	if err != nil {
		logging.Error().Add(logging.ErrorField(err)).Msg("list sessions")
		writeErrorResponse(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	writeJSONResponse(w, http.StatusOK, lo.Map(sums, func(ss store.SessionSummary, _ int) SessionSummaryResponse {
		return SessionSummaryResponse{
			ID:           ss.ID,
			LevelID:      ss.LevelID,
			StartedAt:    ss.StartedAt,
			CompletedAt:  ss.CompletedAt,
			MessageCount: ss.MessageCount,
			GoalCount:    ss.GoalCount,
		}
	}))
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := s.sessions.GetSession(r.Context(), id)
	if err != nil {
		logging.Error().Add(logging.Session(id)).Add(logging.ErrorField(err)).Msg("get session")
		writeErrorResponse(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if rec == nil {
		writeErrorResponse(w, http.StatusNotFound, fmt.Sprintf("session %q not found", id))
		return
	}
	writeJSONResponse(w, http.StatusOK, SessionResponse{
		ID:          rec.ID,
		LevelID:     rec.LevelID,
		StartedAt:   rec.StartedAt,
		CompletedAt: rec.CompletedAt,
		Goals:       append([]string{}, rec.GoalIDs...),
		Messages: lo.Map(rec.Messages, func(m store.MessageRecord, _ int) SessionMessage {
			return SessionMessage{Role: m.Role, Content: m.Content, Timestamp: m.Timestamp}
		}),
	})
}

var errNoMessages = errors.New("messages must not be empty")

func decodeTranscript(w http.ResponseWriter, r *http.Request) ([]llm.Message, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req TranscriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid JSON payload: %w", err)
	}
	if len(req.Messages) == 0 {
		return nil, errNoMessages
	}

	for i, m := range req.Messages {
		switch m.Role {
		case "user", "assistant", "model":
		default:
			return nil, fmt.Errorf("messages[%d]: unknown role %q", i, m.Role)
		}
	}

	return lo.Map(req.Messages, func(m Message, _ int) llm.Message {
		return llm.Message{Role: llm.ParseRole(m.Role), Content: m.Content}
	}), nil
}

func writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
