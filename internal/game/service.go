package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sustech/latch/internal/dialog"
	"github.com/sustech/latch/internal/judge"
	"github.com/sustech/latch/internal/levels"
	"github.com/sustech/latch/internal/llm"
	"github.com/sustech/latch/internal/logging"
	"github.com/sustech/latch/internal/store"
)

// ErrUnknownLevel is returned when a level ID is not configured.
var ErrUnknownLevel = errors.New("unknown level")

// ErrEmptyMessage is returned when the player sends blank text.
var ErrEmptyMessage = errors.New("message is empty")

// Service coordinates play sessions. repo may be nil, in which case nothing
// is persisted.
type Service struct {
	driver    *dialog.Driver
	evaluator *judge.Evaluator
	levels    *levels.Registry
	repo      store.SessionRepo
}

// NewService creates a game service.
func NewService(driver *dialog.Driver, evaluator *judge.Evaluator, reg *levels.Registry, repo store.SessionRepo) *Service {
	return &Service{driver: driver, evaluator: evaluator, levels: reg, repo: repo}
}

// Start opens a new session for levelID with the scripted opening as the
// persona's first turn.
func (s *Service) Start(ctx context.Context, levelID string) (*Session, error) {
	level, ok := s.levels.Lookup(levelID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLevel, levelID)
	}

	sess := &Session{
		Level:     level,
		StartedAt: time.Now(),
		Satisfied: judge.GoalSet{},
	}
	if opening := dialog.FormatOpening(level); opening != "" {
		sess.Transcript = append(sess.Transcript, llm.Message{Role: llm.RoleAssistant, Content: opening})
	}

	if s.repo != nil {
		id, err := s.repo.CreateSession(ctx, levelID)
		if err != nil {
			logging.Warn().Add(logging.Level(levelID)).Add(logging.ErrorField(err)).Msg("session not persisted")
		} else {
			sess.ID = id
			for _, m := range sess.Transcript {
				s.persistMessage(ctx, sess, m)
			}
		}
	}

	logging.Info().Add(logging.Level(levelID)).Add(logging.Session(sess.ID)).Msg("session started")
	return sess, nil
}

// Resume rebuilds a stored session. It returns nil and no error when the
// session does not exist.
func (s *Service) Resume(ctx context.Context, id string) (*Session, error) {
	if s.repo == nil {
		return nil, errors.New("no session store configured")
	}
	rec, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if rec == nil {
		return nil, nil
	}
	level, ok := s.levels.Lookup(rec.LevelID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLevel, rec.LevelID)
	}

	sess := &Session{
		ID:        rec.ID,
		Level:     level,
		StartedAt: rec.StartedAt,
		Satisfied: judge.GoalSet{},
	}
	for _, m := range rec.Messages {
		sess.Transcript = append(sess.Transcript, llm.Message{Role: llm.ParseRole(m.Role), Content: m.Content})
	}
	for _, id := range rec.GoalIDs {
		if level.HasGoal(id) {
			sess.Satisfied[id] = struct{}{}
		}
	}
	sess.Complete = sess.Satisfied.Covers(level)
	return sess, nil
}

// Send plays one round: the player's text, the persona's reply, then a
// fresh judgement of the whole transcript unioned into the session's goals.
func (s *Service) Send(ctx context.Context, sess *Session, text string) (Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Turn{}, ErrEmptyMessage
	}

	start := time.Now()
	levelID := sess.Level.ID

	userMsg := llm.Message{Role: llm.RoleUser, Content: text}
	sess.Transcript = append(sess.Transcript, userMsg)
	s.persistMessage(ctx, sess, userMsg)

	reply := s.driver.Reply(ctx, levelID, sess.modelTranscript())
	replyMsg := llm.Message{Role: llm.RoleAssistant, Content: reply}
	sess.Transcript = append(sess.Transcript, replyMsg)
	s.persistMessage(ctx, sess, replyMsg)

	judged := s.evaluator.Evaluate(ctx, levelID, sess.modelTranscript())
	newGoals := judged.Difference(sess.Satisfied)
	sess.Satisfied = sess.Satisfied.Union(judged)

	turn := Turn{
		Reply:       reply,
		SystemError: dialog.IsSystemError(reply),
		NewGoals:    newGoals.Sorted(sess.Level),
		Satisfied:   sess.Satisfied.Sorted(sess.Level),
	}

	if len(turn.NewGoals) > 0 {
		s.persistGoals(ctx, sess, turn.NewGoals)
	}

	if !sess.Complete && sess.Satisfied.Covers(sess.Level) {
		sess.Complete = true
		turn.Completed = true
		s.persistCompletion(ctx, sess)
	}

	logging.Info().
		Add(logging.Level(levelID)).
		Add(logging.Session(sess.ID)).
		Add(logging.Turns(len(sess.Transcript))).
		Add(logging.Goals("new_goals", len(turn.NewGoals))).
		Add(logging.Goals("satisfied", len(turn.Satisfied))).
		Add(logging.Duration(time.Since(start))).
		Msg("round played")

	return turn, nil
}

func (s *Service) persistMessage(ctx context.Context, sess *Session, m llm.Message) {
	if s.repo == nil || sess.ID == "" {
		return
	}
	if err := s.repo.AppendMessage(ctx, sess.ID, string(m.Role), m.Content); err != nil {
		logging.Warn().Add(logging.Session(sess.ID)).Add(logging.ErrorField(err)).Msg("message not persisted")
	}
}

func (s *Service) persistGoals(ctx context.Context, sess *Session, ids []string) {
	if s.repo == nil || sess.ID == "" {
		return
	}
	if err := s.repo.RecordGoals(ctx, sess.ID, ids); err != nil {
		logging.Warn().Add(logging.Session(sess.ID)).Add(logging.ErrorField(err)).Msg("goals not persisted")
	}
}

func (s *Service) persistCompletion(ctx context.Context, sess *Session) {
	if s.repo == nil || sess.ID == "" {
		return
	}
	if err := s.repo.CompleteSession(ctx, sess.ID); err != nil {
		logging.Warn().Add(logging.Session(sess.ID)).Add(logging.ErrorField(err)).Msg("completion not persisted")
	}
}
