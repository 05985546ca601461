// Package dialog produces the persona's next reply for a level.
package dialog

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/sustech/latch/internal/levels"
	"github.com/sustech/latch/internal/llm"
	"github.com/sustech/latch/internal/logging"
)

// FallbackSystemPrompt is used for level IDs that are not configured.
const FallbackSystemPrompt = "You are a helpful assistant."

// SystemErrorPrefix marks in-band error replies so the transcript itself
// records what went wrong.
const SystemErrorPrefix = "[System Error] "

// MissingCredentialMessage is the reply when no API key is available.
const MissingCredentialMessage = SystemErrorPrefix + "API key is missing. Set it with 'latch key set' and try again."

// Config tunes reply generation.
type Config struct {
	MaxTokens   int // 0 = provider default
	Temperature float64
	Retry       llm.RetryConfig
}

// DefaultConfig retries a failed reply once with the same request and does
// not cap the reply length.
func DefaultConfig() Config {
	return Config{
		Retry: llm.ReplyRetryConfig(),
	}
}

// Driver turns a transcript into the persona's next message. It holds no
// per-conversation state and is safe for concurrent use.
type Driver struct {
	provider llm.Provider
	levels   *levels.Registry
	cfg      Config
}

// NewDriver creates a dialog driver over the given provider and levels.
func NewDriver(provider llm.Provider, reg *levels.Registry, cfg Config) *Driver {
	return &Driver{provider: provider, levels: reg, cfg: cfg}
}

// Reply asks the model for the persona's next turn. Failures are returned
// in-band as "[System Error] ..." text; Reply never fails.
func (d *Driver) Reply(ctx context.Context, levelID string, transcript []llm.Message) string {
	ctx = llm.WithPurpose(ctx, "reply")

	req := llm.Request{
		System:      d.systemPrompt(levelID),
		Messages:    slices.Clone(transcript),
		MaxTokens:   d.cfg.MaxTokens,
		Temperature: d.cfg.Temperature,
	}

	first := &firstErrorProvider{inner: d.provider}
	resp, err := llm.WithRetry(first, d.cfg.Retry).Generate(ctx, req)
	if err == nil {
		return string(resp.Content)
	}

	if llm.IsMissingCredential(err) {
		logging.Warn().
			Add(logging.Level(levelID)).
			Add(logging.ErrorField(err)).
			Msg("reply skipped: no API key")
		return MissingCredentialMessage
	}

	reason := first.Err()
	if reason == nil {
		reason = err
	}
	logging.Error().
		Add(logging.Level(levelID)).
		Add(logging.Turns(len(transcript))).
		Add(logging.ErrorField(err)).
		Msg("reply failed after retry")
	return SystemErrorPrefix + reason.Error()
}

// Opening returns the scripted first message for a level: the persona's
// opening line followed by the code under dispute.
func (d *Driver) Opening(levelID string) (string, bool) {
	l, ok := d.levels.Lookup(levelID)
	if !ok {
		return "", false
	}
	return FormatOpening(l), true
}

// FormatOpening renders a level's opening line and code snippet as one
// assistant message.
func FormatOpening(l *levels.Level) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(l.OpeningMessage))
	if code := strings.TrimSpace(l.CodeSnippet); code != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("```verilog\n")
		b.WriteString(code)
		b.WriteString("\n```")
	}
	return b.String()
}

// IsSystemError reports whether a reply is an in-band error rather than
// model text.
func IsSystemError(reply string) bool {
	return strings.HasPrefix(reply, SystemErrorPrefix)
}

func (d *Driver) systemPrompt(levelID string) string {
	if l, ok := d.levels.Lookup(levelID); ok {
		return l.SystemPrompt
	}
	return FallbackSystemPrompt
}

// firstErrorProvider remembers the first error its inner provider returned,
// so the reply can report the original failure after the retry.
type firstErrorProvider struct {
	inner llm.Provider

	mu    sync.Mutex
	first error
}

func (f *firstErrorProvider) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	resp, err := f.inner.Generate(ctx, req)
	if err != nil {
		f.mu.Lock()
		if f.first == nil {
			f.first = err
		}
		f.mu.Unlock()
	}
	return resp, err
}

func (f *firstErrorProvider) ModelID() string {
	return f.inner.ModelID()
}

func (f *firstErrorProvider) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.first
}
