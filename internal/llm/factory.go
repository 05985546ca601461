package llm

import (
	"fmt"

	"github.com/sustech/latch/internal/store"
)

// NewProvider creates a Provider from configuration.
//
// The returned provider is wrapped as caller → credentials → logging → base:
// the key is read from keys on every call, and a call without a key never
// reaches logging or the network. Retry is left to the caller because only
// reply generation retries.
//
// keys may be nil when the configured API key should be used as is, and
// eventRepo may be nil to skip event persistence.
func NewProvider(cfg Config, keys KeySource, eventRepo store.EventRepo) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var base Provider
	switch cfg.Provider {
	case ProviderAnthropic:
		base = NewAnthropicProvider(cfg.Anthropic, cfg.Timeout)
	case ProviderOpenAI:
		base = NewOpenAIProvider(cfg.OpenAI, cfg.Timeout)
	case ProviderOpenRouter:
		base = NewOpenRouterProvider(cfg.OpenRouter, cfg.Timeout)
	case ProviderGemini:
		base = NewGeminiProvider(cfg.Gemini, cfg.Timeout)
	case ProviderMock:
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}

	logged := WithLogging(base, cfg.Provider, eventRepo)
	if keys == nil {
		return logged, nil
	}
	return WithCredentials(logged, keys), nil
}
