package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// openaiModels maps friendly names to OpenAI model IDs.
var openaiModels = map[string]string{
	"gpt-4o":      "gpt-4o",
	"gpt-4o-mini": "gpt-4o-mini",
}

// OpenAIProvider implements Provider using the OpenAI SDK.
// It also supports OpenRouter and other OpenAI-compatible APIs via BaseURL.
type OpenAIProvider struct {
	model      string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	name       string
}

// NewOpenAIProvider creates a new OpenAI provider. The API key may be empty
// when keys are supplied per call through the context.
func NewOpenAIProvider(cfg OpenAIConfig, timeout time.Duration) *OpenAIProvider {
	return &OpenAIProvider{
		model:      resolveModel(cfg.Model, openaiModels),
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		name:       ProviderOpenAI,
	}
}

// client builds an SDK client for key. Construction is cheap and holds no
// connections of its own; the shared http.Client pools them.
func (p *OpenAIProvider) client(key string) *openai.Client {
	config := openai.DefaultConfig(key)
	if p.baseURL != "" {
		config.BaseURL = p.baseURL
	}
	if p.httpClient != nil {
		config.HTTPClient = p.httpClient
	}
	return openai.NewClientWithConfig(config)
}

func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	key := APIKeyFrom(ctx, p.apiKey)
	if key == "" {
		return nil, &ErrMissingCredential{Provider: p.name}
	}

	messages := buildOpenAIMessages(req)

	chatReq := openai.ChatCompletionRequest{
		Model:               p.model,
		Messages:            messages,
		MaxCompletionTokens: req.MaxTokens,
		Temperature:         float32(req.Temperature),
	}

	// Use JSON schema response format when schema is provided.
	if req.Schema != nil {
		schemaBytes, err := json.Marshal(strictDefinition(req.Schema.Definition))
		if err != nil {
			return nil, fmt.Errorf("marshal schema: %w", err)
		}

		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.Schema.Name,
				Schema: json.RawMessage(schemaBytes),
				Strict: true,
			},
		}
	}

	resp, err := p.client(key).CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, mapOpenAIError(p.name, err)
	}

	if len(resp.Choices) == 0 {
		return nil, &ErrInvalidResponse{
			Err: fmt.Errorf("no choices in OpenAI response"),
		}
	}

	content := textContent(resp.Choices[0].Message.Content, req.Schema)
	stop := mapOpenAIStopReason(resp.Choices[0].FinishReason)
	if err := checkTruncated(stop, content, req.Schema); err != nil {
		return nil, err
	}

	if req.Schema != nil {
		if err := validateResponse(req.Schema, content); err != nil {
			return nil, err
		}
	}

	return &Response{
		Content: content,
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
		Model:      resp.Model,
		StopReason: stop,
	}, nil
}

func (p *OpenAIProvider) ModelID() string {
	return p.model
}

func buildOpenAIMessages(req Request) []openai.ChatCompletionMessage {
	var messages []openai.ChatCompletionMessage

	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	return messages
}

// strictDefinition returns a copy of def that satisfies OpenAI strict mode:
// every object closes its properties and requires all of them. Responses are
// still validated against the original definition.
func strictDefinition(def map[string]any) map[string]any {
	out := make(map[string]any, len(def)+2)
	for k, v := range def {
		out[k] = v
	}

	if props, ok := def["properties"].(map[string]any); ok {
		strictProps := make(map[string]any, len(props))
		required := make([]any, 0, len(props))
		for _, name := range slices.Sorted(maps.Keys(props)) {
			if sub, ok := props[name].(map[string]any); ok {
				strictProps[name] = strictDefinition(sub)
			} else {
				strictProps[name] = props[name]
			}
			required = append(required, name)
		}
		out["properties"] = strictProps
		out["required"] = required
		out["additionalProperties"] = false
	}

	if items, ok := def["items"].(map[string]any); ok {
		out["items"] = strictDefinition(items)
	}
	return out
}

func mapOpenAIStopReason(reason openai.FinishReason) string {
	switch reason {
	case openai.FinishReasonStop:
		return "end"
	case openai.FinishReasonLength:
		return "max_tokens"
	default:
		return "end"
	}
}

func mapOpenAIError(provider string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return &ErrRateLimit{Err: err}
		case apiErr.HTTPStatusCode == http.StatusUnauthorized:
			return &ErrMissingCredential{Provider: provider, Err: err}
		case apiErr.HTTPStatusCode >= 500:
			return &ErrProviderUnavailable{Err: err}
		}
	}
	return &ErrProviderUnavailable{Err: err}
}
