package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"google.golang.org/genai"
)

// geminiModels maps friendly names to Gemini model IDs.
var geminiModels = map[string]string{
	"gemini-flash": "gemini-3-flash-preview",
	"gemini-pro":   "gemini-3-pro-preview",
	"gemini-lite":  "gemini-2.5-flash-lite",
}

// GeminiProvider implements Provider using the Google Gemini SDK.
//
// The SDK binds the API key to the client, so clients are built lazily and
// cached per key.
type GeminiProvider struct {
	model   string
	apiKey  string
	baseURL string
	timeout time.Duration

	mu      sync.Mutex
	clients map[string]*genai.Client
}

// NewGeminiProvider creates a new Gemini provider. The API key may be empty
// when keys are supplied per call through the context.
func NewGeminiProvider(cfg GeminiConfig, timeout time.Duration) *GeminiProvider {
	return &GeminiProvider{
		model:   resolveModel(cfg.Model, geminiModels),
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		timeout: timeout,
		clients: make(map[string]*genai.Client),
	}
}

func (p *GeminiProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	key := APIKeyFrom(ctx, p.apiKey)
	if key == "" {
		return nil, &ErrMissingCredential{Provider: ProviderGemini}
	}

	client, err := p.clientFor(ctx, key)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		config.Temperature = &temp
	}

	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}

	// Configure structured output.
	if req.Schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = buildGeminiSchema(req.Schema.Definition)
	}

	contents := buildGeminiContents(req.Messages)

	result, err := client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return nil, mapGeminiError(err)
	}

	content := textContent(result.Text(), req.Schema)
	stop := mapGeminiStopReason(result)
	if err := checkTruncated(stop, content, req.Schema); err != nil {
		return nil, err
	}

	if req.Schema != nil {
		if err := validateResponse(req.Schema, content); err != nil {
			return nil, err
		}
	}

	resp := &Response{
		Content:    content,
		Model:      p.model,
		StopReason: stop,
	}

	if result.UsageMetadata != nil {
		resp.Usage = Usage{
			InputTokens:  int(result.UsageMetadata.PromptTokenCount),
			OutputTokens: int(result.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(result.UsageMetadata.TotalTokenCount),
		}
	}

	return resp, nil
}

func (p *GeminiProvider) ModelID() string {
	return p.model
}

// ModelInfo describes a model available to an API key.
type ModelInfo struct {
	Name             string
	DisplayName      string
	InputTokenLimit  int
	OutputTokenLimit int
}

// ListModels returns every model the API key can see, in the order the API
// lists them.
func (p *GeminiProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	key := APIKeyFrom(ctx, p.apiKey)
	if key == "" {
		return nil, &ErrMissingCredential{Provider: ProviderGemini}
	}

	client, err := p.clientFor(ctx, key)
	if err != nil {
		return nil, err
	}

	var out []ModelInfo
	for m, err := range client.Models.All(ctx) {
		if err != nil {
			return nil, mapGeminiError(err)
		}
		out = append(out, ModelInfo{
			Name:             m.Name,
			DisplayName:      m.DisplayName,
			InputTokenLimit:  int(m.InputTokenLimit),
			OutputTokenLimit: int(m.OutputTokenLimit),
		})
	}
	return out, nil
}

func (p *GeminiProvider) clientFor(ctx context.Context, key string) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[key]; ok {
		return c, nil
	}

	cc := &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	}
	if p.timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: p.timeout}
	}
	if p.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}

	// Rotated keys leave the old client unused; keep only the current one.
	clear(p.clients)
	p.clients[key] = client
	return client, nil
}

func buildGeminiContents(msgs []Message) []*genai.Content {
	out := make([]*genai.Content, len(msgs))
	for i, m := range msgs {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		out[i] = &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		}
	}
	return out
}

// buildGeminiSchema converts a JSON Schema definition map to a genai.Schema.
func buildGeminiSchema(def map[string]any) *genai.Schema {
	schema := &genai.Schema{}

	if t, ok := def["type"].(string); ok {
		schema.Type = mapGeminiType(t)
	}
	if desc, ok := def["description"].(string); ok {
		schema.Description = desc
	}

	if props, ok := def["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema)
		for k, v := range props {
			if propDef, ok := v.(map[string]any); ok {
				schema.Properties[k] = buildGeminiSchema(propDef)
			}
		}
	}

	if req, ok := def["required"].([]any); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}

	if enums, ok := def["enum"].([]any); ok {
		for _, e := range enums {
			if s, ok := e.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}

	if items, ok := def["items"].(map[string]any); ok {
		schema.Items = buildGeminiSchema(items)
	}

	return schema
}

func mapGeminiType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

func mapGeminiStopReason(result *genai.GenerateContentResponse) string {
	if len(result.Candidates) > 0 {
		switch result.Candidates[0].FinishReason {
		case "STOP":
			return "end"
		case "MAX_TOKENS":
			return "max_tokens"
		}
	}
	return "end"
}

func mapGeminiError(err error) error {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return &ErrRateLimit{Err: err}
		case apiErr.Code == http.StatusUnauthorized, apiErr.Code == http.StatusForbidden:
			return &ErrMissingCredential{Provider: ProviderGemini, Err: err}
		case apiErr.Code == http.StatusBadRequest && mentionsAPIKey(err):
			return &ErrMissingCredential{Provider: ProviderGemini, Err: err}
		case apiErr.Code >= 500:
			return &ErrProviderUnavailable{Err: err}
		}
	}
	if mentionsAPIKey(err) {
		return &ErrMissingCredential{Provider: ProviderGemini, Err: err}
	}
	return &ErrProviderUnavailable{Err: err}
}

// textContent wraps model text as Response content. Structured replies get
// their code fences stripped so they validate as JSON; plain text replies are
// passed through untouched.
func textContent(text string, schema *Schema) json.RawMessage {
	if schema != nil {
		return json.RawMessage(StripCodeFence(text))
	}
	return json.RawMessage(text)
}
