package llm

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"
)

const defaultTimeout = 30 * time.Second

// ChatCompletionsProvider implements Provider against an OpenAI-compatible
// /chat/completions endpoint. Both the local gateway and the direct provider
// speak this dialect; they differ only in base URL, key and model.
type ChatCompletionsProvider struct {
	client       openai.Client
	name         string
	defaultModel string
}

// ChatCompletionsConfig holds configuration for a chat-completions provider.
type ChatCompletionsConfig struct {
	Name    string
	APIKey  string
	BaseURL string
	Model   string
	// Timeout bounds a single HTTP exchange. Zero means 30s.
	Timeout time.Duration
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// NewChatCompletionsProvider creates a provider. SDK-level retries are
// disabled: retry policy belongs to the caller.
func NewChatCompletionsProvider(cfg ChatCompletionsConfig) *ChatCompletionsProvider {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &ChatCompletionsProvider{
		client:       openai.NewClient(opts...),
		name:         cfg.Name,
		defaultModel: cfg.Model,
	}
}

func (p *ChatCompletionsProvider) Name() string         { return p.name }
func (p *ChatCompletionsProvider) DefaultModel() string { return p.defaultModel }

func (p *ChatCompletionsProvider) Chat(ctx context.Context, req *ChatRequest) (*Response, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: convertMessages(req.Messages),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.User != "" {
		params.User = openai.String(req.User)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, p.classifyError(err)
	}

	if msg, failed := errorFromBody(resp.RawJSON()); failed {
		return nil, &ProviderError{Provider: p.name, StatusCode: http.StatusOK, Message: msg}
	}

	return convertResponse(resp), nil
}

func convertMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			result = append(result, openai.SystemMessage(m.Content))
		case RoleUser:
			if !m.IsMultipart() {
				result = append(result, openai.UserMessage(m.Content))
				continue
			}
			parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(m.Parts))
			for _, part := range m.Parts {
				switch part.Type {
				case PartText:
					parts = append(parts, openai.TextContentPart(part.Text))
				case PartImageURL:
					parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
						URL: part.ImageURL,
					}))
				}
			}
			result = append(result, openai.UserMessage(parts))
		case RoleAssistant:
			result = append(result, openai.AssistantMessage(m.Content))
		}
	}
	return result
}

func convertResponse(resp *openai.ChatCompletion) *Response {
	result := &Response{
		Model: resp.Model,
		Usage: Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
		},
	}
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		result.Content = choice.Message.Content
		result.FinishReason = string(choice.FinishReason)
	}
	return result
}

// errorFromBody inspects the raw body of a 2xx response for an "error" field.
// Some gateways report failures this way instead of with an HTTP status.
func errorFromBody(raw string) (string, bool) {
	field := gjson.Get(raw, "error")
	if !field.Exists() {
		return "", false
	}
	switch field.Type {
	case gjson.Null, gjson.False:
		return "", false
	case gjson.String:
		if field.String() == "" {
			return "", false
		}
		return field.String(), true
	case gjson.JSON:
		if field.IsObject() && len(field.Map()) == 0 {
			return "", false
		}
		if msg := field.Get("message").String(); msg != "" {
			return msg, true
		}
		return genericProviderError, true
	default:
		return genericProviderError, true
	}
}

func (p *ChatCompletionsProvider) classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			raw := apiErr.RawJSON()
			msg = gjson.Get(raw, "error.message").String()
			if msg == "" {
				msg = gjson.Get(raw, "message").String()
			}
		}
		return &ProviderError{
			Provider:   p.name,
			StatusCode: apiErr.StatusCode,
			Message:    msg,
			Err:        err,
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Provider: p.name, Err: err}
	}

	return err
}
