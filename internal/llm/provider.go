package llm

import "context"

// genericProviderError is used when a provider reports an error without a message.
const genericProviderError = "unknown provider error"

// Provider is the interface all chat-completions backends implement.
type Provider interface {
	// Chat sends a chat completion request and returns the normalized response.
	Chat(ctx context.Context, req *ChatRequest) (*Response, error)

	// Name returns the display name used in user-facing errors (e.g. "OpenClaw").
	Name() string

	// DefaultModel returns the model used when the request leaves it empty.
	DefaultModel() string
}

// ProviderError is a structured error reported by the provider itself.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return genericProviderError
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// TransportError is a network-level failure before any provider response.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return e.Provider + ": transport error"
	}
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
