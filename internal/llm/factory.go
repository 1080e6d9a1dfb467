package llm

import (
	"fmt"

	"guildbot/internal/config"
)

// NewProvider creates a chat-completions provider from config.
func NewProvider(cfg config.ProviderConfig) (Provider, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("provider name is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("provider %s: base URL is required", cfg.Name)
	}
	return NewChatCompletionsProvider(ChatCompletionsConfig{
		Name:    cfg.Name,
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}), nil
}
