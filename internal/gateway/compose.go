package gateway

import (
	"fmt"

	"guildbot/internal/llm"
)

// ComposeMessages builds the provider-neutral message list for one request.
// The role label only informs the model; routing was decided already.
func ComposeMessages(systemPrompt string, role Role, text string, images []string) []llm.Message {
	messages := make([]llm.Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, llm.Message{
			Role:    llm.RoleSystem,
			Content: fmt.Sprintf("%s\n\n[Caller role: %s]", systemPrompt, role.Label()),
		})
	}

	if len(images) == 0 {
		return append(messages, llm.Message{Role: llm.RoleUser, Content: text})
	}

	parts := make([]llm.ContentPart, 0, len(images)+1)
	parts = append(parts, llm.ContentPart{Type: llm.PartText, Text: text})
	for _, url := range images {
		parts = append(parts, llm.ContentPart{Type: llm.PartImageURL, ImageURL: url})
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Parts: parts})
}
