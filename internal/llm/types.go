package llm

// Message roles understood by the chat-completions providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ContentPartType distinguishes the parts of a multi-part message.
type ContentPartType string

const (
	PartText     ContentPartType = "text"
	PartImageURL ContentPartType = "image_url"
)

// ContentPart is one element of a multi-part user message.
type ContentPart struct {
	Type     ContentPartType `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL string          `json:"image_url,omitempty"`
}

// Message represents a chat message. Parts, when set, replace Content.
type Message struct {
	Role    string        `json:"role"` // "system", "user", "assistant"
	Content string        `json:"content,omitempty"`
	Parts   []ContentPart `json:"parts,omitempty"`
}

// IsMultipart reports whether the message carries a part list.
func (m Message) IsMultipart() bool {
	return len(m.Parts) > 0
}

// ChatRequest is the input for a chat completion.
type ChatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	User      string    `json:"user,omitempty"`
	MaxTokens int       `json:"max_tokens"`
}

// Response is the normalized provider response. An empty Content means the
// provider answered without anything extractable.
type Response struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	FinishReason string `json:"finish_reason"`
	Usage        Usage  `json:"usage"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}
