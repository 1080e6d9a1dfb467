package eventbus

import "time"

// Topic represents an event topic.
type Topic string

const (
	TopicMessage       Topic = "message"
	TopicReaction      Topic = "reaction"
	TopicModeration    Topic = "moderation"
	TopicLevelUp       Topic = "level_up"
	TopicCommand       Topic = "command"
	TopicGatewayResult Topic = "gateway_result"
	TopicError         Topic = "error"
	TopicStatusChange  Topic = "status_change"
)

// Event is a message passed through the event bus.
type Event struct {
	Topic     Topic
	Payload   any
	Timestamp time.Time
}

// Handler processes an event.
type Handler func(Event)

// MessagePayload is published on TopicMessage for every inbound chat message.
type MessagePayload struct {
	Channel  string
	SenderID string
	ChatID   string
}

// ReactionPayload is published on TopicReaction.
type ReactionPayload struct {
	Channel string
	UserID  string
	Emoji   string
}

// ModerationPayload is published when a message is removed by the content rule.
type ModerationPayload struct {
	Channel   string
	SenderID  string
	MessageID string
	Deleted   bool
}

// LevelUpPayload is published when a user gains a level.
type LevelUpPayload struct {
	UserID string
	Level  int
}

// CommandPayload is published after a chat command ran.
type CommandPayload struct {
	Name     string
	SenderID string
	Err      error
}

// GatewayResultPayload describes a finished AI gateway invocation.
type GatewayResultPayload struct {
	RequestID string
	Provider  string
	Target    string // "primary", "secondary"
	Role      string
	Outcome   string // "success", "empty", "failure"
	Retried   bool
	Duration  time.Duration
}

// ErrorPayload is published on TopicError.
type ErrorPayload struct {
	Source string
	Err    error
}

// StatusPayload is published on TopicStatusChange.
type StatusPayload struct {
	Component string
	Running   bool
}
