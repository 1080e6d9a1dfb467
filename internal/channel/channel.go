package channel

import (
	"context"
	"errors"
	"time"
)

// ErrChatNotFound is returned when a target chat cannot be resolved.
var ErrChatNotFound = errors.New("查詢不到此頻道！")

// ErrUnsupported is returned by channels that lack an optional capability.
var ErrUnsupported = errors.New("operation not supported by channel")

// Attachment is a file attached to an inbound message.
type Attachment struct {
	URL         string
	Filename    string
	ContentType string
}

// IsImage reports whether the attachment looks like an image.
func (a Attachment) IsImage() bool {
	if len(a.ContentType) >= 6 && a.ContentType[:6] == "image/" {
		return true
	}
	return a.ContentType == "" && hasImageExt(a.Filename)
}

// InboundMessage is a message received from a channel.
type InboundMessage struct {
	ChannelName string
	MessageID   string
	SenderID    string
	SenderName  string
	IsBot       bool
	ChatID      string
	Text        string
	Attachments []Attachment
	Timestamp   time.Time
}

// ImageURLs returns the URLs of image attachments in order.
func (m InboundMessage) ImageURLs() []string {
	var urls []string
	for _, a := range m.Attachments {
		if a.IsImage() {
			urls = append(urls, a.URL)
		}
	}
	return urls
}

// ReactionEvent is a reaction added to a message.
type ReactionEvent struct {
	ChannelName string
	UserID      string
	IsBot       bool
	ChatID      string
	MessageID   string
	Emoji       string
}

// OutboundMessage is a message to send through a channel.
type OutboundMessage struct {
	ChatID  string
	Text    string
	ReplyTo string // optional message ID to reply to
}

// Channel is the interface for messaging integrations.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg OutboundMessage) error
	Delete(ctx context.Context, chatID, messageID string) error
	React(ctx context.Context, chatID, messageID, emoji string) error
	// Mention renders a user reference in the channel's markup.
	Mention(userID string) string
	OnMessage(handler func(InboundMessage))
	OnReaction(handler func(ReactionEvent))
	IsRunning() bool
}
