package channel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"guildbot/internal/logging"
)

const discordIntents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsMessageContent |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildMessageReactions

// DiscordChannel integrates with the Discord gateway.
type DiscordChannel struct {
	mu              sync.Mutex
	token           string
	session         *discordgo.Session
	handler         func(InboundMessage)
	reactionHandler func(ReactionEvent)
	running         bool
	logger          zerolog.Logger
}

// DiscordConfig holds Discord-specific configuration.
type DiscordConfig struct {
	Token string
}

// NewDiscordChannel creates a new Discord channel.
func NewDiscordChannel(cfg DiscordConfig, logger zerolog.Logger) *DiscordChannel {
	return &DiscordChannel{
		token:  cfg.Token,
		logger: logging.Component(logger, "discord"),
	}
}

func (d *DiscordChannel) Name() string { return "discord" }

func (d *DiscordChannel) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return nil
	}

	session, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return fmt.Errorf("discord session init: %w", err)
	}
	session.Identify.Intents = discordIntents

	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		d.logger.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("logged in")
	})
	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		d.mu.Lock()
		handler := d.handler
		d.mu.Unlock()
		if handler != nil && m.Author != nil {
			handler(discordInbound(m))
		}
	})
	session.AddHandler(func(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
		d.mu.Lock()
		handler := d.reactionHandler
		d.mu.Unlock()
		if handler == nil {
			return
		}
		ev := discordReaction(r)
		if s.State != nil && s.State.User != nil && ev.UserID == s.State.User.ID {
			ev.IsBot = true
		}
		handler(ev)
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}

	d.session = session
	d.running = true

	go func() {
		<-ctx.Done()
		_ = d.Stop(context.Background())
	}()

	return nil
}

func (d *DiscordChannel) Stop(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}
	d.running = false
	if d.session != nil {
		return d.session.Close()
	}
	return nil
}

func (d *DiscordChannel) sessionOrErr() (*discordgo.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return nil, fmt.Errorf("discord session not started")
	}
	return d.session, nil
}

func (d *DiscordChannel) Send(_ context.Context, msg OutboundMessage) error {
	s, err := d.sessionOrErr()
	if err != nil {
		return err
	}

	for i, chunk := range splitMessage(msg.Text, discordMessageLimit) {
		if i == 0 && msg.ReplyTo != "" {
			ref := &discordgo.MessageReference{MessageID: msg.ReplyTo, ChannelID: msg.ChatID}
			_, err = s.ChannelMessageSendReply(msg.ChatID, chunk, ref)
		} else {
			_, err = s.ChannelMessageSend(msg.ChatID, chunk)
		}
		if err != nil {
			return discordError("send", err)
		}
	}
	return nil
}

func (d *DiscordChannel) Delete(_ context.Context, chatID, messageID string) error {
	s, err := d.sessionOrErr()
	if err != nil {
		return err
	}
	if err := s.ChannelMessageDelete(chatID, messageID); err != nil {
		return discordError("delete", err)
	}
	return nil
}

func (d *DiscordChannel) React(_ context.Context, chatID, messageID, emoji string) error {
	s, err := d.sessionOrErr()
	if err != nil {
		return err
	}
	if err := s.MessageReactionAdd(chatID, messageID, emoji); err != nil {
		return discordError("react", err)
	}
	return nil
}

func (d *DiscordChannel) Mention(userID string) string {
	return "<@" + userID + ">"
}

func (d *DiscordChannel) OnMessage(handler func(InboundMessage)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = handler
}

func (d *DiscordChannel) OnReaction(handler func(ReactionEvent)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reactionHandler = handler
}

func (d *DiscordChannel) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func discordInbound(m *discordgo.MessageCreate) InboundMessage {
	msg := InboundMessage{
		ChannelName: "discord",
		MessageID:   m.ID,
		SenderID:    m.Author.ID,
		SenderName:  m.Author.Username,
		IsBot:       m.Author.Bot,
		ChatID:      m.ChannelID,
		Text:        m.Content,
		Timestamp:   m.Timestamp,
	}
	for _, a := range m.Attachments {
		if a == nil {
			continue
		}
		msg.Attachments = append(msg.Attachments, Attachment{
			URL:         a.URL,
			Filename:    a.Filename,
			ContentType: a.ContentType,
		})
	}
	return msg
}

func discordReaction(r *discordgo.MessageReactionAdd) ReactionEvent {
	ev := ReactionEvent{
		ChannelName: "discord",
		UserID:      r.UserID,
		ChatID:      r.ChannelID,
		MessageID:   r.MessageID,
		Emoji:       r.Emoji.Name,
	}
	if r.Member != nil && r.Member.User != nil {
		ev.IsBot = r.Member.User.Bot
	}
	return ev
}

// discordError maps a 404 on send to ErrChatNotFound.
func discordError(op string, err error) error {
	var restErr *discordgo.RESTError
	if op == "send" && errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("discord %s: %w", op, ErrChatNotFound)
	}
	return fmt.Errorf("discord %s: %w", op, err)
}
