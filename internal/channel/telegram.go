package channel

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v3"

	"guildbot/internal/logging"
)

// TelegramChannel integrates with the Telegram Bot API. It carries text
// only; reactions are not delivered.
type TelegramChannel struct {
	mu         sync.Mutex
	token      string
	allowedIDs map[int64]bool
	bot        *tele.Bot
	handler    func(InboundMessage)
	running    bool
	logger     zerolog.Logger
}

// TelegramConfig holds Telegram-specific configuration.
type TelegramConfig struct {
	Token      string
	AllowedIDs []int64
}

// NewTelegramChannel creates a new Telegram channel.
func NewTelegramChannel(cfg TelegramConfig, logger zerolog.Logger) *TelegramChannel {
	allowed := make(map[int64]bool, len(cfg.AllowedIDs))
	for _, id := range cfg.AllowedIDs {
		allowed[id] = true
	}
	return &TelegramChannel{
		token:      cfg.Token,
		allowedIDs: allowed,
		logger:     logging.Component(logger, "telegram"),
	}
}

func (t *TelegramChannel) Name() string { return "telegram" }

func (t *TelegramChannel) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return nil
	}

	pref := tele.Settings{
		Token:  t.token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			t.logger.Error().Err(err).Msg("handler error")
		},
	}

	bot, err := tele.NewBot(pref)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}

	bot.Handle(tele.OnText, func(c tele.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		if len(t.allowedIDs) > 0 && !t.allowedIDs[sender.ID] {
			t.logger.Warn().Int64("user_id", sender.ID).Str("username", sender.Username).Msg("unauthorized user")
			return nil
		}

		t.mu.Lock()
		handler := t.handler
		t.mu.Unlock()

		if handler != nil {
			handler(telegramInbound(c.Message()))
		}
		return nil
	})

	t.bot = bot
	t.running = true

	go bot.Start()

	go func() {
		<-ctx.Done()
		_ = t.Stop(context.Background())
	}()

	return nil
}

func (t *TelegramChannel) Stop(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return nil
	}
	if t.bot != nil {
		t.bot.Stop()
	}
	t.running = false
	return nil
}

func (t *TelegramChannel) botOrErr() (*tele.Bot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot == nil {
		return nil, fmt.Errorf("telegram bot not started")
	}
	return t.bot, nil
}

func (t *TelegramChannel) Send(_ context.Context, msg OutboundMessage) error {
	bot, err := t.botOrErr()
	if err != nil {
		return err
	}

	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %w", ErrChatNotFound)
	}
	recipient := &tele.Chat{ID: chatID}

	opts := &tele.SendOptions{}
	if msg.ReplyTo != "" {
		if id, err := strconv.Atoi(msg.ReplyTo); err == nil {
			opts.ReplyTo = &tele.Message{ID: id, Chat: recipient}
		}
	}

	for _, chunk := range splitMessage(msg.Text, telegramMessageLimit) {
		if _, err := bot.Send(recipient, chunk, opts); err != nil {
			if strings.Contains(err.Error(), "chat not found") {
				return fmt.Errorf("telegram send: %w", ErrChatNotFound)
			}
			return fmt.Errorf("telegram send: %w", err)
		}
		opts = &tele.SendOptions{}
	}
	return nil
}

func (t *TelegramChannel) Delete(_ context.Context, chatID, messageID string) error {
	bot, err := t.botOrErr()
	if err != nil {
		return err
	}
	cid, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %w", err)
	}
	if err := bot.Delete(tele.StoredMessage{MessageID: messageID, ChatID: cid}); err != nil {
		return fmt.Errorf("telegram delete: %w", err)
	}
	return nil
}

func (t *TelegramChannel) React(context.Context, string, string, string) error {
	return ErrUnsupported
}

// Mention returns a plain-text reference; messages are sent without a parse mode.
func (t *TelegramChannel) Mention(userID string) string {
	return "@" + userID
}

func (t *TelegramChannel) OnMessage(handler func(InboundMessage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = handler
}

func (t *TelegramChannel) OnReaction(func(ReactionEvent)) {}

func (t *TelegramChannel) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func telegramInbound(m *tele.Message) InboundMessage {
	msg := InboundMessage{
		ChannelName: "telegram",
		MessageID:   strconv.Itoa(m.ID),
		Text:        m.Text,
		Timestamp:   m.Time(),
	}
	if m.Sender != nil {
		msg.SenderID = strconv.FormatInt(m.Sender.ID, 10)
		msg.SenderName = strings.TrimSpace(m.Sender.FirstName + " " + m.Sender.LastName)
		msg.IsBot = m.Sender.IsBot
	}
	if m.Chat != nil {
		msg.ChatID = strconv.FormatInt(m.Chat.ID, 10)
	}
	return msg
}
