// Package bot wires chat transports to moderation, leveling and the AI gateway.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"guildbot/internal/channel"
	"guildbot/internal/command"
	"guildbot/internal/config"
	"guildbot/internal/eventbus"
	"guildbot/internal/gateway"
	"guildbot/internal/level"
	"guildbot/internal/logging"
	"guildbot/internal/moderation"
	"guildbot/internal/security"
	"guildbot/internal/vision"
)

// Chatter is the AI gateway as seen by the bot.
type Chatter interface {
	Chat(ctx context.Context, req gateway.ChatRequest) (string, error)
}

// Publisher receives bot events.
type Publisher interface {
	Publish(topic eventbus.Topic, payload any)
}

// Deps are the collaborators a Bot needs. Vision may be nil.
type Deps struct {
	Gateway  Chatter
	Tracker  *level.Tracker
	Vision   vision.Describer
	Auth     *security.Authorizer
	Events   Publisher
	Channels *channel.Manager
}

// settings is the hot-reloadable part of the configuration.
type settings struct {
	systemPrompt    string
	ackEmoji        string
	announceChannel string
	rule            *moderation.Rule
}

// Bot handles inbound messages and reactions from every channel.
type Bot struct {
	mu       sync.RWMutex
	settings settings
	deps     Deps
	commands *command.Registry
	wg       sync.WaitGroup
	logger   zerolog.Logger
}

// New creates a bot and registers its chat commands.
func New(cfg *config.Config, deps Deps, logger zerolog.Logger) (*Bot, error) {
	if deps.Gateway == nil || deps.Tracker == nil || deps.Auth == nil {
		return nil, errors.New("bot: gateway, tracker and authorizer are required")
	}
	b := &Bot{
		deps:     deps,
		commands: command.NewRegistry(),
		logger:   logging.Component(logger, "bot"),
	}
	if err := b.ApplyConfig(cfg); err != nil {
		return nil, err
	}
	if err := b.registerCommands(); err != nil {
		return nil, err
	}
	return b, nil
}

// ApplyConfig swaps in reloadable settings: moderation, allow-list, system
// prompt, ack emoji and announce channel. The privileged id is fixed at
// startup because the gateway routes on it.
func (b *Bot) ApplyConfig(cfg *config.Config) error {
	var rule *moderation.Rule
	if cfg.Moderation.Enabled {
		r, err := moderation.NewRule(cfg.Moderation.Pattern, cfg.Moderation.Warning, b.deps.Auth)
		if err != nil {
			return err
		}
		rule = r
	}

	master := b.deps.Auth.MasterID()
	if master != "" && cfg.Access.MasterID != master {
		b.logger.Warn().Msg("privileged id changed; restart to apply")
	}
	b.deps.Auth.Update(master, cfg.Access.AllowedIDs)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.settings = settings{
		systemPrompt:    cfg.Chat.SystemPrompt,
		ackEmoji:        cfg.Chat.AckEmoji,
		announceChannel: cfg.Leveling.AnnounceChannelID,
		rule:            rule,
	}
	return nil
}

func (b *Bot) current() settings {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.settings
}

// Attach routes events from every registered channel to the bot. Each event
// is handled on its own goroutine.
func (b *Bot) Attach(ctx context.Context) {
	for _, ch := range b.deps.Channels.All() {
		ch.OnMessage(func(msg channel.InboundMessage) {
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.handleMessage(ctx, ch, msg)
			}()
		})
		ch.OnReaction(func(ev channel.ReactionEvent) {
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.handleReaction(ctx, ch, ev)
			}()
		})
	}
	b.logger.Info().Strs("commands", b.commands.Names()).Msg("listening for messages")
}

// Wait blocks until in-flight handlers return.
func (b *Bot) Wait() {
	b.wg.Wait()
}

func (b *Bot) handleMessage(ctx context.Context, ch channel.Channel, msg channel.InboundMessage) {
	if msg.IsBot {
		return
	}
	b.publish(eventbus.TopicMessage, eventbus.MessagePayload{
		Channel:  msg.ChannelName,
		SenderID: msg.SenderID,
		ChatID:   msg.ChatID,
	})

	s := b.current()
	if s.rule != nil && s.rule.Violates(msg.SenderID, msg.Text) {
		b.moderate(ctx, ch, msg, s.rule.Warning())
		return
	}

	if cmd, args, ok := b.commands.Match(msg.Text); ok {
		b.runCommand(ctx, ch, msg, cmd, args, s)
		return
	}

	b.engage(ctx, ch, msg.ChatID, msg.SenderID)
}

func (b *Bot) handleReaction(ctx context.Context, ch channel.Channel, ev channel.ReactionEvent) {
	if ev.IsBot || ev.UserID == "" {
		return
	}
	b.publish(eventbus.TopicReaction, eventbus.ReactionPayload{
		Channel: ev.ChannelName,
		UserID:  ev.UserID,
		Emoji:   ev.Emoji,
	})
	b.engage(ctx, ch, ev.ChatID, ev.UserID)
}

// moderate warns the sender and removes the message.
func (b *Bot) moderate(ctx context.Context, ch channel.Channel, msg channel.InboundMessage, warning string) {
	log := b.logger.With().Str("sender", msg.SenderID).Str("message", msg.MessageID).Logger()

	if err := ch.Send(ctx, channel.OutboundMessage{ChatID: msg.ChatID, Text: warning, ReplyTo: msg.MessageID}); err != nil {
		log.Error().Err(err).Msg("failed to send moderation warning")
	}

	deleted := true
	if err := ch.Delete(ctx, msg.ChatID, msg.MessageID); err != nil {
		deleted = false
		log.Error().Err(err).Msg("failed to delete violating message")
		b.publishError("moderation", err)
	}

	log.Info().Bool("deleted", deleted).Msg("message violated content rule")
	b.publish(eventbus.TopicModeration, eventbus.ModerationPayload{
		Channel:   msg.ChannelName,
		SenderID:  msg.SenderID,
		MessageID: msg.MessageID,
		Deleted:   deleted,
	})
}

func (b *Bot) runCommand(ctx context.Context, ch channel.Channel, msg channel.InboundMessage, cmd command.Command, args []string, s settings) {
	log := b.logger.With().Str("command", cmd.Name).Str("sender", msg.SenderID).Logger()

	if cmd.Ack && s.ackEmoji != "" {
		if err := ch.React(ctx, msg.ChatID, msg.MessageID, s.ackEmoji); err != nil && !errors.Is(err, channel.ErrUnsupported) {
			log.Warn().Err(err).Msg("failed to acknowledge command")
		}
	}

	res, err := cmd.Handler(ctx, command.Request{
		ChannelName: msg.ChannelName,
		ChatID:      msg.ChatID,
		MessageID:   msg.MessageID,
		SenderID:    msg.SenderID,
		Mention:     ch.Mention(msg.SenderID),
		Text:        msg.Text,
		Args:        args,
		Images:      msg.ImageURLs(),
	})
	b.publish(eventbus.TopicCommand, eventbus.CommandPayload{Name: cmd.Name, SenderID: msg.SenderID, Err: err})

	if err != nil {
		log.Error().Err(err).Msg("command failed")
		b.publishError("command:"+cmd.Name, err)
		return
	}
	if res == nil || res.Reply == "" {
		return
	}
	if err := ch.Send(ctx, channel.OutboundMessage{ChatID: msg.ChatID, Text: res.Reply, ReplyTo: msg.MessageID}); err != nil {
		log.Error().Err(err).Msg("failed to send command reply")
	}
}

// engage counts one interaction and announces a level-up.
func (b *Bot) engage(ctx context.Context, ch channel.Channel, originChat, userID string) {
	out := b.deps.Tracker.Record(userID, b.deps.Auth.IsMaster(userID))
	if !out.LevelUp {
		return
	}

	b.publish(eventbus.TopicLevelUp, eventbus.LevelUpPayload{UserID: userID, Level: out.Level})

	target := b.current().announceChannel
	if target == "" {
		target = originChat
	}
	text := fmt.Sprintf("%s %s 升到了 %d 級了！", ch.Mention(userID), out.Phrase, out.Level)
	if err := ch.Send(ctx, channel.OutboundMessage{ChatID: target, Text: text}); err != nil {
		b.logger.Error().Err(err).Str("channel", target).Str("user", userID).Msg("level-up announcement failed")
		b.publishError("level", err)
	}
}

func (b *Bot) publish(topic eventbus.Topic, payload any) {
	if b.deps.Events != nil {
		b.deps.Events.Publish(topic, payload)
	}
}

func (b *Bot) publishError(source string, err error) {
	b.publish(eventbus.TopicError, eventbus.ErrorPayload{Source: source, Err: err})
}
