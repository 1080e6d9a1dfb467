package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"guildbot/internal/bot"
	"guildbot/internal/channel"
	"guildbot/internal/config"
	"guildbot/internal/eventbus"
	"guildbot/internal/gateway"
	"guildbot/internal/level"
	"guildbot/internal/llm"
	"guildbot/internal/security"
	"guildbot/internal/server"
	"guildbot/internal/store"
	"guildbot/internal/telemetry"
	"guildbot/internal/vision"
)

const (
	secretDiscordToken  = "discord_token"
	secretGatewayToken  = "gateway_token"
	secretDirectKey     = "zai_api_key"
	secretTelegramToken = "telegram_token"
)

// App holds the running bot and everything it owns.
type App struct {
	cfg       *config.Config
	cfgLoader *config.Loader
	logger    zerolog.Logger
	bus       *eventbus.Bus
	subs      []eventbus.Subscription
	registry  *prometheus.Registry
	keyStore  *security.KeyStore
	store     store.Store
	tracker   *level.Tracker
	chanMgr   *channel.Manager
	console   *channel.ConsoleChannel
	bot       *bot.Bot
	server    *server.Server
}

// NewApp creates an app for an already loaded config.
func NewApp(loader *config.Loader, cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		cfg:       cfg,
		cfgLoader: loader,
		logger:    logger,
		bus:       eventbus.New(logger),
		registry:  prometheus.NewRegistry(),
	}
}

// Run starts every component and blocks until ctx is cancelled or the
// console input ends.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.startup(ctx); err != nil {
		a.shutdown(context.Background())
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- a.server.Run(ctx) }()

	var consoleDone <-chan struct{}
	if a.console != nil {
		consoleDone = a.console.Done()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info().Msg("shutting down")
	case <-consoleDone:
		a.logger.Info().Msg("console closed, shutting down")
	case err := <-errCh:
		runErr = err
		errCh = nil
	}
	cancel()
	if errCh != nil {
		if err := <-errCh; err != nil {
			a.logger.Error().Err(err).Msg("server shutdown failed")
		}
	}

	a.shutdown(context.Background())
	return runErr
}

func (a *App) startup(ctx context.Context) error {
	ks, err := security.NewKeyStore(a.cfg.Vault.Dir, a.cfg.Vault.Passphrase)
	if err != nil {
		return fmt.Errorf("key store: %w", err)
	}
	a.keyStore = ks
	if err := a.resolveSecrets(); err != nil {
		return err
	}

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.subs = telemetry.NewMetrics(a.registry).Attach(a.bus)
	a.subs = append(a.subs, a.bus.Subscribe(eventbus.TopicError, func(e eventbus.Event) {
		if p, ok := e.Payload.(eventbus.ErrorPayload); ok {
			a.logger.Debug().Str("source", p.Source).Err(p.Err).Msg("error event")
		}
	}))

	st, err := store.Open(ctx, a.cfg.Store)
	if err != nil {
		return fmt.Errorf("open %s store: %w", a.cfg.Store.Driver, err)
	}
	a.store = st

	a.tracker = level.NewTracker(st, level.Config{
		Key:              a.cfg.Leveling.CacheKey,
		LevelUpChance:    a.cfg.Leveling.LevelUpChance,
		MasterBonusBase:  a.cfg.Leveling.MasterBonusBase,
		MasterBonusRange: a.cfg.Leveling.MasterBonusRange,
		Phrases:          a.cfg.Leveling.Phrases,
		FlushDelay:       a.cfg.Leveling.FlushDelay,
	}, a.logger)
	if err := a.tracker.Load(ctx); err != nil {
		return fmt.Errorf("load levels: %w", err)
	}

	gw, err := a.initGateway()
	if err != nil {
		return err
	}

	var describer vision.Describer
	if a.cfg.Vision.Enabled {
		describer = vision.NewScriptDescriber(vision.ScriptConfig{
			Interpreter:    a.cfg.Vision.Interpreter,
			Script:         a.cfg.Vision.Script,
			Model:          a.cfg.Vision.Model,
			Timeout:        a.cfg.Vision.Timeout,
			MaxOutputChars: a.cfg.Vision.MaxOutputChars,
		}, a.logger)
	}

	a.chanMgr = channel.NewManager(a.logger)
	a.initChannels()

	a.bot, err = bot.New(a.cfg, bot.Deps{
		Gateway:  gw,
		Tracker:  a.tracker,
		Vision:   describer,
		Auth:     security.NewAuthorizer(a.cfg.Access.MasterID, a.cfg.Access.AllowedIDs),
		Events:   a.bus.Async(),
		Channels: a.chanMgr,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("init bot: %w", err)
	}
	a.bot.Attach(ctx)

	a.cfgLoader.OnReload(func(cfg *config.Config) {
		if err := a.bot.ApplyConfig(cfg); err != nil {
			a.logger.Error().Err(err).Msg("failed to apply reloaded config")
			return
		}
		a.logger.Info().Msg("config reloaded")
	})
	if err := a.cfgLoader.Watch(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("config hot reload disabled")
	}

	if err := a.chanMgr.StartAll(ctx); err != nil {
		return err
	}
	a.publishStatus()

	a.server = server.New(a.cfg.Server, a.chanMgr, a.registry, a.logger)
	return nil
}

func (a *App) shutdown(ctx context.Context) {
	if a.chanMgr != nil {
		a.chanMgr.StopAll(ctx)
		a.publishStatus()
	}
	if a.bot != nil {
		a.bot.Wait()
	}
	a.bus.Wait()
	for _, sub := range a.subs {
		a.bus.Unsubscribe(sub)
	}
	a.subs = nil
	if a.tracker != nil {
		if err := a.tracker.Close(ctx); err != nil {
			a.logger.Error().Err(err).Msg("failed to flush levels")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error().Err(err).Msg("failed to close store")
		}
	}
}

func (a *App) initGateway() (*gateway.Gateway, error) {
	primary, err := llm.NewProvider(a.cfg.Gateway)
	if err != nil {
		return nil, fmt.Errorf("gateway provider: %w", err)
	}
	secondary, err := llm.NewProvider(a.cfg.Direct)
	if err != nil {
		return nil, fmt.Errorf("direct provider: %w", err)
	}
	if a.cfg.Access.MasterID == "" {
		a.logger.Warn().Msg("AUTHOR_ID not set, every caller uses the direct provider")
	}
	if a.cfg.Direct.APIKey == "" {
		a.logger.Warn().Str("provider", secondary.Name()).Msg("API key not configured")
	}

	return gateway.New(
		gateway.PrimaryRoute(primary, a.cfg.Gateway.Model, a.cfg.Chat.ResetDirective),
		gateway.SecondaryRoute(secondary, a.cfg.Direct.Model),
		gateway.Options{
			PrivilegedID: a.cfg.Access.MasterID,
			MaxTokens:    a.cfg.Chat.MaxTokens,
			Events:       a.bus.Async(),
		},
		a.logger,
	), nil
}

func (a *App) initChannels() {
	if a.cfg.Discord.Token != "" {
		a.chanMgr.Register(channel.NewDiscordChannel(channel.DiscordConfig{
			Token: a.cfg.Discord.Token,
		}, a.logger))
	}
	if a.cfg.Telegram != nil && a.cfg.Telegram.Token != "" {
		a.chanMgr.Register(channel.NewTelegramChannel(channel.TelegramConfig{
			Token:      a.cfg.Telegram.Token,
			AllowedIDs: a.cfg.Telegram.AllowedIDs,
		}, a.logger))
	}
	if a.cfg.Console {
		sender := a.cfg.Access.MasterID
		if sender == "" {
			sender = "console"
		}
		a.console = channel.NewConsoleChannel(os.Stdin, os.Stdout, sender)
		a.chanMgr.Register(a.console)
	}
}

func (a *App) publishStatus() {
	for name, running := range a.chanMgr.List() {
		a.bus.Publish(eventbus.TopicStatusChange, eventbus.StatusPayload{Component: name, Running: running})
	}
}

type secretRef struct {
	name  string
	value *string
}

// resolveSecrets replaces "[keyring]" placeholders with stored secrets.
func (a *App) resolveSecrets() error {
	targets := []secretRef{
		{secretDiscordToken, &a.cfg.Discord.Token},
		{secretGatewayToken, &a.cfg.Gateway.APIKey},
		{secretDirectKey, &a.cfg.Direct.APIKey},
	}
	if a.cfg.Telegram != nil {
		targets = append(targets, secretRef{secretTelegramToken, &a.cfg.Telegram.Token})
	}

	var errs []error
	for _, t := range targets {
		v, err := a.keyStore.Resolve(t.name, *t.value)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if v != *t.value {
			a.logger.Debug().Str("secret", t.name).Str("value", security.MaskKey(v)).Msg("secret loaded from key store")
		}
		*t.value = v
	}
	return errors.Join(errs...)
}
