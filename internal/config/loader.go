package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:default} patterns in a string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		submatch := envVarPattern.FindStringSubmatch(match)
		if len(submatch) < 2 {
			return match
		}
		if val, ok := os.LookupEnv(submatch[1]); ok {
			return val
		}
		if len(submatch) >= 3 {
			return submatch[2]
		}
		return ""
	})
}

// Loader reads the optional YAML config file, overlays the environment and
// notifies subscribers when the file changes on disk.
type Loader struct {
	mu       sync.RWMutex
	config   *Config
	filePath string
	watchers []func(*Config)
	logger   zerolog.Logger
}

// NewLoader creates a loader for the given YAML file. An empty path means
// configuration comes from defaults and the environment only.
func NewLoader(filePath string, logger zerolog.Logger) *Loader {
	return &Loader{
		filePath: filePath,
		logger:   logger.With().Str("component", "config").Logger(),
	}
}

// Load builds the config: defaults, then the YAML file if present, then the
// environment. The result is validated before it replaces the current one.
func (l *Loader) Load() (*Config, error) {
	cfg := Defaults()

	if l.filePath != "" {
		data, err := os.ReadFile(l.filePath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", l.filePath, err)
			}
		case errors.Is(err, os.ErrNotExist):
			l.logger.Debug().Str("file", l.filePath).Msg("config file not found, using defaults and environment")
		default:
			return nil, fmt.Errorf("read config file %s: %w", l.filePath, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.config = cfg
	l.mu.Unlock()
	return cfg, nil
}

// Get returns the currently loaded config (or defaults if not loaded yet).
func (l *Loader) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.config == nil {
		return Defaults()
	}
	return l.config
}

// FilePath returns the config file path.
func (l *Loader) FilePath() string {
	return l.filePath
}

// OnReload registers a callback that fires after the config file is reloaded.
func (l *Loader) OnReload(fn func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.watchers = append(l.watchers, fn)
}

// Watch reloads the config whenever the file is written or recreated, until
// ctx is cancelled. Invalid edits are logged and the previous config is kept.
func (l *Loader) Watch(ctx context.Context) error {
	if l.filePath == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	dir := filepath.Dir(l.filePath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config dir %s: %w", dir, err)
	}
	target := filepath.Clean(l.filePath)

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				l.logger.Info().Str("file", event.Name).Msg("config file changed, reloading")
				cfg, err := l.Load()
				if err != nil {
					l.logger.Error().Err(err).Msg("failed to reload config")
					continue
				}
				l.mu.RLock()
				watchers := make([]func(*Config), len(l.watchers))
				copy(watchers, l.watchers)
				l.mu.RUnlock()
				for _, fn := range watchers {
					fn(cfg)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.logger.Error().Err(err).Msg("fsnotify error")
			}
		}
	}()
	return nil
}

// applyEnv overlays the process environment on top of cfg.
func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	setString("TOKEN", &cfg.Discord.Token)
	setString("AUTHOR_ID", &cfg.Access.MasterID)
	setString("CHANNEL_ID", &cfg.Leveling.AnnounceChannelID)
	setString("OPENCLAW_GATEWAY_TOKEN", &cfg.Gateway.APIKey)
	setString("ZAI_API_KEY", &cfg.Direct.APIKey)
	setString("SYSTEM_PROMPT", &cfg.Chat.SystemPrompt)
	setString("STORE_DRIVER", &cfg.Store.Driver)
	setString("STORE_PATH", &cfg.Store.Path)
	setString("REDIS_ADDR", &cfg.Store.Redis.Addr)
	setString("REDIS_PASSWORD", &cfg.Store.Redis.Password)
	setString("LOG_LEVEL", &cfg.Logging.Level)
	setString("LOG_FORMAT", &cfg.Logging.Format)
	setString("VISION_SCRIPT", &cfg.Vision.Script)
	setString("VISION_MODEL", &cfg.Vision.Model)
	setString("VAULT_PASSPHRASE", &cfg.Vault.Passphrase)

	if v := os.Getenv("OPENCLAW_GATEWAY_URL"); v != "" {
		cfg.Gateway.BaseURL = strings.TrimRight(v, "/") + "/v1"
	}
	if v := os.Getenv("ALLOWED_IDS"); v != "" {
		cfg.Access.AllowedIDs = splitAndTrim(v)
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("CONSOLE"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CONSOLE %q: %w", v, err)
		}
		cfg.Console = enabled
	}
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		if cfg.Telegram == nil {
			cfg.Telegram = &TelegramConfig{}
		}
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_ALLOWED_IDS"); v != "" && cfg.Telegram != nil {
		ids := make([]int64, 0)
		for _, part := range splitAndTrim(v) {
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid TELEGRAM_ALLOWED_IDS entry %q: %w", part, err)
			}
			ids = append(ids, id)
		}
		cfg.Telegram.AllowedIDs = ids
	}
	return nil
}

// Validate checks that the config can run a bot.
func (c *Config) Validate() error {
	hasTelegram := c.Telegram != nil && c.Telegram.Token != ""
	if c.Discord.Token == "" && !hasTelegram && !c.Console {
		return errors.New("no transport configured: set TOKEN, TELEGRAM_TOKEN or CONSOLE=true")
	}
	if err := validateBaseURL(c.Gateway.BaseURL); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	if err := validateBaseURL(c.Direct.BaseURL); err != nil {
		return fmt.Errorf("direct: %w", err)
	}
	if c.Moderation.Enabled {
		if _, err := regexp.Compile(c.Moderation.Pattern); err != nil {
			return fmt.Errorf("moderation pattern: %w", err)
		}
	}
	switch c.Store.Driver {
	case "file", "sqlite", "redis":
	default:
		return fmt.Errorf("unknown store driver: %s", c.Store.Driver)
	}
	if c.Leveling.LevelUpChance < 0 || c.Leveling.LevelUpChance > 1 {
		return fmt.Errorf("level_up_chance must be within [0,1], got %v", c.Leveling.LevelUpChance)
	}
	if c.Chat.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.Chat.MaxTokens)
	}
	return nil
}

// validateBaseURL checks that a base URL is valid and uses http/https scheme.
func validateBaseURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("base URL must use http or https scheme, got: %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("base URL must have a host")
	}
	return nil
}

func splitAndTrim(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
