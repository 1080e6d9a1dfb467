package config

import "time"

// Config is the top-level application configuration.
type Config struct {
	Discord    DiscordConfig    `yaml:"discord"`
	Telegram   *TelegramConfig  `yaml:"telegram,omitempty"`
	Console    bool             `yaml:"console"`
	Server     ServerConfig     `yaml:"server"`
	Gateway    ProviderConfig   `yaml:"gateway"`
	Direct     ProviderConfig   `yaml:"direct"`
	Access     AccessConfig     `yaml:"access"`
	Chat       ChatConfig       `yaml:"chat"`
	Moderation ModerationConfig `yaml:"moderation"`
	Leveling   LevelingConfig   `yaml:"leveling"`
	Store      StoreConfig      `yaml:"store"`
	Vision     VisionConfig     `yaml:"vision"`
	Logging    LoggingConfig    `yaml:"logging"`
	Vault      VaultConfig      `yaml:"vault"`
}

type DiscordConfig struct {
	Token string `yaml:"token"`
}

type TelegramConfig struct {
	Token      string  `yaml:"token"`
	AllowedIDs []int64 `yaml:"allowed_ids,omitempty"`
}

type ServerConfig struct {
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// ProviderConfig describes one OpenAI-compatible chat-completions backend.
type ProviderConfig struct {
	Name    string        `yaml:"name"`
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key,omitempty"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type AccessConfig struct {
	// MasterID is the single privileged caller identity.
	MasterID   string   `yaml:"master_id"`
	AllowedIDs []string `yaml:"allowed_ids,omitempty"`
}

type ChatConfig struct {
	SystemPrompt   string `yaml:"system_prompt"`
	MaxTokens      int    `yaml:"max_tokens"`
	ResetDirective string `yaml:"reset_directive"`
	AckEmoji       string `yaml:"ack_emoji"`
}

type ModerationConfig struct {
	Enabled bool   `yaml:"enabled"`
	Pattern string `yaml:"pattern"`
	Warning string `yaml:"warning"`
}

type LevelingConfig struct {
	AnnounceChannelID string        `yaml:"announce_channel_id"`
	LevelUpChance     float64       `yaml:"level_up_chance"`
	MasterBonusBase   int           `yaml:"master_bonus_base"`
	MasterBonusRange  int           `yaml:"master_bonus_range"`
	Phrases           []string      `yaml:"phrases"`
	CacheKey          string        `yaml:"cache_key"`
	FlushDelay        time.Duration `yaml:"flush_delay"`
}

type StoreConfig struct {
	Driver string      `yaml:"driver"` // "file", "sqlite" or "redis"
	Path   string      `yaml:"path"`
	Redis  RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type VisionConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Interpreter    string        `yaml:"interpreter"`
	Script         string        `yaml:"script"`
	Model          string        `yaml:"model"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxOutputChars int           `yaml:"max_output_chars"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

type VaultConfig struct {
	Dir        string `yaml:"dir"`
	Passphrase string `yaml:"passphrase,omitempty"`
}
