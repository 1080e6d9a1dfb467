package config

import "time"

const (
	DefaultGatewayURL = "http://127.0.0.1:18789"
	DefaultDirectURL  = "https://api.z.ai/api/coding/paas/v4"
)

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:             3000,
			ReadTimeout:      10 * time.Second,
			WriteTimeout:     10 * time.Second,
			GracefulShutdown: 10 * time.Second,
		},
		Gateway: ProviderConfig{
			Name:    "OpenClaw",
			BaseURL: DefaultGatewayURL + "/v1",
			Model:   "openclaw:main",
			Timeout: 30 * time.Second,
		},
		Direct: ProviderConfig{
			Name:    "Z.ai",
			BaseURL: DefaultDirectURL,
			Model:   "glm-4.7",
			Timeout: 30 * time.Second,
		},
		Chat: ChatConfig{
			SystemPrompt:   "You are a friendly assistant living in a Discord community. Answer in Traditional Chinese unless asked otherwise.",
			MaxTokens:      2048,
			ResetDirective: "/new",
			AckEmoji:       "👀",
		},
		Moderation: ModerationConfig{
			Enabled: true,
			Pattern: `.*怎.*麼.*會`,
			Warning: "你違反了規範！",
		},
		Leveling: LevelingConfig{
			LevelUpChance:    0.1,
			MasterBonusBase:  10,
			MasterBonusRange: 100,
			Phrases:          []string{"一直講幹話", "一直吃批薩", "無緣無故地", "怎麼會"},
			CacheKey:         "chat",
			FlushDelay:       5 * time.Second,
		},
		Store: StoreConfig{
			Driver: "file",
			Path:   "data",
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "guildbot:",
			},
		},
		Vision: VisionConfig{
			Enabled:        false,
			Interpreter:    "python3",
			Script:         "scripts/vision_check.py",
			Model:          "llava",
			Timeout:        120 * time.Second,
			MaxOutputChars: 1800,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Vault: VaultConfig{
			Dir: ".guildbot",
		},
	}
}
