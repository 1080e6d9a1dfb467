package channel

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v3"
)

func TestDiscordInbound(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	m := &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "m1",
		ChannelID: "c1",
		Content:   "!ai hi",
		Timestamp: ts,
		Author:    &discordgo.User{ID: "u1", Username: "alice", Bot: true},
		Attachments: []*discordgo.MessageAttachment{
			{URL: "https://cdn.discordapp.com/a.png", Filename: "a.png", ContentType: "image/png"},
			nil,
		},
	}}

	got := discordInbound(m)
	assert.Equal(t, "discord", got.ChannelName)
	assert.Equal(t, "m1", got.MessageID)
	assert.Equal(t, "u1", got.SenderID)
	assert.True(t, got.IsBot)
	assert.Equal(t, "c1", got.ChatID)
	assert.Equal(t, ts, got.Timestamp)
	assert.Equal(t, []string{"https://cdn.discordapp.com/a.png"}, got.ImageURLs())
}

func TestDiscordReaction(t *testing.T) {
	r := &discordgo.MessageReactionAdd{
		MessageReaction: &discordgo.MessageReaction{
			UserID:    "u2",
			MessageID: "m1",
			ChannelID: "c1",
			Emoji:     discordgo.Emoji{Name: "🔥"},
		},
		Member: &discordgo.Member{User: &discordgo.User{ID: "u2"}},
	}
	got := discordReaction(r)
	assert.Equal(t, ReactionEvent{ChannelName: "discord", UserID: "u2", ChatID: "c1", MessageID: "m1", Emoji: "🔥"}, got)
}

func TestTelegramInbound(t *testing.T) {
	m := &tele.Message{
		ID:       7,
		Text:     "！查詢等級",
		Unixtime: 1700000000,
		Sender:   &tele.User{ID: 55, FirstName: "Bo", IsBot: false},
		Chat:     &tele.Chat{ID: -100},
	}
	got := telegramInbound(m)
	assert.Equal(t, "7", got.MessageID)
	assert.Equal(t, "55", got.SenderID)
	assert.Equal(t, "Bo", got.SenderName)
	assert.Equal(t, "-100", got.ChatID)
	assert.Equal(t, int64(1700000000), got.Timestamp.Unix())
}
