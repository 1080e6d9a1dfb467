package channel

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitMessageShort(t *testing.T) {
	assert.Equal(t, []string{"hello"}, splitMessage("hello", 10))
	assert.Equal(t, []string{""}, splitMessage("", 10))
}

func TestSplitMessageRuneSafe(t *testing.T) {
	text := strings.Repeat("怎麼會", 1000)
	chunks := splitMessage(text, discordMessageLimit)
	require.Len(t, chunks, 2)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c))
		assert.LessOrEqual(t, utf8.RuneCountInString(c), discordMessageLimit)
	}
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestSplitMessagePrefersNewline(t *testing.T) {
	text := strings.Repeat("a", 8) + "\n" + strings.Repeat("b", 8)
	chunks := splitMessage(text, 10)
	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("a", 8)+"\n", chunks[0])
	assert.Equal(t, strings.Repeat("b", 8), chunks[1])
}

func TestAttachmentIsImage(t *testing.T) {
	assert.True(t, Attachment{ContentType: "image/png"}.IsImage())
	assert.True(t, Attachment{Filename: "cat.JPG"}.IsImage())
	assert.False(t, Attachment{Filename: "notes.txt"}.IsImage())
	assert.False(t, Attachment{ContentType: "video/mp4", Filename: "x.png"}.IsImage())

	msg := InboundMessage{Attachments: []Attachment{
		{URL: "https://cdn/1.png", ContentType: "image/png"},
		{URL: "https://cdn/2.txt", ContentType: "text/plain"},
		{URL: "https://cdn/3.gif", Filename: "3.gif"},
	}}
	assert.Equal(t, []string{"https://cdn/1.png", "https://cdn/3.gif"}, msg.ImageURLs())
}
