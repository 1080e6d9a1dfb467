package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guildbot/internal/config"
)

func TestNewJSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(New(config.LoggingConfig{Level: "debug", Format: "json"}, &buf), "gateway")

	logger.Debug().Str("provider", "OpenClaw").Msg("dispatch")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "gateway", line["component"])
	assert.Equal(t, "OpenClaw", line["provider"])
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, "dispatch", line["message"])
}

func TestNewFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "chatty", Format: "json"}, &buf)

	logger.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())

	logger.Info().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}
