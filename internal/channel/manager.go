package channel

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"guildbot/internal/logging"
)

// Manager manages the lifecycle of all channels.
type Manager struct {
	mu       sync.RWMutex
	channels map[string]Channel
	logger   zerolog.Logger
}

// NewManager creates a new channel manager.
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{
		channels: make(map[string]Channel),
		logger:   logging.Component(logger, "channel"),
	}
}

// Register adds a channel to the manager.
func (m *Manager) Register(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.Name()] = ch
}

// StartAll starts all registered channels. Channels started before a
// failure are stopped again.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	started := make([]Channel, 0, len(m.channels))
	for name, ch := range m.channels {
		if err := ch.Start(ctx); err != nil {
			m.logger.Error().Err(err).Str("channel", name).Msg("failed to start")
			for _, s := range started {
				_ = s.Stop(ctx)
			}
			return fmt.Errorf("start %s: %w", name, err)
		}
		started = append(started, ch)
		m.logger.Info().Str("channel", name).Msg("started")
	}
	return nil
}

// StopAll stops all running channels.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, ch := range m.channels {
		if !ch.IsRunning() {
			continue
		}
		if err := ch.Stop(ctx); err != nil {
			m.logger.Error().Err(err).Str("channel", name).Msg("failed to stop")
		} else {
			m.logger.Info().Str("channel", name).Msg("stopped")
		}
	}
}

// All returns every registered channel.
func (m *Manager) All() []Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		result = append(result, ch)
	}
	return result
}

// List returns all channel names and their running status.
func (m *Manager) List() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]bool, len(m.channels))
	for name, ch := range m.channels {
		result[name] = ch.IsRunning()
	}
	return result
}
