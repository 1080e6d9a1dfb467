// Package level tracks per-user engagement counts and levels.
package level

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/rs/zerolog"

	"guildbot/internal/logging"
	"guildbot/internal/store"
)

// Entry is one user's record. The JSON shape matches the on-disk cache.
type Entry struct {
	Count int `json:"count"`
	Level int `json:"level"`
}

// Outcome is the result of recording one engagement.
type Outcome struct {
	Entry
	LevelUp bool
	// Phrase is a random flavour phrase for the announcement, set on level-up.
	Phrase string
}

// Roller is the random source. *rand.Rand satisfies it.
type Roller interface {
	Float64() float64
	IntN(n int) int
}

type globalRoller struct{}

func (globalRoller) Float64() float64 { return rand.Float64() }
func (globalRoller) IntN(n int) int   { return rand.IntN(n) }

// Config controls leveling odds and persistence.
type Config struct {
	Key              string
	LevelUpChance    float64
	MasterBonusBase  int
	MasterBonusRange int
	Phrases          []string
	FlushDelay       time.Duration
}

// Tracker holds all entries in memory and persists the whole snapshot after
// a quiet period of FlushDelay following the last change.
type Tracker struct {
	mu       sync.Mutex
	flushMu  sync.Mutex
	entries  map[string]*Entry
	store    store.Store
	cfg      Config
	roller   Roller
	schedule func(func())
	dirty    bool
	closed   bool
	logger   zerolog.Logger
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithRoller replaces the random source.
func WithRoller(r Roller) Option {
	return func(t *Tracker) { t.roller = r }
}

// NewTracker creates an empty tracker. Call Load to restore saved entries.
func NewTracker(s store.Store, cfg Config, logger zerolog.Logger, opts ...Option) *Tracker {
	if cfg.Key == "" {
		cfg.Key = "chat"
	}
	if cfg.FlushDelay <= 0 {
		cfg.FlushDelay = 5 * time.Second
	}
	t := &Tracker{
		entries:  make(map[string]*Entry),
		store:    s,
		cfg:      cfg,
		roller:   globalRoller{},
		schedule: debounce.New(cfg.FlushDelay),
		logger:   logging.Component(logger, "level"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Load replaces in-memory entries with the stored snapshot. A missing or
// unreadable snapshot starts empty.
func (t *Tracker) Load(ctx context.Context) error {
	data, err := t.store.Get(ctx, t.cfg.Key)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", t.cfg.Key, err)
	}

	entries := make(map[string]*Entry)
	if err := json.Unmarshal(data, &entries); err != nil {
		t.logger.Error().Err(err).Str("key", t.cfg.Key).Msg("corrupt level cache, starting empty")
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for id, e := range entries {
		if e == nil {
			delete(entries, id)
		}
	}
	t.entries = entries
	t.logger.Info().Int("users", len(entries)).Msg("level cache loaded")
	return nil
}

// Level returns the user's current level and whether a record exists.
func (t *Tracker) Level(userID string) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[userID]
	if !ok {
		return 0, false
	}
	return e.Level, true
}

// Record counts one engagement for userID. With probability LevelUpChance
// the level rises by one, plus a bonus for the privileged user.
func (t *Tracker) Record(userID string, privileged bool) Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[userID]
	if !ok {
		e = &Entry{}
		t.entries[userID] = e
	}
	e.Count++

	out := Outcome{}
	if t.roller.Float64() < t.cfg.LevelUpChance {
		e.Level++
		if privileged {
			e.Level += t.cfg.MasterBonusBase
			if t.cfg.MasterBonusRange > 0 {
				e.Level += t.roller.IntN(t.cfg.MasterBonusRange)
			}
		}
		out.LevelUp = true
		if len(t.cfg.Phrases) > 0 {
			out.Phrase = t.cfg.Phrases[t.roller.IntN(len(t.cfg.Phrases))]
		}
	}
	out.Entry = *e

	t.markDirty()
	return out
}

// Snapshot returns a copy of all entries.
func (t *Tracker) Snapshot() map[string]Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Entry, len(t.entries))
	for id, e := range t.entries {
		out[id] = *e
	}
	return out
}

// markDirty must be called with t.mu held.
func (t *Tracker) markDirty() {
	t.dirty = true
	if t.closed {
		return
	}
	t.schedule(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := t.flush(ctx, true); err != nil {
			t.logger.Error().Err(err).Msg("debounced flush failed")
		}
	})
}

// Flush writes the snapshot now if anything changed since the last write.
func (t *Tracker) Flush(ctx context.Context) error {
	return t.flush(ctx, false)
}

// flush holds flushMu across encode and write so snapshots land in order.
// Scheduled flushes become no-ops once the tracker is closed.
func (t *Tracker) flush(ctx context.Context, scheduled bool) error {
	t.flushMu.Lock()
	defer t.flushMu.Unlock()

	t.mu.Lock()
	if !t.dirty || (scheduled && t.closed) {
		t.mu.Unlock()
		return nil
	}
	data, err := json.Marshal(t.entries)
	t.dirty = false
	t.mu.Unlock()

	if err != nil {
		return fmt.Errorf("encode %s: %w", t.cfg.Key, err)
	}
	if err := t.store.Set(ctx, t.cfg.Key, data); err != nil {
		t.mu.Lock()
		t.dirty = true
		t.mu.Unlock()
		return fmt.Errorf("save %s: %w", t.cfg.Key, err)
	}
	t.logger.Debug().Int("bytes", len(data)).Msg("level cache saved")
	return nil
}

// Close stops scheduling writes and flushes pending changes. A debounced
// write that fires afterwards does not touch the store.
func (t *Tracker) Close(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return t.Flush(ctx)
}
