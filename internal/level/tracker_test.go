package level

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guildbot/internal/store"
)

type memStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	writes int
	err    error
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return d, nil
}

func (m *memStore) Set(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.writes++
	m.data[key] = data
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// scriptRoller returns queued values; Float64 defaults to 0.99 (no level-up).
type scriptRoller struct {
	floats []float64
	ints   []int
}

func (s *scriptRoller) Float64() float64 {
	if len(s.floats) == 0 {
		return 0.99
	}
	f := s.floats[0]
	s.floats = s.floats[1:]
	return f
}

func (s *scriptRoller) IntN(n int) int {
	if len(s.ints) == 0 {
		return 0
	}
	i := s.ints[0]
	s.ints = s.ints[1:]
	return i % n
}

func testConfig() Config {
	return Config{
		Key:              "chat",
		LevelUpChance:    0.1,
		MasterBonusBase:  10,
		MasterBonusRange: 100,
		Phrases:          []string{"一直講幹話", "一直吃批薩", "無緣無故地", "怎麼會"},
		FlushDelay:       time.Hour,
	}
}

func TestRecordCountsWithoutLevelUp(t *testing.T) {
	tr := NewTracker(newMemStore(), testConfig(), zerolog.Nop(), WithRoller(&scriptRoller{}))

	out := tr.Record("u1", false)
	assert.False(t, out.LevelUp)
	assert.Equal(t, Entry{Count: 1, Level: 0}, out.Entry)

	out = tr.Record("u1", false)
	assert.Equal(t, 2, out.Count)

	lvl, ok := tr.Level("u1")
	assert.True(t, ok)
	assert.Equal(t, 0, lvl)

	_, ok = tr.Level("nobody")
	assert.False(t, ok)
}

func TestRecordLevelUp(t *testing.T) {
	roller := &scriptRoller{floats: []float64{0.05}, ints: []int{2}}
	tr := NewTracker(newMemStore(), testConfig(), zerolog.Nop(), WithRoller(roller))

	out := tr.Record("u1", false)
	assert.True(t, out.LevelUp)
	assert.Equal(t, 1, out.Level)
	assert.Equal(t, "無緣無故地", out.Phrase)
}

func TestRecordPrivilegedBonus(t *testing.T) {
	roller := &scriptRoller{floats: []float64{0.0}, ints: []int{42, 0}}
	tr := NewTracker(newMemStore(), testConfig(), zerolog.Nop(), WithRoller(roller))

	out := tr.Record("master", true)
	assert.True(t, out.LevelUp)
	assert.Equal(t, 1+10+42, out.Level)
	assert.Equal(t, "一直講幹話", out.Phrase)
}

func TestChanceBoundaryIsExclusive(t *testing.T) {
	roller := &scriptRoller{floats: []float64{0.1}}
	tr := NewTracker(newMemStore(), testConfig(), zerolog.Nop(), WithRoller(roller))
	assert.False(t, tr.Record("u1", false).LevelUp)
}

func TestLoadRestoresSnapshot(t *testing.T) {
	s := newMemStore()
	s.data["chat"] = []byte(`{"u1":{"count":7,"level":3},"u2":null}`)

	tr := NewTracker(s, testConfig(), zerolog.Nop())
	require.NoError(t, tr.Load(context.Background()))

	lvl, ok := tr.Level("u1")
	require.True(t, ok)
	assert.Equal(t, 3, lvl)
	assert.Equal(t, map[string]Entry{"u1": {Count: 7, Level: 3}}, tr.Snapshot())
}

func TestLoadToleratesMissingAndCorrupt(t *testing.T) {
	tr := NewTracker(newMemStore(), testConfig(), zerolog.Nop())
	require.NoError(t, tr.Load(context.Background()))
	assert.Empty(t, tr.Snapshot())

	s := newMemStore()
	s.data["chat"] = []byte(`not json`)
	tr = NewTracker(s, testConfig(), zerolog.Nop())
	require.NoError(t, tr.Load(context.Background()))
	assert.Empty(t, tr.Snapshot())
}

func TestFlushWritesOnlyWhenDirty(t *testing.T) {
	s := newMemStore()
	tr := NewTracker(s, testConfig(), zerolog.Nop(), WithRoller(&scriptRoller{}))
	ctx := context.Background()

	require.NoError(t, tr.Flush(ctx))
	assert.Zero(t, s.writeCount())

	tr.Record("u1", false)
	require.NoError(t, tr.Flush(ctx))
	require.NoError(t, tr.Flush(ctx))
	assert.Equal(t, 1, s.writeCount())

	var saved map[string]Entry
	require.NoError(t, json.Unmarshal(s.data["chat"], &saved))
	assert.Equal(t, Entry{Count: 1}, saved["u1"])
}

func TestFlushFailureKeepsDirty(t *testing.T) {
	s := newMemStore()
	s.err = errors.New("disk full")
	tr := NewTracker(s, testConfig(), zerolog.Nop(), WithRoller(&scriptRoller{}))
	tr.Record("u1", false)

	require.Error(t, tr.Flush(context.Background()))
	s.err = nil
	require.NoError(t, tr.Close(context.Background()))
	assert.Equal(t, 1, s.writeCount())
}

func TestDebouncedFlushCoalescesWrites(t *testing.T) {
	s := newMemStore()
	cfg := testConfig()
	cfg.FlushDelay = 50 * time.Millisecond
	tr := NewTracker(s, cfg, zerolog.Nop(), WithRoller(&scriptRoller{}))

	for i := 0; i < 10; i++ {
		tr.Record("u1", false)
	}
	assert.Zero(t, s.writeCount())

	require.Eventually(t, func() bool { return s.writeCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, s.writeCount())

	var saved map[string]Entry
	s.mu.Lock()
	require.NoError(t, json.Unmarshal(s.data["chat"], &saved))
	s.mu.Unlock()
	assert.Equal(t, 10, saved["u1"].Count)
}

func TestScheduledFlushAfterCloseDoesNotWrite(t *testing.T) {
	s := newMemStore()
	cfg := testConfig()
	cfg.FlushDelay = 50 * time.Millisecond
	tr := NewTracker(s, cfg, zerolog.Nop(), WithRoller(&scriptRoller{}))

	tr.Record("u1", false)
	require.NoError(t, tr.Close(context.Background()))
	assert.Equal(t, 1, s.writeCount())

	tr.Record("u1", false)
	time.Sleep(3 * cfg.FlushDelay)
	assert.Equal(t, 1, s.writeCount(), "no writes once closed")
}

// gatedStore blocks its first Set until release is closed.
type gatedStore struct {
	*memStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) Set(ctx context.Context, key string, data []byte) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.memStore.Set(ctx, key, data)
}

func TestConcurrentFlushesKeepNewestSnapshot(t *testing.T) {
	s := &gatedStore{memStore: newMemStore(), entered: make(chan struct{}), release: make(chan struct{})}
	tr := NewTracker(s, testConfig(), zerolog.Nop(), WithRoller(&scriptRoller{}))
	ctx := context.Background()

	tr.Record("u1", false)
	first := make(chan error, 1)
	go func() { first <- tr.Flush(ctx) }()
	<-s.entered

	tr.Record("u1", false)
	second := make(chan error, 1)
	go func() { second <- tr.Close(ctx) }()
	time.Sleep(20 * time.Millisecond)
	close(s.release)

	require.NoError(t, <-first)
	require.NoError(t, <-second)
	assert.Equal(t, 2, s.writeCount())

	var saved map[string]Entry
	s.mu.Lock()
	require.NoError(t, json.Unmarshal(s.data["chat"], &saved))
	s.mu.Unlock()
	assert.Equal(t, 2, saved["u1"].Count)
}
