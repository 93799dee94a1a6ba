// ABOUTME: Tests for the session store.
// ABOUTME: Covers capacity, lazy expiry, clear, sweep, summary rendering, and the sweeper loop.

package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, opts Options) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewStore(opts, nil)
	s.now = clock.Now
	return s, clock
}

func TestNewStore_Defaults(t *testing.T) {
	s := NewStore(Options{}, nil)
	assert.Equal(t, DefaultOptions(), s.Options())
}

func TestStore_GetOrCreateIsStable(t *testing.T) {
	s, clock := newTestStore(t, Options{})

	id := s.GetOrCreate("A")
	require.NotEmpty(t, id)

	clock.Advance(30 * time.Minute)
	assert.Equal(t, id, s.GetOrCreate("A"))
	assert.NotEqual(t, id, s.GetOrCreate("B"))
}

func TestStore_CapacityKeepsNewest(t *testing.T) {
	const capacity = 5
	s, _ := newTestStore(t, Options{MaxTurns: capacity})

	for k := 0; k < capacity+7; k++ {
		s.Append("A", RoleUser, fmt.Sprintf("msg-%d", k))
		assert.LessOrEqual(t, len(s.History("A")), capacity)
	}

	history := s.History("A")
	require.Len(t, history, capacity)
	for i, turn := range history {
		assert.Equal(t, fmt.Sprintf("msg-%d", 7+i), turn.Text)
	}
}

func TestStore_ExpiryRotatesAndEmpties(t *testing.T) {
	s, clock := newTestStore(t, Options{Timeout: time.Hour})

	before := s.GetOrCreate("A")
	s.Append("A", RoleUser, "hello")
	s.Append("A", RoleAgent, "hi")
	require.Len(t, s.History("A"), 2)

	clock.Advance(time.Hour + time.Second)
	assert.Empty(t, s.History("A"), "expired session reads as empty")

	after := s.GetOrCreate("A")
	assert.NotEqual(t, before, after)
	assert.Empty(t, s.History("A"))
	assert.Equal(t, 1, s.Len(), "expiry is a soft reset, not a deletion")
}

func TestStore_AppendAfterExpiryStartsFresh(t *testing.T) {
	s, clock := newTestStore(t, Options{Timeout: time.Hour})

	s.Append("A", RoleUser, "old")
	clock.Advance(2 * time.Hour)
	s.Append("A", RoleUser, "new")

	history := s.History("A")
	require.Len(t, history, 1)
	assert.Equal(t, "new", history[0].Text)
}

func TestStore_ActivityKeepsSessionAlive(t *testing.T) {
	s, clock := newTestStore(t, Options{Timeout: time.Hour})

	id := s.GetOrCreate("A")
	for i := 0; i < 5; i++ {
		clock.Advance(50 * time.Minute)
		s.Append("A", RoleUser, "still here")
	}
	assert.Equal(t, id, s.GetOrCreate("A"))
	assert.Len(t, s.History("A"), 5)
}

func TestStore_LastActivityNeverMovesBackwards(t *testing.T) {
	s, clock := newTestStore(t, Options{})

	s.GetOrCreate("A")
	info, _ := s.Info("A")
	first := info.LastActivity

	clock.Advance(-time.Minute)
	s.Append("A", RoleUser, "clock skew")
	info, _ = s.Info("A")
	assert.Equal(t, first, info.LastActivity)
}

func TestStore_InfoMarksExpired(t *testing.T) {
	s, clock := newTestStore(t, Options{Timeout: time.Hour})

	id := s.GetOrCreate("A")
	s.Append("A", RoleUser, "hello")
	info, ok := s.Info("A")
	require.True(t, ok)
	assert.Equal(t, Info{ClientID: "A", SessionID: id, Turns: 1, LastActivity: clock.Now()}, info)

	clock.Advance(2 * time.Hour)
	info, ok = s.Info("A")
	require.True(t, ok, "expired sessions stay listed until swept")
	assert.True(t, info.Expired)
	assert.Empty(t, info.SessionID, "the old id is never reused")
	assert.Zero(t, info.Turns)

	next := s.GetOrCreate("A")
	assert.NotEqual(t, id, next)
	info, _ = s.Info("A")
	assert.False(t, info.Expired)
	assert.Equal(t, next, info.SessionID)
}

func TestStore_Clear(t *testing.T) {
	s, _ := newTestStore(t, Options{})

	id := s.GetOrCreate("A")
	s.Append("A", RoleUser, "hello")

	s.Clear("A")
	assert.Empty(t, s.History("A"))
	assert.NotEqual(t, id, s.GetOrCreate("A"))

	// Clearing twice, or clearing an unknown client, is a no-op.
	s.Clear("A")
	s.Clear("never-seen")
	assert.Empty(t, s.History("never-seen"))
	_, ok := s.Info("never-seen")
	assert.False(t, ok, "clear must not create sessions")
}

func TestStore_Sweep(t *testing.T) {
	s, clock := newTestStore(t, Options{Timeout: time.Hour})
	now := clock.Now()

	clock.now = now.Add(-2 * time.Hour)
	s.GetOrCreate("stale")
	clock.now = now.Add(-5 * time.Minute)
	s.GetOrCreate("fresh")
	clock.now = now

	removed := s.Sweep(now)
	assert.Equal(t, 1, removed)

	_, ok := s.Info("stale")
	assert.False(t, ok)
	_, ok = s.Info("fresh")
	assert.True(t, ok)
}

func TestStore_Summary(t *testing.T) {
	s, _ := newTestStore(t, Options{SummaryTurns: 3, SummaryChars: 10})

	assert.Equal(t, NoHistory, s.Summary("A"))

	s.Append("A", RoleUser, "first")
	s.Append("A", RoleAgent, "second")
	s.Append("A", RoleUser, "go to the contact page please")
	s.Append("A", RoleAgent, "Navigated\n to   /contact")

	want := strings.Join([]string{
		"agent: second",
		"user: go to the ...",
		"agent: Navigated ...",
	}, "\n")
	assert.Equal(t, want, s.Summary("A"))

	// Summary is derived and leaves the session untouched.
	assert.Len(t, s.History("A"), 4)
}

func TestStore_HistoryIsSnapshot(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	s.Append("A", RoleUser, "hello")

	history := s.History("A")
	history[0].Text = "mutated"
	assert.Equal(t, "hello", s.History("A")[0].Text)
}

func TestStore_List(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	s.Append("b", RoleUser, "x")
	s.Append("a", RoleUser, "y")
	s.Append("a", RoleAgent, "z")

	infos := s.List()
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].ClientID)
	assert.Equal(t, 2, infos[0].Turns)
	assert.Equal(t, "b", infos[1].ClientID)
}

func TestStore_RunSweepsUntilCancelled(t *testing.T) {
	s, clock := newTestStore(t, Options{Timeout: time.Hour})
	s.GetOrCreate("A")
	clock.Advance(2 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s, _ := newTestStore(t, Options{MaxTurns: 10})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			client := fmt.Sprintf("client-%d", i%3)
			for j := 0; j < 200; j++ {
				s.Append(client, RoleUser, "msg")
				_ = s.History(client)
				_ = s.Summary(client)
				if j%50 == 0 {
					s.Clear(client)
				}
			}
		}(i)
	}
	wg.Wait()

	for _, info := range s.List() {
		assert.LessOrEqual(t, info.Turns, 10)
	}
}
