// ABOUTME: Tests for the channel registry.
// ABOUTME: Validates attach/replace, delivery, failed-write detach, and concurrency safety.

package channel

import (
	"context"
	"errors"
	"log/slog"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChannel records every message written to it.
type fakeChannel struct {
	mu      sync.Mutex
	sent    [][]byte
	sendErr error
	closed  bool
}

func (f *fakeChannel) Send(_ context.Context, msg []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, append([]byte(nil), msg...))
	return nil
}

func (f *fakeChannel) Close(string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeChannel) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = string(m)
	}
	return out
}

func TestRegistry_DeliverWithoutChannel(t *testing.T) {
	reg := NewRegistry(slog.Default())

	ok := reg.Deliver(context.Background(), "nobody", []byte(`{}`))

	assert.False(t, ok)
	assert.Equal(t, 0, reg.Count(), "registry should be unchanged")
}

func TestRegistry_DeliverSendsExactlyOnce(t *testing.T) {
	reg := NewRegistry(nil)
	ch := &fakeChannel{}
	reg.Attach("A", ch)

	ok := reg.Deliver(context.Background(), "A", []byte(`{"tool":"click_element"}`))

	assert.True(t, ok)
	assert.Equal(t, []string{`{"tool":"click_element"}`}, ch.messages())
}

func TestRegistry_DeliverPreservesOrder(t *testing.T) {
	reg := NewRegistry(nil)
	ch := &fakeChannel{}
	reg.Attach("A", ch)

	for _, m := range []string{"1", "2", "3"} {
		require.True(t, reg.Deliver(context.Background(), "A", []byte(m)))
	}

	assert.Equal(t, []string{"1", "2", "3"}, ch.messages())
}

func TestRegistry_AttachReplaces(t *testing.T) {
	reg := NewRegistry(nil)
	first := &fakeChannel{}
	second := &fakeChannel{}

	assert.Nil(t, reg.Attach("A", first))
	prev := reg.Attach("A", second)

	assert.Same(t, first, prev)
	assert.Equal(t, 1, reg.Count())

	reg.Deliver(context.Background(), "A", []byte("x"))
	assert.Empty(t, first.messages(), "replaced channel must be unreachable")
	assert.Equal(t, []string{"x"}, second.messages())
}

func TestRegistry_DetachIfIgnoresReplacedChannel(t *testing.T) {
	reg := NewRegistry(nil)
	first := &fakeChannel{}
	second := &fakeChannel{}
	reg.Attach("A", first)
	reg.Attach("A", second)

	// The old socket's read loop ending must not remove the new entry.
	assert.False(t, reg.DetachIf("A", first))
	_, ok := reg.Get("A")
	assert.True(t, ok)

	assert.True(t, reg.DetachIf("A", second))
	_, ok = reg.Get("A")
	assert.False(t, ok)
}

func TestRegistry_DetachIsIdempotent(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Attach("A", &fakeChannel{})

	reg.Detach("A")
	reg.Detach("A")
	reg.Detach("never-seen")

	assert.Equal(t, 0, reg.Count())
}

func TestRegistry_FailedWriteDetaches(t *testing.T) {
	reg := NewRegistry(nil)
	ch := &fakeChannel{sendErr: errors.New("socket closed")}
	reg.Attach("A", ch)

	err := reg.Send(context.Background(), "A", []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransportWrite)

	_, ok := reg.Get("A")
	assert.False(t, ok, "stale entry should be removed")

	assert.ErrorIs(t, reg.Send(context.Background(), "A", []byte("x")), ErrChannelAbsent)
}

func TestRegistry_ListSorted(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Attach("b", &fakeChannel{})
	reg.Attach("a", &fakeChannel{})

	clients := reg.List()
	require.Len(t, clients, 2)
	assert.Equal(t, "a", clients[0].ClientID)
	assert.Equal(t, "b", clients[1].ClientID)
	assert.False(t, clients[0].ConnectedAt.IsZero())
}

func TestRegistry_CloseAll(t *testing.T) {
	reg := NewRegistry(nil)
	a := &fakeChannel{}
	b := &fakeChannel{}
	reg.Attach("a", a)
	reg.Attach("b", b)

	reg.CloseAll(context.Background(), "shutdown")

	assert.True(t, a.closed)
	assert.True(t, b.closed)
	assert.Equal(t, 0, reg.Count())
}

// slowCloser blocks in Close until release is closed.
type slowCloser struct {
	fakeChannel
	entered chan struct{}
	release chan struct{}
}

func (s *slowCloser) Close(string) error {
	s.entered <- struct{}{}
	<-s.release
	return nil
}

func TestRegistry_CloseAllClosesConcurrently(t *testing.T) {
	reg := NewRegistry(nil)
	entered := make(chan struct{}, 3)
	release := make(chan struct{})
	for i := 0; i < 3; i++ {
		reg.Attach(fmt.Sprintf("tab-%d", i), &slowCloser{entered: entered, release: release})
	}

	done := make(chan struct{})
	go func() {
		reg.CloseAll(context.Background(), "shutdown")
		close(done)
	}()

	// Every Close must be in flight at once before any of them returns.
	for i := 0; i < 3; i++ {
		select {
		case <-entered:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of 3 closes started", i)
		}
	}
	close(release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("CloseAll did not return after closes finished")
	}
	assert.Equal(t, 0, reg.Count())
}

func TestRegistry_CloseAllStopsAtDeadline(t *testing.T) {
	reg := NewRegistry(nil)
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	reg.Attach("stuck", &slowCloser{entered: entered, release: release})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	reg.CloseAll(ctx, "shutdown")

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 0, reg.Count())
}

func TestRegistry_Concurrent(t *testing.T) {
	reg := NewRegistry(nil)

	const numGoroutines = 50
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			clientID := string(rune('A' + id%26))
			ch := &fakeChannel{}
			reg.Attach(clientID, ch)
			reg.Deliver(context.Background(), clientID, []byte("m"))
			reg.DetachIf(clientID, ch)
			reg.List()
		}(i)
	}

	wg.Wait()

	reg.Attach("final", &fakeChannel{})
	_, ok := reg.Get("final")
	assert.True(t, ok)
}
