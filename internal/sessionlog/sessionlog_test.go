package sessionlog

import (
	"captioncast/internal/messages"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	batches [][]Entry
	err     error
}

func (m *memStore) SaveEntries(_ context.Context, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, append([]Entry(nil), entries...))
	return m.err
}

func (m *memStore) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

func TestJournal_AppendAndReset(t *testing.T) {
	j := NewJournal("room-1", nil, zerolog.Nop())
	msg := messages.New("Alice", "hello", messages.ProvenanceTurn, nil)

	e := j.Append(msg)
	assert.Equal(t, "room-1", e.RoomID)
	assert.Equal(t, msg.ID, e.ID)
	assert.Equal(t, "hello", e.Text)
	assert.GreaterOrEqual(t, e.SessionTime, time.Duration(0))
	assert.Equal(t, 1, j.Len())

	before := j.StartedAt()
	time.Sleep(time.Millisecond)
	j.Reset()
	assert.Equal(t, 0, j.Len())
	assert.True(t, j.StartedAt().After(before))
	assert.NotNil(t, j.Entries())
}

func TestJournal_SinkFullDoesNotBlock(t *testing.T) {
	sink := make(chan Entry, 1)
	j := NewJournal("r", sink, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		for range 5 {
			j.Append(messages.New("a", "x", messages.ProvenanceTurn, nil))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Append blocked on a full sink")
	}
	assert.Equal(t, 5, j.Len())
	assert.Len(t, sink, 1)
}

func TestWriter_FlushesEverythingOnShutdown(t *testing.T) {
	store := &memStore{}
	w := NewWriter(store, 500, zerolog.Nop())
	w.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(stopped)
	}()

	j := NewJournal("r", w.Sink(), zerolog.Nop())
	for range 120 {
		j.Append(messages.New("a", "x", messages.ProvenanceTurn, nil))
	}

	require.Eventually(t, func() bool { return store.total() >= 100 }, time.Second, 5*time.Millisecond)
	cancel()
	<-stopped
	assert.Equal(t, 120, store.total())

	for _, b := range store.batches {
		assert.LessOrEqual(t, len(b), batchSize)
	}
}

func TestWriter_StoreErrorIsLogged(t *testing.T) {
	store := &memStore{err: errors.New("db down")}
	w := NewWriter(store, 10, zerolog.Nop())
	w.interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.Sink() <- Entry{Text: "x"}
	require.Eventually(t, func() bool { return store.total() == 1 }, time.Second, 5*time.Millisecond)
}
