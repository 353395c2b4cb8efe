package rooms

import (
	"captioncast/internal/errs"
	"captioncast/internal/events"
	"captioncast/internal/fanout"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore() *Store {
	return NewStore(Options{Thresholds: smallThresholds(), Logger: zerolog.Nop()})
}

type countingHooks struct {
	NopHooks
	mu     sync.Mutex
	open   int
	forget []string
}

func (h *countingHooks) RoomsOpen(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.open = n
}

func (h *countingHooks) ForgetRoom(room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.forget = append(h.forget, room)
}

func TestStore_Create(t *testing.T) {
	s := testStore()

	r, err := s.Create("Main hall", "")
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "Main hall", r.Label)
	assert.False(t, r.CreatedAt.IsZero())

	custom, err := s.Create("", "lobby")
	require.NoError(t, err)
	assert.Equal(t, "lobby", custom.ID)
	assert.Equal(t, "Untitled", custom.Label)

	_, err = s.Create("again", "lobby")
	assert.ErrorIs(t, err, errs.ErrDuplicateID)

	_, err = s.Create("", "bad id!")
	assert.ErrorIs(t, err, errs.ErrInvalidID)

	assert.Equal(t, 2, s.Len())
}

func TestStore_Get(t *testing.T) {
	s := testStore()
	r, err := s.Create("", "lobby")
	require.NoError(t, err)

	got, err := s.Get("lobby")
	require.NoError(t, err)
	assert.Same(t, r, got)

	_, err = s.Get("nope")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestStore_DeleteNotifiesEveryMemberOnce(t *testing.T) {
	hooks := &countingHooks{}
	s := NewStore(Options{Thresholds: smallThresholds(), Hooks: hooks, Logger: zerolog.Nop()})
	r, err := s.Create("", "lobby")
	require.NoError(t, err)

	p1 := subscribe(t, r, "p1", fanout.Participants)
	p2 := subscribe(t, r, "p2", fanout.Participants)
	admin := subscribe(t, r, "adm", fanout.Admins)
	// an admin that also watches the display must still get one notice
	require.NoError(t, r.Subscribe(admin, fanout.Viewers))
	_, err = r.Join("p1", "one")
	require.NoError(t, err)
	_, err = r.Join("p2", "two")
	require.NoError(t, err)
	for _, c := range []*fanout.Client{p1, p2, admin} {
		drain(c)
	}

	require.NoError(t, s.Delete("lobby"))

	for _, c := range []*fanout.Client{p1, p2, admin} {
		frames := drain(c)
		assert.Len(t, ofType(frames, events.RoomDeleted), 1, c.ID)
		_, open := <-c.Send
		assert.False(t, open, c.ID)
	}

	_, err = s.Get("lobby")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.ErrorIs(t, s.Delete("lobby"), errs.ErrNotFound)

	_, err = r.Join("p3", "late")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = r.SendText("p1", "late")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.ErrorIs(t, r.Subscribe(fanout.NewClient("x", nil, 1), fanout.Viewers), errs.ErrNotFound)

	assert.Equal(t, 0, hooks.open)
	assert.Equal(t, []string{"lobby"}, hooks.forget)
}

func TestStore_DeleteReachesMemberWithFullBuffer(t *testing.T) {
	s := testStore()
	r, err := s.Create("", "lobby")
	require.NoError(t, err)

	// the subscribe snapshot alone fills a one-frame buffer
	slow := fanout.NewClient("slow", nil, 1)
	require.NoError(t, r.Subscribe(slow, fanout.Admins))

	require.NoError(t, s.Delete("lobby"))

	frames := drain(slow)
	require.Len(t, frames, 1)
	assert.Equal(t, events.RoomDeleted, frames[0].Type)
	_, open := <-slow.Send
	assert.False(t, open)
}

func TestStore_ListOrderedByCreation(t *testing.T) {
	s := testStore()
	for _, id := range []string{"c", "a", "b"} {
		_, err := s.Create("", id)
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}
	list := s.List()
	require.Len(t, list, 3)
	assert.Equal(t, "c", list[0].ID)
	assert.Equal(t, "a", list[1].ID)
	assert.Equal(t, "b", list[2].ID)
}

func TestStore_EnsureDefault(t *testing.T) {
	s := testStore()
	r, err := s.EnsureDefault("main", "Main")
	require.NoError(t, err)
	again, err := s.EnsureDefault("main", "Main")
	require.NoError(t, err)
	assert.Same(t, r, again)

	swept := s.SweepIdle(time.Nanosecond, time.Now().Add(time.Hour))
	assert.Empty(t, swept)
	assert.Equal(t, 1, s.Len())
}

func TestStore_SweepIdle(t *testing.T) {
	s := testStore()
	idle, err := s.Create("", "idle")
	require.NoError(t, err)
	busy, err := s.Create("", "busy")
	require.NoError(t, err)
	_, err = busy.Join("p1", "one")
	require.NoError(t, err)

	assert.Empty(t, s.SweepIdle(time.Hour, time.Now()))

	swept := s.SweepIdle(time.Minute, time.Now().Add(2*time.Minute))
	assert.Equal(t, []string{"idle"}, swept)
	_, err = idle.Summary()
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = s.Get("busy")
	assert.NoError(t, err)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := testStore()
	var wg sync.WaitGroup
	ids := make(chan string, 50)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := s.Create("", "")
			if assert.NoError(t, err) {
				ids <- r.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	for id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := s.Get(id)
			assert.NoError(t, err)
			s.List()
			assert.NoError(t, s.Delete(id))
		}(id)
	}
	wg.Wait()
	assert.Equal(t, 0, s.Len())
}
