package fanout

import (
	"captioncast/internal/errs"
	"captioncast/internal/events"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(id string) *Client {
	return NewClient(id, nil, 16)
}

func receive(t *testing.T, c *Client) events.Event {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		require.True(t, ok, "%s: channel closed", c.ID)
		var ev events.Event
		require.NoError(t, json.Unmarshal(data, &ev))
		return ev
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("%s did not receive a frame", c.ID)
	}
	return events.Event{}
}

func requireSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		t.Fatalf("%s should not receive, got %s", c.ID, data)
	default:
	}
}

func TestParseAudience(t *testing.T) {
	for in, want := range map[string]Audience{
		"participants": Participants,
		"participant":  Participants,
		"":             Participants,
		"viewer":       Viewers,
		"display":      Viewers,
		"admin":        Admins,
	} {
		got, err := ParseAudience(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseAudience("everyone")
	require.Error(t, err)
}

func TestHub_PublishTargetsAudience(t *testing.T) {
	h := NewHub()
	p := newClient("p1")
	v := newClient("v1")
	a := newClient("a1")
	require.NoError(t, h.Subscribe(p, Participants))
	require.NoError(t, h.Subscribe(v, Viewers))
	require.NoError(t, h.Subscribe(a, Admins))

	n := h.Publish(events.New("r", events.QueueChanged, nil), Admins)
	assert.Equal(t, 1, n)
	assert.Equal(t, events.QueueChanged, receive(t, a).Type)
	requireSilent(t, p)
	requireSilent(t, v)

	n = h.Publish(events.New("r", events.TurnChanged, nil), Everyone...)
	assert.Equal(t, 3, n)
	for _, c := range []*Client{p, v, a} {
		assert.Equal(t, events.TurnChanged, receive(t, c).Type)
	}
}

func TestHub_MultiAudienceConnectionReceivesOnce(t *testing.T) {
	h := NewHub()
	c := newClient("both")
	require.NoError(t, h.Subscribe(c, Admins))
	require.NoError(t, h.Subscribe(c, Viewers))

	assert.Equal(t, 1, h.Publish(events.New("r", events.RoomDeleted, nil), Everyone...))
	receive(t, c)
	requireSilent(t, c)
	assert.Equal(t, 1, h.Connections())
}

func TestHub_PublishExcept(t *testing.T) {
	h := NewHub()
	c1 := newClient("p1")
	c2 := newClient("p2")
	require.NoError(t, h.Subscribe(c1, Participants))
	require.NoError(t, h.Subscribe(c2, Participants))

	h.PublishExcept("p1", events.New("r", events.Typing, events.TypingState{ConnID: "p1", Text: "he"}), Participants)
	assert.Equal(t, events.Typing, receive(t, c2).Type)
	requireSilent(t, c1)
}

func TestHub_UnsubscribeClosesWhenNoAudienceLeft(t *testing.T) {
	h := NewHub()
	c := newClient("c")
	require.NoError(t, h.Subscribe(c, Participants))
	require.NoError(t, h.Subscribe(c, Viewers))

	h.Unsubscribe("c", Participants)
	assert.False(t, h.Has("c", Participants))
	assert.True(t, h.Has("c", Viewers))

	h.Unsubscribe("c", Viewers)
	_, ok := <-c.Send
	assert.False(t, ok, "Send should be closed")
	assert.Equal(t, 0, h.Connections())
}

func TestHub_DropNonexistent(t *testing.T) {
	h := NewHub()
	h.Drop("ghost")
	h.Unsubscribe("ghost", Admins)
}

func TestHub_DropsWhenFull(t *testing.T) {
	dropped := 0
	h := NewHub(WithDropHook(func() { dropped++ }))

	c := NewClient("p1", nil, 1)
	require.NoError(t, h.Subscribe(c, Viewers))
	c.Send <- []byte("filler")

	assert.Equal(t, 0, h.Publish(events.New("r", events.TurnChanged, nil), Viewers))
	assert.Equal(t, 1, dropped)

	assert.Equal(t, "filler", string(<-c.Send))
	requireSilent(t, c)
}

func TestHub_SendTo(t *testing.T) {
	h := NewHub()
	a := newClient("a")
	b := newClient("b")
	require.NoError(t, h.Subscribe(a, Admins))
	require.NoError(t, h.Subscribe(b, Admins))

	assert.True(t, h.SendTo("a", events.New("r", events.Error, events.Failure{Code: "unauthorized"})))
	assert.Equal(t, events.Error, receive(t, a).Type)
	requireSilent(t, b)
	assert.False(t, h.SendTo("ghost", events.New("r", events.Error, nil)))
}

func TestHub_CloseRefusesSubscribers(t *testing.T) {
	h := NewHub()
	c := newClient("c")
	require.NoError(t, h.Subscribe(c, Participants))

	h.Close()
	_, ok := <-c.Send
	assert.False(t, ok)
	assert.Equal(t, 0, h.Count(Participants))
	assert.ErrorIs(t, h.Subscribe(newClient("late"), Viewers), errs.ErrNotFound)

	h.Close()
	assert.Equal(t, 0, h.Publish(events.New("r", events.TurnChanged, nil), Everyone...))
}

func TestHub_ResubscribeReplacesClient(t *testing.T) {
	h := NewHub()
	old := newClient("c")
	fresh := newClient("c")
	require.NoError(t, h.Subscribe(old, Viewers))
	require.NoError(t, h.Subscribe(fresh, Viewers))

	_, ok := <-old.Send
	assert.False(t, ok)
	h.Publish(events.New("r", events.TurnChanged, nil), Viewers)
	receive(t, fresh)
}

func TestHub_CloseWithReachesFullBuffers(t *testing.T) {
	dropped := 0
	h := NewHub(WithDropHook(func() { dropped++ }))

	slow := NewClient("slow", nil, 1)
	fast := newClient("fast")
	require.NoError(t, h.Subscribe(slow, Admins))
	require.NoError(t, h.Subscribe(fast, Participants))
	require.NoError(t, h.Subscribe(fast, Viewers))
	slow.Send <- []byte("filler")

	assert.Equal(t, 2, h.CloseWith(events.New("r", events.RoomDeleted, nil)))
	assert.Equal(t, 1, dropped)

	assert.Equal(t, events.RoomDeleted, receive(t, slow).Type)
	_, ok := <-slow.Send
	assert.False(t, ok)

	assert.Equal(t, events.RoomDeleted, receive(t, fast).Type)
	_, ok = <-fast.Send
	assert.False(t, ok)

	assert.Zero(t, h.CloseWith(events.New("r", events.RoomDeleted, nil)))
}
