package events

import (
	"captioncast/internal/backlog"
	"captioncast/internal/messages"
	"captioncast/internal/mode"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvent_EncodeShape(t *testing.T) {
	ev := New("room-1", ModeChanged, ModeChange{Mode: mode.Realtime, Reason: mode.ReasonEmergencyAuto, Emergency: true})
	data, err := ev.Encode()
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	require.JSONEq(t, `"mode-changed"`, string(raw["t"]))
	require.JSONEq(t, `"room-1"`, string(raw["room"]))
	require.JSONEq(t, `{"mode":"realtime","reason":"emergency-auto","emergency":true}`, string(raw["d"]))
	require.Contains(t, raw, "at")
}

func TestEvent_OmitsEmptyData(t *testing.T) {
	data, err := New("r", RoomDeleted, nil).Encode()
	require.NoError(t, err)
	require.NotContains(t, string(data), `"d"`)
}

func TestDispatched_CarriesMessageVerbatim(t *testing.T) {
	msg := messages.New("Alice", `say "hi" <b>`, messages.ProvenanceTurn, nil)
	data, err := Dispatched("r", msg).Encode()
	require.NoError(t, err)

	var decoded struct {
		T Type             `json:"t"`
		D messages.Message `json:"d"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, MessageDispatched, decoded.T)
	require.Equal(t, msg.Text, decoded.D.Text)
	require.Equal(t, msg.Sender, decoded.D.Sender)
	require.Equal(t, msg.ID, decoded.D.ID)
}

func TestQueuePayload(t *testing.T) {
	q := backlog.NewQueue(backlog.DefaultThresholds())
	q.Push("a", "x", messages.ProvenanceTurn, nil)
	data, err := New("r", QueueChanged, Queue{Items: q.Snapshot(), Count: q.Len()}).Encode()
	require.NoError(t, err)
	require.Contains(t, string(data), `"count":1`)
	require.Contains(t, string(data), `"status":"waiting"`)
}
