package analytics

import (
	"captioncast/internal/messages"
	"captioncast/internal/sessionlog"
	"captioncast/internal/turns"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	start := time.Date(2025, 10, 29, 9, 0, 0, 0, time.UTC)
	now := start.Add(90 * time.Second)
	entries := []sessionlog.Entry{
		{Sender: "Alice", Provenance: messages.ProvenanceTurn},
		{Sender: "Bob", Provenance: messages.ProvenanceTurn},
		{Sender: "Alice", Provenance: messages.ProvenanceTakeRelease},
		{Sender: "speech", Provenance: messages.ProvenanceSpeech},
		{Sender: "Gone", Provenance: messages.ProvenanceTurn},
	}
	participants := []turns.Participant{
		{ConnID: "a", Name: "Alice", Color: "#aabbcc"},
		{ConnID: "b", Name: "Bob"},
		{ConnID: "c", Name: "Carol"},
	}

	stats := Summarize(entries, participants, start, now)

	assert.Equal(t, 5, stats.TotalMessages)
	assert.Equal(t, int64(90000), stats.SessionDuration)
	assert.Equal(t, start, stats.SessionStartTime)
	require.Len(t, stats.Participants, 3)
	assert.Equal(t, ParticipantCount{Name: "Alice", Color: "#aabbcc", MessageCount: 2}, stats.Participants[0])
	assert.Equal(t, 1, stats.Participants[1].MessageCount)
	assert.Equal(t, 0, stats.Participants[2].MessageCount)
	assert.Equal(t, 3, stats.ByProvenance["turn"])
	assert.Equal(t, 1, stats.ByProvenance["speech"])
}

func TestSummarize_Empty(t *testing.T) {
	now := time.Now()
	stats := Summarize(nil, nil, now, now)
	assert.Zero(t, stats.TotalMessages)
	assert.NotNil(t, stats.Participants)
	assert.Empty(t, stats.Participants)
}
