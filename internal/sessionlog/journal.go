// Package sessionlog keeps the transcript of every message a room dispatched,
// for log pages and exports, and optionally forwards a copy to durable
// storage without ever blocking the room.
package sessionlog

import (
	"captioncast/internal/messages"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Entry struct {
	RoomID       string              `json:"roomId"`
	ID           uuid.UUID           `json:"id"`
	Sender       string              `json:"sender"`
	Text         string              `json:"text"`
	Provenance   messages.Provenance `json:"provenance"`
	Timestamp    time.Time           `json:"timestamp"`
	SessionStart time.Time           `json:"sessionStart"`
	SessionTime  time.Duration       `json:"sessionTime"`
}

type Journal struct {
	mu        sync.Mutex
	roomID    string
	entries   []Entry
	startedAt time.Time
	sink      chan<- Entry
	log       zerolog.Logger
}

// NewJournal creates an empty journal. sink may be nil when no durable copy
// is wanted.
func NewJournal(roomID string, sink chan<- Entry, log zerolog.Logger) *Journal {
	return &Journal{
		roomID:    roomID,
		startedAt: time.Now(),
		sink:      sink,
		log:       log,
	}
}

// Reset starts a new session, discarding the in-memory transcript.
func (j *Journal) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = nil
	j.startedAt = time.Now()
	j.log.Info().Str("room", j.roomID).Msg("session log reset")
}

// Append records a dispatched message. The durable copy is best effort: when
// the sink is full the entry is kept in memory only.
func (j *Journal) Append(msg messages.Message) Entry {
	j.mu.Lock()
	e := Entry{
		RoomID:       j.roomID,
		ID:           msg.ID,
		Sender:       msg.Sender,
		Text:         msg.Text,
		Provenance:   msg.Provenance,
		Timestamp:    msg.Timestamp,
		SessionStart: j.startedAt,
		SessionTime:  msg.Timestamp.Sub(j.startedAt),
	}
	j.entries = append(j.entries, e)
	j.mu.Unlock()

	if j.sink != nil {
		select {
		case j.sink <- e:
		default:
			j.log.Warn().Str("room", j.roomID).Msg("session log sink full, dropping durable copy")
		}
	}
	return e
}

func (j *Journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Entry, len(j.entries))
	copy(out, j.entries)
	return out
}

func (j *Journal) StartedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.startedAt
}

func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}
