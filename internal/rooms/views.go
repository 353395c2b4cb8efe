package rooms

import (
	"captioncast/internal/backlog"
	"captioncast/internal/mode"
	"captioncast/internal/sessionlog"
	"captioncast/internal/turns"
	"time"
)

type Summary struct {
	ID               string    `json:"id"`
	Label            string    `json:"label"`
	CreatedAt        time.Time `json:"createdAt"`
	ParticipantCount int       `json:"participantCount"`
	Connections      int       `json:"connections"`
	Mode             mode.Mode `json:"mode"`
	Emergency        bool      `json:"emergency"`
	QueueCount       int       `json:"queueCount"`
	MessageCount     int       `json:"messageCount"`
}

type Status struct {
	Summary
	Participants []turns.Participant `json:"participants"`
	Holder       *turns.Participant  `json:"holder"`
	HolderIndex  int                 `json:"holderIndex"`
	Queue        []backlog.Item      `json:"queue"`
	Thresholds   backlog.Thresholds  `json:"thresholds"`
	AutoAdvance  bool                `json:"autoAdvance"`
}

// Transcript is a consistent snapshot of the session log and the people who
// wrote it.
type Transcript struct {
	RoomID       string              `json:"roomId"`
	StartedAt    time.Time           `json:"startedAt"`
	Entries      []sessionlog.Entry  `json:"entries"`
	Participants []turns.Participant `json:"participants"`
}

func (r *Room) Summary() (Summary, error) {
	if err := r.view(); err != nil {
		return Summary{}, err
	}
	defer r.mu.Unlock()
	return r.summary(), nil
}

func (r *Room) summary() Summary {
	st := r.mode.State()
	return Summary{
		ID:               r.ID,
		Label:            r.Label,
		CreatedAt:        r.CreatedAt,
		ParticipantCount: r.turns.Len(),
		Connections:      r.hub.Connections(),
		Mode:             st.Mode,
		Emergency:        st.Emergency,
		QueueCount:       r.queue.Len(),
		MessageCount:     r.journal.Len(),
	}
}

func (r *Room) Status() (Status, error) {
	if err := r.view(); err != nil {
		return Status{}, err
	}
	defer r.mu.Unlock()

	out := Status{
		Summary:      r.summary(),
		Participants: r.turns.List(),
		HolderIndex:  r.turns.HolderIndex(),
		Queue:        r.queue.Snapshot(),
		Thresholds:   r.queue.Thresholds(),
		AutoAdvance:  r.autoAdvance,
	}
	if h, ok := r.turns.Holder(); ok {
		out.Holder = &h
	}
	return out, nil
}

func (r *Room) Participants() ([]turns.Participant, error) {
	if err := r.view(); err != nil {
		return nil, err
	}
	defer r.mu.Unlock()
	return r.turns.List(), nil
}

func (r *Room) Transcript() (Transcript, error) {
	if err := r.view(); err != nil {
		return Transcript{}, err
	}
	defer r.mu.Unlock()
	return Transcript{
		RoomID:       r.ID,
		StartedAt:    r.journal.StartedAt(),
		Entries:      r.journal.Entries(),
		Participants: r.turns.List(),
	}, nil
}

func (r *Room) idleSince(now time.Time, ttl time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return true
	}
	return r.turns.Len() == 0 && r.hub.Connections() == 0 && now.Sub(r.lastActive) > ttl
}

// Messages is the session log in dispatch order.
func (r *Room) Messages() ([]sessionlog.Entry, error) {
	if err := r.view(); err != nil {
		return nil, err
	}
	defer r.mu.Unlock()
	return r.journal.Entries(), nil
}
