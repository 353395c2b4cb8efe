package analytics

import "time"

type ParticipantCount struct {
	Name         string `json:"name"`
	Color        string `json:"color,omitempty"`
	MessageCount int    `json:"messageCount"`
}

// SessionStats mirrors the live log page: totals for the current session
// and a count per connected participant. SessionDuration is in milliseconds.
type SessionStats struct {
	TotalMessages    int                `json:"totalMessages"`
	SessionStartTime time.Time          `json:"sessionStartTime"`
	CurrentTime      time.Time          `json:"currentTime"`
	SessionDuration  int64              `json:"sessionDuration"`
	ByProvenance     map[string]int     `json:"byProvenance"`
	Participants     []ParticipantCount `json:"participants"`
}

type SenderTotal struct {
	Sender       string    `json:"sender"`
	MessageCount int       `json:"messageCount"`
	LastSentAt   time.Time `json:"lastSentAt"`
	Rank         int       `json:"rank"`
}

type HistoryEntry struct {
	ID         string    `json:"id"`
	Sender     string    `json:"sender"`
	Text       string    `json:"text"`
	Provenance string    `json:"provenance"`
	SentAt     time.Time `json:"sentAt"`
}
