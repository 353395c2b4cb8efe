// Package messages defines the caption message that leaves a room, either
// immediately (realtime) or when an operator releases it from the backlog.
package messages

import (
	"time"

	"github.com/google/uuid"
)

// Provenance records how a message entered the room.
type Provenance string

const (
	ProvenanceTurn        Provenance = "turn"
	ProvenanceTakeRelease Provenance = "take-release"
	ProvenanceSpeech      Provenance = "speech"
	ProvenanceTranslation Provenance = "translation"
	ProvenanceExternal    Provenance = "external"
)

// Valid reports whether p is one of the known provenance tags.
func (p Provenance) Valid() bool {
	switch p {
	case ProvenanceTurn, ProvenanceTakeRelease, ProvenanceSpeech, ProvenanceTranslation, ProvenanceExternal:
		return true
	}
	return false
}

// Meta carries optional details supplied by speech and translation sources.
type Meta struct {
	Language     string  `json:"language,omitempty"`
	Confidence   float64 `json:"confidence,omitempty"`
	OriginalText string  `json:"originalText,omitempty"`
}

// Message is immutable once built.
type Message struct {
	ID         uuid.UUID  `json:"id"`
	Sender     string     `json:"sender"`
	Text       string     `json:"text"`
	Timestamp  time.Time  `json:"timestamp"`
	Provenance Provenance `json:"provenance"`
	Meta       *Meta      `json:"meta,omitempty"`
}

func New(sender, text string, p Provenance, meta *Meta) Message {
	return Message{
		ID:         uuid.New(),
		Sender:     sender,
		Text:       text,
		Timestamp:  time.Now(),
		Provenance: p,
		Meta:       meta,
	}
}
