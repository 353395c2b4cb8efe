// Package events is the catalog of notifications a room emits to its
// audiences, and their wire encoding.
package events

import (
	"captioncast/internal/backlog"
	"captioncast/internal/messages"
	"captioncast/internal/mode"
	"captioncast/internal/turns"
	"encoding/json"
	"time"
)

type Type string

const (
	ParticipantsChanged Type = "participants-changed"
	TurnChanged         Type = "turn-changed"
	ModeChanged         Type = "mode-changed"
	ModeChangeRejected  Type = "mode-change-rejected"
	QueueChanged        Type = "queue-changed"
	QueueWarning        Type = "queue-warning"
	ReturnAvailable     Type = "return-available"
	MessageDispatched   Type = "message-dispatched"
	RoomDeleted         Type = "room-deleted"
	SystemStatus        Type = "system-status"
	Typing              Type = "typing"
	Joined              Type = "joined"
	Ack                 Type = "ack"
	Error               Type = "error"
)

type Event struct {
	Type Type      `json:"t"`
	Room string    `json:"room"`
	Data any       `json:"d,omitempty"`
	At   time.Time `json:"at"`
}

func New(room string, t Type, data any) Event {
	return Event{Type: t, Room: room, Data: data, At: time.Now()}
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

type Participants struct {
	Participants []turns.Participant `json:"participants"`
	Holder       *turns.Participant  `json:"holder"`
	HolderIndex  int                 `json:"holderIndex"`
}

type Turn struct {
	Holder      *turns.Participant `json:"holder"`
	HolderIndex int                `json:"holderIndex"`
}

type ModeChange struct {
	Mode      mode.Mode   `json:"mode"`
	Reason    mode.Reason `json:"reason"`
	Emergency bool        `json:"emergency"`
}

type Rejection struct {
	QueueLength       int `json:"queueLength"`
	RequiredThreshold int `json:"requiredThreshold"`
	Remaining         int `json:"remaining"`
}

type Queue struct {
	Items []backlog.Item `json:"items"`
	Count int            `json:"count"`
}

type Warning struct {
	Tier      string `json:"tier"`
	Count     int    `json:"count"`
	Threshold int    `json:"threshold"`
}

type Recovery struct {
	Count     int `json:"count"`
	Threshold int `json:"threshold"`
}

type Status struct {
	Mode       mode.Mode          `json:"mode"`
	Emergency  bool               `json:"emergency"`
	Queue      []backlog.Item     `json:"queue"`
	QueueCount int                `json:"queueCount"`
	Thresholds backlog.Thresholds `json:"thresholds"`
}

type TypingState struct {
	ConnID string `json:"id"`
	Name   string `json:"name"`
	Text   string `json:"text"`
}

// Acknowledgement is the caller-only reply to a command that succeeded.
type Acknowledgement struct {
	Command string `json:"command"`
	Result  any    `json:"result,omitempty"`
}

type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Dispatched wraps the message so viewers can tell text from control frames.
func Dispatched(room string, msg messages.Message) Event {
	return New(room, MessageDispatched, msg)
}
