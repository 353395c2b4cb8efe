// Package turns keeps the rotation ring of participants in a room and tracks
// which of them currently holds the right to send.
//
// A Ring is not safe for concurrent use. It is owned by a single room, which
// serialises every call.
package turns

import (
	"captioncast/internal/errs"
	"captioncast/internal/utility"
	"slices"
	"time"
)

type Participant struct {
	ConnID   string    `json:"id"`
	Name     string    `json:"name"`
	Color    string    `json:"color"`
	JoinedAt time.Time `json:"joinedAt"`
}

type Ring struct {
	members []Participant
	holder  int
}

func NewRing() *Ring {
	return &Ring{}
}

// Join appends a participant to the back of the ring. first is true when the
// ring was empty, which starts a fresh session for the room.
func (r *Ring) Join(connID, name string) (p Participant, first bool, err error) {
	if r.indexOf(connID) >= 0 {
		return Participant{}, false, errs.ErrAlreadyJoined
	}
	p = Participant{
		ConnID:   connID,
		Name:     name,
		Color:    utility.RandomColorHex(),
		JoinedAt: time.Now(),
	}
	first = len(r.members) == 0
	r.members = append(r.members, p)
	if first {
		r.holder = 0
	}
	return p, first, nil
}

// Leave removes a participant. Removing someone ahead of the holder keeps the
// same holder; removing the holder passes the turn to whoever slides into its
// slot, wrapping to the front when the holder was last.
func (r *Ring) Leave(connID string) (removed Participant, wasHolder bool, err error) {
	idx := r.indexOf(connID)
	if idx < 0 {
		return Participant{}, false, errs.ErrNotFound
	}
	removed = r.members[idx]
	wasHolder = idx == r.holder
	r.members = slices.Delete(r.members, idx, idx+1)

	switch {
	case len(r.members) == 0:
		r.holder = 0
	case idx < r.holder:
		r.holder--
	case r.holder >= len(r.members):
		r.holder = 0
	}
	return removed, wasHolder, nil
}

func (r *Ring) Holder() (Participant, bool) {
	if len(r.members) == 0 {
		return Participant{}, false
	}
	return r.members[r.holder], true
}

// HolderIndex is the position of the holder in List, or 0 for an empty ring.
func (r *Ring) HolderIndex() int { return r.holder }

// Advance passes the turn to the next participant in join order.
func (r *Ring) Advance() (Participant, bool) {
	if len(r.members) == 0 {
		r.holder = 0
		return Participant{}, false
	}
	r.holder = (r.holder + 1) % len(r.members)
	return r.members[r.holder], true
}

func (r *Ring) Authorize(connID string) bool {
	h, ok := r.Holder()
	return ok && h.ConnID == connID
}

func (r *Ring) Get(connID string) (Participant, bool) {
	idx := r.indexOf(connID)
	if idx < 0 {
		return Participant{}, false
	}
	return r.members[idx], true
}

// List returns a copy of the ring in rotation order.
func (r *Ring) List() []Participant {
	out := make([]Participant, len(r.members))
	copy(out, r.members)
	return out
}

func (r *Ring) Len() int { return len(r.members) }

func (r *Ring) indexOf(connID string) int {
	return slices.IndexFunc(r.members, func(p Participant) bool { return p.ConnID == connID })
}
