// Package backlog is the ordered holding area for take-mode messages. The
// queue classifies its own length against the configured thresholds; what to
// do about a crossed threshold is decided by the owning room.
package backlog

import (
	"captioncast/internal/messages"
	"fmt"
	"slices"
	"time"
)

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusReleased Status = "released"
)

type Item struct {
	ID         int64               `json:"id"`
	Sender     string              `json:"sender"`
	Text       string              `json:"text"`
	Provenance messages.Provenance `json:"provenance"`
	Meta       *messages.Meta      `json:"meta,omitempty"`
	EnqueuedAt time.Time           `json:"enqueuedAt"`
	Status     Status              `json:"status"`
}

// Tier is the most severe threshold met by the queue length.
type Tier int

const (
	TierNone Tier = iota
	TierWarn
	TierCritical
	TierEmergency
)

func (t Tier) String() string {
	switch t {
	case TierWarn:
		return "warning"
	case TierCritical:
		return "critical"
	case TierEmergency:
		return "emergency"
	}
	return "none"
}

type Thresholds struct {
	Warn         int
	Critical     int
	Emergency    int
	ReturnMargin int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Warn:         500,
		Critical:     800,
		Emergency:    1000,
		ReturnMargin: 200,
	}
}

func (t Thresholds) Validate() error {
	if !(t.Warn < t.Critical && t.Critical < t.Emergency) {
		return fmt.Errorf("thresholds must satisfy warn < critical < emergency, got %d/%d/%d",
			t.Warn, t.Critical, t.Emergency)
	}
	if t.ReturnMargin <= 0 || t.ReturnMargin >= t.Emergency {
		return fmt.Errorf("return margin must be in (0, %d), got %d", t.Emergency, t.ReturnMargin)
	}
	return nil
}

// ReturnLimit is the upper edge of the recovery band.
func (t Thresholds) ReturnLimit() int {
	return t.Emergency - t.ReturnMargin
}

// Classify returns the single highest tier whose threshold n meets.
func (t Thresholds) Classify(n int) Tier {
	switch {
	case n >= t.Emergency:
		return TierEmergency
	case n >= t.Critical:
		return TierCritical
	case n >= t.Warn:
		return TierWarn
	}
	return TierNone
}

// Limit is the threshold value that belongs to a tier.
func (t Thresholds) Limit(tier Tier) int {
	switch tier {
	case TierWarn:
		return t.Warn
	case TierCritical:
		return t.Critical
	case TierEmergency:
		return t.Emergency
	}
	return 0
}

// Queue is not safe for concurrent use; the owning room serialises access.
type Queue struct {
	items      []Item
	nextID     int64
	thresholds Thresholds
}

func NewQueue(th Thresholds) *Queue {
	return &Queue{thresholds: th, nextID: 1}
}

func (q *Queue) Thresholds() Thresholds { return q.thresholds }

// Push appends an item and reports the tier reached by the new length.
func (q *Queue) Push(sender, text string, p messages.Provenance, meta *messages.Meta) (Item, Tier) {
	item := Item{
		ID:         q.nextID,
		Sender:     sender,
		Text:       text,
		Provenance: p,
		Meta:       meta,
		EnqueuedAt: time.Now(),
		Status:     StatusWaiting,
	}
	q.nextID++
	q.items = append(q.items, item)
	return item, q.thresholds.Classify(len(q.items))
}

// Pop removes the oldest item and marks it released.
func (q *Queue) Pop() (Item, bool) {
	if len(q.items) == 0 {
		return Item{}, false
	}
	item := q.items[0]
	q.items[0] = Item{}
	q.items = q.items[1:]
	item.Status = StatusReleased
	return item, true
}

// Remove discards an item without releasing it.
func (q *Queue) Remove(id int64) (Item, bool) {
	idx := slices.IndexFunc(q.items, func(it Item) bool { return it.ID == id })
	if idx < 0 {
		return Item{}, false
	}
	item := q.items[idx]
	q.items = slices.Delete(q.items, idx, idx+1)
	return item, true
}

func (q *Queue) Len() int { return len(q.items) }

// InRecoveryBand reports whether the length allows a return to take mode.
func (q *Queue) InRecoveryBand() bool {
	return len(q.items) <= q.thresholds.ReturnLimit()
}

// Snapshot returns a read-only copy in pop order.
func (q *Queue) Snapshot() []Item {
	out := make([]Item, len(q.items))
	copy(out, q.items)
	return out
}
