package rooms

import (
	"captioncast/internal/backlog"
	"captioncast/internal/errs"
	"captioncast/internal/messages"
	"captioncast/internal/sessionlog"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const defaultLabel = "Untitled"

// Hooks receives room activity for instrumentation. metrics.Metrics
// satisfies it.
type Hooks interface {
	RoomsOpen(n int)
	ForgetRoom(room string)
	QueueLength(room string, n int)
	Dispatched(room string, p messages.Provenance)
	EmergencyForced(room string)
	FrameDropped()
}

type NopHooks struct{}

func (NopHooks) RoomsOpen(int)                          {}
func (NopHooks) ForgetRoom(string)                      {}
func (NopHooks) QueueLength(string, int)                {}
func (NopHooks) Dispatched(string, messages.Provenance) {}
func (NopHooks) EmergencyForced(string)                 {}
func (NopHooks) FrameDropped()                          {}

// Options apply to every room a Store creates.
type Options struct {
	Thresholds  backlog.Thresholds
	AutoAdvance bool
	LogSink     chan<- sessionlog.Entry
	Hooks       Hooks
	Logger      zerolog.Logger
}

// Store is the registry of live rooms. Lock order is store then room.
type Store struct {
	mu     sync.Mutex
	rooms  map[string]*Room
	pinned map[string]bool
	opts   Options
}

func NewStore(opts Options) *Store {
	if opts.Hooks == nil {
		opts.Hooks = NopHooks{}
	}
	if opts.Thresholds == (backlog.Thresholds{}) {
		opts.Thresholds = backlog.DefaultThresholds()
	}
	return &Store{
		rooms:  make(map[string]*Room),
		pinned: make(map[string]bool),
		opts:   opts,
	}
}

// Create registers a room. An empty customID asks for a generated id.
func (s *Store) Create(label, customID string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if customID != "" {
		if err := ValidateID(customID); err != nil {
			return nil, err
		}
		if _, exists := s.rooms[customID]; exists {
			return nil, fmt.Errorf("room %s: %w", customID, errs.ErrDuplicateID)
		}
		return s.add(customID, label), nil
	}

	// Try up to 10 times to generate a unique id
	for range 10 {
		id, err := GenerateID()
		if err != nil {
			return nil, fmt.Errorf("generating room id: %w", err)
		}
		if _, exists := s.rooms[id]; exists {
			continue
		}
		return s.add(id, label), nil
	}
	return nil, fmt.Errorf("failed to generate unique room id after 10 attempts")
}

func (s *Store) add(id, label string) *Room {
	if label == "" {
		label = defaultLabel
	}
	r := newRoom(id, label, s.opts)
	s.rooms[id] = r
	s.opts.Hooks.RoomsOpen(len(s.rooms))
	s.opts.Logger.Info().Str("room", id).Str("label", label).Msg("room created")
	return r
}

// EnsureDefault creates a room that is never swept as idle.
func (s *Store) EnsureDefault(id, label string) (*Room, error) {
	r, err := s.Create(label, id)
	if errors.Is(err, errs.ErrDuplicateID) {
		r, err = s.Get(id)
	}
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.pinned[id] = true
	s.mu.Unlock()
	return r, nil
}

func (s *Store) Get(id string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, fmt.Errorf("room %s: %w", id, errs.ErrNotFound)
	}
	return r, nil
}

// Delete notifies every member with room-deleted, closes their streams and
// unregisters the room. Later lookups fail with ErrNotFound.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return fmt.Errorf("room %s: %w", id, errs.ErrNotFound)
	}
	s.remove(id, r)
	return nil
}

func (s *Store) remove(id string, r *Room) {
	r.close()
	delete(s.rooms, id)
	delete(s.pinned, id)
	s.opts.Hooks.ForgetRoom(id)
	s.opts.Hooks.RoomsOpen(len(s.rooms))
}

// List returns room summaries, oldest first.
func (s *Store) List() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := lo.FilterMap(lo.Values(s.rooms), func(r *Room, _ int) (Summary, bool) {
		sum, err := r.Summary()
		return sum, err == nil
	})
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// SweepIdle deletes unpinned rooms that have had no connections and no
// participants for longer than ttl. It returns the ids it removed.
func (s *Store) SweepIdle(ttl time.Duration, now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var swept []string
	for id, r := range s.rooms {
		if s.pinned[id] || !r.idleSince(now, ttl) {
			continue
		}
		s.remove(id, r)
		swept = append(swept, id)
	}
	if len(swept) > 0 {
		s.opts.Logger.Info().Strs("rooms", swept).Msg("swept idle rooms")
	}
	return swept
}

// RunSweeper calls SweepIdle periodically until ctx is done. A zero ttl
// disables sweeping.
func (s *Store) RunSweeper(ctx context.Context, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	every := min(ttl/2, 5*time.Minute)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.SweepIdle(ttl, now)
		}
	}
}
