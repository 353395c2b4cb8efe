package rooms

import (
	"captioncast/internal/backlog"
	"captioncast/internal/errs"
	"captioncast/internal/events"
	"captioncast/internal/fanout"
	"captioncast/internal/messages"
	"captioncast/internal/mode"
	"captioncast/internal/sessionlog"
	"captioncast/internal/turns"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Outcome tells the sender what happened to a dispatched text.
type Outcome string

const (
	OutcomeSent   Outcome = "sent"
	OutcomeQueued Outcome = "queued"
)

type Result struct {
	Outcome Outcome           `json:"outcome"`
	Message *messages.Message `json:"message,omitempty"`
	Item    *backlog.Item     `json:"item,omitempty"`
}

// Room is the unit of isolation. Every operation takes the room lock, so
// rotation, authorisation, mode changes and threshold checks always observe
// one consistent state. Notifications are published under the same lock,
// which keeps them in state order; publishing never blocks.
type Room struct {
	ID        string
	Label     string
	CreatedAt time.Time

	mu          sync.Mutex
	closed      bool
	lastActive  time.Time
	turns       *turns.Ring
	mode        *mode.Controller
	queue       *backlog.Queue
	hub         *fanout.Hub
	journal     *sessionlog.Journal
	autoAdvance bool
	warned      backlog.Tier
	hooks       Hooks
	log         zerolog.Logger
}

func newRoom(id, label string, opts Options) *Room {
	log := opts.Logger.With().Str("room", id).Logger()
	return &Room{
		ID:          id,
		Label:       label,
		CreatedAt:   time.Now(),
		lastActive:  time.Now(),
		turns:       turns.NewRing(),
		mode:        mode.NewController(),
		queue:       backlog.NewQueue(opts.Thresholds),
		hub:         fanout.NewHub(fanout.WithLogger(log), fanout.WithDropHook(opts.Hooks.FrameDropped)),
		journal:     sessionlog.NewJournal(id, opts.LogSink, opts.Logger),
		autoAdvance: opts.AutoAdvance,
		hooks:       opts.Hooks,
		log:         log,
	}
}

// lock takes the room lock for a mutation and marks the room active.
func (r *Room) lock() error {
	if err := r.view(); err != nil {
		return err
	}
	r.touch()
	return nil
}

// touch requires r.mu held. Requests that may be refused take the lock with
// view and call touch once they are accepted.
func (r *Room) touch() {
	r.lastActive = time.Now()
}

// view takes the room lock for a read.
func (r *Room) view() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return fmt.Errorf("room %s: %w", r.ID, errs.ErrNotFound)
	}
	return nil
}

// Subscribe attaches a connection to an audience and sends it the state it
// needs to render immediately.
func (r *Room) Subscribe(c *fanout.Client, a fanout.Audience) error {
	if err := r.lock(); err != nil {
		return err
	}
	defer r.mu.Unlock()

	if err := r.hub.Subscribe(c, a); err != nil {
		return err
	}
	r.hub.SendTo(c.ID, r.event(events.ParticipantsChanged, r.participantsPayload()))
	if a == fanout.Admins {
		r.hub.SendTo(c.ID, r.event(events.SystemStatus, r.statusPayload()))
	}
	return nil
}

func (r *Room) Unsubscribe(connID string, a fanout.Audience) {
	r.hub.Unsubscribe(connID, a)
}

// Reply sends a frame to a single connection. It is how errors and
// acknowledgements reach only the caller.
func (r *Room) Reply(connID string, t events.Type, data any) bool {
	return r.hub.SendTo(connID, r.event(t, data))
}

// Disconnect is the implicit leave of a dropped connection.
func (r *Room) Disconnect(connID string) {
	if _, _, err := r.Leave(connID); err == nil {
		r.log.Info().Str("conn", connID).Msg("participant left on disconnect")
	}
	r.hub.Drop(connID)
}

// Join enrols a connection as a sender. The first participant of an empty
// room starts a fresh session log.
func (r *Room) Join(connID, name string) (turns.Participant, error) {
	if err := r.lock(); err != nil {
		return turns.Participant{}, err
	}
	defer r.mu.Unlock()

	p, first, err := r.turns.Join(connID, name)
	if err != nil {
		return turns.Participant{}, err
	}
	if first {
		r.journal.Reset()
	}
	r.log.Info().Str("conn", connID).Str("name", name).Int("participants", r.turns.Len()).Msg("participant joined")
	r.hub.SendTo(connID, r.event(events.Joined, p))
	r.hub.Publish(r.event(events.ParticipantsChanged, r.participantsPayload()), fanout.Everyone...)
	return p, nil
}

// Leave removes a participant and reports whether it held the turn.
func (r *Room) Leave(connID string) (turns.Participant, bool, error) {
	if err := r.lock(); err != nil {
		return turns.Participant{}, false, err
	}
	defer r.mu.Unlock()

	p, wasHolder, err := r.turns.Leave(connID)
	if err != nil {
		return turns.Participant{}, false, err
	}
	r.log.Info().Str("conn", connID).Bool("was_holder", wasHolder).Int("participants", r.turns.Len()).Msg("participant left")
	r.hub.Publish(r.event(events.ParticipantsChanged, r.participantsPayload()), fanout.Everyone...)
	if wasHolder {
		r.hub.Publish(r.event(events.TurnChanged, r.turnPayload()), fanout.Everyone...)
	}
	return p, wasHolder, nil
}

// AdvanceTurn passes the turn on. Only the holder may call it.
func (r *Room) AdvanceTurn(connID string) (turns.Participant, error) {
	if err := r.view(); err != nil {
		return turns.Participant{}, err
	}
	defer r.mu.Unlock()

	if !r.turns.Authorize(connID) {
		return turns.Participant{}, errs.ErrUnauthorized
	}
	r.touch()
	next, _ := r.turns.Advance()
	r.hub.Publish(r.event(events.TurnChanged, r.turnPayload()), fanout.Everyone...)
	return next, nil
}

// SendText dispatches text from the turn holder and, when auto-advance is
// on, passes the turn to the next participant.
func (r *Room) SendText(connID, text string) (Result, error) {
	if err := r.view(); err != nil {
		return Result{}, err
	}
	defer r.mu.Unlock()

	if !r.turns.Authorize(connID) {
		return Result{}, errs.ErrUnauthorized
	}
	r.touch()
	holder, _ := r.turns.Holder()
	res := r.dispatch(holder.Name, text, messages.ProvenanceTurn, nil)
	if r.autoAdvance {
		r.turns.Advance()
		r.hub.Publish(r.event(events.TurnChanged, r.turnPayload()), fanout.Everyone...)
	}
	return res, nil
}

// EnqueueExternal injects text from a speech or translation source under a
// pseudo-participant label. It bypasses turn authorisation but is routed
// like any other send.
func (r *Room) EnqueueExternal(label, text string, p messages.Provenance, meta *messages.Meta) (Result, error) {
	if err := r.lock(); err != nil {
		return Result{}, err
	}
	defer r.mu.Unlock()

	if !p.Valid() || p == messages.ProvenanceTurn {
		p = messages.ProvenanceExternal
	}
	return r.dispatch(label, text, p, meta), nil
}

// ReleaseText sends operator-edited text straight to viewers.
func (r *Room) ReleaseText(label, text string) (messages.Message, error) {
	if err := r.lock(); err != nil {
		return messages.Message{}, err
	}
	defer r.mu.Unlock()

	msg := messages.New(label, text, messages.ProvenanceTakeRelease, nil)
	r.deliver(msg)
	return msg, nil
}

// SetMode is the manual toggle. Realtime is always allowed; take is refused
// during an emergency until the backlog is inside the recovery band.
func (r *Room) SetMode(target mode.Mode) error {
	if err := r.lock(); err != nil {
		return err
	}
	defer r.mu.Unlock()

	switch target {
	case mode.Realtime:
		r.mode.SetRealtime()
	case mode.Take:
		if err := r.mode.EnterTake(r.queue.Len(), r.queue.Thresholds().ReturnLimit(), mode.ReasonManual); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %q", errs.ErrInvalidMode, target)
	}
	r.log.Info().Str("mode", string(target)).Msg("mode changed")
	r.publishMode(mode.ReasonManual)
	return nil
}

// ReturnToTake is the explicit return after an emergency.
func (r *Room) ReturnToTake() error {
	if err := r.lock(); err != nil {
		return err
	}
	defer r.mu.Unlock()

	if err := r.mode.EnterTake(r.queue.Len(), r.queue.Thresholds().ReturnLimit(), mode.ReasonManualReturn); err != nil {
		return err
	}
	r.log.Info().Int("backlog", r.queue.Len()).Msg("returned to take mode")
	r.publishMode(mode.ReasonManualReturn)
	return nil
}

// PopNext releases the oldest staged item to viewers.
func (r *Room) PopNext() (messages.Message, error) {
	if err := r.lock(); err != nil {
		return messages.Message{}, err
	}
	defer r.mu.Unlock()

	item, ok := r.queue.Pop()
	if !ok {
		return messages.Message{}, errs.ErrEmpty
	}
	msg := messages.New(item.Sender, item.Text, messages.ProvenanceTakeRelease, item.Meta)
	r.deliver(msg)
	r.drained()
	return msg, nil
}

// RemoveItem discards a staged item without releasing it.
func (r *Room) RemoveItem(id int64) (backlog.Item, error) {
	if err := r.lock(); err != nil {
		return backlog.Item{}, err
	}
	defer r.mu.Unlock()

	item, ok := r.queue.Remove(id)
	if !ok {
		return backlog.Item{}, fmt.Errorf("backlog item %d: %w", id, errs.ErrNotFound)
	}
	r.drained()
	return item, nil
}

// Typing relays a participant's in-progress text to everyone else.
func (r *Room) Typing(connID, text string) error {
	if err := r.view(); err != nil {
		return err
	}
	defer r.mu.Unlock()

	p, ok := r.turns.Get(connID)
	if !ok {
		return fmt.Errorf("participant %s: %w", connID, errs.ErrNotFound)
	}
	r.touch()
	r.hub.PublishExcept(connID, r.event(events.Typing, events.TypingState{ConnID: connID, Name: p.Name, Text: text}),
		fanout.Participants, fanout.Viewers)
	return nil
}

// ClearLog starts a new session log without touching turns or the backlog.
func (r *Room) ClearLog() error {
	if err := r.lock(); err != nil {
		return err
	}
	defer r.mu.Unlock()
	r.journal.Reset()
	return nil
}

func (r *Room) dispatch(sender, text string, p messages.Provenance, meta *messages.Meta) Result {
	if r.mode.Mode() == mode.Realtime {
		msg := messages.New(sender, text, p, meta)
		r.deliver(msg)
		return Result{Outcome: OutcomeSent, Message: &msg}
	}

	item, tier := r.queue.Push(sender, text, p, meta)
	r.queueChanged()
	r.evaluate(tier)
	return Result{Outcome: OutcomeQueued, Item: &item}
}

func (r *Room) deliver(msg messages.Message) {
	r.journal.Append(msg)
	r.hooks.Dispatched(r.ID, msg.Provenance)
	r.hub.Publish(events.Dispatched(r.ID, msg), fanout.Everyone...)
}

// evaluate acts on the tier reached by a push. Only a climb into a higher
// tier notifies. Forcing realtime is edge triggered as well: once forced the
// room no longer stages sends, so the same crossing cannot fire twice.
func (r *Room) evaluate(tier backlog.Tier) {
	prev := r.warned
	r.warned = tier
	if tier <= prev {
		return
	}
	n := r.queue.Len()
	th := r.queue.Thresholds()
	switch tier {
	case backlog.TierEmergency:
		if !r.mode.ForceEmergency() {
			return
		}
		r.log.Warn().Int("backlog", n).Int("threshold", th.Emergency).Msg("backlog overflow, forced realtime")
		r.hooks.EmergencyForced(r.ID)
		r.publishMode(mode.ReasonEmergencyAuto)
		r.hub.Publish(r.event(events.QueueWarning, events.Warning{Tier: tier.String(), Count: n, Threshold: th.Emergency}), fanout.Admins)
	case backlog.TierCritical, backlog.TierWarn:
		r.hub.Publish(r.event(events.QueueWarning, events.Warning{Tier: tier.String(), Count: n, Threshold: th.Limit(tier)}), fanout.Admins)
	}
}

// drained runs after the backlog shrinks. Dropping below a tier re-arms its
// warning.
func (r *Room) drained() {
	r.warned = r.queue.Thresholds().Classify(r.queue.Len())
	r.queueChanged()
	r.checkRecovery()
}

// checkRecovery tells admins when an emergency backlog has drained enough to
// return to take mode. It is advisory only.
func (r *Room) checkRecovery() {
	if !r.mode.Emergency() || !r.queue.InRecoveryBand() {
		return
	}
	r.hub.Publish(r.event(events.ReturnAvailable, events.Recovery{
		Count:     r.queue.Len(),
		Threshold: r.queue.Thresholds().ReturnLimit(),
	}), fanout.Admins)
}

func (r *Room) queueChanged() {
	r.hooks.QueueLength(r.ID, r.queue.Len())
	r.hub.Publish(r.event(events.QueueChanged, events.Queue{Items: r.queue.Snapshot(), Count: r.queue.Len()}), fanout.Admins)
}

func (r *Room) publishMode(reason mode.Reason) {
	st := r.mode.State()
	r.hub.Publish(r.event(events.ModeChanged, events.ModeChange{Mode: st.Mode, Reason: reason, Emergency: st.Emergency}), fanout.Everyone...)
	r.hub.Publish(r.event(events.SystemStatus, r.statusPayload()), fanout.Admins)
}

// close notifies every member exactly once and tears the room down.
func (r *Room) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.hub.CloseWith(r.event(events.RoomDeleted, nil))
	r.closed = true
	r.log.Info().Msg("room closed")
}

func (r *Room) event(t events.Type, data any) events.Event {
	return events.New(r.ID, t, data)
}

func (r *Room) participantsPayload() events.Participants {
	out := events.Participants{Participants: r.turns.List(), HolderIndex: r.turns.HolderIndex()}
	if h, ok := r.turns.Holder(); ok {
		out.Holder = &h
	}
	return out
}

func (r *Room) turnPayload() events.Turn {
	out := events.Turn{HolderIndex: r.turns.HolderIndex()}
	if h, ok := r.turns.Holder(); ok {
		out.Holder = &h
	}
	return out
}

func (r *Room) statusPayload() events.Status {
	st := r.mode.State()
	return events.Status{
		Mode:       st.Mode,
		Emergency:  st.Emergency,
		Queue:      r.queue.Snapshot(),
		QueueCount: r.queue.Len(),
		Thresholds: r.queue.Thresholds(),
	}
}
