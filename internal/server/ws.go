package server

import (
	"captioncast/internal/errs"
	"captioncast/internal/events"
	"captioncast/internal/fanout"
	"captioncast/internal/mode"
	"captioncast/internal/rooms"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
)

// command is a frame sent by a client. Fields not used by a command are
// ignored.
type command struct {
	Type       string  `json:"t" validate:"required"`
	Name       string  `json:"name" validate:"max=64"`
	Text       string  `json:"text" validate:"max=4000"`
	Mode       string  `json:"mode"`
	ItemID     int64   `json:"itemId"`
	Label      string  `json:"label" validate:"max=64"`
	Provenance string  `json:"provenance" validate:"omitempty,oneof=speech external translation"`
	Language   string  `json:"language" validate:"max=35"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
	Translate  bool    `json:"translate"`
}

var errUnknownCommand = fmt.Errorf("%w: unknown command", errBadRequest)

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	audience, err := fanout.ParseAudience(r.URL.Query().Get("role"))
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		s.Log.Warn().Err(err).Str("room", room.ID).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	client := fanout.NewClient(uuid.NewString(), conn, s.ClientBuffer)
	if err := room.Subscribe(client, audience); err != nil {
		conn.Close(websocket.StatusPolicyViolation, "room not found")
		return
	}
	log := s.Log.With().Str("room", room.ID).Str("conn", client.ID).Str("role", string(audience)).Logger()
	log.Info().Msg("websocket connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The write pump ends when the room closes the stream; that also ends
	// the read loop below.
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		defer cancel()
		if err := client.WritePump(ctx); err != nil && ctx.Err() == nil {
			log.Debug().Err(err).Msg("write pump stopped")
		}
	}()

	for {
		var cmd command
		if err := wsjson.Read(ctx, conn, &cmd); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				log.Debug().Err(err).Msg("websocket read")
			}
			break
		}
		s.handleCommand(ctx, room, client.ID, audience, cmd)
	}

	room.Disconnect(client.ID)
	cancel()
	<-pumpDone
	conn.Close(websocket.StatusNormalClosure, "")
	log.Info().Msg("websocket disconnected")
}

// handleCommand runs one client command. Failures are reported to the
// caller only.
func (s *Server) handleCommand(ctx context.Context, room *rooms.Room, connID string, audience fanout.Audience, cmd command) {
	if err := validate.Struct(cmd); err != nil {
		s.replyError(room, connID, err)
		return
	}
	result, err := s.runCommand(ctx, room, connID, audience, cmd)
	if err != nil {
		s.replyError(room, connID, err)
		return
	}
	room.Reply(connID, events.Ack, events.Acknowledgement{Command: cmd.Type, Result: result})
}

func (s *Server) runCommand(ctx context.Context, room *rooms.Room, connID string, audience fanout.Audience, cmd command) (any, error) {
	switch cmd.Type {
	case "ping":
		return nil, nil
	case "status":
		return room.Status()
	}

	switch audience {
	case fanout.Participants:
		switch cmd.Type {
		case "join":
			if cmd.Name == "" {
				return nil, fmt.Errorf("%w: name is required", errBadRequest)
			}
			return room.Join(connID, cmd.Name)
		case "leave":
			p, _, err := room.Leave(connID)
			return p, err
		case "send":
			if cmd.Text == "" {
				return nil, fmt.Errorf("%w: text is required", errBadRequest)
			}
			return room.SendText(connID, cmd.Text)
		case "advance":
			return room.AdvanceTurn(connID)
		case "typing":
			return nil, room.Typing(connID, cmd.Text)
		}
	case fanout.Admins:
		switch cmd.Type {
		case "set-mode":
			m, err := mode.Parse(cmd.Mode)
			if err != nil {
				return nil, err
			}
			return nil, room.SetMode(m)
		case "return-to-take":
			return nil, room.ReturnToTake()
		case "pop":
			return room.PopNext()
		case "remove":
			return room.RemoveItem(cmd.ItemID)
		case "release":
			if cmd.Text == "" {
				return nil, fmt.Errorf("%w: text is required", errBadRequest)
			}
			label := cmd.Label
			if label == "" {
				label = "operator"
			}
			return room.ReleaseText(label, cmd.Text)
		case "external":
			return s.ingest(ctx, room, externalRequest{
				Text:       cmd.Text,
				Label:      cmd.Label,
				Provenance: cmd.Provenance,
				Language:   cmd.Language,
				Confidence: cmd.Confidence,
				Translate:  cmd.Translate,
			})
		case "clear-log":
			return nil, room.ClearLog()
		}
	}
	return nil, fmt.Errorf("%w %q for %s", errUnknownCommand, cmd.Type, audience)
}

func (s *Server) replyError(room *rooms.Room, connID string, err error) {
	var te *errs.TransitionError
	if errors.As(err, &te) {
		room.Reply(connID, events.ModeChangeRejected, events.Rejection{
			QueueLength:       te.QueueLength,
			RequiredThreshold: te.RequiredThreshold,
			Remaining:         te.Remaining(),
		})
		return
	}
	_, code := classify(err)
	room.Reply(connID, events.Error, events.Failure{Code: code, Message: err.Error()})
}
