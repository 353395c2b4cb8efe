package server

import (
	"captioncast/internal/analytics"
	"captioncast/internal/messages"
	"captioncast/internal/rooms"
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultSpeechLabel = "speech"
	defaultHistorySize = 50
	maxHistorySize     = 500
)

var errNoDatabase = errors.New("history requires a database")

type createRoomRequest struct {
	ID    string `json:"id" validate:"omitempty,max=64"`
	Label string `json:"label" validate:"max=120"`
}

type externalRequest struct {
	Text       string  `json:"text" validate:"required,max=4000"`
	Label      string  `json:"label" validate:"max=64"`
	Provenance string  `json:"provenance" validate:"omitempty,oneof=speech external translation"`
	Language   string  `json:"language" validate:"max=35"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
	Translate  bool    `json:"translate"`
}

type translateRequest struct {
	Text     string `json:"text" validate:"required,max=4000"`
	Language string `json:"language" validate:"max=35"`
	Label    string `json:"label" validate:"max=64"`
}

type translationSettingsRequest struct {
	Enabled bool   `json:"enabled"`
	Target  string `json:"targetLanguage" validate:"max=35"`
}

func (s *Server) room(w http.ResponseWriter, r *http.Request) (*rooms.Room, bool) {
	room, err := s.Rooms.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return room, true
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	room, err := s.Rooms.Create(req.Label, req.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.DB != nil {
		if err := s.DB.UpsertRoom(r.Context(), room.ID, room.Label); err != nil {
			s.Log.Warn().Err(err).Str("room", room.ID).Msg("persisting room")
		}
	}
	sum, err := room.Summary()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sum)
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Rooms.List())
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	st, err := room.Status()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.Rooms.Delete(id); err != nil {
		s.writeError(w, err)
		return
	}
	if s.DB != nil {
		if err := s.DB.MarkRoomDeleted(r.Context(), id); err != nil {
			s.Log.Warn().Err(err).Str("room", id).Msg("marking room deleted")
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSystemStatus is the compact status polled by speech integrations.
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	sum, err := room.Summary()
	if err != nil {
		s.writeError(w, err)
		return
	}
	translationEnabled := s.Translation != nil && s.Translation.Settings().Enabled
	writeJSON(w, http.StatusOK, map[string]any{
		"success":            true,
		"systemMode":         sum.Mode,
		"queueCount":         sum.QueueCount,
		"isEmergencyMode":    sum.Emergency,
		"translationEnabled": translationEnabled,
		"timestamp":          time.Now(),
	})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	entries, err := room.Messages()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	tr, err := room.Transcript()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics.Summarize(tr.Entries, tr.Participants, tr.StartedAt, time.Now()))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	if s.History == nil {
		s.writeError(w, errNoDatabase)
		return
	}
	limit := defaultHistorySize
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, errBadRequest)
			return
		}
		limit = min(n, maxHistorySize)
	}

	senders, err := s.History.SenderTotals(r.Context(), room.ID, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	recent, err := s.History.RecentMessages(r.Context(), room.ID, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"senders": senders, "recent": recent})
}

func (s *Server) handleClearLog(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	if err := room.ClearLog(); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleExternal(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	var req externalRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.ingest(r.Context(), room, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ingest routes text from a speech source into a room. When translation is
// requested and fails the original text is routed instead.
func (s *Server) ingest(ctx context.Context, room *rooms.Room, req externalRequest) (rooms.Result, error) {
	label := req.Label
	if label == "" {
		label = defaultSpeechLabel
	}
	p := messages.Provenance(req.Provenance)
	if p == "" {
		p = messages.ProvenanceSpeech
	}
	var meta *messages.Meta
	if req.Language != "" || req.Confidence > 0 {
		meta = &messages.Meta{Language: req.Language, Confidence: req.Confidence}
	}

	text := req.Text
	if req.Translate && s.Translation != nil {
		tr, err := s.Translation.Translate(ctx, req.Text, req.Language)
		if err != nil {
			s.Log.Warn().Err(err).Str("room", room.ID).Msg("translation skipped")
		} else {
			text = tr.TranslatedText
			p = messages.ProvenanceTranslation
			meta = &messages.Meta{Language: tr.TargetLang, Confidence: req.Confidence, OriginalText: req.Text}
		}
	}
	return room.EnqueueExternal(label, text, p, meta)
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}
	var req translateRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if s.Translation == nil {
		s.writeError(w, errNoTranslation)
		return
	}
	tr, err := s.Translation.Translate(r.Context(), req.Text, req.Language)
	if err != nil {
		s.writeError(w, err)
		return
	}
	label := req.Label
	if label == "" {
		label = defaultSpeechLabel
	}
	res, err := room.EnqueueExternal(label, tr.TranslatedText, messages.ProvenanceTranslation,
		&messages.Meta{Language: tr.TargetLang, OriginalText: tr.OriginalText})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"translation": tr, "dispatch": res})
}

func (s *Server) handleGetTranslation(w http.ResponseWriter, r *http.Request) {
	if s.Translation == nil {
		s.writeError(w, errNoTranslation)
		return
	}
	writeJSON(w, http.StatusOK, s.Translation.Settings())
}

func (s *Server) handleUpdateTranslation(w http.ResponseWriter, r *http.Request) {
	if s.Translation == nil {
		s.writeError(w, errNoTranslation)
		return
	}
	var req translationSettingsRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	st, err := s.Translation.Update(req.Enabled, req.Target)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok", "rooms": s.Rooms.Len()}
	if s.DB != nil {
		if err := s.DB.Ping(r.Context()); err != nil {
			body["status"] = "db_error"
			body["error"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}
	writeJSON(w, http.StatusOK, body)
}
