package server

import (
	"captioncast/internal/fanout"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// handleEvents streams the viewer audience as server-sent events, for
// displays that cannot hold a WebSocket.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	room, ok := s.room(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	client := fanout.NewClient(uuid.NewString(), nil, s.ClientBuffer)
	if err := room.Subscribe(client, fanout.Viewers); err != nil {
		s.writeError(w, err)
		return
	}
	defer room.Unsubscribe(client.ID, fanout.Viewers)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			var head struct {
				Type string `json:"t"`
			}
			json.Unmarshal(msg, &head)
			fmt.Fprintf(w, "event: %s\n", head.Type)
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
