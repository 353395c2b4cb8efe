package server

import (
	"captioncast/internal/analytics"
	"captioncast/internal/db"
	"captioncast/internal/metrics"
	"captioncast/internal/rooms"
	"captioncast/internal/translate"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

var validate = validator.New()

type Server struct {
	Rooms        *rooms.Store
	Translation  *translate.Service
	Metrics      *metrics.Metrics
	DB           *db.DB             // nil if no database configured
	History      *analytics.Queries // nil if no database configured
	ClientBuffer int
	Log          zerolog.Logger
}

// Routes wires every endpoint onto a fresh mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/rooms", s.handleCreateRoom)
	mux.HandleFunc("GET /api/rooms", s.handleListRooms)
	mux.HandleFunc("GET /api/rooms/{id}", s.handleGetRoom)
	mux.HandleFunc("DELETE /api/rooms/{id}", s.handleDeleteRoom)
	mux.HandleFunc("GET /api/rooms/{id}/status", s.handleSystemStatus)
	mux.HandleFunc("GET /api/rooms/{id}/messages", s.handleMessages)
	mux.HandleFunc("GET /api/rooms/{id}/stats", s.handleStats)
	mux.HandleFunc("GET /api/rooms/{id}/history", s.handleHistory)
	mux.HandleFunc("POST /api/rooms/{id}/clear-log", s.handleClearLog)
	mux.HandleFunc("POST /api/rooms/{id}/external", s.handleExternal)
	mux.HandleFunc("POST /api/rooms/{id}/translate", s.handleTranslate)
	mux.HandleFunc("GET /api/translation", s.handleGetTranslation)
	mux.HandleFunc("POST /api/translation", s.handleUpdateTranslation)
	mux.HandleFunc("GET /ws/{id}", s.handleWS)
	mux.HandleFunc("GET /events/{id}", s.handleEvents)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics.Handler())
	}
	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
		next.ServeHTTP(w, r)
	})
}
