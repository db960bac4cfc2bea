package game

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Server exposes the session over HTTP: the WebSocket endpoint players connect
// to and a read-only JSON view of the session.
type Server struct {
	session *Session
	log     *slog.Logger
}

func NewServer(session *Session, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{session: session, log: log}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/session", s.handleSnapshot)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
