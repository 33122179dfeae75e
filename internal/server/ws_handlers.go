package server

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// upgrader upgrades HTTP requests to WebSockets. CheckOrigin allows all
// origins: the monitor binds to localhost for a single local user, and
// restricting it would only get in the way of development.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWSLive streams live sample/statistics ticks while a stream runs.
// The read loop exists only to detect client disconnects.
func (s *Server) handleWSLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := s.wsLive.Add(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.wsLive.Remove(client)
			return
		}
	}
}
