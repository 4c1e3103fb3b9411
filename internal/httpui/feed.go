package httpui

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	feedWriteTimeout = 10 * time.Second
	feedPingInterval = 30 * time.Second
)

// handleStatusFeed pushes every submission status transition to the page so
// the status banner updates without polling the local server.
func (s *Server) handleStatusFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("status feed upgrade failed")
		return
	}
	defer conn.Close()

	updates, unsubscribe := s.controller.Subscribe()
	defer unsubscribe()

	// Reader goroutine only notices the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Send the current snapshot first so a page that connects mid-submission
	// renders the right state immediately.
	if err := s.writeStatus(conn, s.controller.Status()); err != nil {
		return
	}

	ping := time.NewTicker(feedPingInterval)
	defer ping.Stop()
	for {
		select {
		case st := <-updates:
			if err := s.writeStatus(conn, st); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) writeStatus(conn *websocket.Conn, st any) error {
	conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
	return conn.WriteJSON(st)
}
