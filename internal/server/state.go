package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

// handleState serves a single state snapshot as JSON.
func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.snapshot()); err != nil {
		slog.Warn("state: encode failed", "err", err)
	}
}

// handleStateFeed upgrades to a websocket and pushes a state snapshot
// immediately and then on every interval tick until the client disconnects.
func (s *Server) handleStateFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("state feed: websocket accept failed", "err", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "feed closed")

	// CloseRead cancels the context when the client goes away; the feed is
	// push-only and discards any incoming messages.
	ctx := conn.CloseRead(r.Context())

	if err := s.writeState(ctx, conn); err != nil {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.writeState(ctx, conn); err != nil {
				slog.Debug("state feed: subscriber gone", "err", err)
				return
			}
		}
	}
}

// writeState marshals the current snapshot and writes it as one text message.
func (s *Server) writeState(ctx context.Context, conn *websocket.Conn) error {
	data, err := json.Marshal(s.snapshot())
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// snapshot stamps the uptime onto the producer's state.
func (s *Server) snapshot() State {
	st := s.state()
	if !st.StartedAt.IsZero() {
		st.UptimeSeconds = time.Since(st.StartedAt).Seconds()
	}
	return st
}
