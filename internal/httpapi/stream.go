package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const wsWriteWait = 10 * time.Second

// handleSSE streams bus events as text/event-stream, one
// "data: <json>\n\n" frame per event, starting with the replay buffer.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	fl, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fl.Flush()

	sub := s.Sinks.Bus.Subscribe(true)
	defer sub.Close()
	s.Logger.Debug("stream_opened", zap.String("transport", "sse"), zap.String("remote", r.RemoteAddr))

	for {
		ev, ok := sub.Next(r.Context())
		if !ok {
			return
		}
		b, err := json.Marshal(ev)
		if err != nil {
			s.Logger.Error("stream_encode_failed", zap.Error(err))
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
			return
		}
		fl.Flush()
	}
}

// handleWS streams the same events as JSON text frames.
func (s *Server) handleWS(up websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			s.Logger.Debug("ws_upgrade_failed", zap.Error(err))
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Incoming frames are ignored; a read error means the peer is gone.
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		sub := s.Sinks.Bus.Subscribe(true)
		defer sub.Close()
		s.Logger.Debug("stream_opened", zap.String("transport", "ws"), zap.String("remote", r.RemoteAddr))

		for {
			ev, ok := sub.Next(ctx)
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}
