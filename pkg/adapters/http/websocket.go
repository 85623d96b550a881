package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Chat handles GET /ws/chat/{sessionId}. Every text frame is a JSON
// parley.ChatRequest and is answered with a JSON parley.ChatResponse. Turns
// of the same session started elsewhere are pushed to the socket too.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket: Upgrade failed", "session_id", sessionID, "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, unsubscribe := s.Streams.Subscribe(sessionID)
	defer unsubscribe()

	conn.SetReadLimit(int64(parley.MaxInputSize()) + 1024)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// The reader pushes replies into frames so that only the writer loop
	// below touches the connection for writing.
	frames := make(chan *parley.ChatResponse)
	go func() {
		defer cancel()
		for {
			var req parley.ChatRequest
			if err := conn.ReadJSON(&req); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Warn("WebSocket: Read failed", "session_id", sessionID, "err", err)
				}
				return
			}
			resp := s.handleFrame(ctx, sessionID, req)
			if payload, err := json.Marshal(resp); err == nil {
				s.Streams.BroadcastExcept(sessionID, string(payload), events)
			}
			select {
			case frames <- resp:
			case <-ctx.Done():
				return
			}
		}
	}()

	s.logger.Info("WebSocket: Connected", "session_id", sessionID)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("WebSocket: Disconnected", "session_id", sessionID)
			return
		case resp := <-frames:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(resp); err != nil {
				s.logger.Warn("WebSocket: Write failed", "session_id", sessionID, "err", err)
				return
			}
		case msg, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleFrame(ctx context.Context, sessionID string, req parley.ChatRequest) *parley.ChatResponse {
	clean, err := parley.SanitizeInput(req.Message)
	if err != nil {
		s.logger.Warn("WebSocket: Input rejected", "session_id", sessionID, "err", err, "size", len(req.Message))
		return &parley.ChatResponse{
			Message:     "Your message could not be accepted: " + err.Error(),
			SessionID:   sessionID,
			FromBot:     true,
			MessageType: parley.MessageError,
			Choices:     []domain.ChoiceOption{},
			Timestamp:   time.Now(),
		}
	}
	req.Message = clean
	return s.Engine.Chat(ctx, sessionID, req)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.origins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range s.origins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}
