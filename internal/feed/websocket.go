package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/energy-pipeline/internal/status"
)

// Source provides the current status and a stream of changes.
type Source interface {
	Current() status.Status
	Subscribe() (<-chan status.Status, func())
}

// Handler upgrades requests to WebSocket and streams status messages.
type Handler struct {
	source        Source
	hub           *Hub
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a feed handler.
func NewHandler(source Source, hub *Hub, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		source:        source,
		hub:           hub,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// message is the feed wire format.
type message struct {
	Type      string     `json:"type"`
	Message   string     `json:"message,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func statusMessage(s status.Status) message {
	m := message{Type: "status", Message: s.Message}
	if !s.UpdatedAt.IsZero() {
		at := s.UpdatedAt
		m.UpdatedAt = &at
	}
	return m
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "feed ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	id := h.hub.Register(ws)
	defer h.hub.Unregister(id)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates, unsubscribe := h.source.Subscribe()
	defer unsubscribe()

	if err := writeJSON(ctx, ws, statusMessage(h.source.Current())); err != nil {
		slog.Debug("Failed to send initial status", "error", err, "conn_id", id)
		return
	}

	go func() {
		defer cancel()
		h.readLoop(ctx, ws, id)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case s := <-updates:
			if err := writeJSON(ctx, ws, statusMessage(s)); err != nil {
				slog.Debug("Failed to send status", "error", err, "conn_id", id)
				return
			}
		}
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, id string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				slog.Debug("Status feed closed", "conn_id", id)
			} else {
				slog.Warn("WebSocket read error", "error", err, "conn_id", id)
			}
			return
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			if err := writeJSON(ctx, ws, message{Type: "pong"}); err != nil {
				slog.Debug("Failed to send pong", "error", err, "conn_id", id)
				return
			}
		}
	}
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return ws.Write(writeCtx, websocket.MessageText, data)
}
