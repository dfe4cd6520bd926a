package live

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"servicemarket/marketplace-service/internal/auth"
	"servicemarket/marketplace-service/internal/httpx"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 25 * time.Second
	pingTimeout  = 5 * time.Second
)

// TokenParser verifies the token passed on the upgrade request.
type TokenParser interface {
	Parse(token string) (auth.Identity, error)
}

// Handler upgrades GET /ws?token=… and runs a Session on the connection.
type Handler struct {
	hub                *Hub
	messenger          Messenger
	tokens             TokenParser
	insecureSkipVerify bool
}

// NewHandler returns the upgrade handler. insecureSkipVerify disables the
// origin check and is meant for local development only.
func NewHandler(hub *Hub, messenger Messenger, tokens TokenParser, insecureSkipVerify bool) *Handler {
	return &Handler{hub: hub, messenger: messenger, tokens: tokens, insecureSkipVerify: insecureSkipVerify}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Browsers cannot set headers on a WebSocket handshake, so the token
	// travels in the query string.
	token := r.URL.Query().Get("token")
	if token == "" {
		httpx.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	id, err := h.tokens.Parse(token)
	if err != nil {
		httpx.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: h.insecureSkipVerify})
	if err != nil {
		return // Accept already wrote the response
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := NewClient()
	session := NewSession(h.hub, h.messenger, client, id.UserID)
	defer session.Close()

	go writeLoop(ctx, cancel, conn, client)
	go keepAlive(ctx, conn)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				slog.Debug("live: read ended", "userId", session.UserID(), "err", err)
			}
			break
		}
		session.Handle(ctx, data)
	}
	conn.Close(websocket.StatusNormalClosure, "bye")
}

func writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, c *Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-c.Frames():
			writeCtx, done := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, f)
			done()
			if err != nil {
				slog.Debug("live: write failed", "err", err)
				cancel()
				return
			}
		}
	}
}

func keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			_ = conn.Ping(pingCtx)
			cancel()
		}
	}
}
