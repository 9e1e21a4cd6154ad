package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"deskhogd/internal/eventbus"
	"deskhogd/pkg/types"
)

const (
	// streamBuffer is the per-client outbound frame buffer. Frames beyond it
	// are dropped so the bus worker never waits on a slow client.
	streamBuffer = 32
	writeWait    = 10 * time.Second
)

// upgrader configures the WebSocket upgrader. Origin checks are left to the
// CORS middleware.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// eventsHandler streams every bus event to the client as a JSON text frame.
// The stream ends when the client goes away or the server shuts down.
func eventsHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written an error response.
			logDebug("websocket upgrade failed", map[string]any{"error": err.Error()})
			return
		}
		defer conn.Close()
		wsClients.Inc()
		defer wsClients.Dec()

		send := make(chan []byte, streamBuffer)
		unsub := svc.Subscribe(func(e eventbus.Event) {
			data, err := json.Marshal(types.EventMessage{
				Kind:     e.Kind.String(),
				Subject:  e.SubjectID,
				Payload:  e.Payload,
				TimeUnix: time.Now().Unix(),
			})
			if err != nil {
				return
			}
			select {
			case send <- data:
			default:
				wsDropped.Inc()
			}
		})
		defer unsub()

		ctx, cancel := joinContexts(baseContext(), r.Context())
		defer cancel()

		// Reader: discards client frames and notices disconnects.
		go func() {
			defer cancel()
			conn.SetReadLimit(512)
			_ = conn.SetReadDeadline(time.Now().Add(streamPingInterval + writeWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(streamPingInterval + writeWait))
			})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(streamPingInterval)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			case data := <-send:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			case <-ping.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}
