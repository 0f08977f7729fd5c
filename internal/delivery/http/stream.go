package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// StreamQueue pushes every snapshot change over a websocket until the visitor
// disconnects.
func (h *HTTPHandler) StreamQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	client, err := h.widget.Client(ctx, r.URL.Query().Get(serviceParam))
	if err != nil {
		h.l.Errorf(ctx, "delivery.http.stream.StreamQueue: %v", err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.l.Warnf(ctx, "delivery.http.stream.StreamQueue: upgrade: %v", err)
		return
	}
	defer conn.Close()

	updates, unwatch := client.Watch()
	defer unwatch()

	// The read side only handles control frames and notices the close.
	done := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case snap := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snap); err != nil {
				h.l.Debugf(ctx, "delivery.http.stream.StreamQueue: %v", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
