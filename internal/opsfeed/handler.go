package opsfeed

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// upgrader accepts any origin: the feed is an authenticated admin surface
// gated by the caller's own auth middleware, not by browser same-origin
// policy.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades an HTTP request to a websocket connection and hands it
// to the hub. Mount at e.g. GET /admin/ops/feed.
func Handler(h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Serve(conn)
	}
}
