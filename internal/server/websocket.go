package server

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

// upgrader accepts same-origin connections and connections from loopback or
// private network origins.
var upgrader = websocket.Upgrader{
	CheckOrigin: checkOrigin,
}

func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// Same-origin requests from non-browser clients carry no Origin header.
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		slog.Warn("rejected WebSocket connection", "origin", origin)
		return false
	}
	if u.Host == r.Host {
		return true
	}

	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil && (ip.IsLoopback() || ip.IsPrivate()) {
		return true
	}

	slog.Warn("rejected WebSocket connection", "origin", origin)
	return false
}

// Conn is a WebSocket connection that is safe for concurrent writers.
type Conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// UpgradeConnection upgrades an HTTP connection to WebSocket.
func UpgradeConnection(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return &Conn{ws: ws}, nil
}

// ReadJSON reads the next JSON message. Only one goroutine may read.
func (c *Conn) ReadJSON(v any) error {
	return c.ws.ReadJSON(v)
}

// WriteJSON writes v as a JSON message.
func (c *Conn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.ws.Close()
}
