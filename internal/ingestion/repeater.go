package ingestion

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Local re-broadcast only; clients connect from the same host.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Repeater re-broadcasts raw feed frames to locally connected websocket
// clients, letting other processes follow the same stream without each
// holding an exchange connection.
type Repeater struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]struct{}
	log     zerolog.Logger
}

func NewRepeater(log zerolog.Logger) *Repeater {
	return &Repeater{
		clients: make(map[*websocket.Conn]struct{}),
		log:     log,
	}
}

// Handler upgrades an incoming request and registers the client.
func (r *Repeater) Handler(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.Warn().Err(err).Msg("repeater upgrade failed")
		return
	}
	r.mu.Lock()
	r.clients[conn] = struct{}{}
	total := len(r.clients)
	r.mu.Unlock()
	r.log.Info().Int("clients", total).Msg("repeater client connected")

	// Drain and discard client frames; a read error means it left.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				r.drop(conn)
				return
			}
		}
	}()
}

// Broadcast writes one raw frame to every connected client. A client that
// cannot keep up is dropped rather than allowed to stall the feed.
func (r *Repeater) Broadcast(frame []byte) {
	r.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(r.clients))
	for conn := range r.clients {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			r.drop(conn)
		}
	}
}

func (r *Repeater) drop(conn *websocket.Conn) {
	r.mu.Lock()
	if _, ok := r.clients[conn]; ok {
		delete(r.clients, conn)
		conn.Close()
	}
	total := len(r.clients)
	r.mu.Unlock()
	r.log.Info().Int("clients", total).Msg("repeater client disconnected")
}
