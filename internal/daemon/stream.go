package daemon

import (
	"io"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// currentSnapshot is sent first on every stream so clients start in sync.
func (s *Service) currentSnapshot() Event {
	snap := s.snapshotStatus().Summary
	return Event{Type: "snapshot", Timestamp: time.Now(), Snapshot: &snap}
}

func (s *Service) handleSSE(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	snap := s.currentSnapshot()
	c.SSEvent(snap.Type, snap)
	c.Writer.Flush()

	c.Stream(func(io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case ev := <-ch:
			c.SSEvent(ev.Type, ev)
			return true
		}
	})
}

// handleWebSocket streams events as JSON text frames. Client frames are
// read only to notice disconnects and answer pings.
func (s *Service) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("restock daemon: websocket upgrade: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	ch := make(chan Event, 64)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	closed := make(chan struct{})
	go readPump(conn, closed)

	if err := writeFrame(conn, s.currentSnapshot()); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case ev := <-ch:
			if err := writeFrame(conn, ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("restock daemon: websocket: %v", err)
			}
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, ev Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}

