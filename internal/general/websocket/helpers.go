package websocket

import (
	"sync"
	"time"

	"smart-fleet/internal/general/stomp"

	"github.com/gorilla/websocket"
)

// wsWriteClose sends a close control frame with the given code and reason.
func (b *Broker) wsWriteClose(conn *websocket.Conn, code int, reason string) {
	mu := b.lockOf(conn)
	mu.Lock()
	defer mu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(wsCloseAckWindow),
	)
}

// wsWriteMessage sets a short write deadline and writes a message.
func (b *Broker) wsWriteMessage(conn *websocket.Conn, mt int, payload []byte) error {
	mu := b.lockOf(conn)
	mu.Lock()
	defer mu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(mt, payload)
}

// writeFrame encodes f and writes it as one text message.
func (b *Broker) writeFrame(conn *websocket.Conn, f *stomp.Frame) error {
	return b.wsWriteMessage(conn, websocket.TextMessage, f.Encode())
}

// lockOf returns the mutex for a specific connection
func (b *Broker) lockOf(conn *websocket.Conn) *sync.Mutex {
	if v, ok := b.writeLocks.Load(conn); ok {
		if mu, ok := v.(*sync.Mutex); ok && mu != nil {
			return mu
		}
	}
	mu := &sync.Mutex{}
	actual, _ := b.writeLocks.LoadOrStore(conn, mu)
	return actual.(*sync.Mutex)
}

// pingLoop keeps the connection alive until stop is closed or a ping fails.
func (b *Broker) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			mu := b.lockOf(conn)
			mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctrlTimeout))
			mu.Unlock()
			if err != nil {
				// close socket to unblock the reader
				_ = conn.Close()
				return
			}
		}
	}
}
