package ws

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/monitoring"
)

const (
	// sendBuffer is the per-connection outbound queue depth.
	sendBuffer = 256

	writeTimeout   = 10 * time.Second
	pingInterval   = 30 * time.Second
	receiveTimeout = 120 * time.Second
)

// Conn wraps one websocket with a single writer goroutine. gorilla/websocket
// permits at most one concurrent writer, so every event is funneled through
// the buffered send channel and written in enqueue order.
type Conn struct {
	clientID string
	ws       *websocket.Conn
	send     chan map[string]interface{}
	done     chan struct{}
	once     sync.Once
	metrics  *monitoring.Collector
}

func newConn(clientID string, ws *websocket.Conn, metrics *monitoring.Collector) *Conn {
	return &Conn{
		clientID: clientID,
		ws:       ws,
		send:     make(chan map[string]interface{}, sendBuffer),
		done:     make(chan struct{}),
		metrics:  metrics,
	}
}

// Send enqueues one event for delivery. It never blocks job execution: a
// closed connection or a saturated queue reports failure instead.
func (c *Conn) Send(event map[string]interface{}) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- event:
		return true
	case <-c.done:
		return false
	default:
		log.Printf("Dropping event for slow client %s", c.clientID)
		return false
	}
}

// writePump owns all writes on the socket, including the keep-alive ping.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case event := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteJSON(event); err != nil {
				log.Printf("Write failed for client %s: %v", c.clientID, err)
				c.close()
				return
			}
			c.metrics.RecordEventSent()
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteJSON(map[string]interface{}{
				"type":      "ping",
				"timestamp": unixSeconds(time.Now()),
			}); err != nil {
				log.Printf("Ping failed for client %s: %v", c.clientID, err)
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// close tears the connection down exactly once. Safe from any goroutine.
func (c *Conn) close() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000.0
}
