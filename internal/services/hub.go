package services

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/fantasy-rugby/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientSendSize = 64
)

// JobEvent is pushed to websocket clients on every job state change.
type JobEvent struct {
	Type string     `json:"type"`
	Job  models.Job `json:"job"`
}

// JobClient is one websocket subscriber. An empty JobID receives every job.
type JobClient struct {
	hub   *JobHub
	conn  *websocket.Conn
	send  chan []byte
	JobID string
}

type hubMessage struct {
	jobID string
	data  []byte
}

// JobHub fans job events out to websocket clients. Only the Run goroutine
// touches the client set and closes send channels.
type JobHub struct {
	clients    map[*JobClient]bool
	register   chan *JobClient
	unregister chan *JobClient
	broadcast  chan hubMessage
	done       chan struct{}
	logger     *logrus.Logger
	upgrader   websocket.Upgrader

	mu    sync.RWMutex
	count int
}

// NewJobHub restricts origins to allowedOrigins unless it is empty or
// contains "*".
func NewJobHub(allowedOrigins []string, logger *logrus.Logger) *JobHub {
	allowAll := len(allowedOrigins) == 0
	origins := map[string]bool{}
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		origins[o] = true
	}

	return &JobHub{
		clients:    make(map[*JobClient]bool),
		register:   make(chan *JobClient),
		unregister: make(chan *JobClient),
		broadcast:  make(chan hubMessage, 256),
		done:       make(chan struct{}),
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowAll || origin == "" || origins[origin]
			},
		},
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client.
func (h *JobHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			close(h.done)
			return

		case client := <-h.register:
			h.clients[client] = true
			h.setCount(len(h.clients))
			h.logger.WithFields(logrus.Fields{
				"job_id":        client.JobID,
				"total_clients": len(h.clients),
			}).Debug("Job websocket client connected")

		case client := <-h.unregister:
			if h.clients[client] {
				h.drop(client)
				h.logger.WithField("total_clients", len(h.clients)).Debug("Job websocket client disconnected")
			}

		case msg := <-h.broadcast:
			for client := range h.clients {
				if client.JobID != "" && client.JobID != msg.jobID {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					h.drop(client)
				}
			}
		}
	}
}

func (h *JobHub) drop(client *JobClient) {
	delete(h.clients, client)
	close(client.send)
	h.setCount(len(h.clients))
}

func (h *JobHub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
}

// ConnectionCount is the number of registered clients.
func (h *JobHub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Publish never blocks; events are dropped when the queue is full.
func (h *JobHub) Publish(event JobEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal job event")
		return
	}
	select {
	case h.broadcast <- hubMessage{jobID: event.Job.ID, data: data}:
	default:
		h.logger.WithField("job_id", event.Job.ID).Warn("Job event queue full, dropping event")
	}
}

// Serve upgrades the request and pumps events to the new client until
// either side closes.
func (h *JobHub) Serve(w http.ResponseWriter, r *http.Request, jobID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &JobClient{
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, clientSendSize),
		JobID: jobID,
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return nil
	}

	go client.writePump()
	go client.readPump()
	return nil
}

// readPump only consumes control frames; clients do not send commands.
func (c *JobClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.WithError(err).Warn("Job websocket read error")
			}
			return
		}
	}
}

func (c *JobClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.WithError(err).Debug("Job websocket write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
