package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client is one websocket subscriber attached to a table feed.
type Client struct {
	conn *websocket.Conn
	send chan []byte
}

// HubConfig tunes hub behaviour.
type HubConfig struct {
	SendBufferSize int
	WriteTimeout   time.Duration
	Logger         *zap.Logger

	// Optional connection lifecycle hooks, invoked once per subscriber.
	OnConnect    func()
	OnDisconnect func()
}

// Hub fans committed change events out to websocket subscribers, grouped by
// table name. Slow consumers are dropped rather than blocking publishers.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*websocket.Conn]*Client

	bufferSize   int
	writeTimeout time.Duration
	logger       *zap.Logger
	onConnect    func()
	onDisconnect func()

	chapterFeed *ChapterFeed
}

// NewHub constructs an empty hub.
func NewHub(cfg HubConfig) *Hub {
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = 256
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Hub{
		clients:      make(map[string]map[*websocket.Conn]*Client),
		bufferSize:   cfg.SendBufferSize,
		writeTimeout: cfg.WriteTimeout,
		logger:       cfg.Logger,
		onConnect:    cfg.OnConnect,
		onDisconnect: cfg.OnDisconnect,
	}
}

// AttachChapterFeed keeps feed current with published chapter events and
// seeds new chapter subscribers with its snapshot.
func (h *Hub) AttachChapterFeed(feed *ChapterFeed) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.chapterFeed = feed
}

// Register attaches a connection to a table feed and starts its pumps. New
// chapter subscribers receive a snapshot before incremental events.
func (h *Hub) Register(table string, conn *websocket.Conn) {
	client := &Client{conn: conn, send: make(chan []byte, h.bufferSize)}

	if payload := h.snapshotPayload(table); payload != nil {
		client.send <- payload
	}

	h.mu.Lock()
	if _, ok := h.clients[table]; !ok {
		h.clients[table] = make(map[*websocket.Conn]*Client)
	}
	h.clients[table][conn] = client
	h.mu.Unlock()

	if h.onConnect != nil {
		h.onConnect()
	}

	go h.readPump(table, conn)
	go h.writePump(table, client)
}

// Unregister detaches a connection from a table feed.
func (h *Hub) Unregister(table string, conn *websocket.Conn) {
	dropped := false

	h.mu.Lock()
	if clients, ok := h.clients[table]; ok {
		if client, ok := clients[conn]; ok {
			close(client.send)
			delete(clients, conn)
			dropped = true
		}
		if len(clients) == 0 {
			delete(h.clients, table)
		}
	}
	h.mu.Unlock()

	if dropped && h.onDisconnect != nil {
		h.onDisconnect()
	}
}

func (h *Hub) snapshotPayload(table string) []byte {
	h.mu.RLock()
	feed := h.chapterFeed
	h.mu.RUnlock()
	if feed == nil || table != TableChapters {
		return nil
	}

	rows, err := json.Marshal(feed.Snapshot())
	if err != nil {
		h.logger.Warn("failed to marshal chapter snapshot", zap.Error(err))
		return nil
	}
	payload, err := json.Marshal(SnapshotEvent{Table: table, Type: ChangeSnapshot, Rows: rows})
	if err != nil {
		h.logger.Warn("failed to marshal snapshot event", zap.Error(err))
		return nil
	}
	return payload
}

// Publish broadcasts a change event to every subscriber of its table. When a
// chapter feed is attached the event is merged into it first, so later
// subscribers see a snapshot that already includes it.
func (h *Hub) Publish(ev ChangeEvent) {
	h.mu.RLock()
	feed := h.chapterFeed
	h.mu.RUnlock()
	if feed != nil {
		feed.ApplyEvent(ev)
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("failed to marshal change event", zap.String("table", ev.Table), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients[ev.Table] {
		select {
		case client.send <- payload:
		default:
			// Buffer full: the consumer is too slow, skip this event for it.
		}
	}
}

// SubscriberCount reports how many connections follow a table.
func (h *Hub) SubscriberCount(table string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[table])
}

func (h *Hub) readPump(table string, conn *websocket.Conn) {
	defer func() {
		h.Unregister(table, conn)
		_ = conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(table string, client *Client) {
	for msg := range client.send {
		_ = client.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.Unregister(table, client.conn)
			_ = client.conn.Close()
			return
		}
	}
}
