package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"clinedit-collab/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Hub tracks the live connections per document room and fans comment events
// out to them. With Redis configured, events are also published for other
// relay instances serving the same documents.
type Hub struct {
	// room (document id) -> connected clients
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// Redis connection for cross-instance fanout; nil when not configured.
	rdb *redis.Client

	// Distinguishes our own published events from other instances'.
	instanceId string

	logger logger.ILogger
}

type clusterEvent struct {
	Origin  string          `json:"origin"`
	Room    string          `json:"room"`
	Message json.RawMessage `json:"message"`
}

const clusterChannel = "collab_events"

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rdb:        rdb,
		instanceId: uuid.NewString(),
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.Room] == nil {
				h.rooms[client.Room] = make(map[*Client]bool)
			}
			h.rooms[client.Room][client] = true
			h.mu.Unlock()
			h.logger.Info("Hub", "Client joined room", map[string]interface{}{"room": client.Room, "user_id": client.UserId})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.Room]; ok {
				if clients[client] {
					delete(clients, client)
					close(client.Send)
				}
				if len(clients) == 0 {
					delete(h.rooms, client.Room)
				}
			}
			h.mu.Unlock()
			h.logger.Info("Hub", "Client left room", map[string]interface{}{"room": client.Room, "user_id": client.UserId})
		}
	}
}

// BroadcastRoom delivers data to every client in the room, including the
// sender (the echo doubles as the acknowledgment), and publishes it for
// other instances.
func (h *Hub) BroadcastRoom(room string, data []byte) {
	h.deliverLocal(room, data)

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterEvent{
			Origin:  h.instanceId,
			Room:    room,
			Message: data,
		})
		h.rdb.Publish(context.Background(), clusterChannel, payload)
	}
}

func (h *Hub) deliverLocal(room string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[room] {
		select {
		case client.Send <- data:
		default:
			// Slow consumer: drop the connection rather than block the room.
			h.logger.Warn("Hub", "Client send buffer full, dropping connection", map[string]interface{}{"room": room, "user_id": client.UserId})
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var event clusterEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			h.logger.Warn("Hub", "Bad cluster event payload", map[string]interface{}{"error": err.Error()})
			continue
		}
		if event.Origin == h.instanceId {
			continue
		}
		h.deliverLocal(event.Room, event.Message)
	}
}
