package websocket

import (
	"encoding/json"
	"errors"
	"time"

	"clinedit-collab/internal/dto"
	"clinedit-collab/internal/entity"
	"clinedit-collab/internal/service"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	authWait       = 5 * time.Second
	maxMessageSize = 8192
)

// Client is a middleman between one websocket connection and the hub. It is
// bound to a single document room and carries the identity established by
// the auth handshake.
type Client struct {
	Hub     *Hub
	Conn    *websocket.Conn
	Service service.ICommentService

	Room     string
	UserId   string
	identity *entity.Identity

	// Buffered channel of outbound frames, drained by writePump.
	Send chan []byte
}

// handshake reads the mandatory first frame and authenticates it. The auth
// acknowledgment and the snapshot are queued before the client joins the
// room, so no broadcast can precede them.
func (c *Client) handshake() bool {
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(authWait))

	_, raw, err := c.Conn.ReadMessage()
	if err != nil {
		c.Hub.logger.Warn("Relay", "No auth frame before deadline", map[string]interface{}{"room": c.Room, "error": err.Error()})
		return false
	}

	var msg dto.AuthMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != dto.TypeAuth {
		c.reject("first message must be auth")
		return false
	}

	identity, err := c.Service.Authenticate(&msg)
	if err != nil {
		c.reject(err.Error())
		return false
	}

	c.identity = identity
	c.UserId = identity.UserId

	ack, _ := json.Marshal(dto.AuthResultMessage{Type: dto.TypeAuthSuccess})
	snapshot, _ := json.Marshal(c.Service.Snapshot(c.Room))
	c.Send <- ack
	c.Send <- snapshot
	return true
}

func (c *Client) reject(reason string) {
	payload, _ := json.Marshal(dto.AuthResultMessage{Type: dto.TypeAuthFailed, Message: reason})
	c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.Conn.WriteMessage(websocket.TextMessage, payload)
}

// readPump pumps frames from the websocket connection into the service and
// broadcasts the resulting events to the room.
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.Hub.logger.Warn("Relay", "Read error", map[string]interface{}{"room": c.Room, "user_id": c.UserId, "error": err.Error()})
			}
			return
		}
		c.dispatch(raw)
	}
}

// dispatch applies one inbound frame. Unknown types and invalid payloads
// produce an error frame back to the sender; they never end the session.
func (c *Client) dispatch(raw []byte) {
	var env dto.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.sendError("malformed message")
		return
	}

	var (
		event *dto.CommentEventMessage
		err   error
	)

	switch env.Type {
	case dto.TypeNewComment:
		var msg dto.NewCommentMessage
		if err = json.Unmarshal(raw, &msg); err == nil {
			event, err = c.Service.AddComment(c.Room, c.identity, &msg)
		}
	case dto.TypeNewReply:
		var msg dto.NewReplyMessage
		if err = json.Unmarshal(raw, &msg); err == nil {
			event, err = c.Service.AddReply(c.Room, c.identity, &msg)
		}
	case dto.TypeResolveComment:
		var msg dto.ResolveCommentMessage
		if err = json.Unmarshal(raw, &msg); err == nil {
			event, err = c.Service.Resolve(c.Room, &msg)
		}
	case dto.TypeAuth:
		// Already authenticated; a second handshake is a protocol slip.
		c.sendError("already authenticated")
		return
	default:
		c.Hub.logger.Warn("Relay", "Unknown message type", map[string]interface{}{"type": env.Type, "room": c.Room})
		c.sendError("unknown message type: " + env.Type)
		return
	}

	if err != nil {
		if errors.Is(err, service.ErrUnknownComment) {
			c.sendError("unknown comment id")
		} else {
			c.sendError("invalid payload")
		}
		return
	}

	data, _ := json.Marshal(event)
	c.Hub.BroadcastRoom(c.Room, data)
}

func (c *Client) sendError(message string) {
	payload, _ := json.Marshal(dto.ErrorMessage{Type: dto.TypeError, Message: message})
	select {
	case c.Send <- payload:
	default:
	}
}

// writePump pumps frames from the hub to the websocket connection and keeps
// the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
