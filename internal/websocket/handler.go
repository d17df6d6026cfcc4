package websocket

import (
	"clinedit-collab/internal/service"

	"github.com/gofiber/websocket/v2"
)

// ServeWs runs one comment-channel connection for the document room. The
// connection must authenticate before it joins the room; rejected clients
// never see a broadcast.
func ServeWs(hub *Hub, svc service.ICommentService, conn *websocket.Conn, documentId string) {
	client := &Client{
		Hub:     hub,
		Conn:    conn,
		Service: svc,
		Room:    documentId,
		Send:    make(chan []byte, 256),
	}

	if !client.handshake() {
		conn.Close()
		return
	}

	client.Hub.register <- client

	go client.writePump()
	client.readPump() // Run readPump in current goroutine (handler)
}
