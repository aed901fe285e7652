package websocket

import (
	"context"

	"github.com/gofiber/websocket/v2"
)

// ServeWs runs one chat socket for sessionID until the peer goes away.
func ServeWs(hub *Hub, answerer Answerer, c *websocket.Conn, sessionID string) {
	client := &Client{
		Hub:       hub,
		Conn:      c,
		SessionID: sessionID,
		Send:      make(chan []byte, 64),
		answerer:  answerer,
	}
	if !hub.Register(client) {
		c.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go client.writePump()
	client.readPump(ctx)
}
