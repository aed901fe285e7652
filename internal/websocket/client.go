package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"review-rag-be/internal/dto"
	"review-rag-be/internal/pkg/serverutils"
	"review-rag-be/pkg/rag/ragerr"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
)

// Answerer is the chat service as seen from a socket.
type Answerer interface {
	Ask(ctx context.Context, req *dto.AskRequest) (*dto.AskResponse, error)
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub       *Hub
	Conn      *websocket.Conn
	SessionID string

	// Buffered channel of outbound messages.
	Send chan []byte

	answerer Answerer
}

// readPump answers each inbound question in order. It owns the connection's
// lifetime: when it returns, the client is unregistered.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("Client", "Unexpected close", map[string]interface{}{
					"session_id": c.SessionID,
					"error":      err.Error(),
				})
			}
			return
		}
		c.handle(ctx, raw)
	}
}

func (c *Client) handle(ctx context.Context, raw []byte) {
	var in dto.WsInbound
	if err := json.Unmarshal(raw, &in); err != nil || strings.TrimSpace(in.Question) == "" {
		c.reply("error", dto.WsError{Code: 400, Kind: string(ragerr.KindInvalidInput), Message: "expected {\"question\": \"...\"}"})
		return
	}

	res, err := c.answerer.Ask(ctx, &dto.AskRequest{SessionId: c.SessionID, Question: in.Question})
	if err != nil {
		c.Hub.logger.Error("Client", "Ask failed", map[string]interface{}{
			"session_id": c.SessionID,
			"error":      err.Error(),
		})
		c.reply("error", dto.WsError{
			Code:    serverutils.StatusFor(err),
			Kind:    string(ragerr.KindOf(err)),
			Message: err.Error(),
		})
		return
	}
	c.reply("answer", res)
}

func (c *Client) reply(kind string, data interface{}) {
	frame, err := json.Marshal(dto.WsOutbound{Type: kind, Data: data})
	if err != nil {
		return
	}
	c.Hub.sendTo(c, frame)
}

// writePump pumps messages from the hub to the websocket connection.
// One frame per message so clients can parse each as JSON.
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
