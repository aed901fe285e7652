package dto

import "time"

type CreateSessionResponse struct {
	SessionId string `json:"session_id"`
}

type AskRequest struct {
	SessionId string `json:"session_id" validate:"required,max=128"`
	Question  string `json:"question" validate:"required,max=4000"`
}

type ReviewDTO struct {
	ProductName string `json:"product_name"`
	Content     string `json:"content"`
}

type AskResponse struct {
	SessionId       string      `json:"session_id"`
	Answer          string      `json:"answer"`
	StandaloneQuery string      `json:"standalone_query"`
	Documents       []ReviewDTO `json:"documents"`
}

type TurnDTO struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type ChatHistoryResponse struct {
	SessionId string    `json:"session_id"`
	Turns     []TurnDTO `json:"turns"`
}

// WsInbound is a client frame on the chat websocket.
type WsInbound struct {
	Question string `json:"question"`
}

// WsOutbound wraps everything the server pushes over the websocket.
type WsOutbound struct {
	Type string      `json:"type"` // answer | error | ingestion
	Data interface{} `json:"data"`
}

type WsError struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}
