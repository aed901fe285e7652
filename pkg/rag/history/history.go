package history

import (
	"context"
	"errors"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ErrEmptySessionID is returned by stores when asked for a blank key.
var ErrEmptySessionID = errors.New("session id is required")

// Turn is one message of a conversation. It is never modified after append.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

func UserTurn(text string) Turn {
	return Turn{Role: RoleUser, Text: text, CreatedAt: time.Now().UTC()}
}

func AssistantTurn(text string) Turn {
	return Turn{Role: RoleAssistant, Text: text, CreatedAt: time.Now().UTC()}
}

// Transcript is a snapshot of a session's turns in chronological order.
type Transcript struct {
	SessionID string `json:"session_id"`
	Turns     []Turn `json:"turns"`
}

func (t *Transcript) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Turns)
}

// HistoryStore maps session ids to transcripts.
//
// GetOrCreate is idempotent: concurrent calls for the same id observe a single
// transcript. Append adds turns to the end in the order given, creating the
// transcript first when absent; all turns of one call land contiguously.
type HistoryStore interface {
	GetOrCreate(ctx context.Context, sessionID string) (*Transcript, error)
	Append(ctx context.Context, sessionID string, turns ...Turn) error
}
