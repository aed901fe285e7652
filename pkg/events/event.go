package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the dotted subject suffix, e.g. "ingestion.completed".
	EventType() string

	Payload() map[string]interface{}

	Timestamp() time.Time
}

const (
	TypeIngestionCompleted = "ingestion.completed"
	TypeIngestionFailed    = "ingestion.failed"
	TypeChatAnswered       = "chat.answered"
)

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

func IngestionCompleted(jobID, dataPath string, documents int, took time.Duration) BaseEvent {
	return BaseEvent{
		Type: TypeIngestionCompleted,
		Data: map[string]interface{}{
			"job_id":      jobID,
			"data_path":   dataPath,
			"documents":   documents,
			"duration_ms": took.Milliseconds(),
		},
		OccurredAt: time.Now(),
	}
}

func IngestionFailed(jobID, dataPath, kind, reason string) BaseEvent {
	return BaseEvent{
		Type: TypeIngestionFailed,
		Data: map[string]interface{}{
			"job_id":    jobID,
			"data_path": dataPath,
			"kind":      kind,
			"error":     reason,
		},
		OccurredAt: time.Now(),
	}
}

// ChatAnswered carries the product names that grounded an answer, not the review text.
func ChatAnswered(sessionID string, products []string, took time.Duration) BaseEvent {
	return BaseEvent{
		Type: TypeChatAnswered,
		Data: map[string]interface{}{
			"session_id":  sessionID,
			"products":    products,
			"duration_ms": took.Milliseconds(),
		},
		OccurredAt: time.Now(),
	}
}
