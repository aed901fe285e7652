package service

import (
	"context"
	"time"

	"review-rag-be/internal/pkg/logger"
	"review-rag-be/pkg/events"
	"review-rag-be/pkg/rag/ragerr"
)

// EventBus is the NATS publisher seen from the services; nil disables the bus.
type EventBus interface {
	Publish(ctx context.Context, event events.Event) error
}

// Broadcaster pushes an event to every connected websocket client.
type Broadcaster interface {
	Broadcast(event events.Event)
}

// IEventPublisher emits domain events. Publishing never fails the caller;
// bus errors are logged.
type IEventPublisher interface {
	PublishIngestionCompleted(ctx context.Context, jobID, dataPath string, documents int, took time.Duration)
	PublishIngestionFailed(ctx context.Context, jobID, dataPath string, err error)
	PublishChatAnswered(ctx context.Context, sessionID string, products []string, took time.Duration)
}

type eventPublisher struct {
	bus         EventBus
	broadcaster Broadcaster
	logger      logger.ILogger
}

func NewEventPublisher(bus EventBus, broadcaster Broadcaster, log logger.ILogger) IEventPublisher {
	return &eventPublisher{bus: bus, broadcaster: broadcaster, logger: log}
}

func (p *eventPublisher) PublishIngestionCompleted(ctx context.Context, jobID, dataPath string, documents int, took time.Duration) {
	evt := events.IngestionCompleted(jobID, dataPath, documents, took)
	p.publish(ctx, evt)
	if p.broadcaster != nil {
		p.broadcaster.Broadcast(evt)
	}
}

func (p *eventPublisher) PublishIngestionFailed(ctx context.Context, jobID, dataPath string, err error) {
	evt := events.IngestionFailed(jobID, dataPath, string(ragerr.KindOf(err)), err.Error())
	p.publish(ctx, evt)
	if p.broadcaster != nil {
		p.broadcaster.Broadcast(evt)
	}
}

// chat.answered only goes to the bus; websocket clients already get the answer.
func (p *eventPublisher) PublishChatAnswered(ctx context.Context, sessionID string, products []string, took time.Duration) {
	p.publish(ctx, events.ChatAnswered(sessionID, products, took))
}

func (p *eventPublisher) publish(ctx context.Context, evt events.Event) {
	if p.bus == nil {
		return
	}
	// the request context may already be done by the time the event goes out
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.bus.Publish(pubCtx, evt); err != nil {
		p.logger.Error("EVENTS", "Failed to publish event", map[string]interface{}{
			"type":  evt.EventType(),
			"error": err.Error(),
		})
	}
}
