package bootstrap

import (
	"context"
	"log"
	"time"

	"review-rag-be/internal/config"
	"review-rag-be/internal/controller"
	"review-rag-be/internal/handler"
	"review-rag-be/internal/pkg/logger"
	"review-rag-be/internal/service"
	"review-rag-be/internal/websocket"
	"review-rag-be/pkg/events"
	pktNats "review-rag-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

const ingestTopic = "INGEST_REVIEWS"

type Container struct {
	// Controllers
	ChatController    controller.IChatController
	IngestController  controller.IIngestController
	ChatSocketHandler *handler.ChatSocketHandler

	// Background services, started by main.go
	JobService   service.IIngestionJobService
	WebSocketHub *websocket.Hub

	Core *Core

	natsPub *pktNats.Publisher
	natsSub *pktNats.Subscriber
	pubSub  *gochannel.GoChannel
}

func NewContainer(cfg *config.Config) (*Container, error) {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())

	core, err := NewCore(cfg, sysLogger)
	if err != nil {
		return nil, err
	}

	// Event bus for ingestion jobs
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	c := &Container{Core: core, pubSub: pubSub}

	// NATS is optional; a nil interface keeps the services off the bus
	var bus service.EventBus
	if cfg.App.EventsEnabled {
		c.natsPub, err = pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			bus = c.natsPub
		}
		c.natsSub, err = pktNats.NewSubscriber(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
			c.natsSub = nil
		}
	}

	wsLogger := logger.NewIsolatedLogger("logs/websocket.log")
	c.WebSocketHub = websocket.NewHub(core.Redis, uuid.NewString(), wsLogger)

	eventPublisher := service.NewEventPublisher(bus, c.WebSocketHub, sysLogger)

	chatService := service.NewChatService(
		core.Chain,
		core.History,
		eventPublisher,
		sysLogger,
		cfg.Ai.Timeout*2,
	)

	publisherService := service.NewPublisherService(ingestTopic, pubSub)
	c.JobService = service.NewIngestionJobService(
		core.Ingestion,
		publisherService,
		pubSub,
		ingestTopic,
		eventPublisher,
		sysLogger,
	)

	c.ChatController = controller.NewChatController(chatService)
	c.IngestController = controller.NewIngestController(c.JobService)
	c.ChatSocketHandler = handler.NewChatSocketHandler(c.WebSocketHub, chatService, wsLogger)

	return c, nil
}

// StartAudit mirrors every event seen on the bus into logs/events.log.
// It is a no-op when NATS is disabled.
func (c *Container) StartAudit(ctx context.Context) error {
	if c.natsSub == nil {
		return nil
	}
	auditLogger := logger.NewIsolatedLogger("logs/events.log")
	return c.natsSub.Subscribe(ctx, "*.*", "reviewrag-audit", func(_ context.Context, evt events.Event) error {
		auditLogger.Info("AUDIT", evt.EventType(), evt.Payload())
		return nil
	})
}

// Health reports which backends are configured and whether the index answers.
func (c *Container) Health(ctx context.Context) map[string]interface{} {
	cfg := c.Core.Config
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	out := map[string]interface{}{
		"vector_store":   cfg.VectorStore.Provider,
		"history_store":  cfg.History.Store,
		"llm_provider":   cfg.Ai.LLMProvider,
		"events_enabled": c.natsPub != nil,
		"ws_clients":     c.WebSocketHub.ClientCount(),
	}
	if n, err := c.Core.Store.Count(ctx); err != nil {
		out["vector_store_error"] = err.Error()
	} else {
		out["documents"] = n
	}
	if c.Core.Redis != nil {
		out["redis"] = c.Core.Redis.Ping(ctx).Err() == nil
	}
	return out
}

func (c *Container) Close() {
	if c.natsSub != nil {
		c.natsSub.Close()
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if err := c.pubSub.Close(); err != nil {
		log.Printf("[WARN] Failed to close pubsub: %v", err)
	}
	if err := c.Core.Close(); err != nil {
		log.Printf("[WARN] Failed to close stores: %v", err)
	}
	_ = c.Core.Logger.Sync()
}
