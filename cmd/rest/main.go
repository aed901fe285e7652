package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"review-rag-be/internal/bootstrap"
	"review-rag-be/internal/config"
	"review-rag-be/internal/server"
	"review-rag-be/internal/tracer"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Load Configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// 2. Tracing
	shutdownTracer := tracer.InitTracer(cfg.Telemetry)
	defer shutdownTracer(context.Background())

	// 3. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(cfg)
	if err != nil {
		log.Fatalf("Unable to bootstrap: %v", err)
	}
	defer container.Close()

	// 4. Load reviews before taking traffic
	if cfg.Ingest.OnStart {
		resp, err := container.JobService.RunSync(ctx, cfg.Ingest.LoadExisting)
		if err != nil {
			log.Fatalf("Startup ingestion failed: %v", err)
		}
		log.Printf("Startup ingestion done: %d documents from %s", resp.Documents, resp.DataPath)
	}

	// 5. Start Background Services
	go container.WebSocketHub.Run(ctx)
	// Consume subscribes before returning, so jobs enqueued once the server is up are never dropped
	if err := container.JobService.Consume(ctx); err != nil {
		log.Fatalf("Unable to start ingestion consumer: %v", err)
	}
	if err := container.StartAudit(ctx); err != nil {
		log.Printf("[WARN] Event audit disabled: %v", err)
	}

	// 6. Run Server
	srv := server.New(cfg, container)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	select {
	case err := <-errCh:
		if err != nil {
			log.Printf("Server stopped: %v", err)
		}
	case <-ctx.Done():
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Graceful shutdown failed: %v", err)
		}
	}
}
