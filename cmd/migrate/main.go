package main

import (
	"context"
	"flag"
	"log"
	"time"

	"review-rag-be/internal/config"
	"review-rag-be/pkg/database"
	"review-rag-be/pkg/vectorstore/pgvectorstore"
)

// migrate prepares (or clears) the pgvector tables so the REST server can start
// with INGEST_LOAD_EXISTING against a fresh database.
func main() {
	drop := flag.Bool("drop", false, "delete every review of the configured collection")
	flag.Parse()

	// 1. Load Environment Variables
	cfg := config.Load()
	if cfg.VectorStore.Provider != config.ProviderPgvector {
		log.Fatalf("Error: VECTOR_STORE_PROVIDER is %q, migrate only applies to pgvector", cfg.VectorStore.Provider)
	}

	// 2. Connect to Database using existing GORM helpers
	db, err := database.NewGormDBFromDSN(cfg.PgvectorDSN(), cfg.Database.Debug)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}
	index := pgvectorstore.NewIndex(db, cfg.VectorStore.Namespace, cfg.VectorStore.Collection)
	defer index.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// 3. Extension, schema and table
	log.Println("Step 1: Ensuring pgvector extension and review_embeddings table...")
	if err := index.EnsureCollection(ctx, 0); err != nil {
		log.Fatalf("Error: migration failed: %v", err)
	}

	if *drop {
		log.Printf("Step 2: Deleting collection %q...", cfg.VectorStore.Collection)
		if err := index.DeleteCollection(ctx); err != nil {
			log.Fatalf("Error: delete failed: %v", err)
		}
	}

	n, err := index.Count(ctx)
	if err != nil {
		log.Fatalf("Error: count failed: %v", err)
	}
	log.Printf("Migration completed. Collection %q holds %d reviews.", cfg.VectorStore.Collection, n)
}
