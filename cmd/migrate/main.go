package main

import (
	"log"

	"secondbrain-be/internal/config"
	"secondbrain-be/internal/model"
	"secondbrain-be/pkg/database"
)

func main() {
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, cfg.IsProduction())
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Step 1: Setting up extensions...")
	for _, sql := range []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
		`CREATE EXTENSION IF NOT EXISTS vector;`,
	} {
		if err := db.Exec(sql).Error; err != nil {
			log.Fatalf("Error: %s: %v", sql, err)
		}
	}

	log.Println("Step 2: Running AutoMigrate...")
	if err := db.AutoMigrate(
		&model.Document{},
		&model.DocumentVersion{},
		&model.Segment{},
		&model.SegmentContextRef{},
		&model.EmbeddingCacheEntry{},
	); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	// AutoMigrate cannot express index methods or operator classes.
	log.Println("Step 3: Creating search indexes...")
	for _, sql := range []string{
		`CREATE INDEX IF NOT EXISTS idx_segments_content_plaintext ON document_segments USING gin (content_plaintext);`,
		`CREATE INDEX IF NOT EXISTS idx_segments_embedding ON document_segments USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);`,
		`CREATE INDEX IF NOT EXISTS idx_segments_pending ON document_segments (created_at) WHERE embedding_status = 'pending';`,
	} {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to create index: %v. Continuing...", err)
		}
	}

	log.Println("Migration finished.")
}
