package main

import (
	"context"
	"log"
	"os"
	"strconv"

	"github.com/rpalacios/regwatch/internal/ai"
	"github.com/rpalacios/regwatch/internal/api"
	"github.com/rpalacios/regwatch/internal/db"
	"github.com/rpalacios/regwatch/internal/ingest"
	"github.com/rpalacios/regwatch/internal/notify"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	store := db.NewStore(pool)

	registry, err := ingest.LoadRegistry("internal/ingest/config/sources.yaml")
	if err != nil {
		log.Fatalf("Failed to load source registry: %v", err)
	}

	pipeline := ingest.NewPipeline(store, registry)
	pipeline.Tracker = ingest.NewStatusTracker(store)

	if limit, err := strconv.Atoi(os.Getenv("SUMMARY_DAILY_LIMIT")); err == nil && limit > 0 {
		pipeline.Quota = ingest.NewSummaryQuota(limit)
	}

	// AI collaborators are optional: without them the pipeline still scores
	// and persists, it just skips summaries and AI-assisted normalization.
	if os.Getenv("OPENAI_API_KEY") != "" || os.Getenv("AI_BASE_URL") != "" {
		aiClient, err := ai.NewClient(ai.Config{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: os.Getenv("AI_BASE_URL"),
			Model:   os.Getenv("AI_MODEL"),
		})
		if err != nil {
			log.Fatalf("Failed to initialize AI client: %v", err)
		}
		pipeline.Normalizer = aiClient
		pipeline.Detector = aiClient
		pipeline.Summarizer = ai.NewSummarizer(aiClient)
	} else {
		log.Print("No AI credentials configured; running without AI collaborators")
	}

	var emailSender notify.EmailSender = notify.LogSender{}
	if addr := os.Getenv("SMTP_ADDR"); addr != "" {
		emailSender = &notify.SMTPSender{
			Addr: addr,
			From: os.Getenv("SMTP_FROM"),
		}
	}
	pipeline.Notifier = notify.NewDispatcher(emailSender, notify.LogSender{})

	// Restore dedup window, quota and per-source status across restarts.
	if err := pipeline.LoadSnapshots(ctx); err != nil {
		log.Printf("Snapshot restore failed, starting fresh: %v", err)
	}
	if statuses, err := store.ListSourceStatus(ctx); err != nil {
		log.Printf("Failed to preload source status: %v", err)
	} else {
		pipeline.Tracker.Seed(statuses)
	}

	srv := api.NewServer(store, pipeline)
	log.Printf("Server starting on port %s...", port)
	if err := srv.Start(port); err != nil {
		log.Fatal(err)
	}
}
