package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"marquee/internal/config"
	"marquee/internal/database"
	"marquee/internal/logger"
	"marquee/internal/repository"
	"marquee/internal/search"
	"marquee/internal/service"
)

// reindex перестраивает поисковый индекс событий из базы данных.
func main() {
	var eventID string
	flag.StringVar(&eventID, "event-id", "", "Reindex a single event (empty = all events)")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	es, err := search.NewElasticsearchClient(cfg.Elasticsearch)
	if err != nil {
		logger.Fatal("Failed to connect to Elasticsearch", "error", err)
	}

	repos := repository.NewRepositories(db)
	events := service.NewEventService(db, repos.Events, repos.TicketTypes, repos.Tickets, es, nil)

	ctx := context.Background()
	start := time.Now()

	if eventID != "" {
		id, err := uuid.Parse(eventID)
		if err != nil {
			logger.Fatal("Invalid event id", "event_id", eventID, "error", err)
		}
		if err := events.Reindex(ctx, id); err != nil {
			logger.Fatal("Reindex failed", "event_id", id, "error", err)
		}
		slog.Info("Event reindexed", "event_id", id, "duration", time.Since(start))
		return
	}

	n, err := events.ReindexAll(ctx)
	if err != nil {
		logger.Fatal("Reindex failed", "indexed", n, "error", err)
	}
	slog.Info("Search index rebuilt", "indexed", n, "duration", time.Since(start))
}
