package consumers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/stan.go"

	"marquee/internal/cache"
	"marquee/internal/config"
	"marquee/internal/database"
	"marquee/internal/messaging"
	"marquee/internal/models"
	"marquee/internal/repository"
	"marquee/internal/search"
	"marquee/internal/service"
)

const queueGroup = "consumers"

type ConsumerService struct {
	db       *database.DB
	nats     *messaging.NATSClient
	es       *search.ElasticsearchClient
	valkey   *cache.ValkeyClient
	handlers *Handlers
	subs     []stan.Subscription
}

func NewConsumerService(cfg *config.Config) (*ConsumerService, error) {
	// Connect to database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}

	// Connect to NATS
	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		db.Close()
		return nil, err
	}

	es, err := search.NewElasticsearchClient(cfg.Elasticsearch)
	if err != nil {
		natsClient.Close()
		db.Close()
		return nil, fmt.Errorf("search index is required by consumers: %w", err)
	}

	repos := repository.NewRepositories(db)
	deps := service.Deps{
		Tx:          db,
		Users:       repos.Users,
		Events:      repos.Events,
		TicketTypes: repos.TicketTypes,
		Bookings:    repos.Bookings,
		Tickets:     repos.Tickets,
		Reviews:     repos.Reviews,
		Settings:    repos.Settings,
		Publisher:   natsClient,
		Index:       es,
	}

	cs := &ConsumerService{db: db, nats: natsClient, es: es}

	if valkey, err := cache.NewValkeyClient(cfg.Redis); err != nil {
		slog.Warn("Valkey unavailable, settings cache disabled", "error", err)
	} else {
		cs.valkey = valkey
		deps.Cache = valkey
	}

	services := service.NewServices(deps)
	cs.handlers = NewHandlers(services.Events, services.Status)
	return cs, nil
}

func (cs *ConsumerService) Start() error {
	slog.Info("Starting NATS consumers...")

	routes := []struct {
		subject string
		handler stan.MsgHandler
	}{
		{models.EventEventUpserted, cs.handlers.HandleEventChanged},
		{models.EventEventDeleted, cs.handlers.HandleEventChanged},
		{models.EventEventStatusChanged, cs.handlers.HandleStatusChanged},
		{models.EventBookingConfirmed, cs.handlers.HandleBookingConfirmed},
		{models.EventBookingCreated, cs.handlers.HandleLifecycle},
		{models.EventTicketsIssued, cs.handlers.HandleLifecycle},
		{models.EventPaymentFailed, cs.handlers.HandleLifecycle},
		{models.EventTicketRedeemed, cs.handlers.HandleLifecycle},
	}

	for _, r := range routes {
		sub, err := cs.nats.SubscribeQueue(r.subject, queueGroup, r.handler)
		if err != nil {
			return err
		}
		cs.subs = append(cs.subs, sub)
	}

	slog.Info("All consumers started successfully", "subscriptions", len(cs.subs))
	return nil
}

func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer service...")

	// Close keeps the durable position so the queue resumes after restart.
	for _, sub := range cs.subs {
		if err := sub.Close(); err != nil {
			slog.Error("Error closing subscription", "error", err)
		}
	}

	if cs.nats != nil {
		if err := cs.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}

	if cs.valkey != nil {
		if err := cs.valkey.Close(); err != nil {
			slog.Error("Error closing Valkey connection", "error", err)
		}
	}

	if cs.db != nil {
		if err := cs.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return ctx.Err()
}
