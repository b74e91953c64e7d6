package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marquee/internal/cache"
	"marquee/internal/config"
	"marquee/internal/database"
	"marquee/internal/handlers"
	"marquee/internal/jobs"
	"marquee/internal/messaging"
	"marquee/internal/metrics"
	"marquee/internal/middleware"
	"marquee/internal/repository"
	"marquee/internal/search"
	"marquee/internal/service"
)

// Server представляет HTTP сервер API
type Server struct {
	router   *gin.Engine
	config   *config.Config
	db       *database.DB
	nats     *messaging.NATSClient
	es       *search.ElasticsearchClient
	valkey   *cache.ValkeyClient
	services *service.Services

	cancelJobs    context.CancelFunc
	statusRefresh *jobs.StatusRefreshJob
	recovery      *jobs.TicketRecoveryJob
}

// NewServer создает новый экземпляр сервера. База данных обязательна;
// NATS, Elasticsearch и Valkey подключаются по возможности.
func NewServer(cfg *config.Config) (*Server, error) {
	if cfg.SessionSecret == "" {
		return nil, errors.New("SESSION_SECRET must be set")
	}

	// Устанавливаем режим Gin
	gin.SetMode(cfg.GinMode)

	// Подключаемся к базе данных
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Запускаем миграции
	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s := &Server{config: cfg, db: db}

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
	}

	// Подключаемся к NATS
	if natsClient, err := messaging.NewNATSClient(cfg.NATS); err != nil {
		slog.Warn("NATS unavailable, domain events will not be published", "error", err)
	} else {
		s.nats = natsClient
		deps.Publisher = natsClient
	}

	if cfg.Elasticsearch.Enabled {
		if es, err := search.NewElasticsearchClient(cfg.Elasticsearch); err != nil {
			slog.Warn("Elasticsearch unavailable, search falls back to the database", "error", err)
		} else {
			s.es = es
			deps.Index = es
		}
	}

	if valkey, err := cache.NewValkeyClient(cfg.Redis); err != nil {
		slog.Warn("Valkey unavailable, settings cache and refresh lease disabled", "error", err)
	} else {
		s.valkey = valkey
		deps.Cache = valkey
	}

	s.services = service.NewServices(deps)

	// Создаем роутер
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS())
	router.Use(metrics.Middleware())
	s.router = router

	// Настраиваем роуты
	s.setupRoutes()

	return s, nil
}

// setupRoutes настраивает все API роуты
func (s *Server) setupRoutes() {
	h := handlers.NewHandlers(s.services)

	api := s.router.Group("/api")
	api.Use(middleware.Timeout(s.config.RequestTimeout))
	api.Use(middleware.Session(s.config.SessionSecret))
	api.Use(middleware.Maintenance(s.services.Settings))
	{
		// Публичные роуты
		events := api.Group("/events")
		{
			events.GET("", h.ListEvents)
			events.GET("/hot", h.HotEvents)
			events.GET("/popular", h.PopularEvents)
			events.GET("/:id", h.GetEvent)
			events.GET("/:id/reviews", h.EventReviews)
		}
		api.GET("/settings", h.GetSettings)
		api.GET("/cities", h.ListCities)

		// Роуты пользователя
		user := api.Group("")
		user.Use(middleware.RequireUser())
		{
			bookings := user.Group("/bookings")
			{
				bookings.POST("", h.CreateBooking)
				bookings.GET("", h.ListBookings)
				bookings.GET("/:id", h.GetBooking)
				bookings.POST("/:id/payment", h.ConfirmPayment)
			}

			tickets := user.Group("/tickets")
			{
				tickets.GET("", h.ListTickets)
				tickets.GET("/:ref", h.GetTicket)
				tickets.GET("/:ref/qr", h.TicketQRCode)
			}

			user.POST("/reviews", h.SubmitReview)
		}

		// Роуты администратора
		admin := api.Group("/admin")
		admin.Use(middleware.RequireAdmin())
		{
			admin.POST("/events", h.CreateEvent)
			admin.PATCH("/events/:id", h.UpdateEvent)
			admin.DELETE("/events/:id", h.DeleteEvent)
			admin.PUT("/events/:id/tiers", h.UpsertTier)
			admin.POST("/events/recalculate", h.RecalculateStatuses)

			admin.PATCH("/settings", h.UpdateSettings)
			admin.POST("/cities", h.AddCity)
			admin.DELETE("/cities/:id", h.DeleteCity)

			admin.POST("/tickets/redeem", h.RedeemTicket)
			admin.POST("/tickets/:ref/cancel", h.CancelTicket)
		}
	}

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// healthCheck обрабатывает health check запросы
func (s *Server) healthCheck(c *gin.Context) {
	ctx := c.Request.Context()
	db := s.db.HealthCheck(ctx)

	deps := gin.H{"database": db.Status}
	if s.es != nil {
		deps["elasticsearch"] = statusOf(s.es.HealthCheck(ctx))
	}
	if s.valkey != nil {
		deps["valkey"] = statusOf(s.valkey.Ping(ctx))
	}

	code := http.StatusOK
	status := "ok"
	if db.Status != "healthy" {
		code = http.StatusServiceUnavailable
		status = "degraded"
	}

	c.JSON(code, gin.H{
		"status":       status,
		"service":      "marquee-api",
		"dependencies": deps,
		"pool":         db.Stats,
	})
}

func statusOf(err error) string {
	if err != nil {
		return "unhealthy"
	}
	return "healthy"
}

// StartJobs запускает фоновые задачи, включенные в конфигурации
func (s *Server) StartJobs() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelJobs = cancel

	if s.config.Jobs.StatusRefreshEnabled {
		var locker jobs.Locker
		if s.valkey != nil {
			locker = s.valkey
		}
		s.statusRefresh = jobs.NewStatusRefreshJob(s.services.Status, locker, s.config.Jobs.StatusRefreshInterval)
		s.statusRefresh.Start(ctx)
	}

	if s.config.Jobs.RecoveryEnabled {
		s.recovery = jobs.NewTicketRecoveryJob(s.services.Bookings,
			s.config.Jobs.RecoveryInterval, s.config.Jobs.RecoveryAfter)
		s.recovery.Start(ctx)
	}
}

// GetRouter возвращает роутер для тестирования
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Cleanup останавливает задачи и закрывает соединения
func (s *Server) Cleanup() error {
	if s.statusRefresh != nil {
		s.statusRefresh.Stop()
	}
	if s.recovery != nil {
		s.recovery.Stop()
	}
	if s.cancelJobs != nil {
		s.cancelJobs()
	}

	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}

	if s.valkey != nil {
		if err := s.valkey.Close(); err != nil {
			slog.Error("Error closing Valkey connection", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}

// ShutdownTimeout bounds the graceful HTTP shutdown.
const ShutdownTimeout = 30 * time.Second
