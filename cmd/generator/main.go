package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"marquee/internal/config"
	"marquee/internal/database"
	apperr "marquee/internal/errors"
	"marquee/internal/logger"
	"marquee/internal/middleware"
	"marquee/internal/models"
	"marquee/internal/repository"
	"marquee/internal/search"
	"marquee/internal/service"
)

var (
	eventCount = flag.Int("events", 12, "Number of events to generate")
	userCount  = flag.Int("users", 5, "Number of regular users to generate")
	adminEmail = flag.String("admin", "admin@marquee.local", "Email of the seeded admin account")
	tokenTTL   = flag.Duration("token-ttl", 24*time.Hour, "Lifetime of the printed session tokens")
	seed       = flag.Int64("seed", 0, "Random seed (0 = current time)")
	dryRun     = flag.Bool("dry-run", false, "Show what would be generated without making changes")
)

var (
	cities = []models.AddCityRequest{
		{Name: "Austin", StateCode: "TX", CountryCode: "US"},
		{Name: "Nashville", StateCode: "TN", CountryCode: "US"},
		{Name: "Chicago", StateCode: "IL", CountryCode: "US"},
		{Name: "Seattle", StateCode: "WA", CountryCode: "US"},
	}

	titles = map[string][]string{
		models.CategoryConcert:  {"Midnight Jazz Session", "Indie Rooftop Live", "Symphony Under the Stars", "Blues at the Dock"},
		models.CategoryComedy:   {"Open Mic Madness", "Late Night Laughs", "Improv Showdown"},
		models.CategoryWorkshop: {"Intro to Pottery", "Street Photography Walk", "Sourdough Basics"},
	}

	tierPrices = map[string]int64{
		models.TierBronze: 1500,
		models.TierSilver: 3000,
		models.TierGold:   4500,
	}
)

// Generator заполняет базу тестовыми данными через сервисный слой, чтобы
// события сразу попадали в поисковый индекс.
type Generator struct {
	repos    *repository.Repositories
	services *service.Services
	rnd      *rand.Rand
	secret   string
}

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	cfg := config.Load()
	logger.Init(cfg.LogLevel, "text")

	slog.Info("Starting data generator...", "events", *eventCount, "users", *userCount, "dry_run", *dryRun)

	s := *seed
	if s == 0 {
		s = time.Now().UnixNano()
	}
	rnd := rand.New(rand.NewSource(s))

	if *dryRun {
		for i := 0; i < *eventCount; i++ {
			req := newEventRequest(rnd, i)
			slog.Info("Would create event", "title", req.Title, "location", req.Location, "date", req.Date, "tiers", len(req.TicketTypes))
		}
		return
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
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
	}
	if cfg.Elasticsearch.Enabled {
		if es, err := search.NewElasticsearchClient(cfg.Elasticsearch); err != nil {
			slog.Warn("Elasticsearch unavailable, events will not be indexed", "error", err)
		} else {
			deps.Index = es
		}
	}

	g := &Generator{
		repos:    repos,
		services: service.NewServices(deps),
		rnd:      rnd,
		secret:   cfg.SessionSecret,
	}

	if err := g.Run(context.Background()); err != nil {
		logger.Fatal("Data generation failed", "error", err)
	}

	slog.Info("Data generation completed successfully!")
}

func (g *Generator) Run(ctx context.Context) error {
	if err := g.seedUsers(ctx); err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}
	if err := g.seedCities(ctx); err != nil {
		return fmt.Errorf("failed to seed cities: %w", err)
	}
	for i := 0; i < *eventCount; i++ {
		event, err := g.services.Events.Create(ctx, newEventRequest(g.rnd, i))
		if err != nil {
			return fmt.Errorf("failed to create event %d: %w", i, err)
		}
		slog.Info("Created event", "id", event.ID, "title", event.Title, "tiers", len(event.TicketTypes))
	}
	return nil
}

func (g *Generator) seedUsers(ctx context.Context) error {
	users := []*models.User{{Email: *adminEmail, Name: "Box Office", Role: models.RoleAdmin}}
	for i := 1; i <= *userCount; i++ {
		users = append(users, &models.User{
			Email: fmt.Sprintf("fan%d@marquee.local", i),
			Name:  fmt.Sprintf("Fan %d", i),
			Role:  models.RoleUser,
		})
	}

	for _, u := range users {
		if err := g.repos.Users.Upsert(ctx, u); err != nil {
			return err
		}
		g.printToken(u)
	}
	return nil
}

// printToken выводит session token, с которым удобно ходить в API локально
func (g *Generator) printToken(u *models.User) {
	if g.secret == "" {
		slog.Info("Seeded user", "email", u.Email, "id", u.ID, "role", u.Role)
		return
	}
	token, err := middleware.NewSessionToken(g.secret, models.Actor{UserID: u.ID, Role: u.Role}, *tokenTTL)
	if err != nil {
		slog.Warn("Failed to sign session token", "email", u.Email, "error", err)
		return
	}
	fmt.Printf("%-28s %-6s %s\n", u.Email, u.Role, token)
}

func (g *Generator) seedCities(ctx context.Context) error {
	for i := range cities {
		_, err := g.services.Settings.AddCity(ctx, &cities[i])
		if err != nil && !errors.Is(err, apperr.ErrDuplicateKey) {
			return err
		}
	}
	return nil
}

func newEventRequest(rnd *rand.Rand, i int) *models.CreateEventRequest {
	categories := []string{models.CategoryConcert, models.CategoryComedy, models.CategoryWorkshop}
	category := categories[i%len(categories)]
	names := titles[category]
	city := cities[rnd.Intn(len(cities))]

	date := time.Now().UTC().AddDate(0, 0, 3+rnd.Intn(90))
	status := models.EventStatusUpcoming
	if date.Before(time.Now().AddDate(0, 0, 14)) {
		status = models.EventStatusActive
	}

	req := &models.CreateEventRequest{
		Title:       fmt.Sprintf("%s #%d", names[rnd.Intn(len(names))], i+1),
		Description: fmt.Sprintf("A %s night in %s.", category, city.Name),
		Location:    fmt.Sprintf("%s, %s", city.Name, city.StateCode),
		Category:    category,
		Date:        date.Format("2006-01-02"),
		Time:        fmt.Sprintf("%02d:%02d", 17+rnd.Intn(5), 30*rnd.Intn(2)),
		Duration:    fmt.Sprintf("%dh", 1+rnd.Intn(3)),
		AgeLimit:    []string{"All ages", "18+", "21+"}[rnd.Intn(3)],
		Status:      status,
	}

	for _, tier := range []string{models.TierBronze, models.TierSilver, models.TierGold} {
		req.TicketTypes = append(req.TicketTypes, models.TicketTypeRequest{
			Name:      tier,
			Price:     decimal.NewFromInt(tierPrices[tier]),
			Available: 20 + rnd.Intn(180),
		})
	}
	return req
}
