package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperr "marquee/internal/errors"
	"marquee/internal/logger"
	"marquee/internal/middleware"
	"marquee/internal/models"
	"marquee/internal/service"
)

type EventService interface {
	Create(ctx context.Context, req *models.CreateEventRequest) (*models.Event, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Event, error)
	List(ctx context.Context, f models.EventFilter) ([]models.Event, error)
	Hot(ctx context.Context, location string, limit int) ([]models.Event, error)
	Popular(ctx context.Context, location string, limit int) ([]models.Event, error)
	Update(ctx context.Context, id uuid.UUID, patch *models.UpdateEventRequest) (*models.Event, error)
	UpsertTier(ctx context.Context, eventID uuid.UUID, req *models.TicketTypeRequest) (*models.TicketType, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type BookingService interface {
	Create(ctx context.Context, userID uuid.UUID, req *models.CreateBookingRequest) (*models.CreateBookingResponse, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Booking, error)
	TransactionDetails(ctx context.Context, actor models.Actor, bookingID uuid.UUID) (*models.TransactionDetails, error)
	ConfirmPayment(ctx context.Context, actor models.Actor, bookingID uuid.UUID, outcome string) (*models.Booking, error)
}

type TicketService interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Ticket, error)
	Get(ctx context.Context, actor models.Actor, ref string) (*models.Ticket, error)
	QRCode(ctx context.Context, actor models.Actor, ref string) ([]byte, error)
	Redeem(ctx context.Context, ref, redeemer string) (*models.Ticket, error)
	Cancel(ctx context.Context, ref string) (*models.Ticket, error)
}

type ReviewService interface {
	Submit(ctx context.Context, userID uuid.UUID, req *models.SubmitReviewRequest) (*models.Review, error)
	Summary(ctx context.Context, eventID uuid.UUID) (*models.ReviewSummary, error)
	List(ctx context.Context, eventID uuid.UUID) ([]models.Review, error)
}

type SettingsService interface {
	Get(ctx context.Context) (*models.AdminSettings, error)
	Update(ctx context.Context, patch *models.UpdateSettingsRequest) (*models.AdminSettings, error)
	ListCities(ctx context.Context) ([]models.PopularCity, error)
	AddCity(ctx context.Context, req *models.AddCityRequest) (*models.PopularCity, error)
	DeleteCity(ctx context.Context, id string) error
}

type Recalculator interface {
	RecalculateAll(ctx context.Context) (*models.RecalculationSummary, error)
}

type Handlers struct {
	events   EventService
	bookings BookingService
	tickets  TicketService
	reviews  ReviewService
	settings SettingsService
	status   Recalculator
}

func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		events:   services.Events,
		bookings: services.Bookings,
		tickets:  services.Tickets,
		reviews:  services.Reviews,
		settings: services.Settings,
		status:   services.Status,
	}
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// statusFor maps the application error taxonomy onto HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrInsufficientInventory),
		errors.Is(err, apperr.ErrDuplicateKey),
		errors.Is(err, apperr.ErrAlreadyUsed):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		logger.WithContext(c.Request.Context()).Error("Request failed",
			"path", c.Request.URL.Path, "error", err)
		_ = c.Error(err)
		message = http.StatusText(status)
	}
	c.JSON(status, gin.H{"success": false, "error": message})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": message})
}

// actor returns the authenticated caller; routes using it sit behind
// RequireUser.
func actor(c *gin.Context) models.Actor {
	a, _ := middleware.ActorFromContext(c.Request.Context())
	return a
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func limitQuery(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		badRequest(c, "limit must be a positive integer")
		return 0, false
	}
	return limit, true
}
