package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"marquee/internal/logger"
	"marquee/internal/models"
)

// Transactor runs fn inside one database transaction carried by ctx.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type EventStore interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	List(ctx context.Context, f models.EventFilter, exclude []uuid.UUID) ([]models.Event, error)
	ListByStatuses(ctx context.Context, statuses []string) ([]uuid.UUID, error)
	Update(ctx context.Context, event *models.Event) error
	Delete(ctx context.Context, id uuid.UUID) error
	SetHot(ctx context.Context, id uuid.UUID, hot bool) error
	SetPopular(ctx context.Context, id uuid.UUID, popular bool) error
	AddAttendees(ctx context.Context, id uuid.UUID, n int) error
}

type TicketTypeStore interface {
	Create(ctx context.Context, tt *models.TicketType) error
	Upsert(ctx context.Context, tt *models.TicketType) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.TicketType, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.TicketType, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.TicketType, error)
	Reserve(ctx context.Context, id uuid.UUID, qty int) (decimal.Decimal, error)
	Release(ctx context.Context, id uuid.UUID, qty int) error
}

type BookingStore interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Booking, error)
	ListPendingIssuance(ctx context.Context, before time.Time, limit int) ([]models.Booking, error)
	MarkIssued(ctx context.Context, id uuid.UUID) error
	SettlePayment(ctx context.Context, id uuid.UUID, status, paymentStatus string) (bool, error)
	CountForEvent(ctx context.Context, eventID uuid.UUID, since time.Time) (total, recent int, err error)
	IsConfirmedPurchase(ctx context.Context, bookingID, userID, eventID uuid.UUID) (bool, error)
}

type TicketStore interface {
	Insert(ctx context.Context, t *models.Ticket) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error)
	GetByNumber(ctx context.Context, number string) (*models.Ticket, error)
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.Ticket, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Ticket, error)
	IssuedPositions(ctx context.Context, bookingID uuid.UUID) (map[int]bool, error)
	MarkUsed(ctx context.Context, id uuid.UUID, usedAt time.Time, usedBy string) (*models.Ticket, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	CancelForBooking(ctx context.Context, bookingID uuid.UUID) (int, error)
	ExpireForEvent(ctx context.Context, eventID uuid.UUID) (int, error)
}

type ReviewStore interface {
	Create(ctx context.Context, review *models.Review) error
	VerifiedStats(ctx context.Context, eventID uuid.UUID) (count, ratingSum int, err error)
	Distribution(ctx context.Context, eventID uuid.UUID) (map[int]int, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID, verifiedOnly bool) ([]models.Review, error)
}

type SettingsStore interface {
	GetOrInit(ctx context.Context) (*models.AdminSettings, error)
	Update(ctx context.Context, s *models.AdminSettings) error
	ListCities(ctx context.Context) ([]models.PopularCity, error)
	InsertCity(ctx context.Context, c *models.PopularCity) error
	DeleteCity(ctx context.Context, id string) error
}

// Publisher is the outbound message bus. Publishing is best effort.
type Publisher interface {
	Publish(subject string, data interface{}) error
}

// EventIndex is the full-text index over events.
type EventIndex interface {
	Search(ctx context.Context, f models.EventFilter) ([]models.Event, error)
	IndexEvent(ctx context.Context, event *models.Event) error
	DeleteEvent(ctx context.Context, id uuid.UUID) error
}

type SettingsCache interface {
	GetSettings(ctx context.Context) (*models.AdminSettings, bool, error)
	SetSettings(ctx context.Context, s *models.AdminSettings) error
	InvalidateSettings(ctx context.Context) error
}

// Deps bundles the collaborators of the service layer. Publisher, Index and
// Cache may be nil.
type Deps struct {
	Tx          Transactor
	Users       UserStore
	Events      EventStore
	TicketTypes TicketTypeStore
	Bookings    BookingStore
	Tickets     TicketStore
	Reviews     ReviewStore
	Settings    SettingsStore

	Publisher Publisher
	Index     EventIndex
	Cache     SettingsCache

	Now func() time.Time
}

type Services struct {
	Events   *EventService
	Bookings *BookingService
	Tickets  *TicketService
	Issuer   *TicketIssuer
	Status   *StatusService
	Reviews  *ReviewService
	Settings *SettingsService
}

func NewServices(d Deps) *Services {
	if d.Now == nil {
		d.Now = time.Now
	}

	issuer := NewTicketIssuer(d.Tickets, d.Now)
	tickets := NewTicketService(d)

	return &Services{
		Events:   NewEventService(d.Tx, d.Events, d.TicketTypes, d.Tickets, d.Index, d.Publisher),
		Bookings: NewBookingService(d, issuer),
		Tickets:  tickets,
		Issuer:   issuer,
		Status:   NewStatusService(d.Events, d.Bookings, d.Reviews, d.Publisher, d.Now),
		Reviews:  NewReviewService(d.Events, d.Bookings, d.Reviews),
		Settings: NewSettingsService(d.Settings, d.Cache),
	}
}

func publish(ctx context.Context, p Publisher, subject string, data interface{}) {
	if p == nil {
		return
	}
	if err := p.Publish(subject, data); err != nil {
		// Log error but don't fail the operation
		logger.WithContext(ctx).Warn("Failed to publish event",
			"error", err,
			"event_type", subject)
	}
}
