package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"marquee/internal/codes"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Event categories
const (
	CategoryConcert  = "concert"
	CategoryComedy   = "comedy"
	CategoryWorkshop = "workshop"
)

// Event statuses
const (
	EventStatusActive    = "active"
	EventStatusUpcoming  = "upcoming"
	EventStatusCompleted = "completed"
	EventStatusCancelled = "cancelled"
)

// Tier names
const (
	TierBronze = "Bronze"
	TierSilver = "Silver"
	TierGold   = "Gold"
)

// Booking statuses
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
)

// Payment statuses
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// Issuance states. A booking sits in pending_tickets between the booking
// write and the ticket write; only the recovery sweep ever observes it there.
const (
	IssuancePendingTickets = "pending_tickets"
	IssuanceIssued         = "issued"
)

// Ticket statuses
const (
	TicketStatusActive    = "active"
	TicketStatusUsed      = "used"
	TicketStatusExpired   = "expired"
	TicketStatusCancelled = "cancelled"
)

func ValidCategory(c string) bool {
	switch c {
	case CategoryConcert, CategoryComedy, CategoryWorkshop:
		return true
	}
	return false
}

func ValidEventStatus(s string) bool {
	switch s {
	case EventStatusActive, EventStatusUpcoming, EventStatusCompleted, EventStatusCancelled:
		return true
	}
	return false
}

func ValidTierName(n string) bool {
	switch n {
	case TierBronze, TierSilver, TierGold:
		return true
	}
	return false
}

// User represents a user in the system
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	Role      string    `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Event represents an event in the system
type Event struct {
	ID          uuid.UUID    `json:"id" db:"id"`
	Title       string       `json:"title" db:"title"`
	Description string       `json:"description" db:"description"`
	About       *string      `json:"about,omitempty" db:"about"`
	Location    string       `json:"location" db:"location"`
	Category    string       `json:"category" db:"category"`
	Date        time.Time    `json:"date" db:"event_date"`
	Time        string       `json:"time" db:"event_time"`
	Duration    string       `json:"duration" db:"duration"`
	AgeLimit    string       `json:"age_limit" db:"age_limit"`
	ImageURL    string       `json:"image_url" db:"image_url"`
	Status      string       `json:"status" db:"status"`
	IsHot       bool         `json:"is_hot" db:"is_hot"`
	IsPopular   bool         `json:"is_popular" db:"is_popular"`
	Attendees   int          `json:"attendees" db:"attendees"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" db:"updated_at"`
	TicketTypes []TicketType `json:"ticket_types,omitempty"` // Not from DB row, filled separately
}

// StartsAt combines the event date with its HH:MM time, falling back to
// midnight when the time is missing or malformed.
func (e Event) StartsAt() time.Time {
	day := time.Date(e.Date.Year(), e.Date.Month(), e.Date.Day(), 0, 0, 0, 0, time.UTC)
	if e.Time == "" {
		return day
	}
	t, err := time.Parse("15:04", e.Time)
	if err != nil {
		return day
	}
	return day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
}

// TicketType is the live tier catalog row for an event.
type TicketType struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	EventID     uuid.UUID       `json:"event_id" db:"event_id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Available   int             `json:"available" db:"available"`
	Tags        []string        `json:"tags" db:"tags"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// Booking represents a booking in the system
type Booking struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	UserID        uuid.UUID       `json:"user_id" db:"user_id"`
	EventID       uuid.UUID       `json:"event_id" db:"event_id"`
	TotalAmount   decimal.Decimal `json:"total_amount" db:"total_amount"`
	Status        string          `json:"status" db:"status"`
	PaymentStatus string          `json:"payment_status" db:"payment_status"`
	IssuanceState string          `json:"-" db:"issuance_state"`
	TransactionID string          `json:"transaction_id" db:"transaction_id"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
	Items         []BookingItem   `json:"booking_items"` // Not from DB row, filled separately
}

// TicketCount is the number of tickets the booking entitles its owner to.
func (b Booking) TicketCount() int {
	n := 0
	for _, item := range b.Items {
		n += item.Quantity
	}
	return n
}

// BookingItem is one tier line of a booking with its price frozen at checkout.
type BookingItem struct {
	TicketTypeID   uuid.UUID       `json:"ticket_type_id" db:"ticket_type_id"`
	Quantity       int             `json:"quantity" db:"quantity"`
	PricePerTicket decimal.Decimal `json:"price_per_ticket" db:"price_per_ticket"`
}

func (i BookingItem) Subtotal() decimal.Decimal {
	return i.PricePerTicket.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Ticket is one redeemable admission.
type Ticket struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	BookingID    uuid.UUID  `json:"booking_id" db:"booking_id"`
	EventID      uuid.UUID  `json:"event_id" db:"event_id"`
	UserID       uuid.UUID  `json:"user_id" db:"user_id"`
	TicketTypeID uuid.UUID  `json:"ticket_type_id" db:"ticket_type_id"`
	Position     int        `json:"-" db:"position"`
	TicketNumber string     `json:"ticket_number" db:"ticket_number"`
	QRCode       string     `json:"qr_code" db:"qr_code"`
	Status       string     `json:"status" db:"status"`
	UsedAt       *time.Time `json:"used_at,omitempty" db:"used_at"`
	UsedBy       *string    `json:"used_by,omitempty" db:"used_by"`
	DownloadURL  *string    `json:"download_url,omitempty" db:"download_url"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// NewTicket builds an active ticket for one purchased unit, generating its id,
// number and QR payload.
func NewTicket(booking *Booking, ticketTypeID uuid.UUID, position int, now time.Time) (*Ticket, error) {
	number, err := codes.NewTicketNumber(now)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	payload := codes.QRPayload{
		TicketID:     id,
		TicketNumber: number,
		EventID:      booking.EventID,
		UserID:       booking.UserID,
	}
	downloadURL := "/api/tickets/" + number + "/qr"

	return &Ticket{
		ID:           id,
		BookingID:    booking.ID,
		EventID:      booking.EventID,
		UserID:       booking.UserID,
		TicketTypeID: ticketTypeID,
		Position:     position,
		TicketNumber: number,
		QRCode:       payload.Encode(),
		Status:       TicketStatusActive,
		DownloadURL:  &downloadURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Review represents an attendee review of an event.
type Review struct {
	ID           uuid.UUID `json:"id" db:"id"`
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	EventID      uuid.UUID `json:"event_id" db:"event_id"`
	BookingID    uuid.UUID `json:"booking_id" db:"booking_id"`
	Rating       int       `json:"rating" db:"rating"`
	Venue        *int      `json:"venue,omitempty" db:"venue"`
	Organization *int      `json:"organization,omitempty" db:"organization"`
	Value        *int      `json:"value,omitempty" db:"value"`
	Experience   *int      `json:"experience,omitempty" db:"experience"`
	Comment      string    `json:"comment" db:"comment"`
	IsVerified   bool      `json:"is_verified" db:"is_verified"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// AdminSettings is the singleton console configuration.
type AdminSettings struct {
	ShowLocationEvents bool      `json:"show_location_events" db:"show_location_events"`
	ShowHotEvents      bool      `json:"show_hot_events" db:"show_hot_events"`
	ShowPopularEvents  bool      `json:"show_popular_events" db:"show_popular_events"`
	MaintenanceMode    bool      `json:"maintenance_mode" db:"maintenance_mode"`
	EnabledCategories  []string  `json:"enabled_categories" db:"enabled_categories"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultAdminSettings mirrors the column defaults of admin_settings.
func DefaultAdminSettings() AdminSettings {
	return AdminSettings{
		ShowLocationEvents: true,
		ShowHotEvents:      true,
		ShowPopularEvents:  true,
		EnabledCategories:  []string{CategoryConcert, CategoryComedy, CategoryWorkshop},
	}
}

// PopularCity is a city promoted on the home page.
type PopularCity struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	StateCode   string    `json:"state_code" db:"state_code"`
	CountryCode string    `json:"country_code" db:"country_code"`
	Latitude    *float64  `json:"latitude,omitempty" db:"latitude"`
	Longitude   *float64  `json:"longitude,omitempty" db:"longitude"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
