package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FlexibleBool - гибкий boolean тип, поддерживающий строки и числа
type FlexibleBool bool

// UnmarshalJSON поддерживает парсинг boolean из строки, числа и boolean
func (fb *FlexibleBool) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), `"`)

	switch strings.ToLower(str) {
	case "true", "1", "yes", "on":
		*fb = true
	case "false", "0", "no", "off":
		*fb = false
	default:
		return fmt.Errorf("invalid boolean value: %s", str)
	}
	return nil
}

// Bool возвращает bool значение
func (fb FlexibleBool) Bool() bool {
	return bool(fb)
}

// BookingItemRequest - одна позиция корзины
type BookingItemRequest struct {
	TicketTypeID uuid.UUID `json:"ticket_type_id" binding:"required"`
	Quantity     int       `json:"quantity"`
}

// CreateBookingRequest - модель для создания бронирования. TotalAmount is
// optional; when present it must equal the server-side total.
type CreateBookingRequest struct {
	EventID     uuid.UUID            `json:"event_id" binding:"required"`
	Items       []BookingItemRequest `json:"items"`
	TotalAmount *decimal.Decimal     `json:"total_amount,omitempty"`
}

// CreateBookingResponse - модель ответа при создании бронирования
type CreateBookingResponse struct {
	Booking *Booking `json:"booking"`
	Tickets []Ticket `json:"tickets"`
	// TicketsPending is set when the booking is stored but its tickets are
	// still being issued in the background.
	TicketsPending bool `json:"tickets_pending,omitempty"`
}

// ConfirmPaymentRequest carries the simulated payment outcome.
type ConfirmPaymentRequest struct {
	Outcome string `json:"outcome" binding:"required,oneof=completed failed"`
}

// TicketSummary - краткая информация о билете в деталях транзакции
type TicketSummary struct {
	TicketNumber string `json:"ticket_number"`
	TierName     string `json:"tier_name"`
	Status       string `json:"status"`
}

// TransactionDetails is the read-only aggregate of a booking, its event and
// its tickets.
type TransactionDetails struct {
	BookingID     uuid.UUID       `json:"booking_id"`
	TransactionID string          `json:"transaction_id"`
	EventTitle    string          `json:"event_title"`
	EventDate     time.Time       `json:"event_date"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"payment_status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TicketCount   int             `json:"ticket_count"`
	BookedAt      time.Time       `json:"booked_at"`
	Tickets       []TicketSummary `json:"tickets"`
}

// RedeemTicketRequest accepts a ticket id, a ticket number or a scanned QR payload.
type RedeemTicketRequest struct {
	Reference string `json:"reference" binding:"required"`
}

// TicketTypeRequest - модель для создания/обновления уровня билетов
type TicketTypeRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Available   int             `json:"available"`
	Tags        []string        `json:"tags"`
}

// CreateEventRequest - модель для создания события
type CreateEventRequest struct {
	Title       string              `json:"title" binding:"required"`
	Description string              `json:"description" binding:"required"`
	About       *string             `json:"about"`
	Location    string              `json:"location" binding:"required"`
	Category    string              `json:"category" binding:"required"`
	Date        string              `json:"date" binding:"required"`
	Time        string              `json:"time"`
	Duration    string              `json:"duration"`
	AgeLimit    string              `json:"age_limit"`
	ImageURL    string              `json:"image_url"`
	Status      string              `json:"status"`
	TicketTypes []TicketTypeRequest `json:"ticket_types"`
}

// UpdateEventRequest is the allow-listed partial update for an event. Derived
// fields (hot, popular, attendees) are deliberately absent.
type UpdateEventRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	About       *string `json:"about"`
	Location    *string `json:"location"`
	Category    *string `json:"category"`
	Date        *string `json:"date"`
	Time        *string `json:"time"`
	Duration    *string `json:"duration"`
	AgeLimit    *string `json:"age_limit"`
	ImageURL    *string `json:"image_url"`
	Status      *string `json:"status"`
}

// Apply copies the set fields onto e. Date must already be validated.
func (r UpdateEventRequest) Apply(e *Event, date *time.Time) {
	if r.Title != nil {
		e.Title = *r.Title
	}
	if r.Description != nil {
		e.Description = *r.Description
	}
	if r.About != nil {
		e.About = r.About
	}
	if r.Location != nil {
		e.Location = *r.Location
	}
	if r.Category != nil {
		e.Category = *r.Category
	}
	if date != nil {
		e.Date = *date
	}
	if r.Time != nil {
		e.Time = *r.Time
	}
	if r.Duration != nil {
		e.Duration = *r.Duration
	}
	if r.AgeLimit != nil {
		e.AgeLimit = *r.AgeLimit
	}
	if r.ImageURL != nil {
		e.ImageURL = *r.ImageURL
	}
	if r.Status != nil {
		e.Status = *r.Status
	}
}

// EventFilter - параметры фильтрации списка событий
type EventFilter struct {
	Query    string `form:"q"`
	Category string `form:"category"`
	Status   string `form:"status"`
	Location string `form:"location"`
	Hot      *bool  `form:"hot"`
	Popular  *bool  `form:"popular"`
	Limit    int    `form:"limit"`
	Offset   int    `form:"offset"`
}

// SubmitReviewRequest - модель для создания отзыва
type SubmitReviewRequest struct {
	EventID      uuid.UUID `json:"event_id" binding:"required"`
	BookingID    uuid.UUID `json:"booking_id" binding:"required"`
	Rating       int       `json:"rating" binding:"required"`
	Venue        *int      `json:"venue"`
	Organization *int      `json:"organization"`
	Value        *int      `json:"value"`
	Experience   *int      `json:"experience"`
	Comment      string    `json:"comment"`
}

// ReviewSummary aggregates verified reviews of an event.
type ReviewSummary struct {
	EventID      uuid.UUID   `json:"event_id"`
	Count        int         `json:"count"`
	Average      float64     `json:"average"`
	Distribution map[int]int `json:"distribution"`
}

// UpdateSettingsRequest is the allow-listed partial update for AdminSettings.
type UpdateSettingsRequest struct {
	ShowLocationEvents *FlexibleBool `json:"show_location_events"`
	ShowHotEvents      *FlexibleBool `json:"show_hot_events"`
	ShowPopularEvents  *FlexibleBool `json:"show_popular_events"`
	MaintenanceMode    *FlexibleBool `json:"maintenance_mode"`
	EnabledCategories  []string      `json:"enabled_categories"`
}

func (r UpdateSettingsRequest) Apply(s *AdminSettings) {
	if r.ShowLocationEvents != nil {
		s.ShowLocationEvents = r.ShowLocationEvents.Bool()
	}
	if r.ShowHotEvents != nil {
		s.ShowHotEvents = r.ShowHotEvents.Bool()
	}
	if r.ShowPopularEvents != nil {
		s.ShowPopularEvents = r.ShowPopularEvents.Bool()
	}
	if r.MaintenanceMode != nil {
		s.MaintenanceMode = r.MaintenanceMode.Bool()
	}
	if r.EnabledCategories != nil {
		s.EnabledCategories = r.EnabledCategories
	}
}

// AddCityRequest - модель для добавления популярного города
type AddCityRequest struct {
	Name        string   `json:"name" binding:"required"`
	StateCode   string   `json:"state_code" binding:"required"`
	CountryCode string   `json:"country_code" binding:"required"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

// RecalculationSummary reports one pass of the status recalculator.
type RecalculationSummary struct {
	Processed      int         `json:"processed"`
	Changed        int         `json:"changed"`
	Failed         int         `json:"failed"`
	FailedEventIDs []uuid.UUID `json:"failed_event_ids,omitempty"`
	StartedAt      time.Time   `json:"started_at"`
	Duration       string      `json:"duration"`
}
