package models

import (
	"time"

	"github.com/google/uuid"
)

// NATS Event Types
const (
	EventBookingCreated     = "booking.created"
	EventTicketsIssued      = "tickets.issued"
	EventBookingConfirmed   = "booking.confirmed"
	EventPaymentFailed      = "booking.payment_failed"
	EventTicketRedeemed     = "ticket.redeemed"
	EventEventStatusChanged = "event.status_changed"
	EventEventUpserted      = "event.upserted"
	EventEventDeleted       = "event.deleted"
)

// BookingCreatedEvent represents a booking creation event
type BookingCreatedEvent struct {
	BookingID     uuid.UUID `json:"booking_id"`
	EventID       uuid.UUID `json:"event_id"`
	UserID        uuid.UUID `json:"user_id"`
	TransactionID string    `json:"transaction_id"`
	TotalAmount   string    `json:"total_amount"`
	Timestamp     time.Time `json:"timestamp"`
}

// TicketsIssuedEvent is published once a booking's tickets are written.
type TicketsIssuedEvent struct {
	BookingID uuid.UUID `json:"booking_id"`
	EventID   uuid.UUID `json:"event_id"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// BookingConfirmedEvent represents a successful simulated payment
type BookingConfirmedEvent struct {
	BookingID uuid.UUID `json:"booking_id"`
	EventID   uuid.UUID `json:"event_id"`
	Tickets   int       `json:"tickets"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentFailedEvent represents a failed payment event
type PaymentFailedEvent struct {
	BookingID uuid.UUID `json:"booking_id"`
	EventID   uuid.UUID `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
}

// TicketRedeemedEvent is published when a ticket is scanned at the door.
type TicketRedeemedEvent struct {
	TicketID     uuid.UUID `json:"ticket_id"`
	TicketNumber string    `json:"ticket_number"`
	EventID      uuid.UUID `json:"event_id"`
	UsedBy       string    `json:"used_by"`
	Timestamp    time.Time `json:"timestamp"`
}

// EventStatusChangedEvent carries the recomputed hot/popular flags.
type EventStatusChangedEvent struct {
	EventID   uuid.UUID `json:"event_id"`
	IsHot     bool      `json:"is_hot"`
	IsPopular bool      `json:"is_popular"`
	Timestamp time.Time `json:"timestamp"`
}

// EventChangedEvent is published on admin create/update/delete so the search
// index can follow.
type EventChangedEvent struct {
	EventID   uuid.UUID `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
}
