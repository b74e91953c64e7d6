package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperr "marquee/internal/errors"
	"marquee/internal/logger"
	"marquee/internal/metrics"
	"marquee/internal/models"
)

// MaxIssueAttempts bounds regeneration of a single ticket after unique clashes.
const MaxIssueAttempts = 5

// TicketIssuer mints the tickets of a booking: one per purchased unit, in
// booking item order and then by unit index.
type TicketIssuer struct {
	tickets TicketStore
	now     func() time.Time
}

func NewTicketIssuer(tickets TicketStore, now func() time.Time) *TicketIssuer {
	return &TicketIssuer{tickets: tickets, now: now}
}

// Issue writes every ticket the booking is still missing and returns the new
// ones. Slots that already hold a ticket are skipped, so a partially issued
// booking can be re-driven. Callers run it inside a transaction: any error
// leaves nothing behind.
func (i *TicketIssuer) Issue(ctx context.Context, booking *models.Booking) ([]*models.Ticket, error) {
	if len(booking.Items) == 0 {
		return nil, fmt.Errorf("booking %s has no items: %w", booking.ID, apperr.ErrValidation)
	}

	issued, err := i.tickets.IssuedPositions(ctx, booking.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load issued tickets: %w", err)
	}

	var minted []*models.Ticket
	position := 0
	for _, item := range booking.Items {
		for unit := 0; unit < item.Quantity; unit++ {
			pos := position
			position++
			if issued[pos] {
				continue
			}

			ticket, err := i.mint(ctx, booking, item.TicketTypeID, pos)
			if err != nil {
				return nil, err
			}
			minted = append(minted, ticket)
		}
	}

	metrics.TicketsIssued(len(minted))
	return minted, nil
}

func (i *TicketIssuer) mint(ctx context.Context, booking *models.Booking, ticketTypeID uuid.UUID, position int) (*models.Ticket, error) {
	for attempt := 1; attempt <= MaxIssueAttempts; attempt++ {
		ticket, err := models.NewTicket(booking, ticketTypeID, position, i.now())
		if err != nil {
			return nil, fmt.Errorf("failed to build ticket: %w", err)
		}

		err = i.tickets.Insert(ctx, ticket)
		if err == nil {
			return ticket, nil
		}
		if !errors.Is(err, apperr.ErrDuplicateKey) {
			return nil, fmt.Errorf("failed to insert ticket: %w", err)
		}

		metrics.TicketCollision()
		logger.WithContext(ctx).Warn("Ticket number collision, regenerating",
			"booking_id", booking.ID,
			"position", position,
			"attempt", attempt)
	}

	return nil, fmt.Errorf("ticket %d of booking %s not issued after %d attempts: %w",
		position, booking.ID, MaxIssueAttempts, apperr.ErrDuplicateKey)
}
