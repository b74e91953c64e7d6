package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"marquee/internal/codes"
	apperr "marquee/internal/errors"
	"marquee/internal/logger"
	"marquee/internal/metrics"
	"marquee/internal/models"
)

// QRImageSize is the edge length in pixels of a rendered ticket QR code.
const QRImageSize = 256

type TicketService struct {
	tx        Transactor
	tickets   TicketStore
	bookings  BookingStore
	tiers     TicketTypeStore
	events    EventStore
	publisher Publisher
	now       func() time.Time
}

func NewTicketService(d Deps) *TicketService {
	return &TicketService{
		tx:        d.Tx,
		tickets:   d.Tickets,
		bookings:  d.Bookings,
		tiers:     d.TicketTypes,
		events:    d.Events,
		publisher: d.Publisher,
		now:       d.Now,
	}
}

// resolve finds a ticket by id, ticket number or scanned QR payload. A QR
// payload only matches when it is byte-identical to the stored one.
func (s *TicketService) resolve(ctx context.Context, ref string) (*models.Ticket, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("ticket reference is required: %w", apperr.ErrValidation)
	}

	if id, err := uuid.Parse(ref); err == nil {
		return s.tickets.GetByID(ctx, id)
	}

	if strings.HasPrefix(ref, "{") {
		payload, err := codes.ParseQRPayload(ref)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, apperr.ErrValidation)
		}
		ticket, err := s.tickets.GetByID(ctx, payload.TicketID)
		if err != nil {
			return nil, err
		}
		if ticket.QRCode != ref {
			return nil, fmt.Errorf("qr payload does not match ticket: %w", apperr.ErrNotFound)
		}
		return ticket, nil
	}

	return s.tickets.GetByNumber(ctx, strings.ToUpper(ref))
}

// Redeem moves an active ticket to used. Redeeming a ticket that is not
// active fails with ErrAlreadyUsed and leaves used_at and used_by untouched.
func (s *TicketService) Redeem(ctx context.Context, ref, redeemer string) (*models.Ticket, error) {
	redeemer = strings.TrimSpace(redeemer)
	if redeemer == "" {
		return nil, fmt.Errorf("redeemer is required: %w", apperr.ErrValidation)
	}

	ticket, err := s.resolve(ctx, ref)
	if err != nil {
		metrics.Redemption("not_found")
		return nil, err
	}

	used, err := s.tickets.MarkUsed(ctx, ticket.ID, s.now().UTC(), redeemer)
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyUsed) {
			metrics.Redemption("rejected")
			logger.WithContext(ctx).Info("Ticket redemption rejected",
				"ticket_id", ticket.ID, "status", ticket.Status)
		}
		return nil, err
	}

	metrics.Redemption("used")
	publish(ctx, s.publisher, models.EventTicketRedeemed, models.TicketRedeemedEvent{
		TicketID:     used.ID,
		TicketNumber: used.TicketNumber,
		EventID:      used.EventID,
		UsedBy:       redeemer,
		Timestamp:    s.now(),
	})

	return used, nil
}

// Cancel voids a single active ticket and returns its unit to the tier. A
// ticket of a paid booking also leaves the attendee count. The booking row is
// locked first, as payment settlement does, so the two never interleave.
func (s *TicketService) Cancel(ctx context.Context, ref string) (*models.Ticket, error) {
	ticket, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		booking, err := s.bookings.GetForUpdate(ctx, ticket.BookingID)
		if err != nil {
			return err
		}
		if err := s.tickets.SetStatus(ctx, ticket.ID, models.TicketStatusCancelled); err != nil {
			return err
		}
		if err := ignoreNotFound(s.tiers.Release(ctx, ticket.TicketTypeID, 1)); err != nil {
			return err
		}
		if booking.PaymentStatus == models.PaymentStatusCompleted {
			return ignoreNotFound(s.events.AddAttendees(ctx, ticket.EventID, -1))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx).Info("Ticket cancelled",
		"ticket_id", ticket.ID, "booking_id", ticket.BookingID, "ticket_type_id", ticket.TicketTypeID)
	ticket.Status = models.TicketStatusCancelled
	return ticket, nil
}

// ignoreNotFound drops ErrNotFound, which means the event or tier was deleted.
func ignoreNotFound(err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	return err
}

// ExpireForEvent expires the remaining active tickets of an event.
func (s *TicketService) ExpireForEvent(ctx context.Context, eventID uuid.UUID) (int, error) {
	n, err := s.tickets.ExpireForEvent(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("failed to expire tickets: %w", err)
	}
	logger.WithContext(ctx).Info("Expired tickets", "event_id", eventID, "count", n)
	return n, nil
}

// Get returns a ticket visible to the actor: its holder or an admin.
func (s *TicketService) Get(ctx context.Context, actor models.Actor, ref string) (*models.Ticket, error) {
	ticket, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if ticket.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, apperr.ErrForbidden
	}
	return ticket, nil
}

func (s *TicketService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Ticket, error) {
	tickets, err := s.tickets.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tickets: %w", err)
	}
	return tickets, nil
}

// QRCode renders the ticket's QR payload as a PNG.
func (s *TicketService) QRCode(ctx context.Context, actor models.Actor, ref string) ([]byte, error) {
	ticket, err := s.Get(ctx, actor, ref)
	if err != nil {
		return nil, err
	}
	return RenderQR(ticket, QRImageSize)
}

func RenderQR(ticket *models.Ticket, size int) ([]byte, error) {
	png, err := qrcode.Encode(ticket.QRCode, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to render qr code: %w", err)
	}
	return png, nil
}
