package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"marquee/internal/codes"
	apperr "marquee/internal/errors"
	"marquee/internal/logger"
	"marquee/internal/metrics"
	"marquee/internal/models"
)

const maxTransactionIDAttempts = 5

type BookingService struct {
	tx        Transactor
	users     UserStore
	events    EventStore
	tiers     TicketTypeStore
	bookings  BookingStore
	tickets   TicketStore
	issuer    *TicketIssuer
	publisher Publisher
	now       func() time.Time
}

func NewBookingService(d Deps, issuer *TicketIssuer) *BookingService {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &BookingService{
		tx:        d.Tx,
		users:     d.Users,
		events:    d.Events,
		tiers:     d.TicketTypes,
		bookings:  d.Bookings,
		tickets:   d.Tickets,
		issuer:    issuer,
		publisher: d.Publisher,
		now:       now,
	}
}

func validateCart(req *models.CreateBookingRequest) error {
	if len(req.Items) == 0 {
		return fmt.Errorf("booking must contain at least one item: %w", apperr.ErrValidation)
	}
	seen := make(map[uuid.UUID]bool, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return fmt.Errorf("quantity must be at least 1: %w", apperr.ErrValidation)
		}
		if seen[item.TicketTypeID] {
			return fmt.Errorf("ticket type %s listed twice: %w", item.TicketTypeID, apperr.ErrValidation)
		}
		seen[item.TicketTypeID] = true
	}
	if req.TotalAmount != nil && req.TotalAmount.IsNegative() {
		return fmt.Errorf("total amount must not be negative: %w", apperr.ErrValidation)
	}
	return nil
}

// Create books the cart for the user. Inventory is reserved and the booking
// written in one transaction; tickets are issued in a second one. If the
// second step fails the booking stays pending_tickets and the recovery job
// finishes it.
func (s *BookingService) Create(ctx context.Context, userID uuid.UUID, req *models.CreateBookingRequest) (*models.CreateBookingResponse, error) {
	if err := validateCart(req); err != nil {
		metrics.BookingOutcome("invalid")
		return nil, err
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	event, err := s.events.GetByID(ctx, req.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event.Status == models.EventStatusCancelled || event.Status == models.EventStatusCompleted {
		return nil, fmt.Errorf("event is %s: %w", event.Status, apperr.ErrValidation)
	}

	booking := &models.Booking{
		ID:            uuid.New(),
		UserID:        userID,
		EventID:       event.ID,
		Status:        models.BookingStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		IssuanceState: models.IssuancePendingTickets,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		items := make([]models.BookingItem, 0, len(req.Items))
		for _, line := range req.Items {
			tier, err := s.tiers.GetByID(ctx, line.TicketTypeID)
			if err != nil {
				return err
			}
			if tier.EventID != event.ID {
				return fmt.Errorf("ticket type %s is not sold for this event: %w", tier.ID, apperr.ErrNotFound)
			}
			items = append(items, models.BookingItem{TicketTypeID: tier.ID, Quantity: line.Quantity})
		}

		// Tier rows are locked in id order so that overlapping carts cannot deadlock.
		for _, i := range reserveOrder(items) {
			price, err := s.tiers.Reserve(ctx, items[i].TicketTypeID, items[i].Quantity)
			if err != nil {
				return err
			}
			if price.IsNegative() {
				return fmt.Errorf("ticket type %s has a negative price: %w", items[i].TicketTypeID, apperr.ErrValidation)
			}
			items[i].PricePerTicket = price
		}

		total := decimal.Zero
		for _, item := range items {
			total = total.Add(item.Subtotal())
		}

		if req.TotalAmount != nil && !req.TotalAmount.Equal(total) {
			return fmt.Errorf("total amount %s does not match %s: %w", req.TotalAmount, total, apperr.ErrValidation)
		}

		booking.Items = items
		booking.TotalAmount = total
		return s.insertBooking(ctx, booking)
	})
	if err != nil {
		outcome := "failed"
		if errors.Is(err, apperr.ErrInsufficientInventory) {
			outcome = "sold_out"
		}
		metrics.BookingOutcome(outcome)
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	metrics.BookingOutcome("created")
	logger.WithContext(ctx).Info("Booking created",
		"booking_id", booking.ID,
		"event_id", booking.EventID,
		"transaction_id", booking.TransactionID,
		"total_amount", booking.TotalAmount.String())

	publish(ctx, s.publisher, models.EventBookingCreated, models.BookingCreatedEvent{
		BookingID:     booking.ID,
		EventID:       booking.EventID,
		UserID:        booking.UserID,
		TransactionID: booking.TransactionID,
		TotalAmount:   booking.TotalAmount.String(),
		Timestamp:     s.now(),
	})

	resp := &models.CreateBookingResponse{Booking: booking}

	if _, err := s.IssueTickets(ctx, booking.ID); err != nil {
		logger.WithContext(ctx).Error("Ticket issuance failed, left for recovery",
			"booking_id", booking.ID,
			"error", err)
		resp.TicketsPending = true
		resp.Tickets = []models.Ticket{}
		return resp, nil
	}
	booking.IssuanceState = models.IssuanceIssued

	tickets, err := s.tickets.ListByBooking(ctx, booking.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tickets: %w", err)
	}
	resp.Tickets = tickets
	return resp, nil
}

// insertBooking assigns a transaction id and writes the booking, drawing a new
// id when the generated one is already taken.
func (s *BookingService) insertBooking(ctx context.Context, booking *models.Booking) error {
	for attempt := 1; attempt <= maxTransactionIDAttempts; attempt++ {
		txnID, err := codes.NewTransactionID(s.now())
		if err != nil {
			return err
		}
		booking.TransactionID = txnID

		err = s.bookings.Create(ctx, booking)
		if err == nil {
			return nil
		}
		if !errors.Is(err, apperr.ErrDuplicateKey) {
			return err
		}
		logger.WithContext(ctx).Warn("Transaction id collision, regenerating",
			"booking_id", booking.ID, "attempt", attempt)
	}
	return fmt.Errorf("no free transaction id after %d attempts: %w", maxTransactionIDAttempts, apperr.ErrDuplicateKey)
}

// IssueTickets runs the ticket phase for a booking. It is a no-op for a
// booking already issued, so the recovery job and the request path may race
// on it safely.
func (s *BookingService) IssueTickets(ctx context.Context, bookingID uuid.UUID) ([]*models.Ticket, error) {
	var minted []*models.Ticket
	var booking *models.Booking

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		booking, err = s.bookings.GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if booking.IssuanceState == models.IssuanceIssued {
			return nil
		}

		// A booking whose payment already failed has released its inventory;
		// it gets no tickets.
		if booking.PaymentStatus != models.PaymentStatusFailed {
			minted, err = s.issuer.Issue(ctx, booking)
			if err != nil {
				return err
			}
		}
		return s.bookings.MarkIssued(ctx, booking.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to issue tickets: %w", err)
	}

	if len(minted) > 0 {
		publish(ctx, s.publisher, models.EventTicketsIssued, models.TicketsIssuedEvent{
			BookingID: booking.ID,
			EventID:   booking.EventID,
			Count:     len(minted),
			Timestamp: s.now(),
		})
	}
	return minted, nil
}

func (s *BookingService) authorize(actor models.Actor, booking *models.Booking) error {
	if booking.UserID != actor.UserID && !actor.IsAdmin() {
		return apperr.ErrForbidden
	}
	return nil
}

func (s *BookingService) Get(ctx context.Context, actor models.Actor, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if err := s.authorize(actor, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

// TransactionDetails aggregates the booking with its event and tickets. A
// deleted event leaves the event fields empty.
func (s *BookingService) TransactionDetails(ctx context.Context, actor models.Actor, bookingID uuid.UUID) (*models.TransactionDetails, error) {
	booking, err := s.Get(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}

	details := &models.TransactionDetails{
		BookingID:     booking.ID,
		TransactionID: booking.TransactionID,
		Status:        booking.Status,
		PaymentStatus: booking.PaymentStatus,
		TotalAmount:   booking.TotalAmount,
		BookedAt:      booking.CreatedAt,
		Tickets:       []models.TicketSummary{},
	}

	event, err := s.events.GetByID(ctx, booking.EventID)
	switch {
	case err == nil:
		details.EventTitle = event.Title
		details.EventDate = event.StartsAt()
	case errors.Is(err, apperr.ErrNotFound):
		logger.WithContext(ctx).Warn("Booking references a deleted event",
			"booking_id", booking.ID, "event_id", booking.EventID)
	default:
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	tickets, err := s.tickets.ListByBooking(ctx, booking.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tickets: %w", err)
	}

	tierIDs := make([]uuid.UUID, 0, len(booking.Items))
	for _, item := range booking.Items {
		tierIDs = append(tierIDs, item.TicketTypeID)
	}
	tiers, err := s.tiers.ListByIDs(ctx, tierIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket types: %w", err)
	}
	tierNames := make(map[uuid.UUID]string, len(tiers))
	for _, tier := range tiers {
		tierNames[tier.ID] = tier.Name
	}

	for _, t := range tickets {
		details.Tickets = append(details.Tickets, models.TicketSummary{
			TicketNumber: t.TicketNumber,
			TierName:     tierNames[t.TicketTypeID],
			Status:       t.Status,
		})
	}
	details.TicketCount = len(details.Tickets)

	return details, nil
}

// ConfirmPayment settles the simulated payment of a pending booking.
// Completed confirms the booking and counts its attendees; failed returns the
// reserved units to their tiers and cancels the tickets.
func (s *BookingService) ConfirmPayment(ctx context.Context, actor models.Actor, bookingID uuid.UUID, outcome string) (*models.Booking, error) {
	if outcome != models.PaymentStatusCompleted && outcome != models.PaymentStatusFailed {
		return nil, fmt.Errorf("unknown payment outcome %q: %w", outcome, apperr.ErrValidation)
	}

	var booking *models.Booking
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		booking, err = s.bookings.GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := s.authorize(actor, booking); err != nil {
			return err
		}
		if booking.PaymentStatus != models.PaymentStatusPending {
			return fmt.Errorf("payment already %s: %w", booking.PaymentStatus, apperr.ErrValidation)
		}

		cancelled, err := s.cancelledByTier(ctx, booking.ID)
		if err != nil {
			return err
		}

		if outcome == models.PaymentStatusCompleted {
			if booking.IssuanceState != models.IssuanceIssued {
				return fmt.Errorf("tickets are still being issued: %w", apperr.ErrValidation)
			}
			if _, err := s.bookings.SettlePayment(ctx, booking.ID, models.BookingStatusConfirmed, models.PaymentStatusCompleted); err != nil {
				return err
			}
			booking.Status = models.BookingStatusConfirmed
			booking.PaymentStatus = models.PaymentStatusCompleted
			return s.events.AddAttendees(ctx, booking.EventID, booking.TicketCount()-sumCounts(cancelled))
		}

		if _, err := s.bookings.SettlePayment(ctx, booking.ID, models.BookingStatusPending, models.PaymentStatusFailed); err != nil {
			return err
		}
		booking.PaymentStatus = models.PaymentStatusFailed
		for _, item := range booking.Items {
			qty := item.Quantity - cancelled[item.TicketTypeID]
			if qty <= 0 {
				continue
			}
			if err := s.tiers.Release(ctx, item.TicketTypeID, qty); err != nil {
				return err
			}
		}
		_, err = s.tickets.CancelForBooking(ctx, booking.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to confirm payment: %w", err)
	}

	if booking.PaymentStatus == models.PaymentStatusCompleted {
		publish(ctx, s.publisher, models.EventBookingConfirmed, models.BookingConfirmedEvent{
			BookingID: booking.ID,
			EventID:   booking.EventID,
			Tickets:   booking.TicketCount(),
			Timestamp: s.now(),
		})
	} else {
		publish(ctx, s.publisher, models.EventPaymentFailed, models.PaymentFailedEvent{
			BookingID: booking.ID,
			EventID:   booking.EventID,
			Timestamp: s.now(),
		})
	}

	logger.WithContext(ctx).Info("Payment settled",
		"booking_id", booking.ID,
		"payment_status", booking.PaymentStatus)

	return booking, nil
}

func (s *BookingService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Booking, error) {
	bookings, err := s.bookings.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings: %w", err)
	}
	return bookings, nil
}

// RecoverPending re-drives ticket issuance for bookings stuck in
// pending_tickets since before the cutoff. It returns how many were finished.
func (s *BookingService) RecoverPending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	stuck, err := s.bookings.ListPendingIssuance(ctx, s.now().Add(-olderThan), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending bookings: %w", err)
	}

	recovered := 0
	for _, b := range stuck {
		if ctx.Err() != nil {
			return recovered, ctx.Err()
		}
		if _, err := s.IssueTickets(ctx, b.ID); err != nil {
			logger.WithContext(ctx).Error("Recovery failed to issue tickets",
				"booking_id", b.ID,
				"error", err)
			continue
		}
		metrics.BookingRecovered()
		recovered++
	}
	return recovered, nil
}

// reserveOrder returns the indexes of items sorted by ticket type id.
func reserveOrder(items []models.BookingItem) []int {
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return bytes.Compare(items[order[a]].TicketTypeID[:], items[order[b]].TicketTypeID[:]) < 0
	})
	return order
}

// cancelledByTier counts the booking's individually cancelled tickets per
// tier. Their units were already returned when they were cancelled.
func (s *BookingService) cancelledByTier(ctx context.Context, bookingID uuid.UUID) (map[uuid.UUID]int, error) {
	tickets, err := s.tickets.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	cancelled := map[uuid.UUID]int{}
	for _, t := range tickets {
		if t.Status == models.TicketStatusCancelled {
			cancelled[t.TicketTypeID]++
		}
	}
	return cancelled, nil
}

func sumCounts(counts map[uuid.UUID]int) int {
	n := 0
	for _, c := range counts {
		n += c
	}
	return n
}
