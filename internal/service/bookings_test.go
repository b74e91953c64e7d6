package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "marquee/internal/errors"
	"marquee/internal/models"
)

func TestCreateBooking(t *testing.T) {
	fx := newFixture()
	user := fx.addUser(models.RoleUser)
	event := fx.addEvent()
	gold := fx.addTier(event.ID, models.TierGold, "4500", 10)

	resp, err := fx.svc.Bookings.Create(context.Background(), user.UserID, cart(event.ID, line(gold.ID, 2)))
	require.NoError(t, err)

	assert.False(t, resp.TicketsPending)
	assert.True(t, decimal.NewFromInt(9000).Equal(resp.Booking.TotalAmount))
	assert.Equal(t, models.BookingStatusPending, resp.Booking.Status)
	assert.Equal(t, models.PaymentStatusPending, resp.Booking.PaymentStatus)
	assert.Regexp(t, `^TXN[0-9A-Z]+$`, resp.Booking.TransactionID)

	require.Len(t, resp.Tickets, 2)
	numbers := map[string]bool{}
	for _, ticket := range resp.Tickets {
		assert.Equal(t, models.TicketStatusActive, ticket.Status)
		assert.Equal(t, gold.ID, ticket.TicketTypeID)
		assert.Equal(t, user.UserID, ticket.UserID)
		assert.Regexp(t, `^TKT-[0-9A-Z]+-[0-9A-Z]{5}$`, ticket.TicketNumber)
		numbers[ticket.TicketNumber] = true
	}
	assert.Len(t, numbers, 2)

	assert.Equal(t, 8, fx.tier(gold.ID).Available)
	assert.Equal(t, models.IssuanceIssued, fx.booking(resp.Booking.ID).IssuanceState)
	assert.Equal(t, []string{models.EventBookingCreated, models.EventTicketsIssued}, fx.publisher.published())
}

func TestCreateBookingFreezesPrice(t *testing.T) {
	fx := newFixture()
	user := fx.addUser(models.RoleUser)
	event := fx.addEvent()
	silver := fx.addTier(event.ID, models.TierSilver, "120.50", 5)
	bronze := fx.addTier(event.ID, models.TierBronze, "40", 5)

	resp, err := fx.svc.Bookings.Create(context.Background(), user.UserID,
		cart(event.ID, line(silver.ID, 1), line(bronze.ID, 3)))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("240.50").Equal(resp.Booking.TotalAmount))

	// A later price change does not touch the stored booking.
	tt := fx.tier(silver.ID)
	tt.Price = decimal.NewFromInt(999)
	fx.db.tiers[silver.ID] = tt

	stored := fx.booking(resp.Booking.ID)
	require.Len(t, stored.Items, 2)
	assert.True(t, decimal.RequireFromString("120.50").Equal(stored.Items[0].PricePerTicket))
	assert.Len(t, resp.Tickets, 4)
}

func TestCreateBookingReservesTiersInIDOrder(t *testing.T) {
	fx := newFixture()
	user := fx.addUser(models.RoleUser)
	event := fx.addEvent()
	gold := fx.addTier(event.ID, models.TierGold, "100", 5)
	bronze := fx.addTier(event.ID, models.TierBronze, "10", 5)

	first, second := gold, bronze
	if bytes.Compare(first.ID[:], second.ID[:]) < 0 {
		first, second = second, first
	}

	resp, err := fx.svc.Bookings.Create(context.Background(), user.UserID,
		cart(event.ID, line(first.ID, 1), line(second.ID, 2)))
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{second.ID, first.ID}, fx.db.reserved)

	stored := fx.booking(resp.Booking.ID)
	require.Len(t, stored.Items, 2)
	assert.Equal(t, first.ID, stored.Items[0].TicketTypeID)
	assert.True(t, first.Price.Equal(stored.Items[0].PricePerTicket))
	assert.Equal(t, second.ID, stored.Items[1].TicketTypeID)
	assert.True(t, second.Price.Equal(stored.Items[1].PricePerTicket))
	assert.True(t, first.Price.Add(second.Price.Mul(decimal.NewFromInt(2))).Equal(resp.Booking.TotalAmount))
}

func TestCreateBookingValidation(t *testing.T) {
	fx := newFixture()
	user := fx.addUser(models.RoleUser)
	event := fx.addEvent()
	gold := fx.addTier(event.ID, models.TierGold, "100", 10)

	negative := decimal.NewFromInt(-1)
	tests := []struct {
		name string
		req  *models.CreateBookingRequest
	}{
		{"empty cart", cart(event.ID)},
		{"zero quantity", cart(event.ID, line(gold.ID, 0))},
		{"duplicate tier", cart(event.ID, line(gold.ID, 1), line(gold.ID, 2))},
		{"negative total", &models.CreateBookingRequest{EventID: event.ID, Items: []models.BookingItemRequest{line(gold.ID, 1)}, TotalAmount: &negative}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.svc.Bookings.Create(context.Background(), user.UserID, tt.req)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
	assert.Equal(t, 10, fx.tier(gold.ID).Available)
}

func TestCreateBookingTotalMismatch(t *testing.T) {
	fx := newFixture()
	user := fx.addUser(models.RoleUser)
	event := fx.addEvent()
	gold := fx.addTier(event.ID, models.TierGold, "4500", 10)

	wrong := decimal.NewFromInt(100)
	req := cart(event.ID, line(gold.ID, 2))
	req.TotalAmount = &wrong

	_, err := fx.svc.Bookings.Create(context.Background(), user.UserID, req)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, 10, fx.tier(gold.ID).Available)
	assert.Empty(t, fx.db.bookings)

	right := decimal.NewFromInt(9000)
	req.TotalAmount = &right
	_, err = fx.svc.Bookings.Create(context.Background(), user.UserID, req)
	assert.NoError(t, err)
}

func TestCreateBookingRollsBackOnShortage(t *testing.T) {
	fx := newFixture()
	user := fx.addUser(models.RoleUser)
	event := fx.addEvent()
	gold := fx.addTier(event.ID, models.TierGold, "100", 10)
	bronze := fx.addTier(event.ID, models.TierBronze, "10", 1)

	_, err := fx.svc.Bookings.Create(context.Background(), user.UserID,
		cart(event.ID, line(gold.ID, 3), line(bronze.ID, 2)))
	assert.ErrorIs(t, err, apperr.ErrInsufficientInventory)

	assert.Equal(t, 10, fx.tier(gold.ID).Available)
	assert.Equal(t, 1, fx.tier(bronze.ID).Available)
	assert.Empty(t, fx.db.bookings)
	assert.Empty(t, fx.db.tickets)
}

func TestCreateBookingRejectsForeignTier(t *testing.T) {
	fx := newFixture()
	user := fx.addUser(models.RoleUser)
	event := fx.addEvent()
	other := fx.addEvent()
	foreign := fx.addTier(other.ID, models.TierGold, "100", 10)

	_, err := fx.svc.Bookings.Create(context.Background(), user.UserID, cart(event.ID, line(foreign.ID, 1)))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, 10, fx.tier(foreign.ID).Available)
}

func TestCreateBookingClosedEvent(t *testing.T) {
	for _, status := range []string{models.EventStatusCancelled, models.EventStatusCompleted} {
		t.Run(status, func(t *testing.T) {
			fx := newFixture()
			user := fx.addUser(models.RoleUser)
			event := fx.addEvent(func(e *models.Event) { e.Status = status })
			gold := fx.addTier(event.ID, models.TierGold, "100", 10)

			_, err := fx.svc.Bookings.Create(context.Background(), user.UserID, cart(event.ID, line(gold.ID, 1)))
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestCreateBookingUnknownUser(t *testing.T) {
	fx := newFixture()
	event := fx.addEvent()
	gold := fx.addTier(event.ID, models.TierGold, "100", 10)

	_, err := fx.svc.Bookings.Create(context.Background(), uuid.New(), cart(event.ID, line(gold.ID, 1)))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestConcurrentBookingsForLastTicket(t *testing.T) {
	fx := newFixture()
	event := fx.addEvent()
	gold := fx.addTier(event.ID, models.TierGold, "100", 1)
	alice := fx.addUser(models.RoleUser)
	bob := fx.addUser(models.RoleUser)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, user := range []models.Actor{alice, bob} {
		wg.Add(1)
		go func(i int, userID uuid.UUID) {
			defer wg.Done()
			_, errs[i] = fx.svc.Bookings.Create(context.Background(), userID, cart(event.ID, line(gold.ID, 1)))
		}(i, user.UserID)
	}
	wg.Wait()

	succeeded, soldOut := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, apperr.ErrInsufficientInventory):
			soldOut++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, soldOut)
	assert.Equal(t, 0, fx.tier(gold.ID).Available)
	assert.Len(t, fx.db.tickets, 1)
}

// collidingBookings reports a transaction id clash for the first n inserts.
type collidingBookings struct {
	*fakeBookings
	n     int
	calls int
}

func (c *collidingBookings) Create(ctx context.Context, b *models.Booking) error {
	c.calls++
	if c.calls <= c.n {
		return fmt.Errorf("booking: %w", apperr.ErrDuplicateKey)
	}
	return c.fakeBookings.Create(ctx, b)
}

func newCollidingBookingService(fx *fixture, n int) (*BookingService, *collidingBookings) {
	colliding := &collidingBookings{fakeBookings: fx.bookings, n: n}
	svc := NewBookingService(Deps{
		Tx:          fx.db,
		Users:       fakeUsers{db: fx.db},
		Events:      fx.events,
		TicketTypes: fakeTiers{db: fx.db},
		Bookings:    colliding,
		Tickets:     fx.tickets,
		Now:         fx.now,
	}, fx.svc.Issuer)
	return svc, colliding
}

func TestCreateBookingRetriesTransactionID(t *testing.T) {
	fx := newFixture()
	user := fx.addUser(models.RoleUser)
	event := fx.addEvent()
	gold := fx.addTier(event.ID, models.TierGold, "100", 10)

	svc, colliding := newCollidingBookingService(fx, 2)
	resp, err := svc.Create(context.Background(), user.UserID, cart(event.ID, line(gold.ID, 1)))
	require.NoError(t, err)
	assert.Equal(t, 3, colliding.calls)
	assert.Len(t, resp.Tickets, 1)
}

func TestCreateBookingGivesUpOnTransactionID(t *testing.T) {
	fx := newFixture()
	user := fx.addUser(models.RoleUser)
	event := fx.addEvent()
	gold := fx.addTier(event.ID, models.TierGold, "100", 10)

	svc, colliding := newCollidingBookingService(fx, 100)
	_, err := svc.Create(context.Background(), user.UserID, cart(event.ID, line(gold.ID, 1)))
	assert.ErrorIs(t, err, apperr.ErrDuplicateKey)
	assert.Equal(t, maxTransactionIDAttempts, colliding.calls)
	assert.Equal(t, 10, fx.tier(gold.ID).Available)
}

func TestIssuanceFailureLeavesBookingForRecovery(t *testing.T) {
	fx := newFixture()
	user := fx.addUser(models.RoleUser)
	event := fx.addEvent()
	gold := fx.addTier(event.ID, models.TierGold, "100", 10)

	fx.tickets.insertErr = func(*models.Ticket) error { return errors.New("connection reset") }

	resp, err := fx.svc.Bookings.Create(context.Background(), user.UserID, cart(event.ID, line(gold.ID, 3)))
	require.NoError(t, err)
	assert.True(t, resp.TicketsPending)
	assert.Empty(t, resp.Tickets)
	assert.Empty(t, fx.db.tickets)
	assert.Equal(t, models.IssuancePendingTickets, fx.booking(resp.Booking.ID).IssuanceState)
	assert.Equal(t, 7, fx.tier(gold.ID).Available)

	// Too recent for the sweep.
	n, err := fx.svc.Bookings.RecoverPending(context.Background(), 5*time.Minute, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	fx.tickets.insertErr = nil
	fx.clock = fx.clock.Add(10 * time.Minute)

	n, err = fx.svc.Bookings.RecoverPending(context.Background(), 5*time.Minute, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.IssuanceIssued, fx.booking(resp.Booking.ID).IssuanceState)

	tickets, err := fx.tickets.ListByBooking(context.Background(), resp.Booking.ID)
	require.NoError(t, err)
	assert.Len(t, tickets, 3)

	// A second sweep finds nothing left to do.
	n, err = fx.svc.Bookings.RecoverPending(context.Background(), 5*time.Minute, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestIssueTicketsIsIdempotent(t *testing.T) {
	fx := newFixture()
	user := fx.addUser(models.RoleUser)
	event := fx.addEvent()
	gold := fx.addTier(event.ID, models.TierGold, "100", 10)

	resp, err := fx.svc.Bookings.Create(context.Background(), user.UserID, cart(event.ID, line(gold.ID, 2)))
	require.NoError(t, err)

	minted, err := fx.svc.Bookings.IssueTickets(context.Background(), resp.Booking.ID)
	require.NoError(t, err)
	assert.Empty(t, minted)
	assert.Len(t, fx.db.tickets, 2)
}

func bookAndIssue(t *testing.T, fx *fixture, user models.Actor, eventID, tierID uuid.UUID, qty int) *models.CreateBookingResponse {
	t.Helper()
	resp, err := fx.svc.Bookings.Create(context.Background(), user.UserID, cart(eventID, line(tierID, qty)))
	require.NoError(t, err)
	require.False(t, resp.TicketsPending)
	return resp
}

func TestConfirmPaymentCompleted(t *testing.T) {
	fx := newFixture()
	user := fx.addUser(models.RoleUser)
	event := fx.addEvent()
	gold := fx.addTier(event.ID, models.TierGold, "100", 10)
	resp := bookAndIssue(t, fx, user, event.ID, gold.ID, 2)

	booking, err := fx.svc.Bookings.ConfirmPayment(context.Background(), user, resp.Booking.ID, models.PaymentStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusConfirmed, booking.Status)
	assert.Equal(t, models.PaymentStatusCompleted, booking.PaymentStatus)
	assert.Equal(t, 2, fx.event(event.ID).Attendees)
	assert.Contains(t, fx.publisher.published(), models.EventBookingConfirmed)

	_, err = fx.svc.Bookings.ConfirmPayment(context.Background(), user, resp.Booking.ID, models.PaymentStatusFailed)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, 8, fx.tier(gold.ID).Available)
}

func TestConfirmPaymentFailed(t *testing.T) {
	fx := newFixture()
	user := fx.addUser(models.RoleUser)
	event := fx.addEvent()
	gold := fx.addTier(event.ID, models.TierGold, "100", 10)
	resp := bookAndIssue(t, fx, user, event.ID, gold.ID, 3)

	booking, err := fx.svc.Bookings.ConfirmPayment(context.Background(), user, resp.Booking.ID, models.PaymentStatusFailed)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, booking.PaymentStatus)
	assert.Equal(t, models.BookingStatusPending, booking.Status)
	assert.Equal(t, 10, fx.tier(gold.ID).Available)
	assert.Equal(t, 0, fx.event(event.ID).Attendees)

	tickets, err := fx.tickets.ListByBooking(context.Background(), resp.Booking.ID)
	require.NoError(t, err)
	for _, ticket := range tickets {
		assert.Equal(t, models.TicketStatusCancelled, ticket.Status)
	}
	assert.Contains(t, fx.publisher.published(), models.EventPaymentFailed)
}

func TestConfirmPaymentAuthorization(t *testing.T) {
	fx := newFixture()
	owner := fx.addUser(models.RoleUser)
	stranger := fx.addUser(models.RoleUser)
	admin := fx.addUser(models.RoleAdmin)
	event := fx.addEvent()
	gold := fx.addTier(event.ID, models.TierGold, "100", 10)
	resp := bookAndIssue(t, fx, owner, event.ID, gold.ID, 1)

	_, err := fx.svc.Bookings.ConfirmPayment(context.Background(), stranger, resp.Booking.ID, models.PaymentStatusCompleted)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = fx.svc.Bookings.ConfirmPayment(context.Background(), owner, resp.Booking.ID, "refunded")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = fx.svc.Bookings.ConfirmPayment(context.Background(), admin, resp.Booking.ID, models.PaymentStatusCompleted)
	assert.NoError(t, err)
}

func TestConfirmPaymentWaitsForTickets(t *testing.T) {
	fx := newFixture()
	user := fx.addUser(models.RoleUser)
	event := fx.addEvent()
	gold := fx.addTier(event.ID, models.TierGold, "100", 10)

	fx.tickets.insertErr = func(*models.Ticket) error { return errors.New("connection reset") }
	resp, err := fx.svc.Bookings.Create(context.Background(), user.UserID, cart(event.ID, line(gold.ID, 1)))
	require.NoError(t, err)
	require.True(t, resp.TicketsPending)

	_, err = fx.svc.Bookings.ConfirmPayment(context.Background(), user, resp.Booking.ID, models.PaymentStatusCompleted)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	// A failed payment settles right away, and recovery then issues nothing.
	_, err = fx.svc.Bookings.ConfirmPayment(context.Background(), user, resp.Booking.ID, models.PaymentStatusFailed)
	require.NoError(t, err)

	fx.tickets.insertErr = nil
	minted, err := fx.svc.Bookings.IssueTickets(context.Background(), resp.Booking.ID)
	require.NoError(t, err)
	assert.Empty(t, minted)
	assert.Equal(t, models.IssuanceIssued, fx.booking(resp.Booking.ID).IssuanceState)
	assert.Equal(t, 10, fx.tier(gold.ID).Available)
}

func TestTransactionDetails(t *testing.T) {
	fx := newFixture()
	user := fx.addUser(models.RoleUser)
	event := fx.addEvent()
	gold := fx.addTier(event.ID, models.TierGold, "4500", 10)
	resp := bookAndIssue(t, fx, user, event.ID, gold.ID, 2)

	details, err := fx.svc.Bookings.TransactionDetails(context.Background(), user, resp.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.Booking.TransactionID, details.TransactionID)
	assert.Equal(t, event.Title, details.EventTitle)
	assert.Equal(t, event.StartsAt(), details.EventDate)
	assert.Equal(t, 2, details.TicketCount)
	for _, summary := range details.Tickets {
		assert.Equal(t, models.TierGold, summary.TierName)
		assert.Equal(t, models.TicketStatusActive, summary.Status)
	}

	_, err = fx.svc.Bookings.TransactionDetails(context.Background(), fx.addUser(models.RoleUser), resp.Booking.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = fx.svc.Bookings.TransactionDetails(context.Background(), user, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTransactionDetailsDeletedEvent(t *testing.T) {
	fx := newFixture()
	user := fx.addUser(models.RoleUser)
	event := fx.addEvent()
	gold := fx.addTier(event.ID, models.TierGold, "100", 10)
	resp := bookAndIssue(t, fx, user, event.ID, gold.ID, 1)

	require.NoError(t, fx.svc.Events.Delete(context.Background(), event.ID))

	details, err := fx.svc.Bookings.TransactionDetails(context.Background(), user, resp.Booking.ID)
	require.NoError(t, err)
	assert.Empty(t, details.EventTitle)
	assert.Equal(t, 1, details.TicketCount)
	assert.Empty(t, details.Tickets[0].TierName)
}
