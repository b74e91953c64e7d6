package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"marquee/internal/database"
	apperr "marquee/internal/errors"
	"marquee/internal/models"
)

const bookingColumns = `id, user_id, event_id, total_amount, status, payment_status, issuance_state,
		       transaction_id, created_at, updated_at`

type BookingRepository struct {
	db *database.DB
}

func NewBookingRepository(db *database.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func scanBooking(row rowScanner, b *models.Booking) error {
	return row.Scan(
		&b.ID,
		&b.UserID,
		&b.EventID,
		&b.TotalAmount,
		&b.Status,
		&b.PaymentStatus,
		&b.IssuanceState,
		&b.TransactionID,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
}

// Create inserts the booking row and its items. A transaction id already in
// use yields ErrDuplicateKey and nothing is written.
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	query := `
		INSERT INTO bookings (id, user_id, event_id, total_amount, status, payment_status, issuance_state, transaction_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (transaction_id) DO NOTHING
		RETURNING created_at, updated_at`

	conn := r.db.Conn(ctx)
	err := conn.QueryRowContext(ctx, query,
		booking.ID,
		booking.UserID,
		booking.EventID,
		booking.TotalAmount,
		booking.Status,
		booking.PaymentStatus,
		booking.IssuanceState,
		booking.TransactionID,
	).Scan(&booking.CreatedAt, &booking.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("transaction id %s: %w", booking.TransactionID, apperr.ErrDuplicateKey)
	}
	if err != nil {
		return translate(err, "create booking")
	}

	itemQuery := `
		INSERT INTO booking_items (booking_id, position, ticket_type_id, quantity, price_per_ticket)
		VALUES ($1, $2, $3, $4, $5)`
	for i, item := range booking.Items {
		if _, err := conn.ExecContext(ctx, itemQuery, booking.ID, i, item.TicketTypeID, item.Quantity, item.PricePerTicket); err != nil {
			return translate(err, "create booking item")
		}
	}

	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return r.get(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

// GetForUpdate reads the booking and locks its row until the surrounding
// transaction ends.
func (r *BookingRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return r.get(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

func (r *BookingRepository) get(ctx context.Context, query string, id uuid.UUID) (*models.Booking, error) {
	booking := &models.Booking{}
	if err := scanBooking(r.db.Conn(ctx).QueryRowContext(ctx, query, id), booking); err != nil {
		return nil, translate(err, "booking")
	}

	items, err := r.items(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	booking.Items = items
	return booking, nil
}

func (r *BookingRepository) items(ctx context.Context, bookingID uuid.UUID) ([]models.BookingItem, error) {
	query := `
		SELECT ticket_type_id, quantity, price_per_ticket
		FROM booking_items
		WHERE booking_id = $1
		ORDER BY position ASC`

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, translate(err, "booking items")
	}
	defer rows.Close()

	var items []models.BookingItem
	for rows.Next() {
		var item models.BookingItem
		if err := rows.Scan(&item.TicketTypeID, &item.Quantity, &item.PricePerTicket); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, userID)
}

// ListPendingIssuance returns bookings still waiting for tickets that were
// created before the cutoff, oldest first.
func (r *BookingRepository) ListPendingIssuance(ctx context.Context, before time.Time, limit int) ([]models.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE issuance_state = 'pending_tickets'
		  AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`
	return r.list(ctx, query, before, limit)
}

func (r *BookingRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.Booking, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "list bookings")
	}

	var bookings []models.Booking
	for rows.Next() {
		var booking models.Booking
		if err := scanBooking(rows, &booking); err != nil {
			rows.Close()
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range bookings {
		items, err := r.items(ctx, bookings[i].ID)
		if err != nil {
			return nil, err
		}
		bookings[i].Items = items
	}
	return bookings, nil
}

func (r *BookingRepository) MarkIssued(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.Conn(ctx).ExecContext(ctx,
		`UPDATE bookings SET issuance_state = 'issued', updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return translate(err, "mark issued")
	}
	return expectAffected(res, "booking")
}

// SettlePayment moves a booking out of payment_status=pending. It reports
// false when the booking had already left pending.
func (r *BookingRepository) SettlePayment(ctx context.Context, id uuid.UUID, status, paymentStatus string) (bool, error) {
	res, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE bookings
		SET status = $1, payment_status = $2, updated_at = NOW()
		WHERE id = $3 AND payment_status = 'pending'`,
		status, paymentStatus, id)
	if err != nil {
		return false, translate(err, "settle payment")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CountForEvent returns the number of bookings for the event overall and
// since the given instant.
func (r *BookingRepository) CountForEvent(ctx context.Context, eventID uuid.UUID, since time.Time) (total, recent int, err error) {
	query := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE created_at >= $2)
		FROM bookings
		WHERE event_id = $1`

	err = r.db.Conn(ctx).QueryRowContext(ctx, query, eventID, since).Scan(&total, &recent)
	if err != nil {
		return 0, 0, translate(err, "count bookings")
	}
	return total, recent, nil
}

// IsConfirmedPurchase reports whether the booking belongs to the user and
// event and has been paid.
func (r *BookingRepository) IsConfirmedPurchase(ctx context.Context, bookingID, userID, eventID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE id = $1 AND user_id = $2 AND event_id = $3
			  AND status = 'confirmed' AND payment_status = 'completed'
		)`

	var ok bool
	if err := r.db.Conn(ctx).QueryRowContext(ctx, query, bookingID, userID, eventID).Scan(&ok); err != nil {
		return false, translate(err, "verify booking")
	}
	return ok, nil
}
