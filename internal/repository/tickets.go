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

const ticketColumns = `id, booking_id, event_id, user_id, ticket_type_id, position, ticket_number, qr_code,
		       status, used_at, used_by, download_url, created_at, updated_at`

type TicketRepository struct {
	db *database.DB
}

func NewTicketRepository(db *database.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

func scanTicket(row rowScanner, t *models.Ticket) error {
	return row.Scan(
		&t.ID,
		&t.BookingID,
		&t.EventID,
		&t.UserID,
		&t.TicketTypeID,
		&t.Position,
		&t.TicketNumber,
		&t.QRCode,
		&t.Status,
		&t.UsedAt,
		&t.UsedBy,
		&t.DownloadURL,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
}

// Insert writes a freshly minted ticket. Any unique clash (number, QR payload
// or booking slot) returns ErrDuplicateKey without aborting the transaction.
func (r *TicketRepository) Insert(ctx context.Context, t *models.Ticket) error {
	query := `
		INSERT INTO tickets (id, booking_id, event_id, user_id, ticket_type_id, position,
		                     ticket_number, qr_code, status, download_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT DO NOTHING`

	res, err := r.db.Conn(ctx).ExecContext(ctx, query,
		t.ID,
		t.BookingID,
		t.EventID,
		t.UserID,
		t.TicketTypeID,
		t.Position,
		t.TicketNumber,
		t.QRCode,
		t.Status,
		t.DownloadURL,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return translate(err, "insert ticket")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("ticket %s: %w", t.TicketNumber, apperr.ErrDuplicateKey)
	}
	return nil
}

func (r *TicketRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	return r.get(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id)
}

func (r *TicketRepository) GetByNumber(ctx context.Context, number string) (*models.Ticket, error) {
	return r.get(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_number = $1`, number)
}

func (r *TicketRepository) get(ctx context.Context, query string, arg interface{}) (*models.Ticket, error) {
	t := &models.Ticket{}
	if err := scanTicket(r.db.Conn(ctx).QueryRowContext(ctx, query, arg), t); err != nil {
		return nil, translate(err, "ticket")
	}
	return t, nil
}

func (r *TicketRepository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE booking_id = $1 ORDER BY position ASC`
	return r.list(ctx, query, bookingID)
}

func (r *TicketRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE user_id = $1 ORDER BY created_at DESC, position ASC`
	return r.list(ctx, query, userID)
}

func (r *TicketRepository) list(ctx context.Context, query string, arg interface{}) ([]models.Ticket, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, translate(err, "list tickets")
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		var t models.Ticket
		if err := scanTicket(rows, &t); err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// IssuedPositions returns the booking slots that already hold a ticket.
func (r *TicketRepository) IssuedPositions(ctx context.Context, bookingID uuid.UUID) (map[int]bool, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx, `SELECT position FROM tickets WHERE booking_id = $1`, bookingID)
	if err != nil {
		return nil, translate(err, "issued positions")
	}
	defer rows.Close()

	issued := make(map[int]bool)
	for rows.Next() {
		var pos int
		if err := rows.Scan(&pos); err != nil {
			return nil, err
		}
		issued[pos] = true
	}
	return issued, rows.Err()
}

// MarkUsed flips an active ticket to used. It returns ErrAlreadyUsed, and
// changes nothing, when the ticket is no longer active.
func (r *TicketRepository) MarkUsed(ctx context.Context, id uuid.UUID, usedAt time.Time, usedBy string) (*models.Ticket, error) {
	query := `
		UPDATE tickets
		SET status = 'used', used_at = $1, used_by = $2, updated_at = $1
		WHERE id = $3 AND status = 'active'
		RETURNING ` + ticketColumns

	t := &models.Ticket{}
	err := scanTicket(r.db.Conn(ctx).QueryRowContext(ctx, query, usedAt, usedBy, id), t)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ticket %s: %w", id, apperr.ErrAlreadyUsed)
	}
	if err != nil {
		return nil, translate(err, "redeem ticket")
	}
	return t, nil
}

// SetStatus moves a single active ticket into a terminal status.
func (r *TicketRepository) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	res, err := r.db.Conn(ctx).ExecContext(ctx,
		`UPDATE tickets SET status = $1, updated_at = NOW() WHERE id = $2 AND status = 'active'`, status, id)
	if err != nil {
		return translate(err, "update ticket")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("ticket %s: %w", id, apperr.ErrAlreadyUsed)
	}
	return nil
}

// CancelForBooking cancels every still-active ticket of the booking.
func (r *TicketRepository) CancelForBooking(ctx context.Context, bookingID uuid.UUID) (int, error) {
	res, err := r.db.Conn(ctx).ExecContext(ctx,
		`UPDATE tickets SET status = 'cancelled', updated_at = NOW() WHERE booking_id = $1 AND status = 'active'`, bookingID)
	if err != nil {
		return 0, translate(err, "cancel tickets")
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ExpireForEvent expires every still-active ticket of the event.
func (r *TicketRepository) ExpireForEvent(ctx context.Context, eventID uuid.UUID) (int, error) {
	res, err := r.db.Conn(ctx).ExecContext(ctx,
		`UPDATE tickets SET status = 'expired', updated_at = NOW() WHERE event_id = $1 AND status = 'active'`, eventID)
	if err != nil {
		return 0, translate(err, "expire tickets")
	}
	n, err := res.RowsAffected()
	return int(n), err
}
