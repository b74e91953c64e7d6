package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"marquee/internal/database"
	apperr "marquee/internal/errors"
	"marquee/internal/models"
)

const ticketTypeColumns = `id, event_id, name, description, price, available, tags, created_at, updated_at`

type TicketTypeRepository struct {
	db *database.DB
}

func NewTicketTypeRepository(db *database.DB) *TicketTypeRepository {
	return &TicketTypeRepository{db: db}
}

func scanTicketType(row rowScanner, tt *models.TicketType) error {
	return row.Scan(
		&tt.ID,
		&tt.EventID,
		&tt.Name,
		&tt.Description,
		&tt.Price,
		&tt.Available,
		pq.Array(&tt.Tags),
		&tt.CreatedAt,
		&tt.UpdatedAt,
	)
}

// Create inserts a new tier. A second tier with the same name on the same
// event is a duplicate key.
func (r *TicketTypeRepository) Create(ctx context.Context, tt *models.TicketType) error {
	if tt.ID == uuid.Nil {
		tt.ID = uuid.New()
	}
	query := `
		INSERT INTO ticket_types (id, event_id, name, description, price, available, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := r.db.Conn(ctx).QueryRowContext(ctx, query,
		tt.ID,
		tt.EventID,
		tt.Name,
		tt.Description,
		tt.Price,
		tt.Available,
		pq.Array(tt.Tags),
	).Scan(&tt.CreatedAt, &tt.UpdatedAt)

	return translate(err, "create ticket type")
}

// Upsert writes the tier keyed by (event_id, name), keeping the row id of an
// existing tier.
func (r *TicketTypeRepository) Upsert(ctx context.Context, tt *models.TicketType) error {
	if tt.ID == uuid.Nil {
		tt.ID = uuid.New()
	}
	query := `
		INSERT INTO ticket_types (id, event_id, name, description, price, available, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id, name) DO UPDATE
		SET description = EXCLUDED.description, price = EXCLUDED.price,
		    available = EXCLUDED.available, tags = EXCLUDED.tags, updated_at = NOW()
		RETURNING id, created_at, updated_at`

	err := r.db.Conn(ctx).QueryRowContext(ctx, query,
		tt.ID,
		tt.EventID,
		tt.Name,
		tt.Description,
		tt.Price,
		tt.Available,
		pq.Array(tt.Tags),
	).Scan(&tt.ID, &tt.CreatedAt, &tt.UpdatedAt)

	return translate(err, "upsert ticket type")
}

func (r *TicketTypeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.TicketType, error) {
	tt := &models.TicketType{}
	query := `SELECT ` + ticketTypeColumns + ` FROM ticket_types WHERE id = $1`

	if err := scanTicketType(r.db.Conn(ctx).QueryRowContext(ctx, query, id), tt); err != nil {
		return nil, translate(err, "ticket type")
	}
	return tt, nil
}

func (r *TicketTypeRepository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.TicketType, error) {
	query := `SELECT ` + ticketTypeColumns + ` FROM ticket_types WHERE event_id = $1 ORDER BY price ASC, name ASC`
	return r.list(ctx, query, eventID)
}

func (r *TicketTypeRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.TicketType, error) {
	query := `SELECT ` + ticketTypeColumns + ` FROM ticket_types WHERE id = ANY($1::uuid[])`
	return r.list(ctx, query, pq.Array(uuidStrings(ids)))
}

func (r *TicketTypeRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.TicketType, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "list ticket types")
	}
	defer rows.Close()

	var types []models.TicketType
	for rows.Next() {
		var tt models.TicketType
		if err := scanTicketType(rows, &tt); err != nil {
			return nil, err
		}
		types = append(types, tt)
	}
	return types, rows.Err()
}

// Reserve atomically takes qty units from the tier and returns the price at
// the moment of the decrement. A tier without enough units is left untouched.
func (r *TicketTypeRepository) Reserve(ctx context.Context, id uuid.UUID, qty int) (decimal.Decimal, error) {
	query := `
		UPDATE ticket_types
		SET available = available - $1, updated_at = NOW()
		WHERE id = $2 AND available >= $1
		RETURNING price`

	var price decimal.Decimal
	err := r.db.Conn(ctx).QueryRowContext(ctx, query, qty, id).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("ticket type %s: %w", id, apperr.ErrInsufficientInventory)
	}
	if err != nil {
		return decimal.Zero, translate(err, "reserve ticket type")
	}
	return price, nil
}

// Release returns qty units to the tier. A tier deleted in the meantime is
// ignored.
func (r *TicketTypeRepository) Release(ctx context.Context, id uuid.UUID, qty int) error {
	_, err := r.db.Conn(ctx).ExecContext(ctx,
		`UPDATE ticket_types SET available = available + $1, updated_at = NOW() WHERE id = $2`, qty, id)
	return translate(err, "release ticket type")
}
