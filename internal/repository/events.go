package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"marquee/internal/database"
	"marquee/internal/models"
)

const eventColumns = `id, title, description, about, location, category, event_date, event_time,
		       duration, age_limit, image_url, status, is_hot, is_popular, attendees, created_at, updated_at`

type EventRepository struct {
	db *database.DB
}

func NewEventRepository(db *database.DB) *EventRepository {
	return &EventRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner, event *models.Event) error {
	return row.Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&event.About,
		&event.Location,
		&event.Category,
		&event.Date,
		&event.Time,
		&event.Duration,
		&event.AgeLimit,
		&event.ImageURL,
		&event.Status,
		&event.IsHot,
		&event.IsPopular,
		&event.Attendees,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
}

func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	query := `
		INSERT INTO events (id, title, description, about, location, category, event_date, event_time,
		                    duration, age_limit, image_url, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`

	err := r.db.Conn(ctx).QueryRowContext(ctx, query,
		event.ID,
		event.Title,
		event.Description,
		event.About,
		event.Location,
		event.Category,
		event.Date,
		event.Time,
		event.Duration,
		event.AgeLimit,
		event.ImageURL,
		event.Status,
	).Scan(&event.CreatedAt, &event.UpdatedAt)

	return translate(err, "create event")
}

func (r *EventRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	event := &models.Event{}
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	if err := scanEvent(r.db.Conn(ctx).QueryRowContext(ctx, query, id), event); err != nil {
		return nil, translate(err, "event")
	}
	return event, nil
}

// List applies the structured filters of f. Full-text queries go through the
// search index, not here.
func (r *EventRepository) List(ctx context.Context, f models.EventFilter, exclude []uuid.UUID) ([]models.Event, error) {
	var args []interface{}
	argIndex := 1

	sqlQuery := `SELECT ` + eventColumns + ` FROM events WHERE 1=1`

	if f.Category != "" {
		sqlQuery += fmt.Sprintf(" AND category = $%d", argIndex)
		args = append(args, f.Category)
		argIndex++
	}
	if f.Status != "" {
		sqlQuery += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, f.Status)
		argIndex++
	}
	if f.Location != "" {
		sqlQuery += fmt.Sprintf(" AND location ILIKE $%d", argIndex)
		args = append(args, "%"+escapeLike(f.Location)+"%")
		argIndex++
	}
	if f.Hot != nil {
		sqlQuery += fmt.Sprintf(" AND is_hot = $%d", argIndex)
		args = append(args, *f.Hot)
		argIndex++
	}
	if f.Popular != nil {
		sqlQuery += fmt.Sprintf(" AND is_popular = $%d", argIndex)
		args = append(args, *f.Popular)
		argIndex++
	}
	if len(exclude) > 0 {
		sqlQuery += fmt.Sprintf(" AND NOT (id = ANY($%d::uuid[]))", argIndex)
		args = append(args, pq.Array(uuidStrings(exclude)))
		argIndex++
	}

	sqlQuery += " ORDER BY event_date ASC, id ASC"

	if f.Limit > 0 {
		sqlQuery += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := r.db.Conn(ctx).QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, translate(err, "list events")
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var event models.Event
		if err := scanEvent(rows, &event); err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

// ListByStatuses returns the ids of events in any of the given statuses.
func (r *EventRepository) ListByStatuses(ctx context.Context, statuses []string) ([]uuid.UUID, error) {
	query := `SELECT id FROM events WHERE status = ANY($1) ORDER BY event_date ASC, id ASC`

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, pq.Array(statuses))
	if err != nil {
		return nil, translate(err, "list events by status")
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *EventRepository) Update(ctx context.Context, event *models.Event) error {
	query := `
		UPDATE events
		SET title = $1, description = $2, about = $3, location = $4, category = $5,
		    event_date = $6, event_time = $7, duration = $8, age_limit = $9,
		    image_url = $10, status = $11, updated_at = $12
		WHERE id = $13`

	event.UpdatedAt = time.Now()

	res, err := r.db.Conn(ctx).ExecContext(ctx, query,
		event.Title,
		event.Description,
		event.About,
		event.Location,
		event.Category,
		event.Date,
		event.Time,
		event.Duration,
		event.AgeLimit,
		event.ImageURL,
		event.Status,
		event.UpdatedAt,
		event.ID,
	)
	if err != nil {
		return translate(err, "update event")
	}
	return expectAffected(res, "event")
}

// SetHot persists the derived flag. Last writer wins.
func (r *EventRepository) SetHot(ctx context.Context, id uuid.UUID, hot bool) error {
	res, err := r.db.Conn(ctx).ExecContext(ctx,
		`UPDATE events SET is_hot = $1, updated_at = NOW() WHERE id = $2`, hot, id)
	if err != nil {
		return translate(err, "set hot")
	}
	return expectAffected(res, "event")
}

func (r *EventRepository) SetPopular(ctx context.Context, id uuid.UUID, popular bool) error {
	res, err := r.db.Conn(ctx).ExecContext(ctx,
		`UPDATE events SET is_popular = $1, updated_at = NOW() WHERE id = $2`, popular, id)
	if err != nil {
		return translate(err, "set popular")
	}
	return expectAffected(res, "event")
}

func (r *EventRepository) AddAttendees(ctx context.Context, id uuid.UUID, n int) error {
	_, err := r.db.Conn(ctx).ExecContext(ctx,
		`UPDATE events SET attendees = attendees + $1, updated_at = NOW() WHERE id = $2`, n, id)
	return translate(err, "add attendees")
}

// Delete removes the event and, through the foreign key, its tiers. Bookings
// and tickets stay behind.
func (r *EventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.Conn(ctx).ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return translate(err, "delete event")
	}
	return expectAffected(res, "event")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
