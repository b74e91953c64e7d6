package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"marquee/internal/database"
	apperr "marquee/internal/errors"
	"marquee/internal/models"
)

type SettingsRepository struct {
	db *database.DB
}

func NewSettingsRepository(db *database.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetOrInit returns the singleton settings row, creating it with column
// defaults first if needed. Concurrent first reads both land on the same row.
func (r *SettingsRepository) GetOrInit(ctx context.Context) (*models.AdminSettings, error) {
	conn := r.db.Conn(ctx)
	if _, err := conn.ExecContext(ctx, `INSERT INTO admin_settings (id) VALUES (1) ON CONFLICT (id) DO NOTHING`); err != nil {
		return nil, translate(err, "init settings")
	}

	s := &models.AdminSettings{}
	query := `
		SELECT show_location_events, show_hot_events, show_popular_events, maintenance_mode,
		       enabled_categories, updated_at
		FROM admin_settings
		WHERE id = 1`

	err := conn.QueryRowContext(ctx, query).Scan(
		&s.ShowLocationEvents,
		&s.ShowHotEvents,
		&s.ShowPopularEvents,
		&s.MaintenanceMode,
		pq.Array(&s.EnabledCategories),
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, translate(err, "settings")
	}
	return s, nil
}

func (r *SettingsRepository) Update(ctx context.Context, s *models.AdminSettings) error {
	query := `
		UPDATE admin_settings
		SET show_location_events = $1, show_hot_events = $2, show_popular_events = $3,
		    maintenance_mode = $4, enabled_categories = $5, updated_at = NOW()
		WHERE id = 1
		RETURNING updated_at`

	err := r.db.Conn(ctx).QueryRowContext(ctx, query,
		s.ShowLocationEvents,
		s.ShowHotEvents,
		s.ShowPopularEvents,
		s.MaintenanceMode,
		pq.Array(s.EnabledCategories),
	).Scan(&s.UpdatedAt)

	return translate(err, "update settings")
}

func (r *SettingsRepository) ListCities(ctx context.Context) ([]models.PopularCity, error) {
	query := `
		SELECT id, name, state_code, country_code, latitude, longitude, created_at
		FROM popular_cities
		ORDER BY name ASC`

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, translate(err, "list cities")
	}
	defer rows.Close()

	var cities []models.PopularCity
	for rows.Next() {
		var c models.PopularCity
		if err := rows.Scan(&c.ID, &c.Name, &c.StateCode, &c.CountryCode, &c.Latitude, &c.Longitude, &c.CreatedAt); err != nil {
			return nil, err
		}
		cities = append(cities, c)
	}
	return cities, rows.Err()
}

// InsertCity adds the city; an id already present is ErrDuplicateKey.
func (r *SettingsRepository) InsertCity(ctx context.Context, c *models.PopularCity) error {
	query := `
		INSERT INTO popular_cities (id, name, state_code, country_code, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
		RETURNING created_at`

	err := r.db.Conn(ctx).QueryRowContext(ctx, query,
		c.ID, c.Name, c.StateCode, c.CountryCode, c.Latitude, c.Longitude,
	).Scan(&c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("city %s: %w", c.ID, apperr.ErrDuplicateKey)
	}
	return translate(err, "insert city")
}

// DeleteCity removes the city. Deleting an unknown id is not an error.
func (r *SettingsRepository) DeleteCity(ctx context.Context, id string) error {
	_, err := r.db.Conn(ctx).ExecContext(ctx, `DELETE FROM popular_cities WHERE id = $1`, id)
	return translate(err, "delete city")
}
