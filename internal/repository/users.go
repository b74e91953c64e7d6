package repository

import (
	"context"

	"github.com/google/uuid"

	"marquee/internal/database"
	"marquee/internal/models"
)

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, email, name, role, created_at
		FROM users
		WHERE id = $1`

	err := r.db.Conn(ctx).QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, translate(err, "user")
	}

	return user, nil
}

// Upsert creates the user or refreshes name and role for an existing email.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	query := `
		INSERT INTO users (id, email, name, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role
		RETURNING id, created_at`

	err := r.db.Conn(ctx).QueryRowContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.Role,
	).Scan(&user.ID, &user.CreatedAt)

	return translate(err, "upsert user")
}
