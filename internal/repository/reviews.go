package repository

import (
	"context"

	"github.com/google/uuid"

	"marquee/internal/database"
	"marquee/internal/models"
)

type ReviewRepository struct {
	db *database.DB
}

func NewReviewRepository(db *database.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create stores the review. A second review for the same user, event and
// booking is a duplicate key.
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}
	query := `
		INSERT INTO reviews (id, user_id, event_id, booking_id, rating, venue, organization,
		                     value, experience, comment, is_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`

	err := r.db.Conn(ctx).QueryRowContext(ctx, query,
		review.ID,
		review.UserID,
		review.EventID,
		review.BookingID,
		review.Rating,
		review.Venue,
		review.Organization,
		review.Value,
		review.Experience,
		review.Comment,
		review.IsVerified,
	).Scan(&review.CreatedAt, &review.UpdatedAt)

	return translate(err, "create review")
}

// VerifiedStats returns the count and rating sum of verified reviews.
func (r *ReviewRepository) VerifiedStats(ctx context.Context, eventID uuid.UUID) (count, ratingSum int, err error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(rating), 0)
		FROM reviews
		WHERE event_id = $1 AND is_verified`

	if err := r.db.Conn(ctx).QueryRowContext(ctx, query, eventID).Scan(&count, &ratingSum); err != nil {
		return 0, 0, translate(err, "review stats")
	}
	return count, ratingSum, nil
}

// Distribution counts verified reviews per star rating.
func (r *ReviewRepository) Distribution(ctx context.Context, eventID uuid.UUID) (map[int]int, error) {
	query := `
		SELECT rating, COUNT(*)
		FROM reviews
		WHERE event_id = $1 AND is_verified
		GROUP BY rating`

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, translate(err, "review distribution")
	}
	defer rows.Close()

	dist := make(map[int]int)
	for rows.Next() {
		var rating, n int
		if err := rows.Scan(&rating, &n); err != nil {
			return nil, err
		}
		dist[rating] = n
	}
	return dist, rows.Err()
}

func (r *ReviewRepository) ListByEvent(ctx context.Context, eventID uuid.UUID, verifiedOnly bool) ([]models.Review, error) {
	query := `
		SELECT id, user_id, event_id, booking_id, rating, venue, organization, value, experience,
		       comment, is_verified, created_at, updated_at
		FROM reviews
		WHERE event_id = $1 AND (is_verified OR NOT $2)
		ORDER BY created_at DESC`

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, eventID, verifiedOnly)
	if err != nil {
		return nil, translate(err, "list reviews")
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		var rv models.Review
		err := rows.Scan(
			&rv.ID,
			&rv.UserID,
			&rv.EventID,
			&rv.BookingID,
			&rv.Rating,
			&rv.Venue,
			&rv.Organization,
			&rv.Value,
			&rv.Experience,
			&rv.Comment,
			&rv.IsVerified,
			&rv.CreatedAt,
			&rv.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, rv)
	}
	return reviews, rows.Err()
}
