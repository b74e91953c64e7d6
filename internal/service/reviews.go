package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	apperr "marquee/internal/errors"
	"marquee/internal/logger"
	"marquee/internal/models"
)

const maxCommentLength = 2000

type ReviewService struct {
	events   EventStore
	bookings BookingStore
	reviews  ReviewStore
}

func NewReviewService(events EventStore, bookings BookingStore, reviews ReviewStore) *ReviewService {
	return &ReviewService{events: events, bookings: bookings, reviews: reviews}
}

func validRating(r int) bool { return r >= 1 && r <= 5 }

func validateReview(req *models.SubmitReviewRequest) error {
	if !validRating(req.Rating) {
		return fmt.Errorf("rating must be between 1 and 5: %w", apperr.ErrValidation)
	}
	aspects := []struct {
		name  string
		value *int
	}{
		{"venue", req.Venue},
		{"organization", req.Organization},
		{"value", req.Value},
		{"experience", req.Experience},
	}
	for _, a := range aspects {
		if a.value != nil && !validRating(*a.value) {
			return fmt.Errorf("%s rating must be between 1 and 5: %w", a.name, apperr.ErrValidation)
		}
	}
	if len(req.Comment) > maxCommentLength {
		return fmt.Errorf("comment is too long: %w", apperr.ErrValidation)
	}
	return nil
}

// Submit stores the user's review. It is marked verified when the booking is
// a paid, confirmed purchase of the same event by the same user; unverified
// reviews are kept but do not count towards ratings.
func (s *ReviewService) Submit(ctx context.Context, userID uuid.UUID, req *models.SubmitReviewRequest) (*models.Review, error) {
	if err := validateReview(req); err != nil {
		return nil, err
	}

	if _, err := s.events.GetByID(ctx, req.EventID); err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	verified, err := s.bookings.IsConfirmedPurchase(ctx, req.BookingID, userID, req.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify purchase: %w", err)
	}

	review := &models.Review{
		ID:           uuid.New(),
		UserID:       userID,
		EventID:      req.EventID,
		BookingID:    req.BookingID,
		Rating:       req.Rating,
		Venue:        req.Venue,
		Organization: req.Organization,
		Value:        req.Value,
		Experience:   req.Experience,
		Comment:      strings.TrimSpace(req.Comment),
		IsVerified:   verified,
	}

	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, fmt.Errorf("failed to save review: %w", err)
	}

	logger.WithContext(ctx).Info("Review submitted",
		"event_id", review.EventID,
		"booking_id", review.BookingID,
		"is_verified", review.IsVerified)

	return review, nil
}

// Summary aggregates the verified reviews of an event. The average is
// rounded to one decimal.
func (s *ReviewService) Summary(ctx context.Context, eventID uuid.UUID) (*models.ReviewSummary, error) {
	count, sum, err := s.reviews.VerifiedStats(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get review stats: %w", err)
	}
	dist, err := s.reviews.Distribution(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get rating distribution: %w", err)
	}

	summary := &models.ReviewSummary{
		EventID:      eventID,
		Count:        count,
		Average:      math.Round(PopularStats{VerifiedReviews: count, RatingSum: sum}.Average()*10) / 10,
		Distribution: make(map[int]int, 5),
	}
	for star := 1; star <= 5; star++ {
		summary.Distribution[star] = dist[star]
	}
	return summary, nil
}

func (s *ReviewService) List(ctx context.Context, eventID uuid.UUID) ([]models.Review, error) {
	reviews, err := s.reviews.ListByEvent(ctx, eventID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get reviews: %w", err)
	}
	return reviews, nil
}
