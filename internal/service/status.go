package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"marquee/internal/logger"
	"marquee/internal/metrics"
	"marquee/internal/models"
)

// Thresholds of the hot and popular classifications.
const (
	HotRecentWindow   = 7 * 24 * time.Hour
	HotRecentBookings = 30
	HotTotalBookings  = 150
	HotSoonDays       = 30
	HotSoonBookings   = 80
	PopularMinReviews = 15
	PopularMinAverage = 4.3
	popularAverageX10 = 43
)

// RecalculatedStatuses are the event statuses the periodic refresh covers.
var RecalculatedStatuses = []string{models.EventStatusActive, models.EventStatusUpcoming}

type HotStats struct {
	RecentBookings int
	TotalBookings  int
	DaysUntilEvent int
}

func IsHot(s HotStats) bool {
	return s.RecentBookings >= HotRecentBookings ||
		s.TotalBookings >= HotTotalBookings ||
		(s.DaysUntilEvent <= HotSoonDays && s.TotalBookings >= HotSoonBookings)
}

type PopularStats struct {
	VerifiedReviews int
	RatingSum       int
}

func (p PopularStats) Average() float64 {
	if p.VerifiedReviews == 0 {
		return 0
	}
	return float64(p.RatingSum) / float64(p.VerifiedReviews)
}

// IsPopular compares the average in integers so that an average of exactly
// 4.3 qualifies.
func IsPopular(p PopularStats) bool {
	return p.VerifiedReviews >= PopularMinReviews &&
		p.RatingSum*10 >= popularAverageX10*p.VerifiedReviews
}

// DaysUntil is the number of started days between now and start, rounded up.
func DaysUntil(start, now time.Time) int {
	return int(math.Ceil(start.Sub(now).Hours() / 24))
}

type StatusService struct {
	events    EventStore
	bookings  BookingStore
	reviews   ReviewStore
	publisher Publisher
	now       func() time.Time
}

func NewStatusService(events EventStore, bookings BookingStore, reviews ReviewStore, publisher Publisher, now func() time.Time) *StatusService {
	if now == nil {
		now = time.Now
	}
	return &StatusService{
		events:    events,
		bookings:  bookings,
		reviews:   reviews,
		publisher: publisher,
		now:       now,
	}
}

// UpdateHotStatus recomputes and stores the hot flag of the event. It reports
// whether the flag changed.
func (s *StatusService) UpdateHotStatus(ctx context.Context, event *models.Event) (bool, error) {
	now := s.now()
	total, recent, err := s.bookings.CountForEvent(ctx, event.ID, now.Add(-HotRecentWindow))
	if err != nil {
		return false, err
	}

	hot := IsHot(HotStats{
		RecentBookings: recent,
		TotalBookings:  total,
		DaysUntilEvent: DaysUntil(event.Date, now),
	})
	if hot == event.IsHot {
		return false, nil
	}

	if err := s.events.SetHot(ctx, event.ID, hot); err != nil {
		return false, err
	}
	event.IsHot = hot
	return true, nil
}

// UpdatePopularStatus recomputes and stores the popular flag of the event from
// its verified reviews. It reports whether the flag changed.
func (s *StatusService) UpdatePopularStatus(ctx context.Context, event *models.Event) (bool, error) {
	count, sum, err := s.reviews.VerifiedStats(ctx, event.ID)
	if err != nil {
		return false, err
	}

	popular := IsPopular(PopularStats{VerifiedReviews: count, RatingSum: sum})
	if popular == event.IsPopular {
		return false, nil
	}

	if err := s.events.SetPopular(ctx, event.ID, popular); err != nil {
		return false, err
	}
	event.IsPopular = popular
	return true, nil
}

// Recalculate applies both classifications to one event.
func (s *StatusService) Recalculate(ctx context.Context, eventID uuid.UUID) (bool, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return false, err
	}

	hotChanged, err := s.UpdateHotStatus(ctx, event)
	if err != nil {
		return false, fmt.Errorf("hot status: %w", err)
	}
	popularChanged, err := s.UpdatePopularStatus(ctx, event)
	if err != nil {
		return hotChanged, fmt.Errorf("popular status: %w", err)
	}

	changed := hotChanged || popularChanged
	if changed {
		publish(ctx, s.publisher, models.EventEventStatusChanged, models.EventStatusChangedEvent{
			EventID:   event.ID,
			IsHot:     event.IsHot,
			IsPopular: event.IsPopular,
			Timestamp: s.now(),
		})
	}
	return changed, nil
}

// RecalculateAll refreshes every active or upcoming event. A failing event is
// logged and counted; the pass goes on with the rest.
func (s *StatusService) RecalculateAll(ctx context.Context) (*models.RecalculationSummary, error) {
	started := s.now()
	summary := &models.RecalculationSummary{StartedAt: started}

	ids, err := s.events.ListByStatuses(ctx, RecalculatedStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	log := logger.WithContext(ctx)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		summary.Processed++
		changed, err := s.Recalculate(ctx, id)
		if err != nil {
			summary.Failed++
			summary.FailedEventIDs = append(summary.FailedEventIDs, id)
			metrics.Recalculation("failed")
			log.Error("Failed to recalculate event status", "event_id", id, "error", err)
			continue
		}
		if changed {
			summary.Changed++
			metrics.Recalculation("changed")
		} else {
			metrics.Recalculation("unchanged")
		}
	}

	elapsed := s.now().Sub(started)
	summary.Duration = elapsed.String()
	metrics.ObserveRefresh(elapsed)

	log.Info("Event status refresh finished",
		"processed", summary.Processed,
		"changed", summary.Changed,
		"failed", summary.Failed,
		"duration", summary.Duration)

	return summary, nil
}
