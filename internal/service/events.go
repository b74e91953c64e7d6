package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperr "marquee/internal/errors"
	"marquee/internal/logger"
	"marquee/internal/models"
)

const (
	dateLayout       = "2006-01-02"
	timeLayout       = "15:04"
	defaultListLimit = 20
	maxListLimit     = 100
	defaultFeatured  = 8
)

type EventService struct {
	tx        Transactor
	events    EventStore
	tiers     TicketTypeStore
	tickets   TicketStore
	index     EventIndex
	publisher Publisher
}

func NewEventService(tx Transactor, events EventStore, tiers TicketTypeStore, tickets TicketStore, index EventIndex, publisher Publisher) *EventService {
	return &EventService{
		tx:        tx,
		events:    events,
		tiers:     tiers,
		tickets:   tickets,
		index:     index,
		publisher: publisher,
	}
}

func parseDate(raw string) (time.Time, error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD: %w", apperr.ErrValidation)
	}
	return d, nil
}

func validateEvent(e *models.Event) error {
	if strings.TrimSpace(e.Title) == "" || len(e.Title) > 100 {
		return fmt.Errorf("title must be 1-100 characters: %w", apperr.ErrValidation)
	}
	if strings.TrimSpace(e.Description) == "" {
		return fmt.Errorf("description is required: %w", apperr.ErrValidation)
	}
	if strings.TrimSpace(e.Location) == "" {
		return fmt.Errorf("location is required: %w", apperr.ErrValidation)
	}
	if !models.ValidCategory(e.Category) {
		return fmt.Errorf("unknown category %q: %w", e.Category, apperr.ErrValidation)
	}
	if !models.ValidEventStatus(e.Status) {
		return fmt.Errorf("unknown status %q: %w", e.Status, apperr.ErrValidation)
	}
	if e.Time != "" {
		if _, err := time.Parse(timeLayout, e.Time); err != nil {
			return fmt.Errorf("time must be HH:MM: %w", apperr.ErrValidation)
		}
	}
	return nil
}

func tierFromRequest(eventID uuid.UUID, req models.TicketTypeRequest) (*models.TicketType, error) {
	if !models.ValidTierName(req.Name) {
		return nil, fmt.Errorf("tier name must be Bronze, Silver or Gold: %w", apperr.ErrValidation)
	}
	if req.Price.IsNegative() {
		return nil, fmt.Errorf("price must not be negative: %w", apperr.ErrValidation)
	}
	if req.Available < 0 {
		return nil, fmt.Errorf("available must not be negative: %w", apperr.ErrValidation)
	}
	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}
	return &models.TicketType{
		EventID:     eventID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Available:   req.Available,
		Tags:        tags,
	}, nil
}

// Create stores the event together with its tiers. Two tiers with the same
// name fail the whole create with ErrDuplicateKey.
func (s *EventService) Create(ctx context.Context, req *models.CreateEventRequest) (*models.Event, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}

	event := &models.Event{
		ID:          uuid.New(),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		About:       req.About,
		Location:    strings.TrimSpace(req.Location),
		Category:    req.Category,
		Date:        date,
		Time:        req.Time,
		Duration:    req.Duration,
		AgeLimit:    req.AgeLimit,
		ImageURL:    req.ImageURL,
		Status:      req.Status,
	}
	if event.Status == "" {
		event.Status = models.EventStatusActive
	}
	if err := validateEvent(event); err != nil {
		return nil, err
	}

	tiers := make([]*models.TicketType, 0, len(req.TicketTypes))
	for _, tr := range req.TicketTypes {
		tier, err := tierFromRequest(event.ID, tr)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, tier)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.events.Create(ctx, event); err != nil {
			return err
		}
		for _, tier := range tiers {
			if err := s.tiers.Create(ctx, tier); err != nil {
				return err
			}
			event.TicketTypes = append(event.TicketTypes, *tier)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	s.changed(ctx, event)
	return event, nil
}

// Get returns the event with its tier catalog.
func (s *EventService) Get(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if err := s.attachTiers(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *EventService) attachTiers(ctx context.Context, event *models.Event) error {
	tiers, err := s.tiers.ListByEvent(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("failed to get ticket types: %w", err)
	}
	event.TicketTypes = tiers
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// List filters events in Postgres, or runs a full-text search through the
// index when a query is given and the index is available.
func (s *EventService) List(ctx context.Context, f models.EventFilter) ([]models.Event, error) {
	f.Limit = normalizeLimit(f.Limit)
	if f.Offset < 0 {
		f.Offset = 0
	}

	if strings.TrimSpace(f.Query) != "" && s.index != nil {
		events, err := s.index.Search(ctx, f)
		if err == nil {
			return events, nil
		}
		logger.WithContext(ctx).Warn("Search index unavailable, falling back to database", "error", err)
	}

	events, err := s.events.List(ctx, f, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	for i := range events {
		if err := s.attachTiers(ctx, &events[i]); err != nil {
			return nil, err
		}
	}
	if events == nil {
		events = []models.Event{}
	}
	return events, nil
}

// Hot lists hot events, those matching location first and then the rest up
// to limit.
func (s *EventService) Hot(ctx context.Context, location string, limit int) ([]models.Event, error) {
	yes := true
	return s.featured(ctx, models.EventFilter{Hot: &yes}, location, limit)
}

// Popular lists popular events, those matching location first.
func (s *EventService) Popular(ctx context.Context, location string, limit int) ([]models.Event, error) {
	yes := true
	return s.featured(ctx, models.EventFilter{Popular: &yes}, location, limit)
}

func (s *EventService) featured(ctx context.Context, f models.EventFilter, location string, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = defaultFeatured
	}
	f.Limit = normalizeLimit(limit)

	var result []models.Event
	if location = strings.TrimSpace(location); location != "" {
		local := f
		local.Location = location
		events, err := s.events.List(ctx, local, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to list events: %w", err)
		}
		result = append(result, events...)
	}

	if len(result) < f.Limit {
		exclude := make([]uuid.UUID, len(result))
		for i, e := range result {
			exclude[i] = e.ID
		}
		global := f
		global.Limit = f.Limit - len(result)
		events, err := s.events.List(ctx, global, exclude)
		if err != nil {
			return nil, fmt.Errorf("failed to list events: %w", err)
		}
		result = append(result, events...)
	}

	if result == nil {
		result = []models.Event{}
	}
	return result, nil
}

// Update applies the allow-listed patch. Moving an event to completed expires
// its unused tickets.
func (s *EventService) Update(ctx context.Context, id uuid.UUID, patch *models.UpdateEventRequest) (*models.Event, error) {
	var date *time.Time
	if patch.Date != nil {
		d, err := parseDate(*patch.Date)
		if err != nil {
			return nil, err
		}
		date = &d
	}

	var event *models.Event
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		event, err = s.events.GetByID(ctx, id)
		if err != nil {
			return err
		}
		previousStatus := event.Status

		patch.Apply(event, date)
		if err := validateEvent(event); err != nil {
			return err
		}
		if err := s.events.Update(ctx, event); err != nil {
			return err
		}

		if event.Status == models.EventStatusCompleted && previousStatus != models.EventStatusCompleted {
			if _, err := s.tickets.ExpireForEvent(ctx, event.ID); err != nil {
				return err
			}
		}
		return s.attachTiers(ctx, event)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	s.changed(ctx, event)
	return event, nil
}

// UpsertTier creates or replaces the named tier of the event.
func (s *EventService) UpsertTier(ctx context.Context, eventID uuid.UUID, req *models.TicketTypeRequest) (*models.TicketType, error) {
	tier, err := tierFromRequest(eventID, *req)
	if err != nil {
		return nil, err
	}

	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if err := s.tiers.Upsert(ctx, tier); err != nil {
		return nil, fmt.Errorf("failed to save ticket type: %w", err)
	}

	if err := s.attachTiers(ctx, event); err == nil {
		s.changed(ctx, event)
	}
	return tier, nil
}

// Delete removes the event and its tiers. Bookings and tickets of the event
// are kept.
func (s *EventService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.events.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	if s.index != nil {
		if err := s.index.DeleteEvent(ctx, id); err != nil {
			logger.WithContext(ctx).Warn("Failed to remove event from search index", "event_id", id, "error", err)
		}
	}
	publish(ctx, s.publisher, models.EventEventDeleted, models.EventChangedEvent{EventID: id, Timestamp: time.Now()})
	return nil
}

// Reindex brings the search document of the event in line with the
// database, removing it when the event is gone.
func (s *EventService) Reindex(ctx context.Context, id uuid.UUID) error {
	if s.index == nil {
		return nil
	}

	event, err := s.Get(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return s.index.DeleteEvent(ctx, id)
	}
	if err != nil {
		return err
	}
	return s.index.IndexEvent(ctx, event)
}

// ReindexAll pushes every event into the search index. It returns how many
// were indexed.
func (s *EventService) ReindexAll(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, errors.New("search index is not configured")
	}

	indexed := 0
	for offset := 0; ; offset += maxListLimit {
		events, err := s.events.List(ctx, models.EventFilter{Limit: maxListLimit, Offset: offset}, nil)
		if err != nil {
			return indexed, fmt.Errorf("failed to list events: %w", err)
		}
		for i := range events {
			if err := s.attachTiers(ctx, &events[i]); err != nil {
				return indexed, err
			}
			if err := s.index.IndexEvent(ctx, &events[i]); err != nil {
				return indexed, fmt.Errorf("failed to index event %s: %w", events[i].ID, err)
			}
			indexed++
		}
		if len(events) < maxListLimit {
			return indexed, nil
		}
	}
}

// changed refreshes the search document inline and announces the change so
// other replicas' consumers can follow.
func (s *EventService) changed(ctx context.Context, event *models.Event) {
	if s.index != nil {
		if err := s.index.IndexEvent(ctx, event); err != nil {
			logger.WithContext(ctx).Warn("Failed to index event", "event_id", event.ID, "error", err)
		}
	}
	publish(ctx, s.publisher, models.EventEventUpserted, models.EventChangedEvent{EventID: event.ID, Timestamp: time.Now()})
}
