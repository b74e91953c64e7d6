package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/stan.go"

	"marquee/internal/database"
	apperr "marquee/internal/errors"
	"marquee/internal/logger"
	"marquee/internal/models"
)

const handlerTimeout = 20 * time.Second

// errMalformed marks a message that can never be processed; it is acked so
// it is not redelivered forever.
var errMalformed = errors.New("malformed message")

type Reindexer interface {
	Reindex(ctx context.Context, eventID uuid.UUID) error
}

type StatusRecalculator interface {
	Recalculate(ctx context.Context, eventID uuid.UUID) (bool, error)
}

type Handlers struct {
	index  Reindexer
	status StatusRecalculator
}

func NewHandlers(index Reindexer, status StatusRecalculator) *Handlers {
	return &Handlers{index: index, status: status}
}

// process runs fn and acks the message unless fn failed transiently, in
// which case the server redelivers it after the ack wait.
func (h *Handlers) process(m *stan.Msg, fn func(ctx context.Context, data []byte) error) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	log := logger.WithFields("subject", m.Subject, "sequence", m.Sequence)

	if err := fn(ctx, m.Data); err != nil {
		if !errors.Is(err, errMalformed) {
			log.Error("Failed to process message, awaiting redelivery", "error", err)
			return
		}
		log.Error("Dropping malformed message", "error", err)
	}

	if err := m.Ack(); err != nil {
		log.Error("Failed to ack message", "error", err)
	}
}

func decode(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	return nil
}

func (h *Handlers) HandleEventChanged(m *stan.Msg) { h.process(m, h.eventChanged) }

func (h *Handlers) HandleStatusChanged(m *stan.Msg) { h.process(m, h.statusChanged) }

func (h *Handlers) HandleBookingConfirmed(m *stan.Msg) { h.process(m, h.bookingConfirmed) }

func (h *Handlers) HandleLifecycle(m *stan.Msg) { h.process(m, h.audit) }

// eventChanged brings the search document in line after an admin write.
func (h *Handlers) eventChanged(ctx context.Context, data []byte) error {
	var event models.EventChangedEvent
	if err := decode(data, &event); err != nil {
		return err
	}
	if event.EventID == uuid.Nil {
		return fmt.Errorf("%w: missing event_id", errMalformed)
	}

	slog.Info("Reindexing event", "event_id", event.EventID)
	return database.WithRetry(ctx, func() error {
		return h.index.Reindex(ctx, event.EventID)
	})
}

// statusChanged pushes new hot/popular flags into the search index.
func (h *Handlers) statusChanged(ctx context.Context, data []byte) error {
	var event models.EventStatusChangedEvent
	if err := decode(data, &event); err != nil {
		return err
	}
	if event.EventID == uuid.Nil {
		return fmt.Errorf("%w: missing event_id", errMalformed)
	}

	slog.Info("Processing event status change",
		"event_id", event.EventID, "is_hot", event.IsHot, "is_popular", event.IsPopular)
	return database.WithRetry(ctx, func() error {
		return h.index.Reindex(ctx, event.EventID)
	})
}

// bookingConfirmed re-evaluates the hot flag of the booked event right away
// instead of waiting for the next periodic refresh.
func (h *Handlers) bookingConfirmed(ctx context.Context, data []byte) error {
	var event models.BookingConfirmedEvent
	if err := decode(data, &event); err != nil {
		return err
	}

	changed, err := h.status.Recalculate(ctx, event.EventID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil
		}
		return err
	}
	slog.Info("Processed booking confirmation",
		"booking_id", event.BookingID, "event_id", event.EventID, "status_changed", changed)
	return nil
}

// audit logs lifecycle messages that need no further processing.
func (h *Handlers) audit(_ context.Context, data []byte) error {
	var payload map[string]interface{}
	if err := decode(data, &payload); err != nil {
		return err
	}
	slog.Info("Lifecycle event", "payload", payload)
	return nil
}
