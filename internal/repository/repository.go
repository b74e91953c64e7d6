package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"marquee/internal/database"
	apperr "marquee/internal/errors"
)

type Repositories struct {
	Users       *UserRepository
	Events      *EventRepository
	TicketTypes *TicketTypeRepository
	Bookings    *BookingRepository
	Tickets     *TicketRepository
	Reviews     *ReviewRepository
	Settings    *SettingsRepository
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Users:       NewUserRepository(db),
		Events:      NewEventRepository(db),
		TicketTypes: NewTicketTypeRepository(db),
		Bookings:    NewBookingRepository(db),
		Tickets:     NewTicketRepository(db),
		Reviews:     NewReviewRepository(db),
		Settings:    NewSettingsRepository(db),
	}
}

// translate maps driver errors onto the application taxonomy.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", what, apperr.ErrNotFound)
	case database.IsUniqueViolation(err):
		return fmt.Errorf("%s: %w", what, apperr.ErrDuplicateKey)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

func expectAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, apperr.ErrNotFound)
	}
	return nil
}
