package database

import (
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createExtensions,
		createUsersTable,
		createEventsTable,
		createTicketTypesTable,
		createBookingsTable,
		createBookingItemsTable,
		createTicketsTable,
		createReviewsTable,
		createAdminSettingsTable,
		createPopularCitiesTable,
		createIndexes,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createExtensions = `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    email VARCHAR(255) UNIQUE NOT NULL,
    name VARCHAR(100) NOT NULL,
    role VARCHAR(20) NOT NULL DEFAULT 'user',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (role IN ('user', 'admin'))
);`

const createEventsTable = `
CREATE TABLE IF NOT EXISTS events (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    title VARCHAR(100) NOT NULL,
    description TEXT NOT NULL,
    about TEXT,
    location VARCHAR(255) NOT NULL,
    category VARCHAR(20) NOT NULL,
    event_date DATE NOT NULL,
    event_time VARCHAR(10) NOT NULL DEFAULT '',
    duration VARCHAR(50) NOT NULL DEFAULT '',
    age_limit VARCHAR(20) NOT NULL DEFAULT '',
    image_url TEXT NOT NULL DEFAULT '',
    status VARCHAR(20) NOT NULL DEFAULT 'active',
    is_hot BOOLEAN NOT NULL DEFAULT FALSE,
    is_popular BOOLEAN NOT NULL DEFAULT FALSE,
    attendees INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (category IN ('concert', 'comedy', 'workshop')),
    CHECK (status IN ('active', 'upcoming', 'completed', 'cancelled'))
);`

const createTicketTypesTable = `
CREATE TABLE IF NOT EXISTS ticket_types (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    event_id UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
    name VARCHAR(10) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    price NUMERIC(12,2) NOT NULL,
    available INTEGER NOT NULL,
    tags TEXT[] NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    UNIQUE(event_id, name),
    CHECK (name IN ('Bronze', 'Silver', 'Gold')),
    CHECK (price >= 0),
    CHECK (available >= 0)
);`

// bookings and tickets carry no foreign keys to events: deleting an event
// leaves them in place.
const createBookingsTable = `
CREATE TABLE IF NOT EXISTS bookings (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    event_id UUID NOT NULL,
    total_amount NUMERIC(12,2) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    payment_status VARCHAR(20) NOT NULL DEFAULT 'pending',
    issuance_state VARCHAR(20) NOT NULL DEFAULT 'pending_tickets',
    transaction_id VARCHAR(40) NOT NULL UNIQUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (total_amount >= 0),
    CHECK (status IN ('pending', 'confirmed')),
    CHECK (payment_status IN ('pending', 'completed', 'failed')),
    CHECK (issuance_state IN ('pending_tickets', 'issued'))
);`

const createBookingItemsTable = `
CREATE TABLE IF NOT EXISTS booking_items (
    booking_id UUID NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    ticket_type_id UUID NOT NULL,
    quantity INTEGER NOT NULL,
    price_per_ticket NUMERIC(12,2) NOT NULL,

    PRIMARY KEY (booking_id, position),
    CHECK (quantity >= 1),
    CHECK (price_per_ticket >= 0)
);`

const createTicketsTable = `
CREATE TABLE IF NOT EXISTS tickets (
    id UUID PRIMARY KEY,
    booking_id UUID NOT NULL,
    event_id UUID NOT NULL,
    user_id UUID NOT NULL,
    ticket_type_id UUID NOT NULL,
    position INTEGER NOT NULL,
    ticket_number VARCHAR(40) NOT NULL UNIQUE,
    qr_code TEXT NOT NULL UNIQUE,
    status VARCHAR(20) NOT NULL DEFAULT 'active',
    used_at TIMESTAMPTZ,
    used_by VARCHAR(255),
    download_url TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    UNIQUE(booking_id, position),
    CHECK (status IN ('active', 'used', 'expired', 'cancelled'))
);`

const createReviewsTable = `
CREATE TABLE IF NOT EXISTS reviews (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    event_id UUID NOT NULL,
    booking_id UUID NOT NULL,
    rating SMALLINT NOT NULL,
    venue SMALLINT,
    organization SMALLINT,
    value SMALLINT,
    experience SMALLINT,
    comment TEXT NOT NULL DEFAULT '',
    is_verified BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    UNIQUE(user_id, event_id, booking_id),
    CHECK (rating BETWEEN 1 AND 5)
);`

const createAdminSettingsTable = `
CREATE TABLE IF NOT EXISTS admin_settings (
    id SMALLINT PRIMARY KEY DEFAULT 1,
    show_location_events BOOLEAN NOT NULL DEFAULT TRUE,
    show_hot_events BOOLEAN NOT NULL DEFAULT TRUE,
    show_popular_events BOOLEAN NOT NULL DEFAULT TRUE,
    maintenance_mode BOOLEAN NOT NULL DEFAULT FALSE,
    enabled_categories TEXT[] NOT NULL DEFAULT '{concert,comedy,workshop}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (id = 1)
);`

const createPopularCitiesTable = `
CREATE TABLE IF NOT EXISTS popular_cities (
    id VARCHAR(150) PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    state_code VARCHAR(10) NOT NULL,
    country_code VARCHAR(10) NOT NULL,
    latitude DOUBLE PRECISION,
    longitude DOUBLE PRECISION,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createIndexes = `
CREATE INDEX IF NOT EXISTS events_status_idx ON events (status);
CREATE INDEX IF NOT EXISTS bookings_event_created_idx ON bookings (event_id, created_at);
CREATE INDEX IF NOT EXISTS bookings_user_idx ON bookings (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS bookings_issuance_idx ON bookings (issuance_state, created_at);
CREATE INDEX IF NOT EXISTS tickets_booking_idx ON tickets (booking_id);
CREATE INDEX IF NOT EXISTS tickets_user_idx ON tickets (user_id);
CREATE INDEX IF NOT EXISTS tickets_event_idx ON tickets (event_id);
CREATE INDEX IF NOT EXISTS reviews_event_verified_idx ON reviews (event_id, is_verified);`
