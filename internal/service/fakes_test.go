package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperr "marquee/internal/errors"
	"marquee/internal/models"
)

type fakeTxKey struct{}

// fakeDB is an in-memory stand-in for Postgres. Transactions are serialized
// and roll back by restoring a snapshot.
type fakeDB struct {
	txMu sync.Mutex
	mu   sync.Mutex

	users    map[uuid.UUID]models.User
	events   map[uuid.UUID]models.Event
	tiers    map[uuid.UUID]models.TicketType
	bookings map[uuid.UUID]models.Booking
	tickets  map[uuid.UUID]models.Ticket
	reviews  []models.Review
	settings *models.AdminSettings
	cities   map[string]models.PopularCity

	// reserved records tier ids in the order Reserve locked them.
	reserved []uuid.UUID

	now func() time.Time
}

func newFakeDB(now func() time.Time) *fakeDB {
	return &fakeDB{
		users:    map[uuid.UUID]models.User{},
		events:   map[uuid.UUID]models.Event{},
		tiers:    map[uuid.UUID]models.TicketType{},
		bookings: map[uuid.UUID]models.Booking{},
		tickets:  map[uuid.UUID]models.Ticket{},
		cities:   map[string]models.PopularCity{},
		now:      now,
	}
}

type fakeSnapshot struct {
	events   map[uuid.UUID]models.Event
	tiers    map[uuid.UUID]models.TicketType
	bookings map[uuid.UUID]models.Booking
	tickets  map[uuid.UUID]models.Ticket
	reviews  []models.Review
	cities   map[string]models.PopularCity
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (f *fakeDB) snapshot() fakeSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fakeSnapshot{
		events:   copyMap(f.events),
		tiers:    copyMap(f.tiers),
		bookings: copyMap(f.bookings),
		tickets:  copyMap(f.tickets),
		reviews:  append([]models.Review(nil), f.reviews...),
		cities:   copyMap(f.cities),
	}
}

func (f *fakeDB) restore(s fakeSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = s.events
	f.tiers = s.tiers
	f.bookings = s.bookings
	f.tickets = s.tickets
	f.reviews = s.reviews
	f.cities = s.cities
}

func (f *fakeDB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(fakeTxKey{}) != nil {
		return fn(ctx)
	}

	f.txMu.Lock()
	defer f.txMu.Unlock()

	snap := f.snapshot()
	if err := fn(context.WithValue(ctx, fakeTxKey{}, true)); err != nil {
		f.restore(snap)
		return err
	}
	return nil
}

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, apperr.ErrNotFound)
}

// --- users ---

type fakeUsers struct{ db *fakeDB }

func (s fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return nil, notFound("user")
	}
	return &u, nil
}

// --- events ---

type fakeEvents struct {
	db      *fakeDB
	failHot map[uuid.UUID]bool
}

func (s *fakeEvents) Create(_ context.Context, e *models.Event) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.events[e.ID]; ok {
		return fmt.Errorf("event: %w", apperr.ErrDuplicateKey)
	}
	e.CreatedAt = s.db.now()
	e.UpdatedAt = e.CreatedAt
	stored := *e
	stored.TicketTypes = nil
	s.db.events[e.ID] = stored
	return nil
}

func (s *fakeEvents) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	e, ok := s.db.events[id]
	if !ok {
		return nil, notFound("event")
	}
	return &e, nil
}

func (s *fakeEvents) List(_ context.Context, f models.EventFilter, exclude []uuid.UUID) ([]models.Event, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	skip := make(map[uuid.UUID]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}

	var out []models.Event
	for _, e := range s.db.events {
		switch {
		case skip[e.ID]:
		case f.Category != "" && e.Category != f.Category:
		case f.Status != "" && e.Status != f.Status:
		case f.Location != "" && !strings.Contains(strings.ToLower(e.Location), strings.ToLower(f.Location)):
		case f.Hot != nil && e.IsHot != *f.Hot:
		case f.Popular != nil && e.IsPopular != *f.Popular:
		default:
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID.String() < out[j].ID.String()
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *fakeEvents) ListByStatuses(_ context.Context, statuses []string) ([]uuid.UUID, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var ids []uuid.UUID
	for _, e := range s.db.events {
		for _, st := range statuses {
			if e.Status == st {
				ids = append(ids, e.ID)
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (s *fakeEvents) Update(_ context.Context, e *models.Event) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.events[e.ID]; !ok {
		return notFound("update event")
	}
	e.UpdatedAt = s.db.now()
	stored := *e
	stored.TicketTypes = nil
	s.db.events[e.ID] = stored
	return nil
}

func (s *fakeEvents) Delete(_ context.Context, id uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.events[id]; !ok {
		return notFound("delete event")
	}
	delete(s.db.events, id)
	for tid, tt := range s.db.tiers {
		if tt.EventID == id {
			delete(s.db.tiers, tid)
		}
	}
	return nil
}

func (s *fakeEvents) SetHot(_ context.Context, id uuid.UUID, hot bool) error {
	if s.failHot[id] {
		return fmt.Errorf("set hot: connection reset")
	}
	return s.update(id, func(e *models.Event) { e.IsHot = hot })
}

func (s *fakeEvents) SetPopular(_ context.Context, id uuid.UUID, popular bool) error {
	return s.update(id, func(e *models.Event) { e.IsPopular = popular })
}

func (s *fakeEvents) AddAttendees(_ context.Context, id uuid.UUID, n int) error {
	return s.update(id, func(e *models.Event) { e.Attendees += n })
}

func (s *fakeEvents) update(id uuid.UUID, fn func(e *models.Event)) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	e, ok := s.db.events[id]
	if !ok {
		return notFound("event")
	}
	fn(&e)
	s.db.events[id] = e
	return nil
}

// --- ticket types ---

type fakeTiers struct{ db *fakeDB }

func (s fakeTiers) Create(_ context.Context, tt *models.TicketType) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.tiers {
		if existing.EventID == tt.EventID && existing.Name == tt.Name {
			return fmt.Errorf("ticket type: %w", apperr.ErrDuplicateKey)
		}
	}
	if tt.ID == uuid.Nil {
		tt.ID = uuid.New()
	}
	s.db.tiers[tt.ID] = *tt
	return nil
}

func (s fakeTiers) Upsert(_ context.Context, tt *models.TicketType) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for id, existing := range s.db.tiers {
		if existing.EventID == tt.EventID && existing.Name == tt.Name {
			tt.ID = id
			s.db.tiers[id] = *tt
			return nil
		}
	}
	if tt.ID == uuid.Nil {
		tt.ID = uuid.New()
	}
	s.db.tiers[tt.ID] = *tt
	return nil
}

func (s fakeTiers) GetByID(_ context.Context, id uuid.UUID) (*models.TicketType, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	tt, ok := s.db.tiers[id]
	if !ok {
		return nil, notFound("ticket type")
	}
	return &tt, nil
}

func (s fakeTiers) ListByEvent(_ context.Context, eventID uuid.UUID) ([]models.TicketType, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.TicketType
	for _, tt := range s.db.tiers {
		if tt.EventID == eventID {
			out = append(out, tt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	return out, nil
}

func (s fakeTiers) ListByIDs(_ context.Context, ids []uuid.UUID) ([]models.TicketType, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.TicketType
	for _, id := range ids {
		if tt, ok := s.db.tiers[id]; ok {
			out = append(out, tt)
		}
	}
	return out, nil
}

func (s fakeTiers) Reserve(_ context.Context, id uuid.UUID, qty int) (decimal.Decimal, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	tt, ok := s.db.tiers[id]
	if !ok || tt.Available < qty {
		return decimal.Zero, fmt.Errorf("reserve %s: %w", id, apperr.ErrInsufficientInventory)
	}
	tt.Available -= qty
	s.db.tiers[id] = tt
	s.db.reserved = append(s.db.reserved, id)
	return tt.Price, nil
}

func (s fakeTiers) Release(_ context.Context, id uuid.UUID, qty int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	tt, ok := s.db.tiers[id]
	if !ok {
		return notFound("ticket type")
	}
	tt.Available += qty
	s.db.tiers[id] = tt
	return nil
}

// --- bookings ---

type fakeBookings struct {
	db       *fakeDB
	countErr map[uuid.UUID]error
}

func (s *fakeBookings) Create(_ context.Context, b *models.Booking) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.bookings {
		if existing.TransactionID == b.TransactionID {
			return fmt.Errorf("booking: %w", apperr.ErrDuplicateKey)
		}
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.db.now()
	}
	b.UpdatedAt = b.CreatedAt
	s.db.bookings[b.ID] = *b
	return nil
}

func (s *fakeBookings) GetByID(_ context.Context, id uuid.UUID) (*models.Booking, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	b, ok := s.db.bookings[id]
	if !ok {
		return nil, notFound("booking")
	}
	return &b, nil
}

func (s *fakeBookings) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return s.GetByID(ctx, id)
}

func (s *fakeBookings) ListByUser(_ context.Context, userID uuid.UUID) ([]models.Booking, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.Booking
	for _, b := range s.db.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeBookings) ListPendingIssuance(_ context.Context, before time.Time, limit int) ([]models.Booking, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.Booking
	for _, b := range s.db.bookings {
		if b.IssuanceState == models.IssuancePendingTickets && b.CreatedAt.Before(before) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeBookings) MarkIssued(_ context.Context, id uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	b, ok := s.db.bookings[id]
	if !ok {
		return notFound("booking")
	}
	b.IssuanceState = models.IssuanceIssued
	s.db.bookings[id] = b
	return nil
}

func (s *fakeBookings) SettlePayment(_ context.Context, id uuid.UUID, status, paymentStatus string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	b, ok := s.db.bookings[id]
	if !ok || b.PaymentStatus != models.PaymentStatusPending {
		return false, nil
	}
	b.Status = status
	b.PaymentStatus = paymentStatus
	s.db.bookings[id] = b
	return true, nil
}

func (s *fakeBookings) CountForEvent(_ context.Context, eventID uuid.UUID, since time.Time) (int, int, error) {
	if err := s.countErr[eventID]; err != nil {
		return 0, 0, err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	total, recent := 0, 0
	for _, b := range s.db.bookings {
		if b.EventID != eventID {
			continue
		}
		total++
		if !b.CreatedAt.Before(since) {
			recent++
		}
	}
	return total, recent, nil
}

func (s *fakeBookings) IsConfirmedPurchase(_ context.Context, bookingID, userID, eventID uuid.UUID) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	b, ok := s.db.bookings[bookingID]
	return ok && b.UserID == userID && b.EventID == eventID &&
		b.Status == models.BookingStatusConfirmed && b.PaymentStatus == models.PaymentStatusCompleted, nil
}

// --- tickets ---

type fakeTickets struct {
	db *fakeDB
	// insertErr, when set, is consulted before every insert.
	insertErr func(t *models.Ticket) error
}

func (s *fakeTickets) Insert(_ context.Context, t *models.Ticket) error {
	if s.insertErr != nil {
		if err := s.insertErr(t); err != nil {
			return err
		}
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.tickets {
		if existing.ID == t.ID || existing.TicketNumber == t.TicketNumber ||
			(existing.BookingID == t.BookingID && existing.Position == t.Position) {
			return fmt.Errorf("ticket: %w", apperr.ErrDuplicateKey)
		}
	}
	s.db.tickets[t.ID] = *t
	return nil
}

func (s *fakeTickets) GetByID(_ context.Context, id uuid.UUID) (*models.Ticket, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	t, ok := s.db.tickets[id]
	if !ok {
		return nil, notFound("ticket")
	}
	return &t, nil
}

func (s *fakeTickets) GetByNumber(_ context.Context, number string) (*models.Ticket, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, t := range s.db.tickets {
		if t.TicketNumber == number {
			return &t, nil
		}
	}
	return nil, notFound("ticket")
}

func (s *fakeTickets) filter(keep func(t models.Ticket) bool) []models.Ticket {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.Ticket
	for _, t := range s.db.tickets {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (s *fakeTickets) ListByBooking(_ context.Context, bookingID uuid.UUID) ([]models.Ticket, error) {
	return s.filter(func(t models.Ticket) bool { return t.BookingID == bookingID }), nil
}

func (s *fakeTickets) ListByUser(_ context.Context, userID uuid.UUID) ([]models.Ticket, error) {
	return s.filter(func(t models.Ticket) bool { return t.UserID == userID }), nil
}

func (s *fakeTickets) IssuedPositions(_ context.Context, bookingID uuid.UUID) (map[int]bool, error) {
	issued := map[int]bool{}
	for _, t := range s.filter(func(t models.Ticket) bool { return t.BookingID == bookingID }) {
		issued[t.Position] = true
	}
	return issued, nil
}

func (s *fakeTickets) MarkUsed(_ context.Context, id uuid.UUID, usedAt time.Time, usedBy string) (*models.Ticket, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	t, ok := s.db.tickets[id]
	if !ok {
		return nil, notFound("ticket")
	}
	if t.Status != models.TicketStatusActive {
		return nil, fmt.Errorf("ticket is %s: %w", t.Status, apperr.ErrAlreadyUsed)
	}
	t.Status = models.TicketStatusUsed
	t.UsedAt = &usedAt
	t.UsedBy = &usedBy
	s.db.tickets[id] = t
	return &t, nil
}

func (s *fakeTickets) SetStatus(_ context.Context, id uuid.UUID, status string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	t, ok := s.db.tickets[id]
	if !ok {
		return notFound("ticket")
	}
	if t.Status != models.TicketStatusActive {
		return fmt.Errorf("ticket %s: %w", id, apperr.ErrAlreadyUsed)
	}
	t.Status = status
	s.db.tickets[id] = t
	return nil
}

func (s *fakeTickets) setWhere(keep func(t models.Ticket) bool, status string) int {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n := 0
	for id, t := range s.db.tickets {
		if t.Status == models.TicketStatusActive && keep(t) {
			t.Status = status
			s.db.tickets[id] = t
			n++
		}
	}
	return n
}

func (s *fakeTickets) CancelForBooking(_ context.Context, bookingID uuid.UUID) (int, error) {
	return s.setWhere(func(t models.Ticket) bool { return t.BookingID == bookingID }, models.TicketStatusCancelled), nil
}

func (s *fakeTickets) ExpireForEvent(_ context.Context, eventID uuid.UUID) (int, error) {
	return s.setWhere(func(t models.Ticket) bool { return t.EventID == eventID }, models.TicketStatusExpired), nil
}

// --- reviews ---

type fakeReviews struct{ db *fakeDB }

func (s fakeReviews) Create(_ context.Context, r *models.Review) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.reviews {
		if existing.UserID == r.UserID && existing.BookingID == r.BookingID {
			return fmt.Errorf("review: %w", apperr.ErrDuplicateKey)
		}
	}
	s.db.reviews = append(s.db.reviews, *r)
	return nil
}

func (s fakeReviews) verified(eventID uuid.UUID) []models.Review {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.Review
	for _, r := range s.db.reviews {
		if r.EventID == eventID && r.IsVerified {
			out = append(out, r)
		}
	}
	return out
}

func (s fakeReviews) VerifiedStats(_ context.Context, eventID uuid.UUID) (int, int, error) {
	reviews := s.verified(eventID)
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return len(reviews), sum, nil
}

func (s fakeReviews) Distribution(_ context.Context, eventID uuid.UUID) (map[int]int, error) {
	dist := map[int]int{}
	for _, r := range s.verified(eventID) {
		dist[r.Rating]++
	}
	return dist, nil
}

func (s fakeReviews) ListByEvent(_ context.Context, eventID uuid.UUID, verifiedOnly bool) ([]models.Review, error) {
	if verifiedOnly {
		return s.verified(eventID), nil
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.Review
	for _, r := range s.db.reviews {
		if r.EventID == eventID {
			out = append(out, r)
		}
	}
	return out, nil
}

// --- settings ---

type fakeSettings struct {
	db    *fakeDB
	reads int
}

func (s *fakeSettings) GetOrInit(_ context.Context) (*models.AdminSettings, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.reads++
	if s.db.settings == nil {
		d := models.DefaultAdminSettings()
		s.db.settings = &d
	}
	cp := *s.db.settings
	return &cp, nil
}

func (s *fakeSettings) Update(_ context.Context, settings *models.AdminSettings) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	cp := *settings
	s.db.settings = &cp
	return nil
}

func (s *fakeSettings) ListCities(_ context.Context) ([]models.PopularCity, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.PopularCity
	for _, c := range s.db.cities {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fakeSettings) InsertCity(_ context.Context, c *models.PopularCity) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.cities[c.ID]; ok {
		return fmt.Errorf("city: %w", apperr.ErrDuplicateKey)
	}
	s.db.cities[c.ID] = *c
	return nil
}

func (s *fakeSettings) DeleteCity(_ context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	delete(s.db.cities, id)
	return nil
}

// --- collaborators ---

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	err      error
}

func (p *fakePublisher) Publish(subject string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return p.err
}

func (p *fakePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.subjects...)
}

type fakeIndex struct {
	indexed   map[uuid.UUID]models.Event
	searchErr error
	searched  int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{indexed: map[uuid.UUID]models.Event{}}
}

func (i *fakeIndex) Search(_ context.Context, f models.EventFilter) ([]models.Event, error) {
	i.searched++
	if i.searchErr != nil {
		return nil, i.searchErr
	}
	var out []models.Event
	for _, e := range i.indexed {
		if strings.Contains(strings.ToLower(e.Title), strings.ToLower(f.Query)) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (i *fakeIndex) IndexEvent(_ context.Context, e *models.Event) error {
	i.indexed[e.ID] = *e
	return nil
}

func (i *fakeIndex) DeleteEvent(_ context.Context, id uuid.UUID) error {
	delete(i.indexed, id)
	return nil
}

type fakeCache struct {
	settings    *models.AdminSettings
	err         error
	invalidated int
}

func (c *fakeCache) GetSettings(_ context.Context) (*models.AdminSettings, bool, error) {
	if c.err != nil {
		return nil, false, c.err
	}
	if c.settings == nil {
		return nil, false, nil
	}
	cp := *c.settings
	return &cp, true, nil
}

func (c *fakeCache) SetSettings(_ context.Context, s *models.AdminSettings) error {
	if c.err != nil {
		return c.err
	}
	cp := *s
	c.settings = &cp
	return nil
}

func (c *fakeCache) InvalidateSettings(_ context.Context) error {
	c.invalidated++
	c.settings = nil
	return nil
}

// --- fixture ---

var fixtureNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db        *fakeDB
	events    *fakeEvents
	bookings  *fakeBookings
	tickets   *fakeTickets
	settings  *fakeSettings
	publisher *fakePublisher
	index     *fakeIndex
	cache     *fakeCache
	svc       *Services
	clock     time.Time
}

func newFixture() *fixture {
	fx := &fixture{clock: fixtureNow}
	fx.db = newFakeDB(fx.now)
	fx.events = &fakeEvents{db: fx.db, failHot: map[uuid.UUID]bool{}}
	fx.bookings = &fakeBookings{db: fx.db, countErr: map[uuid.UUID]error{}}
	fx.tickets = &fakeTickets{db: fx.db}
	fx.settings = &fakeSettings{db: fx.db}
	fx.publisher = &fakePublisher{}
	fx.index = newFakeIndex()
	fx.cache = &fakeCache{}

	fx.svc = NewServices(Deps{
		Tx:          fx.db,
		Users:       fakeUsers{db: fx.db},
		Events:      fx.events,
		TicketTypes: fakeTiers{db: fx.db},
		Bookings:    fx.bookings,
		Tickets:     fx.tickets,
		Reviews:     fakeReviews{db: fx.db},
		Settings:    fx.settings,
		Publisher:   fx.publisher,
		Index:       fx.index,
		Cache:       fx.cache,
		Now:         fx.now,
	})
	return fx
}

func (fx *fixture) now() time.Time { return fx.clock }

func (fx *fixture) addUser(role string) models.Actor {
	u := models.User{ID: uuid.New(), Email: uuid.NewString() + "@example.com", Name: "Test", Role: role}
	fx.db.users[u.ID] = u
	return models.Actor{UserID: u.ID, Role: role}
}

func (fx *fixture) addEvent(mutate ...func(e *models.Event)) models.Event {
	e := models.Event{
		ID:          uuid.New(),
		Title:       "Jazz Night",
		Description: "Live jazz",
		Location:    "Austin, TX",
		Category:    models.CategoryConcert,
		Date:        fixtureNow.AddDate(0, 2, 0).Truncate(24 * time.Hour),
		Time:        "20:00",
		Status:      models.EventStatusActive,
	}
	for _, m := range mutate {
		m(&e)
	}
	fx.db.events[e.ID] = e
	return e
}

func (fx *fixture) addTier(eventID uuid.UUID, name string, price string, available int) models.TicketType {
	tt := models.TicketType{
		ID:        uuid.New(),
		EventID:   eventID,
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Available: available,
		Tags:      []string{},
	}
	fx.db.tiers[tt.ID] = tt
	return tt
}

func (fx *fixture) tier(id uuid.UUID) models.TicketType {
	fx.db.mu.Lock()
	defer fx.db.mu.Unlock()
	return fx.db.tiers[id]
}

func (fx *fixture) booking(id uuid.UUID) models.Booking {
	fx.db.mu.Lock()
	defer fx.db.mu.Unlock()
	return fx.db.bookings[id]
}

func (fx *fixture) event(id uuid.UUID) models.Event {
	fx.db.mu.Lock()
	defer fx.db.mu.Unlock()
	return fx.db.events[id]
}

func cart(eventID uuid.UUID, lines ...models.BookingItemRequest) *models.CreateBookingRequest {
	return &models.CreateBookingRequest{EventID: eventID, Items: lines}
}

func line(tierID uuid.UUID, qty int) models.BookingItemRequest {
	return models.BookingItemRequest{TicketTypeID: tierID, Quantity: qty}
}
