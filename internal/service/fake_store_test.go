package service_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/cache"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/models"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/notify"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/registration"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/store"
)

// fakeStore is an in-memory store that applies the same placement rules as the
// Postgres one, so service behaviour can be tested without a database.
type fakeStore struct {
	mu       sync.Mutex
	leagues  map[uuid.UUID]models.League
	regs     []*models.Registration
	notified map[uuid.UUID]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		leagues:  map[uuid.UUID]models.League{},
		notified: map[uuid.UUID]bool{},
	}
}

func (f *fakeStore) addLeague(l models.League) models.League {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	f.mu.Lock()
	f.leagues[l.ID] = l
	f.mu.Unlock()
	return l
}

func (f *fakeStore) setCapacity(id uuid.UUID, capacity int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.leagues[id]
	l.Capacity = capacity
	f.leagues[id] = l
}

func (f *fakeStore) setMode(id uuid.UUID, mode registration.RegistrationMode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.leagues[id]
	l.RegistrationMode = mode
	f.leagues[id] = l
}

// live returns the league's non-cancelled registrations, oldest first. Callers hold mu.
func (f *fakeStore) live(leagueID uuid.UUID) []models.Registration {
	var out []models.Registration
	for _, r := range f.regs {
		if r.LeagueID == leagueID && !r.DeletedAt.Valid {
			out = append(out, *r)
		}
	}
	return out
}

// find returns a live registration. Callers hold mu.
func (f *fakeStore) find(id uuid.UUID) *models.Registration {
	for _, r := range f.regs {
		if r.ID == id && !r.DeletedAt.Valid {
			return r
		}
	}
	return nil
}

func (f *fakeStore) withLeague(r models.Registration) models.Registration {
	r.League = f.leagues[r.LeagueID]
	return r
}

func (f *fakeStore) CreateLeague(_ context.Context, league *models.League) error {
	*league = f.addLeague(*league)
	return nil
}

func (f *fakeStore) GetLeague(_ context.Context, id uuid.UUID) (models.League, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leagues[id]
	if !ok {
		return models.League{}, fmt.Errorf("league: %w", store.ErrNotFound)
	}
	return l, nil
}

func (f *fakeStore) ListLeagues(context.Context, store.LeagueFilter) ([]models.League, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.League
	for _, l := range f.leagues {
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeStore) UpdateLeague(_ context.Context, league *models.League) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.leagues[league.ID]; !ok {
		return fmt.Errorf("league: %w", store.ErrNotFound)
	}
	f.leagues[league.ID] = *league
	return nil
}

func (f *fakeStore) DeleteLeague(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.leagues[id]; !ok {
		return fmt.Errorf("league: %w", store.ErrNotFound)
	}
	delete(f.leagues, id)
	return nil
}

func (f *fakeStore) LeaguesWithWaitlist(context.Context) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for _, r := range f.regs {
		if !r.DeletedAt.Valid && r.Status == registration.StatusWaitlisted && !seen[r.LeagueID] {
			seen[r.LeagueID] = true
			ids = append(ids, r.LeagueID)
		}
	}
	return ids, nil
}

func (f *fakeStore) LoadSnapshot(_ context.Context, leagueID uuid.UUID) (store.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leagues[leagueID]
	if !ok {
		return store.Snapshot{}, fmt.Errorf("league: %w", store.ErrNotFound)
	}
	return store.Snapshot{League: l, Registrations: f.live(leagueID)}, nil
}

func (f *fakeStore) Register(_ context.Context, in store.RegisterInput) (models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	league, ok := f.leagues[in.LeagueID]
	if !ok {
		return models.Registration{}, fmt.Errorf("league: %w", store.ErrNotFound)
	}
	if league.RegistrationMode == registration.ModeTeam && (in.TeamName == nil || strings.TrimSpace(*in.TeamName) == "") {
		return models.Registration{}, store.ErrTeamNameRequired
	}
	live := f.live(league.ID)
	for _, r := range live {
		if r.UserID == in.UserID {
			return models.Registration{}, store.ErrAlreadyRegistered
		}
	}

	occupancy := store.Snapshot{League: league, Registrations: live}.Occupancy()
	status := registration.DecidePlacement(league.Capacity, occupancy)
	due := registration.InitialAmountDue(status, league.Terms().CostFor(league.RegistrationMode))
	reg := &models.Registration{
		ID:        uuid.New(),
		LeagueID:  league.ID,
		UserID:    in.UserID,
		Mode:      league.RegistrationMode,
		TeamName:  in.TeamName,
		Status:    status,
		CreatedAt: in.Now,
		UpdatedAt: in.Now,
		Payment: models.Payment{
			ID:         uuid.New(),
			AmountDue:  due,
			AmountPaid: decimal.Zero,
			Status:     registration.PaymentStatusFor(due, decimal.Zero),
		},
	}
	reg.Payment.RegistrationID = reg.ID
	if status == registration.StatusActive {
		at := in.Now
		reg.ActivatedAt = &at
	}
	f.regs = append(f.regs, reg)
	return f.withLeague(*reg), nil
}

func (f *fakeStore) GetRegistration(_ context.Context, id uuid.UUID) (models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.find(id)
	if r == nil {
		return models.Registration{}, fmt.Errorf("registration: %w", store.ErrNotFound)
	}
	return f.withLeague(*r), nil
}

func (f *fakeStore) ListRegistrations(_ context.Context, leagueID uuid.UUID, status *registration.Status) ([]models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Registration
	for _, r := range f.live(leagueID) {
		if status == nil || r.Status == *status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) WaitlistPosition(_ context.Context, reg models.Registration) (int, error) {
	if reg.Status != registration.StatusWaitlisted {
		return 0, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := store.Snapshot{Registrations: f.live(reg.LeagueID)}
	return registration.WaitlistPosition(snap.States(), reg.ID), nil
}

func (f *fakeStore) Cancel(_ context.Context, id uuid.UUID) (models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.find(id)
	if r == nil {
		return models.Registration{}, fmt.Errorf("registration: %w", store.ErrNotFound)
	}
	before := *r
	r.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	return before, nil
}

// promote applies OnPromote to r. Callers hold mu.
func (f *fakeStore) promote(r *models.Registration, now time.Time) {
	next := registration.OnPromote(r.State(), f.leagues[r.LeagueID].Terms())
	r.Status = next.Status
	r.ActivatedAt = &now
	r.Payment.AmountDue = next.AmountDue
	r.Payment.Status = registration.PaymentStatusFor(next.AmountDue, next.AmountPaid)
}

func (f *fakeStore) Promote(_ context.Context, id uuid.UUID, now time.Time) (models.Registration, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.find(id)
	if r == nil {
		return models.Registration{}, false, fmt.Errorf("registration: %w", store.ErrNotFound)
	}
	if r.Status == registration.StatusActive {
		return f.withLeague(*r), false, nil
	}
	league := f.leagues[r.LeagueID]
	snap := store.Snapshot{League: league, Registrations: f.live(league.ID)}
	if registration.ComputeAvailability(league.Capacity, snap.Occupancy()).SpotsRemaining == 0 {
		return models.Registration{}, false, store.ErrLeagueFull
	}
	f.promote(r, now)
	return f.withLeague(*r), true, nil
}

func (f *fakeStore) PromoteNext(_ context.Context, leagueID uuid.UUID, now time.Time) (*models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	league, ok := f.leagues[leagueID]
	if !ok {
		return nil, fmt.Errorf("league: %w", store.ErrNotFound)
	}
	snap := store.Snapshot{League: league, Registrations: f.live(leagueID)}
	next, ok := registration.NextToPromoteIn(league.RegistrationMode, snap.States(), league.Capacity, snap.Occupancy())
	if !ok {
		return nil, nil
	}
	r := f.find(next.ID)
	f.promote(r, now)
	out := f.withLeague(*r)
	return &out, nil
}

func (f *fakeStore) RecordPayment(_ context.Context, id uuid.UUID, amount decimal.Decimal, _ time.Time) (models.Registration, error) {
	if !amount.IsPositive() {
		return models.Registration{}, store.ErrInvalidAmount
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.find(id)
	if r == nil {
		return models.Registration{}, fmt.Errorf("payment: %w", store.ErrNotFound)
	}
	r.Payment.AmountPaid = r.Payment.AmountPaid.Add(amount)
	r.Payment.Status = registration.PaymentStatusFor(r.Payment.AmountDue, r.Payment.AmountPaid)
	return f.withLeague(*r), nil
}

func (f *fakeStore) ListUnpaidActive(context.Context) ([]models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Registration
	for _, r := range f.regs {
		if r.DeletedAt.Valid || r.Status != registration.StatusActive {
			continue
		}
		if !registration.Outstanding(r.Payment.AmountDue, r.Payment.AmountPaid).IsPositive() || f.notified[r.Payment.ID] {
			continue
		}
		out = append(out, f.withLeague(*r))
	}
	return out, nil
}

func (f *fakeStore) MarkOverdueNotified(_ context.Context, paymentID uuid.UUID, _ time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.notified[paymentID] {
		return false, nil
	}
	f.notified[paymentID] = true
	return true, nil
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func (p *recordingPublisher) count(kind string) int {
	n := 0
	for _, t := range p.types() {
		if t == kind {
			n++
		}
	}
	return n
}

// recordingHub keeps every live payload by league.
type recordingHub struct {
	mu       sync.Mutex
	payloads map[string][][]byte
}

func (h *recordingHub) Publish(leagueID string, data []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.payloads == nil {
		h.payloads = map[string][][]byte{}
	}
	h.payloads[leagueID] = append(h.payloads[leagueID], data)
	return true
}

func (h *recordingHub) last(leagueID string) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	p := h.payloads[leagueID]
	if len(p) == 0 {
		return nil
	}
	return p[len(p)-1]
}

// mapCache is an in-process AvailabilityCache.
type mapCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]cache.Availability
}

func (c *mapCache) Get(_ context.Context, id uuid.UUID) (cache.Availability, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.entries[id]
	if !ok {
		return cache.Availability{}, cache.ErrMiss
	}
	return a, nil
}

func (c *mapCache) Set(_ context.Context, a cache.Availability) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = map[uuid.UUID]cache.Availability{}
	}
	c.entries[a.LeagueID] = a
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	return nil
}
