package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/cache"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/models"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/notify"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/registration"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/service"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/store"
)

var start = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	store *fakeStore
	pub   *recordingPublisher
	hub   *recordingHub
	cache *mapCache
	clock *clockwork.FakeClock
	svc   *service.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store: newFakeStore(),
		pub:   &recordingPublisher{},
		hub:   &recordingHub{},
		cache: &mapCache{},
		clock: clockwork.NewFakeClockAt(start),
	}
	h.svc = service.New(h.store, service.Options{
		Cache:    h.cache,
		Notifier: notify.NewNotifier(h.pub),
		Hub:      h.hub,
		Clock:    h.clock,
	})
	return h
}

func individualLeague(capacity int) models.League {
	return models.League{
		Name:             "Tuesday Volleyball",
		RegistrationMode: registration.ModeIndividual,
		Capacity:         capacity,
		LeagueType:       registration.LeagueTypeRegularSeason,
		IndividualCost:   decimal.NewFromInt(80),
		TeamCost:         decimal.NewFromInt(800),
	}
}

func (h *harness) register(t *testing.T, leagueID uuid.UUID) service.RegistrationView {
	t.Helper()
	v, err := h.svc.Register(context.Background(), store.RegisterInput{LeagueID: leagueID, UserID: uuid.New()})
	require.NoError(t, err)
	h.clock.Advance(time.Minute)
	return v
}

func TestRegisterActiveThenWaitlisted(t *testing.T) {
	h := newHarness(t)
	league := h.store.addLeague(individualLeague(1))

	first := h.register(t, league.ID)
	assert.Equal(t, registration.StatusActive, first.Registration.Status)
	assert.True(t, decimal.NewFromInt(80).Equal(first.Registration.Payment.AmountDue))
	assert.True(t, decimal.NewFromInt(80).Equal(first.Outstanding))
	assert.Zero(t, first.WaitlistPosition)

	second := h.register(t, league.ID)
	assert.Equal(t, registration.StatusWaitlisted, second.Registration.Status)
	assert.True(t, second.Registration.Payment.AmountDue.IsZero())
	assert.Equal(t, 1, second.WaitlistPosition)
	assert.Nil(t, second.Deadline)

	assert.Equal(t, 2, h.pub.count(notify.RegistrationCreated))

	var live cache.Availability
	require.NoError(t, json.Unmarshal(h.hub.last(league.ID.String()), &live))
	assert.Equal(t, 0, live.SpotsRemaining)
	assert.Equal(t, "full", live.Bucket)
	assert.Equal(t, 1, live.Waitlisted)
}

func TestRegisterDuplicate(t *testing.T) {
	h := newHarness(t)
	league := h.store.addLeague(individualLeague(4))
	user := uuid.New()

	_, err := h.svc.Register(context.Background(), store.RegisterInput{LeagueID: league.ID, UserID: user})
	require.NoError(t, err)
	_, err = h.svc.Register(context.Background(), store.RegisterInput{LeagueID: league.ID, UserID: user})
	assert.ErrorIs(t, err, store.ErrAlreadyRegistered)
	assert.Equal(t, 1, h.pub.count(notify.RegistrationCreated))
}

func TestRegisterRelativeWindowDeadline(t *testing.T) {
	h := newHarness(t)
	window := 48
	league := individualLeague(10)
	league.LeagueType = registration.LeagueTypeTournament
	league.PaymentWindowHours = &window
	league = h.store.addLeague(league)

	v := h.register(t, league.ID)
	require.NotNil(t, v.Deadline)
	assert.True(t, start.Add(48*time.Hour).Equal(*v.Deadline))
	assert.Equal(t, "2 days", v.PaymentWindow)
	require.NotNil(t, v.DeadlineDisplay)
	assert.Equal(t, "August 3, 2025", *v.DeadlineDisplay)
	assert.False(t, v.Overdue)
}

func TestCancelPromotesHeadOfWaitlist(t *testing.T) {
	h := newHarness(t)
	window := 24
	league := individualLeague(1)
	league.LeagueType = registration.LeagueTypeSingleSession
	league.PaymentWindowHours = &window
	league = h.store.addLeague(league)

	a := h.register(t, league.ID)
	b := h.register(t, league.ID)
	c := h.register(t, league.ID)
	require.Equal(t, registration.StatusWaitlisted, b.Registration.Status)
	require.Equal(t, registration.StatusWaitlisted, c.Registration.Status)

	cancelledAt := h.clock.Now()
	_, err := h.svc.Cancel(context.Background(), a.Registration.ID)
	require.NoError(t, err)

	promoted, err := h.svc.GetRegistration(context.Background(), b.Registration.ID)
	require.NoError(t, err)
	assert.Equal(t, registration.StatusActive, promoted.Registration.Status)
	assert.True(t, decimal.NewFromInt(80).Equal(promoted.Registration.Payment.AmountDue))
	assert.True(t, promoted.Registration.Payment.AmountPaid.IsZero())
	require.NotNil(t, promoted.Deadline)
	// The window runs from promotion, not from when b first joined the waitlist.
	assert.True(t, cancelledAt.Add(24*time.Hour).Equal(*promoted.Deadline))

	stillWaiting, err := h.svc.GetRegistration(context.Background(), c.Registration.ID)
	require.NoError(t, err)
	assert.Equal(t, registration.StatusWaitlisted, stillWaiting.Registration.Status)
	assert.Equal(t, 1, stillWaiting.WaitlistPosition)

	assert.Equal(t, 1, h.pub.count(notify.RegistrationCancelled))
	assert.Equal(t, 1, h.pub.count(notify.RegistrationPromoted))
}

func TestCancelWaitlistedDoesNotPromote(t *testing.T) {
	h := newHarness(t)
	league := h.store.addLeague(individualLeague(1))
	h.register(t, league.ID)
	waiting := h.register(t, league.ID)

	_, err := h.svc.Cancel(context.Background(), waiting.Registration.ID)
	require.NoError(t, err)
	assert.Zero(t, h.pub.count(notify.RegistrationPromoted))

	_, err = h.svc.Cancel(context.Background(), waiting.Registration.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPromote(t *testing.T) {
	h := newHarness(t)
	league := h.store.addLeague(individualLeague(1))
	active := h.register(t, league.ID)
	waiting := h.register(t, league.ID)

	_, err := h.svc.Promote(context.Background(), waiting.Registration.ID)
	assert.ErrorIs(t, err, store.ErrLeagueFull)

	again, err := h.svc.Promote(context.Background(), active.Registration.ID)
	require.NoError(t, err)
	assert.Equal(t, registration.StatusActive, again.Registration.Status)
	assert.True(t, active.Registration.Payment.AmountDue.Equal(again.Registration.Payment.AmountDue))

	h.store.setCapacity(league.ID, 2)
	promoted, err := h.svc.Promote(context.Background(), waiting.Registration.ID)
	require.NoError(t, err)
	assert.Equal(t, registration.StatusActive, promoted.Registration.Status)
	assert.Equal(t, 1, h.pub.count(notify.RegistrationPromoted))
}

func TestPromoteNextNothingToDo(t *testing.T) {
	h := newHarness(t)
	league := h.store.addLeague(individualLeague(2))
	h.register(t, league.ID)

	v, err := h.svc.PromoteNext(context.Background(), league.ID)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestSweepWaitlistsPromotesInOrder(t *testing.T) {
	h := newHarness(t)
	league := h.store.addLeague(individualLeague(1))
	h.register(t, league.ID)
	first := h.register(t, league.ID)
	second := h.register(t, league.ID)
	third := h.register(t, league.ID)

	h.store.setCapacity(league.ID, 3)
	n, err := h.svc.SweepWaitlists(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for id, want := range map[uuid.UUID]registration.Status{
		first.Registration.ID:  registration.StatusActive,
		second.Registration.ID: registration.StatusActive,
		third.Registration.ID:  registration.StatusWaitlisted,
	} {
		v, err := h.svc.GetRegistration(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, want, v.Registration.Status)
	}

	n, err = h.svc.SweepWaitlists(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweepOverduePaymentsNotifiesOnce(t *testing.T) {
	h := newHarness(t)
	window := 24
	league := individualLeague(5)
	league.LeagueType = registration.LeagueTypeSkillsDrills
	league.PaymentWindowHours = &window
	league = h.store.addLeague(league)

	unpaid := h.register(t, league.ID)
	paid := h.register(t, league.ID)
	_, err := h.svc.RecordPayment(context.Background(), paid.Registration.ID, decimal.NewFromInt(80))
	require.NoError(t, err)

	n, err := h.svc.SweepOverduePayments(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "nothing is overdue before the window closes")

	h.clock.Advance(25 * time.Hour)
	n, err = h.svc.SweepOverduePayments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = h.svc.SweepOverduePayments(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	require.Equal(t, 1, h.pub.count(notify.PaymentOverdue))
	for _, ev := range h.pub.events {
		if ev.Type == notify.PaymentOverdue {
			assert.Equal(t, unpaid.Registration.ID, ev.RegistrationID)
		}
	}

	v, err := h.svc.GetRegistration(context.Background(), unpaid.Registration.ID)
	require.NoError(t, err)
	assert.True(t, v.Overdue)
}

func TestSweepOverduePaymentsSkipsFreeRegistrations(t *testing.T) {
	h := newHarness(t)
	window := 24
	league := individualLeague(5)
	league.LeagueType = registration.LeagueTypeSingleSession
	league.IndividualCost = decimal.Zero
	league.PaymentWindowHours = &window
	league = h.store.addLeague(league)

	reg := h.register(t, league.ID)
	h.clock.Advance(25 * time.Hour)

	n, err := h.svc.SweepOverduePayments(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, h.pub.count(notify.PaymentOverdue))

	v, err := h.svc.GetRegistration(context.Background(), reg.Registration.ID)
	require.NoError(t, err)
	assert.True(t, v.Outstanding.IsZero())
	assert.False(t, v.Overdue)
}

func TestSweepOverduePaymentsWaitsForEndOfDueDay(t *testing.T) {
	h := newHarness(t)
	due := time.Date(2025, 8, 21, 0, 0, 0, 0, time.UTC)
	league := individualLeague(5)
	league.ExplicitDueDate = &due
	league = h.store.addLeague(league)
	reg := h.register(t, league.ID)

	// 21:00 on August 20 in Ottawa (EDT) is already August 21 in UTC.
	h.clock.Advance(time.Date(2025, 8, 21, 1, 0, 0, 0, time.UTC).Sub(h.clock.Now()))
	n, err := h.svc.SweepOverduePayments(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	// Noon on the due day.
	h.clock.Advance(time.Date(2025, 8, 21, 16, 0, 0, 0, time.UTC).Sub(h.clock.Now()))
	n, err = h.svc.SweepOverduePayments(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	v, err := h.svc.GetRegistration(context.Background(), reg.Registration.ID)
	require.NoError(t, err)
	require.NotNil(t, v.DeadlineDisplay)
	assert.Equal(t, "August 21, 2025", *v.DeadlineDisplay)
	assert.False(t, v.Overdue)

	// Just after midnight at the end of the due day in Ottawa.
	h.clock.Advance(time.Date(2025, 8, 22, 4, 1, 0, 0, time.UTC).Sub(h.clock.Now()))
	n, err = h.svc.SweepOverduePayments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSweepWaitlistsSkipsRowsFromPreviousMode(t *testing.T) {
	h := newHarness(t)
	league := individualLeague(1)
	league.RegistrationMode = registration.ModeTeam
	league = h.store.addLeague(league)

	for _, name := range []string{"Spikers", "Net Gains"} {
		team := name
		_, err := h.svc.Register(context.Background(), store.RegisterInput{LeagueID: league.ID, UserID: uuid.New(), TeamName: &team})
		require.NoError(t, err)
		h.clock.Advance(time.Minute)
	}

	// The league switches to individuals: the team rows no longer count toward capacity.
	h.store.setMode(league.ID, registration.ModeIndividual)

	n, err := h.svc.SweepWaitlists(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, h.pub.count(notify.RegistrationPromoted))

	individual := h.register(t, league.ID)
	assert.Equal(t, registration.StatusActive, individual.Registration.Status)
}

func TestRecordPayment(t *testing.T) {
	h := newHarness(t)
	league := h.store.addLeague(individualLeague(5))
	reg := h.register(t, league.ID)

	v, err := h.svc.RecordPayment(context.Background(), reg.Registration.ID, decimal.NewFromInt(30))
	require.NoError(t, err)
	assert.Equal(t, registration.PaymentPartial, v.Registration.Payment.Status)
	assert.True(t, decimal.NewFromInt(50).Equal(v.Outstanding))

	v, err = h.svc.RecordPayment(context.Background(), reg.Registration.ID, decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.Equal(t, registration.PaymentPaid, v.Registration.Payment.Status)
	assert.True(t, v.Outstanding.IsZero())

	_, err = h.svc.RecordPayment(context.Background(), reg.Registration.ID, decimal.Zero)
	assert.ErrorIs(t, err, store.ErrInvalidAmount)
	assert.Equal(t, 2, h.pub.count(notify.PaymentRecorded))
}

func TestAvailabilityServedFromCache(t *testing.T) {
	h := newHarness(t)
	league := h.store.addLeague(individualLeague(5))

	a, err := h.svc.Availability(context.Background(), league.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, a.SpotsRemaining)
	assert.Equal(t, "available", a.Bucket)

	// A write through the service refreshes the cached copy.
	h.register(t, league.ID)
	h.register(t, league.ID)
	a, err = h.svc.Availability(context.Background(), league.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, a.SpotsRemaining)
	assert.Equal(t, "low", a.Bucket)

	// A change behind the service's back is not seen until the cache entry goes.
	h.store.setCapacity(league.ID, 10)
	a, err = h.svc.Availability(context.Background(), league.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, a.SpotsRemaining)

	require.NoError(t, h.cache.Invalidate(context.Background(), league.ID))
	a, err = h.svc.Availability(context.Background(), league.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, a.SpotsRemaining)
}

func TestAvailabilityUnknownLeague(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Availability(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestValidateLeague(t *testing.T) {
	bad := 36
	good := 72
	negative := decimal.NewFromInt(-1)
	tests := []struct {
		name   string
		mutate func(*models.League)
		ok     bool
	}{
		{"valid", func(*models.League) {}, true},
		{"valid window", func(l *models.League) { l.PaymentWindowHours = &good }, true},
		{"missing name", func(l *models.League) { l.Name = " " }, false},
		{"bad mode", func(l *models.League) { l.RegistrationMode = "pairs" }, false},
		{"bad type", func(l *models.League) { l.LeagueType = "camp" }, false},
		{"negative capacity", func(l *models.League) { l.Capacity = -1 }, false},
		{"negative cost", func(l *models.League) { l.TeamCost = negative }, false},
		{"window not offered", func(l *models.League) { l.PaymentWindowHours = &bad }, false},
		{"negative deposit", func(l *models.League) { l.DepositAmount = &negative }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := individualLeague(10)
			tt.mutate(&l)
			err := service.ValidateLeague(l)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, service.ErrInvalidLeague)
			}
		})
	}
}

func TestCreateLeagueRejectsInvalid(t *testing.T) {
	h := newHarness(t)
	l := individualLeague(10)
	l.RegistrationMode = ""
	err := h.svc.CreateLeague(context.Background(), &l)
	assert.ErrorIs(t, err, service.ErrInvalidLeague)

	l = individualLeague(10)
	require.NoError(t, h.svc.CreateLeague(context.Background(), &l))
	assert.NotEqual(t, uuid.Nil, l.ID)
}

func TestListRegistrationsPositions(t *testing.T) {
	h := newHarness(t)
	league := h.store.addLeague(individualLeague(1))
	h.register(t, league.ID)
	first := h.register(t, league.ID)
	second := h.register(t, league.ID)

	views, err := h.svc.ListRegistrations(context.Background(), league.ID, nil)
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Zero(t, views[0].WaitlistPosition)
	assert.Equal(t, first.Registration.ID, views[1].Registration.ID)
	assert.Equal(t, 1, views[1].WaitlistPosition)
	assert.Equal(t, second.Registration.ID, views[2].Registration.ID)
	assert.Equal(t, 2, views[2].WaitlistPosition)

	active := registration.StatusActive
	views, err = h.svc.ListRegistrations(context.Background(), league.ID, &active)
	require.NoError(t, err)
	assert.Len(t, views, 1)

	_, err = h.svc.ListRegistrations(context.Background(), uuid.New(), nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
