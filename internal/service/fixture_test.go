package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/events"
	"github.com/spec-kit/incident-service/internal/notify"
	"github.com/spec-kit/incident-service/internal/observability"
	"github.com/spec-kit/incident-service/internal/repository"
	"github.com/spec-kit/incident-service/internal/repository/memory"
	"github.com/spec-kit/incident-service/internal/worker"
)

var t0 = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentNotification struct {
	UserID  string
	Message string
	Kind    notify.Kind
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (c *captureNotifier) Notify(_ context.Context, userID, message string, kind notify.Kind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sentNotification{UserID: userID, Message: message, Kind: kind})
	return nil
}

func (c *captureNotifier) ofKind(kind notify.Kind) []sentNotification {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []sentNotification
	for _, n := range c.sent {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

type fixture struct {
	store       *memory.Store
	repos       repository.Repositories
	clock       *testClock
	notifier    *captureNotifier
	metrics     *observability.Metrics
	assignments *AssignmentService
	incidents   *IncidentService
	escalations *EscalationService
	sla         *SLAService

	techSeq int
}

type fixtureOptions struct {
	assignment AssignmentPolicy
	escalation EscalationPolicy
	tx         func(*memory.Store) repository.TxManager
	location   *time.Location
	notifier   notify.Notifier
}

func withAssignmentPolicy(p AssignmentPolicy) func(*fixtureOptions) {
	return func(o *fixtureOptions) { o.assignment = p }
}

func withEscalationPolicy(p EscalationPolicy) func(*fixtureOptions) {
	return func(o *fixtureOptions) { o.escalation = p }
}

func withTx(fn func(*memory.Store) repository.TxManager) func(*fixtureOptions) {
	return func(o *fixtureOptions) { o.tx = fn }
}

func withNotifier(n notify.Notifier) func(*fixtureOptions) {
	return func(o *fixtureOptions) { o.notifier = n }
}

func withLocation(loc *time.Location) func(*fixtureOptions) {
	return func(o *fixtureOptions) { o.location = loc }
}

func newFixture(t *testing.T, opts ...func(*fixtureOptions)) *fixture {
	t.Helper()
	options := fixtureOptions{escalation: DefaultEscalationPolicy()}
	for _, opt := range opts {
		opt(&options)
	}

	clock := &testClock{now: t0}
	store := memory.NewStore()
	store.Now = clock.Now

	var tx repository.TxManager = store
	if options.tx != nil {
		tx = options.tx(store)
	}

	dispatcher := events.NewInMemoryDispatcher()
	notifier := &captureNotifier{}
	var sink notify.Notifier = notifier
	if options.notifier != nil {
		sink = options.notifier
	}
	NewNotificationService(dispatcher, sink, nil).RegisterHandlers()
	metrics := observability.NewMetrics("test")

	f := &fixture{
		store:    store,
		repos:    store.Repositories(),
		clock:    clock,
		notifier: notifier,
		metrics:  metrics,
	}
	f.assignments = NewAssignmentService(AssignmentDependencies{
		Tx:         tx,
		Repos:      f.repos,
		Dispatcher: dispatcher,
		Policy:     options.assignment,
		Metrics:    metrics,
		Clock:      clock.Now,
	})
	f.incidents = NewIncidentService(IncidentDependencies{
		Tx:          tx,
		Repos:       f.repos,
		Assignments: f.assignments,
		Dispatcher:  dispatcher,
		Clock:       clock.Now,
	})
	f.escalations = NewEscalationService(EscalationDependencies{
		Tx:          tx,
		Repos:       f.repos,
		Assignments: f.assignments,
		Dispatcher:  dispatcher,
		Policy:      options.escalation,
		Sweep:       SweepOptions{Concurrency: 4, PerIncidentTimeout: time.Second},
		Metrics:     metrics,
		Clock:       clock.Now,
	})
	f.sla = NewSLAService(SLADependencies{
		Incidents:  f.repos.Incidents,
		Objectives: store.Objectives(),
		Location:   options.location,
	})
	return f
}

func (f *fixture) addTechnician(t *testing.T, name string, level domain.SupportLevel, role domain.TechnicianRole) *domain.Technician {
	t.Helper()
	f.techSeq++
	tech := &domain.Technician{
		Name:         name,
		Email:        name + "@example.com",
		SupportLevel: level,
		Role:         role,
		Active:       true,
		CreatedAt:    t0.Add(-time.Duration(1000-f.techSeq) * time.Hour),
	}
	require.NoError(t, f.repos.Technicians.Create(context.Background(), tech))
	return tech
}

// storeIncident inserts an OPEN incident directly, bypassing auto-assignment.
func (f *fixture) storeIncident(t *testing.T, createdAt time.Time, mutate ...func(*domain.Incident)) *domain.Incident {
	t.Helper()
	inc := &domain.Incident{
		ExternalKey:  generateIncidentKey(),
		ReporterID:   "reporter-1",
		Title:        "vpn drops every hour",
		Status:       domain.IncidentStatusOpen,
		SupportLevel: domain.SupportLevel1,
		Priority:     domain.PriorityP3,
		Category:     domain.CategoryNetwork,
		ServiceID:    "svc-net",
		CreatedAt:    createdAt,
	}
	for _, m := range mutate {
		m(inc)
	}
	require.NoError(t, f.repos.Incidents.Create(context.Background(), inc))
	return inc
}

func (f *fixture) incident(t *testing.T, id string) *domain.Incident {
	t.Helper()
	inc, err := f.repos.Incidents.GetByID(context.Background(), id)
	require.NoError(t, err)
	return inc
}

func (f *fixture) activeAssignments(t *testing.T, incidentID string) []domain.Assignment {
	t.Helper()
	all, err := f.repos.Assignments.ListByIncident(context.Background(), incidentID)
	require.NoError(t, err)
	var active []domain.Assignment
	for _, a := range all {
		if a.Active {
			active = append(active, a)
		}
	}
	return active
}

func (f *fixture) escalationRecords(t *testing.T, incidentID string) []domain.EscalationRecord {
	t.Helper()
	records, err := f.repos.Escalations.ListByIncident(context.Background(), incidentID)
	require.NoError(t, err)
	return records
}

// stalledNotifier blocks every delivery until release is closed.
type stalledNotifier struct {
	release chan struct{}
}

func (s stalledNotifier) Notify(ctx context.Context, _, _ string, _ notify.Kind) error {
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// withQueuedDelivery routes notifications through a running delivery
// worker whose sink never answers until the test ends.
func withQueuedDelivery(t *testing.T) func(*fixtureOptions) {
	t.Helper()
	stalled := stalledNotifier{release: make(chan struct{})}
	delivery := worker.NewNotificationWorker(stalled, 64, 1, time.Minute, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		delivery.Run(ctx)
	}()
	t.Cleanup(func() {
		close(stalled.release)
		cancel()
		<-done
	})
	return withNotifier(delivery)
}

// giveLoad binds n placeholder incidents to the technician.
func (f *fixture) giveLoad(t *testing.T, tech *domain.Technician, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		inc := f.storeIncident(t, t0.Add(-time.Hour))
		require.NoError(t, f.repos.Assignments.Create(context.Background(), &domain.Assignment{
			IncidentID:   inc.ID,
			TechnicianID: tech.ID,
			AssignedAt:   t0,
			Active:       true,
		}))
	}
}
