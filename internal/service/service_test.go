package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/civicdesk/civicdesk/internal/dbtest"
	"github.com/civicdesk/civicdesk/internal/eventbus"
	"github.com/civicdesk/civicdesk/internal/logging"
	"github.com/civicdesk/civicdesk/internal/models"
	"github.com/civicdesk/civicdesk/internal/repo"
)

func ptr[T any](v T) *T { return &v }

// recorder collects every event published on the bus.
type recorder struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (r *recorder) handle(_ context.Context, ev eventbus.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) ofType(t eventbus.EventType) []eventbus.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []eventbus.Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	repo        *repo.GormRepo
	bus         *eventbus.Bus
	events      *recorder
	complaints  *ComplaintService
	assignments *AssignmentService
	sessions    *SessionService
	auth        *AuthService
	intake      *IntakeService
	citizens    *CitizenService
	now         time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	r := repo.New(dbtest.New(t))
	bus := eventbus.New(logging.Discard())
	rec := &recorder{}
	bus.Subscribe("recorder", rec.handle)

	f := &fixture{repo: r, bus: bus, events: rec, now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	clockFn := func() time.Time { return f.now }

	f.complaints = &ComplaintService{Repo: r, Bus: bus, Now: clockFn, Labels: []string{"pothole", "garbage"}}
	f.assignments = &AssignmentService{Repo: r, Bus: bus, Now: clockFn}
	f.sessions = &SessionService{Repo: r, Now: clockFn}
	f.auth = &AuthService{Repo: r, Sessions: f.sessions, Now: clockFn, HashCost: 4}
	f.intake = &IntakeService{Complaints: f.complaints, Bus: bus, Now: clockFn}
	f.citizens = &CitizenService{Repo: r}
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *fixture) newComplaint(t *testing.T, phone string) *models.Complaint {
	t.Helper()
	c, err := f.complaints.Create(context.Background(), CreateInput{
		PhoneNumber: phone,
		Channel:     "sms",
		RawText:     ptr("Overflowing garbage bin near the market"),
	}, SystemActor(""))
	require.NoError(t, err)
	return c
}

func (f *fixture) countEvents(t *testing.T, complaintID uuid.UUID, eventType string) int64 {
	t.Helper()
	n, err := f.repo.CountEvents(context.Background(), complaintID, eventType)
	require.NoError(t, err)
	return n
}
