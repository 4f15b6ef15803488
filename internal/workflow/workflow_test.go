package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"attendance/internal/i18n"
	"attendance/internal/model"
	"attendance/internal/repository"
	"attendance/internal/service"
	"attendance/internal/session"
	"attendance/internal/testutil"
	"attendance/internal/workflow"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(eventType string, _ interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func (p *recordingPublisher) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

type testEnv struct {
	ctx       context.Context
	db        *gorm.DB
	clock     *testutil.Clock
	transport *testutil.Transport
	sessions  *session.MemoryStore
	publisher *recordingPublisher

	employees service.EmployeeService
	invites   service.InviteService
	absences  service.AbsenceService
	wf        *workflow.Orchestrator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	clock := testutil.NewClock(time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC))
	opts := []service.Option{service.WithClock(clock.Now)}

	tx := repository.NewTransactionManager(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	env := &testEnv{
		ctx:       i18n.WithLocale(context.Background(), "en"),
		db:        db,
		clock:     clock,
		transport: testutil.NewTransport(),
		sessions:  session.NewMemoryStore(0),
		publisher: &recordingPublisher{},
	}
	env.invites = service.NewInviteService(repository.NewInviteRepository(db), employeeRepo, tx, opts...)
	env.employees = service.NewEmployeeService(employeeRepo, env.invites, tx)
	env.absences = service.NewAbsenceService(repository.NewAbsenceRepository(db), repository.NewHistoryRepository(db), employeeRepo, tx, opts...)
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), employeeRepo, env.transport, opts...)

	env.wf = workflow.New(env.employees, env.invites, env.absences, notifications, env.sessions, env.publisher, workflow.Config{
		InviteTTL: 24 * time.Hour,
		Location:  time.UTC,
		Now:       clock.Now,
	})
	return env
}

func (e *testEnv) t(id string) string {
	return i18n.T(e.ctx, id)
}

// say sends text as chatID and fails on unexpected errors.
func (e *testEnv) say(t *testing.T, chatID, text string) workflow.Reply {
	t.Helper()
	reply, err := e.wf.HandleCommand(e.ctx, chatID, text)
	require.NoError(t, err)
	return reply
}

func (e *testEnv) step(t *testing.T, chatID string) string {
	t.Helper()
	st, err := e.sessions.Load(e.ctx, chatID)
	require.NoError(t, err)
	return st.Step
}

// staff creates two admins (a1, a2) and one member (u1).
func (e *testEnv) staff(t *testing.T) (a1, a2, u1 *model.Employee) {
	t.Helper()
	a1 = testutil.Employee(t, e.db, "boss@corp.io", model.RoleAdmin, "a1")
	a2 = testutil.Employee(t, e.db, "root@corp.io", model.RoleSuperuser, "a2")
	u1 = testutil.Employee(t, e.db, "ivan@corp.io", model.RoleMember, "u1")
	return a1, a2, u1
}

func (e *testEnv) submit(t *testing.T, chatID string, start, end time.Time) *model.AbsenceRequest {
	t.Helper()
	res, err := e.wf.SubmitRequest(e.ctx, service.SubmitInput{
		ChatID: chatID,
		Type:   model.RequestVacation,
		Start:  start,
		End:    end,
	})
	require.NoError(t, err)
	return res.Request
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func actionNames(actions []service.CardAction) []string {
	names := make([]string, 0, len(actions))
	for _, a := range actions {
		names = append(names, a.Name)
	}
	return names
}

func actionValues(actions []service.CardAction) []string {
	values := make([]string, 0, len(actions))
	for _, a := range actions {
		values = append(values, a.Value)
	}
	return values
}
