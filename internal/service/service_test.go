package service_test

import (
	"context"
	"testing"
	"time"

	"attendance/internal/model"
	"attendance/internal/repository"
	"attendance/internal/service"
	"attendance/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// testEnv is the full service graph over one SQLite file.
type testEnv struct {
	db            *gorm.DB
	clock         *testutil.Clock
	transport     *testutil.Transport
	employees     service.EmployeeService
	invites       service.InviteService
	absences      service.AbsenceService
	notifications service.NotificationService
	statistics    service.StatisticsService
	notifRepo     repository.NotificationRepository
	historyRepo   repository.HistoryRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	clock := testutil.NewClock(time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC))
	transport := testutil.NewTransport()
	opts := []service.Option{service.WithClock(clock.Now)}

	tx := repository.NewTransactionManager(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	absenceRepo := repository.NewAbsenceRepository(db)
	env := &testEnv{
		db:          db,
		clock:       clock,
		transport:   transport,
		notifRepo:   repository.NewNotificationRepository(db),
		historyRepo: repository.NewHistoryRepository(db),
	}
	env.invites = service.NewInviteService(repository.NewInviteRepository(db), employeeRepo, tx, opts...)
	env.employees = service.NewEmployeeService(employeeRepo, env.invites, tx)
	env.absences = service.NewAbsenceService(absenceRepo, env.historyRepo, employeeRepo, tx, opts...)
	env.notifications = service.NewNotificationService(env.notifRepo, employeeRepo, transport, opts...)
	env.statistics = service.NewStatisticsService(repository.NewStatisticsRepository(db), absenceRepo, employeeRepo, opts...)
	return env
}

func (e *testEnv) employee(t *testing.T, email string, role model.Role, chatID string) *model.Employee {
	t.Helper()
	return testutil.Employee(t, e.db, email, role, chatID)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// submitVacation files a vacation for chatID over [start, end].
func (e *testEnv) submitVacation(t *testing.T, chatID string, start, end time.Time) *model.AbsenceRequest {
	t.Helper()
	r, err := e.absences.Submit(context.Background(), service.SubmitInput{
		ChatID: chatID,
		Type:   model.RequestVacation,
		Start:  start,
		End:    end,
	})
	require.NoError(t, err)
	return r
}

func (e *testEnv) historyLen(t *testing.T, r *model.AbsenceRequest) int64 {
	t.Helper()
	n, err := e.historyRepo.CountForRequest(context.Background(), r.ID)
	require.NoError(t, err)
	return n
}

func pendingFilterFor(employeeID *uuid.UUID) repository.AbsenceFilter {
	return repository.AbsenceFilter{EmployeeID: employeeID, Status: model.StatusPending}
}
