package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"attendance/internal/model"
	"attendance/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAbsence_SubmitWritesCreatedHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.employee(t, "e@co.com", model.RoleMember, "u-e")

	r := env.submitVacation(t, "u-e", day(2025, 6, 1), day(2025, 6, 5))
	assert.Equal(t, model.StatusPending, r.Status)
	assert.Equal(t, owner.ID, r.EmployeeID)
	assert.Equal(t, 5, r.Days())

	entries, err := env.absences.History(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ChangeCreated, entries[0].ChangeType)
	require.NotNil(t, entries[0].NewValue)
	assert.Equal(t, "pending", *entries[0].NewValue)
	id, ok := entries[0].Actor().EmployeeID()
	assert.True(t, ok)
	assert.Equal(t, owner.ID, id)
}

func TestAbsence_SubmitValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.employee(t, "e@co.com", model.RoleMember, "u-e")

	// start == end is a valid single day.
	env.submitVacation(t, "u-e", day(2025, 6, 1), day(2025, 6, 1))

	_, err := env.absences.Submit(ctx, service.SubmitInput{ChatID: "u-e", Type: model.RequestVacation, Start: day(2025, 6, 5), End: day(2025, 6, 1)})
	assert.ErrorIs(t, err, service.ErrInvalidDateRange)

	_, err = env.absences.Submit(ctx, service.SubmitInput{ChatID: "u-e", Type: "holiday", Start: day(2025, 6, 1), End: day(2025, 6, 1)})
	assert.ErrorIs(t, err, service.ErrInvalidRequestType)

	_, err = env.absences.Submit(ctx, service.SubmitInput{
		ChatID: "u-e",
		Type:   model.RequestPartialAbsence,
		Start:  day(2025, 6, 1).Add(15 * time.Hour),
		End:    day(2025, 6, 2).Add(10 * time.Hour),
	})
	assert.ErrorIs(t, err, service.ErrInvalidPartialRange)

	_, err = env.absences.Submit(ctx, service.SubmitInput{ChatID: "u-nobody", Type: model.RequestRemote, Start: day(2025, 6, 1), End: day(2025, 6, 1)})
	assert.ErrorIs(t, err, service.ErrProfileNotFound)

	gone := env.employee(t, "gone@co.com", model.RoleMember, "u-gone")
	_, err = env.employees.Deactivate(ctx, gone.ID)
	require.NoError(t, err)
	_, err = env.absences.Submit(ctx, service.SubmitInput{ChatID: "u-gone", Type: model.RequestRemote, Start: day(2025, 6, 1), End: day(2025, 6, 1)})
	assert.ErrorIs(t, err, service.ErrEmployeeInactive)

	total, err := env.absences.CountAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total, "rejected input never reaches storage")
}

func TestAbsence_TerminalStatusIsFinal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.employee(t, "e@co.com", model.RoleMember, "u-e")
	adminA := env.employee(t, "a@co.com", model.RoleAdmin, "u-a")
	adminB := env.employee(t, "b@co.com", model.RoleAdmin, "u-b")
	r := env.submitVacation(t, "u-e", day(2025, 6, 1), day(2025, 6, 5))

	approved, err := env.absences.Transition(ctx, r.ID, model.StatusApproved, model.EmployeeActor(adminA.ID), "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, approved.Status)
	require.NotNil(t, approved.Employee)

	entries, err := env.absences.History(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	second := entries[1]
	assert.Equal(t, model.ChangeStatusChanged, second.ChangeType)
	assert.Equal(t, "pending", *second.OldValue)
	assert.Equal(t, "approved", *second.NewValue)

	for _, status := range []model.RequestStatus{model.StatusRejected, model.StatusApproved, model.StatusCancelled} {
		_, err = env.absences.Transition(ctx, r.ID, status, model.EmployeeActor(adminB.ID), "too late")
		assert.ErrorIs(t, err, service.ErrRequestAlreadyProcessed, status)
	}
	assert.EqualValues(t, 2, env.historyLen(t, r))
}

func TestAbsence_RejectStoresReason(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.employee(t, "e@co.com", model.RoleMember, "u-e")
	admin := env.employee(t, "a@co.com", model.RoleAdmin, "u-a")
	r := env.submitVacation(t, "u-e", day(2025, 6, 1), day(2025, 6, 5))

	rejected, err := env.absences.Transition(ctx, r.ID, model.StatusRejected, model.EmployeeActor(admin.ID), "  release week ")
	require.NoError(t, err)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "release week", *rejected.RejectionReason)

	entries, err := env.absences.History(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "release week", *entries[1].Reason)
}

func TestAbsence_TransitionRejectsPendingTarget(t *testing.T) {
	env := newTestEnv(t)
	env.employee(t, "e@co.com", model.RoleMember, "u-e")
	r := env.submitVacation(t, "u-e", day(2025, 6, 1), day(2025, 6, 5))

	_, err := env.absences.Transition(context.Background(), r.ID, model.StatusPending, model.SystemActor(), "")
	assert.ErrorIs(t, err, service.ErrInvalidTransition)

	_, err = env.absences.Transition(context.Background(), uuid.New(), model.StatusApproved, model.SystemActor(), "")
	assert.ErrorIs(t, err, service.ErrRequestNotFound)
}

func TestAbsence_ConcurrentResolutionHasOneWinner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.employee(t, "e@co.com", model.RoleMember, "u-e")
	admins := []*model.Employee{
		env.employee(t, "a@co.com", model.RoleAdmin, "u-a"),
		env.employee(t, "b@co.com", model.RoleAdmin, "u-b"),
		env.employee(t, "c@co.com", model.RoleAdmin, "u-c"),
	}
	r := env.submitVacation(t, "u-e", day(2025, 6, 1), day(2025, 6, 5))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		lost int
	)
	for i, admin := range admins {
		status := model.StatusApproved
		if i%2 == 1 {
			status = model.StatusRejected
		}
		wg.Add(1)
		go func(id uuid.UUID, status model.RequestStatus) {
			defer wg.Done()
			_, err := env.absences.Transition(ctx, r.ID, status, model.EmployeeActor(id), "")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if assert.ErrorIs(t, err, service.ErrRequestAlreadyProcessed) {
				lost++
			}
		}(admin.ID, status)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 2, lost)
	assert.EqualValues(t, 2, env.historyLen(t, r))
}

func TestAbsence_CancelByOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.employee(t, "e@co.com", model.RoleMember, "u-e")
	other := env.employee(t, "o@co.com", model.RoleMember, "u-o")
	r := env.submitVacation(t, "u-e", day(2025, 6, 1), day(2025, 6, 5))

	_, err := env.absences.CancelByOwner(ctx, r.ID, other.ID)
	assert.ErrorIs(t, err, service.ErrNotRequestOwner)

	cancelled, err := env.absences.CancelByOwner(ctx, r.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)

	entries, err := env.absences.History(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.ChangeCancelled, entries[1].ChangeType)

	_, err = env.absences.CancelByOwner(ctx, r.ID, owner.ID)
	assert.ErrorIs(t, err, service.ErrRequestAlreadyProcessed)
}

func TestAbsence_PendingQueue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.employee(t, "e@co.com", model.RoleMember, "u-e")
	admin := env.employee(t, "a@co.com", model.RoleAdmin, "u-a")

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		r := env.submitVacation(t, "u-e", day(2025, 6, 1+i), day(2025, 6, 1+i))
		ids = append(ids, r.ID)
		env.clock.Advance(time.Minute)
	}

	page, err := env.absences.PendingAt(ctx, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	assert.Equal(t, ids[0], page.Request.ID, "oldest first")

	page, err = env.absences.PendingAt(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Index)
	assert.Equal(t, ids[2], page.Request.ID)

	page, err = env.absences.PendingAt(ctx, -1)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Index)

	_, err = env.absences.Transition(ctx, ids[0], model.StatusApproved, model.EmployeeActor(admin.ID), "")
	require.NoError(t, err)
	pending, err := env.absences.CountPending(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, pending)

	list, total, err := env.absences.List(ctx, pendingFilterFor(nil), 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, ids[1], list[0].ID)
}

func TestAbsence_PendingAtEmptyQueue(t *testing.T) {
	env := newTestEnv(t)
	page, err := env.absences.PendingAt(context.Background(), 3)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Nil(t, page.Request)
}

func TestAbsence_HistoryUnknownRequest(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.absences.History(context.Background(), uuid.New())
	assert.ErrorIs(t, err, service.ErrRequestNotFound)
}
