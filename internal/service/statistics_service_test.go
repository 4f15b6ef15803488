package service_test

import (
	"context"
	"testing"
	"time"

	"attendance/internal/model"
	"attendance/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatistics_ApprovedDaysClippedToWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.employee(t, "alice@co.com", model.RoleMember, "u-alice")
	env.employee(t, "bob@co.com", model.RoleMember, "u-bob")
	admin := env.employee(t, "a@co.com", model.RoleAdmin, "u-a")
	actor := model.EmployeeActor(admin.ID)

	// Crosses into June: only 2 of its 5 days count.
	v := env.submitVacation(t, "u-alice", day(2025, 5, 29), day(2025, 6, 2))
	_, err := env.absences.Transition(ctx, v.ID, model.StatusApproved, actor, "")
	require.NoError(t, err)

	partial, err := env.absences.Submit(ctx, service.SubmitInput{
		ChatID: "u-bob",
		Type:   model.RequestPartialAbsence,
		Start:  day(2025, 6, 10).Add(10 * time.Hour),
		End:    day(2025, 6, 10).Add(12 * time.Hour),
	})
	require.NoError(t, err)
	_, err = env.absences.Transition(ctx, partial.ID, model.StatusApproved, actor, "")
	require.NoError(t, err)

	rejected := env.submitVacation(t, "u-bob", day(2025, 6, 20), day(2025, 6, 21))
	_, err = env.absences.Transition(ctx, rejected.ID, model.StatusRejected, actor, "")
	require.NoError(t, err)

	env.submitVacation(t, "u-alice", day(2025, 6, 25), day(2025, 6, 25))

	stats, err := env.statistics.GetStatistics(ctx, day(2025, 6, 1), day(2025, 6, 30).Add(24*time.Hour-time.Nanosecond))
	require.NoError(t, err)

	assert.EqualValues(t, 4, stats.TotalRequests)
	assert.EqualValues(t, 2, stats.ByStatus[model.StatusApproved])
	assert.EqualValues(t, 1, stats.ByStatus[model.StatusRejected])
	assert.EqualValues(t, 1, stats.ByStatus[model.StatusPending])
	assert.EqualValues(t, 3, stats.ByType[model.RequestVacation])
	assert.EqualValues(t, 1, stats.ByType[model.RequestPartialAbsence])

	assert.True(t, decimal.RequireFromString("2.25").Equal(stats.ApprovedDays), stats.ApprovedDays.String())
	require.Len(t, stats.Employees, 2)
	assert.Equal(t, alice.ID, stats.Employees[0].EmployeeID)
	assert.True(t, decimal.NewFromInt(2).Equal(stats.Employees[0].Days))
	assert.True(t, decimal.RequireFromString("0.25").Equal(stats.Employees[1].Days))
	assert.Equal(t, alice.FullName(), stats.Employees[0].Name)
}

func TestStatistics_InvalidWindow(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.statistics.GetStatistics(context.Background(), day(2025, 6, 2), day(2025, 6, 1))
	assert.ErrorIs(t, err, service.ErrInvalidDateRange)
}
