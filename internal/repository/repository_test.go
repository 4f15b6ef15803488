package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"attendance/internal/model"
	"attendance/internal/repository"
	"attendance/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func pendingRequest(t *testing.T, db *gorm.DB, owner *model.Employee, start time.Time) *model.AbsenceRequest {
	t.Helper()
	r := &model.AbsenceRequest{
		EmployeeID: owner.ID,
		Type:       model.RequestVacation,
		StartAt:    start,
		EndAt:      start.AddDate(0, 0, 2),
		Status:     model.StatusPending,
	}
	require.NoError(t, repository.NewAbsenceRepository(db).Create(context.Background(), r))
	return r
}

func TestEmployeeDelete_Cascades(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	owner := testutil.Employee(t, db, "owner@example.com", model.RoleMember, "u-owner")
	admin := testutil.Employee(t, db, "admin@example.com", model.RoleAdmin, "u-admin")

	invites := repository.NewInviteRepository(db)
	require.NoError(t, invites.Create(ctx, &model.InviteToken{Code: "c1", EmployeeID: owner.ID, IssuedBy: &admin.ID, ExpiresAt: t0.Add(time.Hour)}))

	req := pendingRequest(t, db, owner, t0)
	history := repository.NewHistoryRepository(db)
	entry := &model.RequestHistoryEntry{RequestID: req.ID, ChangeType: model.ChangeCreated, ChangedAt: t0}
	entry.SetActor(model.EmployeeActor(owner.ID))
	require.NoError(t, history.Append(ctx, entry))

	notifications := repository.NewNotificationRepository(db)
	require.NoError(t, notifications.Create(ctx, &model.AdminNotification{RequestID: req.ID, AdminID: admin.ID, MessageRef: "p1", ChatRef: "c1", IsActive: true}))

	require.NoError(t, repository.NewEmployeeRepository(db).Delete(ctx, owner.ID))

	var count int64
	require.NoError(t, db.Model(&model.InviteToken{}).Count(&count).Error)
	assert.Zero(t, count, "invites")
	require.NoError(t, db.Model(&model.AbsenceRequest{}).Count(&count).Error)
	assert.Zero(t, count, "requests")
	require.NoError(t, db.Model(&model.RequestHistoryEntry{}).Count(&count).Error)
	assert.Zero(t, count, "history")
	require.NoError(t, db.Model(&model.AdminNotification{}).Count(&count).Error)
	assert.Zero(t, count, "notifications")
}

func TestEmployeeDelete_KeepsHistoryWrittenByDeletedAdmin(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	owner := testutil.Employee(t, db, "owner@example.com", model.RoleMember, "u-owner")
	admin := testutil.Employee(t, db, "admin@example.com", model.RoleAdmin, "u-admin")
	req := pendingRequest(t, db, owner, t0)

	history := repository.NewHistoryRepository(db)
	entry := &model.RequestHistoryEntry{RequestID: req.ID, ChangeType: model.ChangeStatusChanged, ChangedAt: t0}
	entry.SetActor(model.EmployeeActor(admin.ID))
	require.NoError(t, history.Append(ctx, entry))

	require.NoError(t, repository.NewEmployeeRepository(db).Delete(ctx, admin.ID))

	entries, err := history.ListForRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Actor().IsSystem())
}

func TestEmployeeRepository_ChatIDUnique(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.Employee(t, db, "a@example.com", model.RoleMember, "u-1")

	chat := "u-1"
	err := db.Create(&model.Employee{Email: "b@example.com", FirstName: "B", LastName: "B", Role: model.RoleMember, ChatID: &chat}).Error
	assert.Error(t, err)
}

func TestEmployeeRepository_ListActiveAdmins(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := repository.NewEmployeeRepository(db)

	admin := testutil.Employee(t, db, "admin@example.com", model.RoleAdmin, "u-admin")
	super := testutil.Employee(t, db, "root@example.com", model.RoleSuperuser, "u-root")
	testutil.Employee(t, db, "member@example.com", model.RoleMember, "u-member")
	testutil.Employee(t, db, "unbound@example.com", model.RoleAdmin, "")
	inactive := testutil.Employee(t, db, "gone@example.com", model.RoleAdmin, "u-gone")
	require.NoError(t, repo.UpdateFields(ctx, inactive.ID, map[string]interface{}{"is_active": false}))

	admins, err := repo.ListActiveAdmins(ctx)
	require.NoError(t, err)
	ids := []uuid.UUID{}
	for _, a := range admins {
		ids = append(ids, a.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{admin.ID, super.ID}, ids)
}

func TestInviteRepository_SupersedeAndRedeem(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	e := testutil.Employee(t, db, "a@example.com", model.RoleMember, "")
	repo := repository.NewInviteRepository(db)

	old := &model.InviteToken{Code: "old", EmployeeID: e.ID, ExpiresAt: t0.Add(time.Hour), CreatedAt: t0}
	require.NoError(t, repo.Create(ctx, old))

	n, err := repo.SupersedeUnused(ctx, e.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	fresh := &model.InviteToken{Code: "fresh", EmployeeID: e.ID, ExpiresAt: t0.Add(time.Hour), CreatedAt: t0.Add(time.Minute)}
	require.NoError(t, repo.Create(ctx, fresh))

	active, err := repo.FindActive(ctx, e.ID, t0)
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, active.ID)
	count, err := repo.CountActive(ctx, e.ID, t0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	superseded, err := repo.FindByCode(ctx, "old")
	require.NoError(t, err)
	assert.True(t, superseded.IsUsed)
	assert.Nil(t, superseded.UsedAt)

	rows, err := repo.MarkUsed(ctx, fresh.ID, t0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)
	rows, err = repo.MarkUsed(ctx, fresh.ID, t0)
	require.NoError(t, err)
	assert.Zero(t, rows)

	_, err = repo.FindActive(ctx, e.ID, t0)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestAbsenceRepository_UpdateStatusIfPending(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	owner := testutil.Employee(t, db, "a@example.com", model.RoleMember, "u-a")
	repo := repository.NewAbsenceRepository(db)
	req := pendingRequest(t, db, owner, t0)

	reason := "busy week"
	rows, err := repo.UpdateStatusIfPending(ctx, req.ID, model.StatusRejected, &reason)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)

	rows, err = repo.UpdateStatusIfPending(ctx, req.ID, model.StatusApproved, nil)
	require.NoError(t, err)
	assert.Zero(t, rows)

	got, err := repo.FindByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, got.Status)
	require.NotNil(t, got.RejectionReason)
	assert.Equal(t, reason, *got.RejectionReason)
}

func TestAbsenceRepository_ListFiltersAndOrder(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	a := testutil.Employee(t, db, "a@example.com", model.RoleMember, "u-a")
	b := testutil.Employee(t, db, "b@example.com", model.RoleMember, "u-b")
	repo := repository.NewAbsenceRepository(db)

	var created []*model.AbsenceRequest
	for i, owner := range []*model.Employee{a, b, a} {
		r := &model.AbsenceRequest{
			EmployeeID: owner.ID,
			Type:       model.RequestDayOff,
			StartAt:    t0.AddDate(0, 0, i),
			EndAt:      t0.AddDate(0, 0, i),
			Status:     model.StatusPending,
			CreatedAt:  t0.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Create(ctx, r))
		created = append(created, r)
	}

	oldest, err := repo.List(ctx, repository.AbsenceFilter{Status: model.StatusPending}, true, 0, 0)
	require.NoError(t, err)
	require.Len(t, oldest, 3)
	assert.Equal(t, created[0].ID, oldest[0].ID)
	require.NotNil(t, oldest[0].Employee)
	assert.Equal(t, a.ID, oldest[0].Employee.ID)

	mine, err := repo.List(ctx, repository.AbsenceFilter{EmployeeID: &a.ID}, false, 0, 10)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, created[2].ID, mine[0].ID)

	total, err := repo.Count(ctx, repository.AbsenceFilter{EmployeeID: &b.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	page, err := repo.List(ctx, repository.AbsenceFilter{}, true, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, created[1].ID, page[0].ID)
}

func TestAbsenceRepository_OrderStableOnTies(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	owner := testutil.Employee(t, db, "a@example.com", model.RoleMember, "u-a")
	repo := repository.NewAbsenceRepository(db)
	for i := 0; i < 4; i++ {
		require.NoError(t, repo.Create(ctx, &model.AbsenceRequest{
			EmployeeID: owner.ID,
			Type:       model.RequestDayOff,
			StartAt:    t0.AddDate(0, 0, i),
			EndAt:      t0.AddDate(0, 0, i),
			Status:     model.StatusPending,
			CreatedAt:  t0,
		}))
	}

	oldest, err := repo.List(ctx, repository.AbsenceFilter{}, true, 0, 0)
	require.NoError(t, err)
	newest, err := repo.List(ctx, repository.AbsenceFilter{}, false, 0, 0)
	require.NoError(t, err)
	require.Len(t, oldest, 4)
	require.Len(t, newest, 4)
	for i := range oldest {
		assert.Equal(t, oldest[i].ID, newest[len(newest)-1-i].ID)
	}

	var paged []uuid.UUID
	for offset := 0; offset < 4; offset += 2 {
		page, err := repo.List(ctx, repository.AbsenceFilter{}, true, offset, 2)
		require.NoError(t, err)
		for _, r := range page {
			paged = append(paged, r.ID)
		}
	}
	for i := range oldest {
		assert.Equal(t, oldest[i].ID, paged[i])
	}
}

func TestHistoryRepository_CreatedEntryFirstOnTie(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	owner := testutil.Employee(t, db, "owner@example.com", model.RoleMember, "u-owner")
	req := pendingRequest(t, db, owner, t0)
	history := repository.NewHistoryRepository(db)

	changed := &model.RequestHistoryEntry{RequestID: req.ID, ChangeType: model.ChangeStatusChanged, ChangedAt: t0}
	changed.SetActor(model.SystemActor())
	require.NoError(t, history.Append(ctx, changed))
	created := &model.RequestHistoryEntry{RequestID: req.ID, ChangeType: model.ChangeCreated, ChangedAt: t0}
	created.SetActor(model.EmployeeActor(owner.ID))
	require.NoError(t, history.Append(ctx, created))

	entries, err := history.ListForRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.ChangeCreated, entries[0].ChangeType)
	assert.Equal(t, model.ChangeStatusChanged, entries[1].ChangeType)
}

func TestNotificationRepository_ExcludeActingAdmin(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	owner := testutil.Employee(t, db, "o@example.com", model.RoleMember, "u-o")
	a1 := testutil.Employee(t, db, "a1@example.com", model.RoleAdmin, "u-a1")
	a2 := testutil.Employee(t, db, "a2@example.com", model.RoleAdmin, "u-a2")
	req := pendingRequest(t, db, owner, t0)
	repo := repository.NewNotificationRepository(db)

	for _, admin := range []*model.Employee{a1, a2} {
		require.NoError(t, repo.Create(ctx, &model.AdminNotification{
			RequestID: req.ID, AdminID: admin.ID, MessageRef: "p-" + admin.Email, ChatRef: "c", IsActive: true,
		}))
	}

	others, err := repo.ActiveForRequest(ctx, req.ID, &a1.ID)
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, a2.ID, others[0].AdminID)

	n, err := repo.DeactivateForRequest(ctx, req.ID, &a1.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	own, err := repo.ActiveForAdmin(ctx, req.ID, a1.ID)
	require.NoError(t, err)
	assert.Len(t, own, 1)

	n, err = repo.DeactivateForAdmin(ctx, req.ID, a1.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	active, err := repo.ActiveForRequest(ctx, req.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := repo.ListForRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestTransactionManager_RollbackAndJoin(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	tx := repository.NewTransactionManager(db)
	employees := repository.NewEmployeeRepository(db)
	boom := errors.New("boom")

	err := tx.RunInTx(ctx, func(txCtx context.Context) error {
		require.NoError(t, employees.Create(txCtx, &model.Employee{Email: "a@example.com", FirstName: "A", LastName: "A", Role: model.RoleMember}))
		return tx.RunInTx(txCtx, func(inner context.Context) error {
			require.NoError(t, employees.Create(inner, &model.Employee{Email: "b@example.com", FirstName: "B", LastName: "B", Role: model.RoleMember}))
			return boom
		})
	})
	require.ErrorIs(t, err, boom)

	total, err := employees.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, total, "inner failure rolls back the outer transaction")
}

func TestStatisticsRepository_Counts(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	owner := testutil.Employee(t, db, "o@example.com", model.RoleMember, "u-o")
	absences := repository.NewAbsenceRepository(db)

	inWindow := pendingRequest(t, db, owner, t0)
	_, err := absences.UpdateStatusIfPending(ctx, inWindow.ID, model.StatusApproved, nil)
	require.NoError(t, err)
	pendingRequest(t, db, owner, t0.AddDate(0, 0, 1))
	pendingRequest(t, db, owner, t0.AddDate(0, 2, 0)) // outside

	stats := repository.NewStatisticsRepository(db)
	from, to := t0.AddDate(0, 0, -1), t0.AddDate(0, 0, 10)

	byStatus, err := stats.CountByStatus(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, map[model.RequestStatus]int64{model.StatusApproved: 1, model.StatusPending: 1}, byStatus)

	byType, err := stats.CountByType(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, map[model.RequestType]int64{model.RequestVacation: 2}, byType)
}
