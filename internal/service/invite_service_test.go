package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"attendance/internal/model"
	"attendance/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvite_RedeemBindsIdentity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	e, _, err := env.employees.Create(ctx, service.CreateEmployeeInput{Email: "e@co.com", FirstName: "Eva", LastName: "Orlova"}, false)
	require.NoError(t, err)
	token, err := env.invites.Issue(ctx, e.ID, nil, 0)
	require.NoError(t, err)

	res, err := env.invites.Register(ctx, service.RegisterInput{ChatID: "u-eva", EmployeeID: &e.ID, Code: token.Code})
	require.NoError(t, err)
	assert.Equal(t, model.InviteValid, res.Status)
	require.NotNil(t, res.Employee)
	require.NotNil(t, res.Employee.ChatID)
	assert.Equal(t, "u-eva", *res.Employee.ChatID)

	stored, err := env.invites.FindByCode(ctx, token.Code)
	require.NoError(t, err)
	assert.True(t, stored.IsUsed)
	require.NotNil(t, stored.UsedAt)
}

func TestInvite_RedeemTwiceIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	e := env.employee(t, "e@co.com", model.RoleMember, "")
	token, err := env.invites.Issue(ctx, e.ID, nil, 0)
	require.NoError(t, err)

	first, err := env.invites.Register(ctx, service.RegisterInput{ChatID: "u-1", Code: token.Code})
	require.NoError(t, err)
	require.Equal(t, model.InviteValid, first.Status)
	before, err := env.invites.FindByCode(ctx, token.Code)
	require.NoError(t, err)

	second, err := env.invites.Register(ctx, service.RegisterInput{ChatID: "u-2", Code: token.Code})
	require.NoError(t, err)
	assert.Equal(t, model.InviteUsed, second.Status)
	assert.Nil(t, second.Employee)

	after, err := env.invites.FindByCode(ctx, token.Code)
	require.NoError(t, err)
	assert.Equal(t, before.UsedAt.UTC(), after.UsedAt.UTC())

	owner, err := env.employees.FindByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "u-1", *owner.ChatID, "second redemption must not rebind")

	redeemed, err := env.invites.Redeem(ctx, token.Code)
	require.NoError(t, err)
	assert.Nil(t, redeemed)
}

func TestInvite_ReissueSupersedes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	x := env.employee(t, "x@co.com", model.RoleMember, "")

	first, err := env.invites.Issue(ctx, x.ID, nil, 0)
	require.NoError(t, err)
	env.clock.Advance(time.Minute)
	second, err := env.invites.Issue(ctx, x.ID, nil, 0)
	require.NoError(t, err)
	assert.NotEqual(t, first.Code, second.Code)

	active, err := env.invites.FindActive(ctx, x.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second.ID, active.ID)

	var count int64
	require.NoError(t, env.db.Model(&model.InviteToken{}).
		Where("employee_id = ? AND is_used = ? AND expires_at > ?", x.ID, false, env.clock.Now()).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)

	res, err := env.invites.Register(ctx, service.RegisterInput{ChatID: "u-x", Code: first.Code})
	require.NoError(t, err)
	assert.Equal(t, model.InviteUsed, res.Status, "superseded codes read as used")
}

func TestInvite_Expired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	e := env.employee(t, "e@co.com", model.RoleMember, "")
	token, err := env.invites.Issue(ctx, e.ID, nil, time.Hour)
	require.NoError(t, err)

	env.clock.Advance(time.Hour)
	res, err := env.invites.Register(ctx, service.RegisterInput{ChatID: "u-1", Code: token.Code})
	require.NoError(t, err)
	assert.Equal(t, model.InviteExpired, res.Status)

	owner, err := env.employees.FindByID(ctx, e.ID)
	require.NoError(t, err)
	assert.False(t, owner.HasChatIdentity())

	active, err := env.invites.FindActive(ctx, e.ID)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestInvite_WrongEmployeeOrUnknownCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.employee(t, "a@co.com", model.RoleMember, "")
	b := env.employee(t, "b@co.com", model.RoleMember, "")
	token, err := env.invites.Issue(ctx, a.ID, nil, 0)
	require.NoError(t, err)

	_, err = env.invites.Register(ctx, service.RegisterInput{ChatID: "u-1", EmployeeID: &b.ID, Code: token.Code})
	assert.ErrorIs(t, err, service.ErrInviteNotFound)

	_, err = env.invites.Register(ctx, service.RegisterInput{ChatID: "u-1", Code: "deadbeef"})
	assert.ErrorIs(t, err, service.ErrInviteNotFound)

	// Pasted with whitespace and upper case still matches.
	res, err := env.invites.Register(ctx, service.RegisterInput{ChatID: "u-1", Code: "  " + strings.ToUpper(token.Code) + " "})
	require.NoError(t, err)
	assert.Equal(t, model.InviteValid, res.Status)
}

func TestInvite_BoundChatAccountRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.employee(t, "taken@co.com", model.RoleMember, "u-taken")
	e := env.employee(t, "e@co.com", model.RoleMember, "")
	token, err := env.invites.Issue(ctx, e.ID, nil, 0)
	require.NoError(t, err)

	_, err = env.invites.Register(ctx, service.RegisterInput{ChatID: "u-taken", Code: token.Code})
	assert.ErrorIs(t, err, service.ErrIdentityAlreadyBound)

	stored, err := env.invites.FindByCode(ctx, token.Code)
	require.NoError(t, err)
	assert.False(t, stored.IsUsed, "code stays redeemable after a failed bind")
}

func TestInvite_IssueForUnknownEmployee(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.invites.Issue(context.Background(), uuid.New(), nil, 0)
	assert.ErrorIs(t, err, service.ErrEmployeeNotFound)
}

func TestNewInviteCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		code, err := service.NewInviteCode()
		require.NoError(t, err)
		assert.Len(t, code, 32)
		assert.False(t, seen[code])
		seen[code] = true
	}
}
