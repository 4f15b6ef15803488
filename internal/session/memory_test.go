package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_LoadMissingReturnsZeroState(t *testing.T) {
	store := NewMemoryStore(0)

	st, err := store.Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, st.Active())
	assert.Empty(t, st.Data)
}

func TestMemoryStore_SaveLoadClear(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	st := &State{}
	st.Begin(FlowRequest, "choosing_type")
	st.Set("type", "vacation")
	require.NoError(t, store.Save(ctx, "u1", st))

	loaded, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, FlowRequest, loaded.Flow)
	assert.Equal(t, "choosing_type", loaded.Step)
	assert.Equal(t, "vacation", loaded.Get("type"))

	// Mutating the loaded copy does not leak into the store.
	loaded.Set("type", "remote")
	again, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "vacation", again.Get("type"))

	require.NoError(t, store.Clear(ctx, "u1"))
	cleared, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, cleared.Active())
}

func TestMemoryStore_SavingInactiveStateDeletes(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	st := &State{}
	st.Begin(FlowRegister, "waiting_email")
	require.NoError(t, store.Save(ctx, "u1", st))

	st.Reset()
	require.NoError(t, store.Save(ctx, "u1", st))

	loaded, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, loaded.Active())
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	st := &State{}
	st.Begin(FlowRegister, "waiting_code")
	require.NoError(t, store.Save(ctx, "u1", st))

	now = now.Add(30 * time.Second)
	loaded, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, loaded.Active())

	now = now.Add(2 * time.Minute)
	loaded, err = store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, loaded.Active())
}
