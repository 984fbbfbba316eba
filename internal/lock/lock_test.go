package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Relay/internal/memstore"
	"github.com/shaiso/Relay/internal/repo"
)

var (
	_ Store = (*memstore.LockStore)(nil)
	_ Store = (*repo.LockRepo)(nil)
)

func TestAcquire_Exclusive(t *testing.T) {
	l := New(Config{Store: memstore.NewLockStore(), Purpose: "migration"})
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, "schema", ModeAuto))
	assert.ErrorIs(t, l.Acquire(ctx, "schema", ModeAuto), ErrUnableToAcquireLock)

	require.NoError(t, l.Release(ctx, "schema"))
	assert.NoError(t, l.Acquire(ctx, "schema", ModeAuto))
}

func TestAcquire_PurposeIsPartOfKey(t *testing.T) {
	store := memstore.NewLockStore()
	ctx := context.Background()

	a := New(Config{Store: store, Purpose: "migration"})
	b := New(Config{Store: store, Purpose: "template-rollout"})

	require.NoError(t, a.Acquire(ctx, "k", ModeExplicit))
	assert.NoError(t, b.Acquire(ctx, "k", ModeExplicit))
}

func TestAcquire_AutoLockExpires(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(Config{
		Store:   memstore.NewLockStore(),
		Purpose: "p",
		Clock:   func() time.Time { return now },
	})
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, "k", ModeAuto))

	now = now.Add(DefaultHorizon + time.Second)
	assert.NoError(t, l.Acquire(ctx, "k", ModeAuto), "expired auto lock must be reclaimable")
}

func TestAcquire_ExplicitLockNeverExpires(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(Config{
		Store:   memstore.NewLockStore(),
		Purpose: "p",
		Clock:   func() time.Time { return now },
	})
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, "k", ModeExplicit))

	now = now.Add(365 * 24 * time.Hour)
	assert.ErrorIs(t, l.Acquire(ctx, "k", ModeAuto), ErrUnableToAcquireLock)
}

func TestWithLock_ReleasesAfterError(t *testing.T) {
	l := New(Config{Store: memstore.NewLockStore(), Purpose: "p"})
	ctx := context.Background()
	boom := errors.New("boom")

	err := l.WithLock(ctx, "k", ModeExplicit, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, l.Acquire(ctx, "k", ModeExplicit))
}

func TestRelease_Missing(t *testing.T) {
	l := New(Config{Store: memstore.NewLockStore(), Purpose: "p"})
	assert.NoError(t, l.Release(context.Background(), "nothing"))
}
