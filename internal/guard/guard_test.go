package guard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Relay/internal/memstore"
	"github.com/shaiso/Relay/internal/repo"
)

var (
	_ Store = (*memstore.SequenceStore)(nil)
	_ Store = (*repo.SequenceRepo)(nil)
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newGuard(clock *fakeClock) (*Guard, *memstore.SequenceStore) {
	store := memstore.NewSequenceStore(clock.Now)
	return New(Config{Store: store, Clock: clock.Now}), store
}

func TestReserve_FirstTimeSucceeds(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	g, store := newGuard(clock)

	require.NoError(t, g.Reserve(context.Background(), "triggers.steps", "seq-1"))
	assert.True(t, store.Has("triggers.steps", "seq-1"))
}

func TestReserve_DuplicateReturnsAlreadyProcessed(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	g, _ := newGuard(clock)
	ctx := context.Background()

	require.NoError(t, g.Reserve(ctx, "c", "1"))
	assert.ErrorIs(t, g.Reserve(ctx, "c", "1"), ErrAlreadyProcessed)

	// Другой consumer с тем же номером обрабатывается независимо
	assert.NoError(t, g.Reserve(ctx, "other", "1"))
}

func TestRelease_AllowsReprocessing(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	g, _ := newGuard(clock)
	ctx := context.Background()

	require.NoError(t, g.Reserve(ctx, "c", "1"))
	require.NoError(t, g.Release(ctx, "c", "1"))
	assert.NoError(t, g.Reserve(ctx, "c", "1"))
}

func TestRelease_MissingIsNotAnError(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	g, _ := newGuard(clock)

	assert.NoError(t, g.Release(context.Background(), "c", "never-reserved"))
}

func TestReserve_AfterRetentionTreatedAsNew(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	g, _ := newGuard(clock)
	ctx := context.Background()

	require.NoError(t, g.Reserve(ctx, "c", "1"))

	clock.t = clock.t.Add(DefaultRetention - time.Minute)
	assert.ErrorIs(t, g.Reserve(ctx, "c", "1"), ErrAlreadyProcessed)

	clock.t = clock.t.Add(2 * time.Minute)
	assert.NoError(t, g.Reserve(ctx, "c", "1"))
}

func TestNew_Defaults(t *testing.T) {
	g := New(Config{Store: memstore.NewSequenceStore(nil)})
	assert.Equal(t, DefaultRetention, g.retention)
	assert.NotNil(t, g.logger)
	assert.NotNil(t, g.now)
}
