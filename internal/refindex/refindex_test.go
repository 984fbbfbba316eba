package refindex

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/memstore"
	"github.com/shaiso/Relay/internal/repo"
)

var (
	_ Store = (*memstore.RefStore)(nil)
	_ Store = (*repo.RefRepo)(nil)
)

func TestCreateRefs_SkipsEmptyRefs(t *testing.T) {
	store := memstore.NewRefStore()
	idx := New(Config{Store: store})
	ctx := context.Background()

	steps := []*domain.Step{
		{TenantID: "t1", RunID: "r1", StepID: "s1", Ref: "welcome"},
		{TenantID: "t1", RunID: "r1", StepID: "s2"},
		{TenantID: "t1", RunID: "r1", StepID: "s3", Ref: "reply"},
	}
	require.NoError(t, idx.CreateRefs(ctx, steps))
	assert.Equal(t, 2, store.Len())

	runID, stepID, err := idx.Lookup(ctx, "t1", "reply")
	require.NoError(t, err)
	assert.Equal(t, "r1", runID)
	assert.Equal(t, "s3", stepID)
}

func TestLookup_Unknown(t *testing.T) {
	idx := New(Config{Store: memstore.NewRefStore()})

	_, _, err := idx.Lookup(context.Background(), "t1", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookup_IsTenantScoped(t *testing.T) {
	idx := New(Config{Store: memstore.NewRefStore()})
	ctx := context.Background()

	require.NoError(t, idx.CreateRefs(ctx, []*domain.Step{
		{TenantID: "t1", RunID: "r1", StepID: "s1", Ref: "welcome"},
	}))

	_, _, err := idx.Lookup(ctx, "t2", "welcome")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookup_ReturnsLatestRun(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := memstore.NewRefStore()
	idx := New(Config{Store: store, Clock: func() time.Time { return now }})
	ctx := context.Background()

	require.NoError(t, idx.CreateRefs(ctx, []*domain.Step{
		{TenantID: "t1", RunID: "old", StepID: "s1", Ref: "reply"},
	}))
	now = now.Add(time.Hour)
	require.NoError(t, idx.CreateRefs(ctx, []*domain.Step{
		{TenantID: "t1", RunID: "new", StepID: "s9", Ref: "reply"},
	}))

	runID, stepID, err := idx.Lookup(ctx, "t1", "reply")
	require.NoError(t, err)
	assert.Equal(t, "new", runID)
	assert.Equal(t, "s9", stepID)
}

func TestCreateRefs_Idempotent(t *testing.T) {
	store := memstore.NewRefStore()
	idx := New(Config{Store: store})
	ctx := context.Background()
	steps := []*domain.Step{{TenantID: "t1", RunID: "r1", StepID: "s1", Ref: "welcome"}}

	require.NoError(t, idx.CreateRefs(ctx, steps))
	require.NoError(t, idx.CreateRefs(ctx, steps))
	assert.Equal(t, 1, store.Len())
}
