package stream

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Relay/internal/guard"
	"github.com/shaiso/Relay/internal/memstore"
)

var _ Reserver = (*guard.Guard)(nil)

func newHandler(fn Func) (*Handler, *memstore.SequenceStore) {
	store := memstore.NewSequenceStore(nil)
	g := guard.New(guard.Config{Store: store})
	return New(Config{Guard: g, Func: fn}), store
}

func rec(item, seq string) Record {
	return Record{ItemID: item, ConsumerID: "triggers.steps", SequenceNumber: seq, Body: []byte(`{}`)}
}

func TestHandle_AllSucceed(t *testing.T) {
	var calls []string
	h, store := newHandler(func(_ context.Context, r Record) error {
		calls = append(calls, r.ItemID)
		return nil
	})

	res := h.Handle(context.Background(), []Record{rec("a", "1"), rec("b", "2")})

	assert.False(t, res.Failed())
	assert.Equal(t, []string{"a", "b"}, calls)
	// Резервирование сохраняется после успеха
	assert.True(t, store.Has("triggers.steps", "1"))
	assert.True(t, store.Has("triggers.steps", "2"))
}

func TestHandle_DuplicateIsSkipped(t *testing.T) {
	var calls int
	h, _ := newHandler(func(context.Context, Record) error {
		calls++
		return nil
	})
	ctx := context.Background()

	res := h.Handle(ctx, []Record{rec("a", "1")})
	require.False(t, res.Failed())

	res = h.Handle(ctx, []Record{rec("a-redelivered", "1")})
	assert.False(t, res.Failed())
	assert.Equal(t, 1, calls)
}

func TestHandle_PartialBatchFailure(t *testing.T) {
	attempts := map[string]int{}
	h, store := newHandler(func(_ context.Context, r Record) error {
		attempts[r.ItemID]++
		if r.ItemID == "b" && attempts["b"] == 1 {
			return errors.New("delivery unavailable")
		}
		return nil
	})
	ctx := context.Background()
	batch := []Record{rec("a", "1"), rec("b", "2"), rec("c", "3")}

	res := h.Handle(ctx, batch)
	assert.Equal(t, []string{"b"}, res.FailedItemIDs)
	assert.False(t, store.Has("triggers.steps", "2"))

	// Брокер доставляет батч повторно: обработан только упавший элемент
	res = h.Handle(ctx, batch)
	assert.False(t, res.Failed())
	assert.Equal(t, map[string]int{"a": 1, "b": 2, "c": 1}, attempts)
}

func TestHandle_KeepReservation(t *testing.T) {
	var calls int
	h, store := newHandler(func(context.Context, Record) error {
		calls++
		return KeepReservation(errors.New("sent but failed to persist"))
	})
	ctx := context.Background()

	res := h.Handle(ctx, []Record{rec("a", "1")})
	assert.Equal(t, []string{"a"}, res.FailedItemIDs)
	assert.True(t, store.Has("triggers.steps", "1"))

	res = h.Handle(ctx, []Record{rec("a", "1")})
	assert.False(t, res.Failed())
	assert.Equal(t, 1, calls)
}

func TestKeepReservation_Unwraps(t *testing.T) {
	base := errors.New("boom")
	err := KeepReservation(base)

	assert.ErrorIs(t, err, base)
	assert.True(t, keepsReservation(err))
	assert.False(t, keepsReservation(base))
	assert.NoError(t, KeepReservation(nil))
}

type failingReserver struct{}

func (failingReserver) Reserve(context.Context, string, string) error {
	return errors.New("store unavailable")
}

func (failingReserver) Release(context.Context, string, string) error { return nil }

func TestHandle_ReserveErrorFailsItem(t *testing.T) {
	var calls int
	h := New(Config{Guard: failingReserver{}, Func: func(context.Context, Record) error {
		calls++
		return nil
	}})

	res := h.Handle(context.Background(), []Record{rec("a", "1")})
	assert.Equal(t, []string{"a"}, res.FailedItemIDs)
	assert.Zero(t, calls)
}
