package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/guard"
	"github.com/shaiso/Relay/internal/memstore"
	"github.com/shaiso/Relay/internal/mq"
	"github.com/shaiso/Relay/internal/orchestrator"
	"github.com/shaiso/Relay/internal/refindex"
	"github.com/shaiso/Relay/internal/scheduler"
	"github.com/shaiso/Relay/internal/stream"
)

var (
	_ Engine      = (*orchestrator.Orchestrator)(nil)
	_ Waker       = (*scheduler.Scheduler)(nil)
	_ stream.Func = (*Router)(nil).Handle
)

type fakeEngine struct {
	invoked  []domain.InvokeRun
	enqueued []domain.EnqueueStep
	resumed  []domain.ResumeRef
	canceled []domain.CancelRuns
	err      error
}

func (f *fakeEngine) InvokeRun(_ context.Context, invoke domain.InvokeRun) (string, error) {
	f.invoked = append(f.invoked, invoke)
	return invoke.RunID, f.err
}

func (f *fakeEngine) EnqueueStep(_ context.Context, msg domain.EnqueueStep) error {
	f.enqueued = append(f.enqueued, msg)
	return f.err
}

func (f *fakeEngine) ResumeByRef(_ context.Context, tenantID, ref string, payload map[string]any) error {
	f.resumed = append(f.resumed, domain.ResumeRef{TenantID: tenantID, Ref: ref, Payload: payload})
	return f.err
}

func (f *fakeEngine) CancelRuns(_ context.Context, tenantID, token string) (int, error) {
	f.canceled = append(f.canceled, domain.CancelRuns{TenantID: tenantID, Token: token})
	return 1, f.err
}

type fakeWaker struct {
	wakes []domain.TimerWake
	err   error
}

func (f *fakeWaker) HandleWake(_ context.Context, wake domain.TimerWake) error {
	f.wakes = append(f.wakes, wake)
	return f.err
}

func record(t *testing.T, id string, msgType mq.MessageType, payload any) stream.Record {
	t.Helper()
	body, err := json.Marshal(mq.Message{ID: id, Type: msgType, Payload: payload, Timestamp: time.Now()})
	require.NoError(t, err)
	return stream.Record{ItemID: id, ConsumerID: "triggers.test", SequenceNumber: id, Body: body}
}

func newRouter() (*Router, *fakeEngine, *fakeWaker) {
	e := &fakeEngine{}
	w := &fakeWaker{}
	return NewRouter(Config{Engine: e, Waker: w}), e, w
}

func TestRouter_DispatchesByType(t *testing.T) {
	r, e, w := newRouter()
	ctx := context.Background()

	require.NoError(t, r.Handle(ctx, record(t, "1", mq.MessageTypeInvokeRun,
		domain.InvokeRun{TenantID: "t1", RunID: "run-1", TemplateID: "welcome"})))
	require.NoError(t, r.Handle(ctx, record(t, "2", mq.MessageTypeEnqueueStep,
		domain.EnqueueStep{TenantID: "t1", RunID: "run-1", StepID: "s1"})))
	require.NoError(t, r.Handle(ctx, record(t, "3", mq.MessageTypeTimerWake,
		domain.TimerWake{Timer: domain.Timer{TenantID: "t1", ID: "s1", Kind: domain.TimerDelay}, Actor: domain.ActorSweeper})))
	require.NoError(t, r.Handle(ctx, record(t, "4", mq.MessageTypeResumeRef,
		domain.ResumeRef{TenantID: "t1", Ref: "confirm", Payload: map[string]any{"ok": true}})))
	require.NoError(t, r.Handle(ctx, record(t, "5", mq.MessageTypeCancelRuns,
		domain.CancelRuns{TenantID: "t1", Token: "order-1"})))

	require.Len(t, e.invoked, 1)
	assert.Equal(t, "welcome", e.invoked[0].TemplateID)
	require.Len(t, e.enqueued, 1)
	assert.Equal(t, "s1", e.enqueued[0].StepID)
	require.Len(t, w.wakes, 1)
	assert.Equal(t, domain.ActorSweeper, w.wakes[0].Actor)
	require.Len(t, e.resumed, 1)
	assert.Equal(t, true, e.resumed[0].Payload["ok"])
	require.Len(t, e.canceled, 1)
	assert.Equal(t, "order-1", e.canceled[0].Token)
}

func TestRouter_AbsorbsExpectedErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		msgType mq.MessageType
		payload any
		err     error
	}{
		{"template not found", mq.MessageTypeInvokeRun, domain.InvokeRun{TenantID: "t1"}, orchestrator.ErrTemplateNotFound},
		{"invalid steps", mq.MessageTypeInvokeRun, domain.InvokeRun{TenantID: "t1"}, orchestrator.ErrInvalidSteps},
		{"stale step", mq.MessageTypeEnqueueStep, domain.EnqueueStep{TenantID: "t1"}, orchestrator.ErrStepNotFound},
		{"unknown ref", mq.MessageTypeResumeRef, domain.ResumeRef{TenantID: "t1", Ref: "x"}, refindex.ErrNotFound},
		{"empty cancel token", mq.MessageTypeCancelRuns, domain.CancelRuns{TenantID: "t1"}, orchestrator.ErrEmptyCancelationToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, e, _ := newRouter()
			e.err = tt.err
			assert.NoError(t, r.Handle(ctx, record(t, "1", tt.msgType, tt.payload)))
		})
	}
}

func TestRouter_ReturnsTransientErrors(t *testing.T) {
	r, e, w := newRouter()
	ctx := context.Background()
	boom := errors.New("connection reset")

	e.err = boom
	err := r.Handle(ctx, record(t, "1", mq.MessageTypeEnqueueStep, domain.EnqueueStep{TenantID: "t1"}))
	assert.ErrorIs(t, err, boom)

	w.err = boom
	err = r.Handle(ctx, record(t, "2", mq.MessageTypeTimerWake, domain.TimerWake{}))
	assert.ErrorIs(t, err, boom)
}

func TestRouter_UnknownTypeSkipped(t *testing.T) {
	r, e, w := newRouter()

	assert.NoError(t, r.Handle(context.Background(), record(t, "1", "audit.log", map[string]any{})))
	assert.NoError(t, r.Handle(context.Background(), stream.Record{ItemID: "2", Body: []byte("garbage")}))
	assert.Empty(t, e.invoked)
	assert.Empty(t, w.wakes)
}

func TestRouter_WithStreamHandler(t *testing.T) {
	r, e, _ := newRouter()
	store := memstore.NewSequenceStore(nil)
	h := stream.New(stream.Config{
		Guard: guard.New(guard.Config{Store: store}),
		Func:  r.Handle,
	})
	ctx := context.Background()

	step := domain.EnqueueStep{TenantID: "t1", RunID: "r1", StepID: "s1"}
	id := mq.EnqueueStepID(step)

	e.err = errors.New("database unavailable")
	res := h.Handle(ctx, []stream.Record{record(t, id, mq.MessageTypeEnqueueStep, step)})
	require.Equal(t, []string{id}, res.FailedItemIDs)

	// Повторная доставка после восстановления
	e.err = nil
	res = h.Handle(ctx, []stream.Record{record(t, id, mq.MessageTypeEnqueueStep, step)})
	assert.False(t, res.Failed())

	// Дубликат отсекается guard
	res = h.Handle(ctx, []stream.Record{record(t, id, mq.MessageTypeEnqueueStep, step)})
	assert.False(t, res.Failed())
	assert.Len(t, e.enqueued, 2)
}
