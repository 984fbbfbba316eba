package steps

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/Relay/internal/domain"
)

// Registry Tests

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	// Пустой реестр
	if len(r.Types()) != 0 {
		t.Errorf("expected empty registry")
	}

	r.Register(domain.ActionWait, decodeInto[domain.WaitAction])
	if !r.Has("wait") {
		t.Error("should have wait")
	}
	if r.Has("send") {
		t.Error("should not have send")
	}

	_, err := r.Decode("send", nil)
	if !errors.Is(err, ErrUnknownAction) {
		t.Errorf("expected ErrUnknownAction, got %v", err)
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	want := []string{"branch", "delay", "send", "wait"}
	got := r.Types()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %s at %d, got %s", want[i], i, got[i])
		}
	}
}

func TestRegistry_DecodeDelay(t *testing.T) {
	r := DefaultRegistry()

	a, err := r.Decode("delay", map[string]any{"duration": "5m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	delay, ok := a.(domain.DelayAction)
	if !ok {
		t.Fatalf("expected DelayAction, got %T", a)
	}
	if delay.Duration != 5*time.Minute {
		t.Errorf("expected 5m, got %s", delay.Duration)
	}

	a, err = r.Decode("delay", map[string]any{"until": "2026-03-01T10:00:00Z"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	delay = a.(domain.DelayAction)
	if delay.Until == nil || !delay.Until.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected until: %v", delay.Until)
	}
}

func TestRegistry_DecodeNumericDuration(t *testing.T) {
	r := DefaultRegistry()

	// JSON отдаёт числа как float64, YAML как int
	for _, v := range []any{5, float64(5), int64(5)} {
		a, err := r.Decode("delay", map[string]any{"duration": v})
		if err != nil {
			t.Fatalf("decode %T: unexpected error: %v", v, err)
		}
		if d := a.(domain.DelayAction).Duration; d != 5*time.Second {
			t.Errorf("%T: expected 5s, got %s", v, d)
		}
	}

	a, err := r.Decode("wait", map[string]any{"timeout": 1.5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d := a.(domain.WaitAction).Timeout; d != 1500*time.Millisecond {
		t.Errorf("expected 1.5s, got %s", d)
	}
}

func TestRegistry_DecodeSendAndBranch(t *testing.T) {
	r := DefaultRegistry()

	a, err := r.Decode("send", map[string]any{
		"recipient": "user-1",
		"template":  "welcome",
		"override":  map[string]any{"channel": "email"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	send := a.(domain.SendAction)
	if send.Recipient != "user-1" || send.Template != "welcome" {
		t.Errorf("unexpected send action: %+v", send)
	}
	if send.Override["channel"] != "email" {
		t.Errorf("override not decoded: %+v", send.Override)
	}

	a, err = r.Decode("branch", map[string]any{"if": "data.vip", "then": "vip"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b := a.(domain.BranchAction); b.If != "data.vip" || b.Then != "vip" || b.Else != "" {
		t.Errorf("unexpected branch action: %+v", b)
	}
}

func TestRegistry_DecodeRejectsUnknownFields(t *testing.T) {
	r := DefaultRegistry()

	_, err := r.Decode("wait", map[string]any{"recipient": "x"})
	if !errors.Is(err, ErrInvalidFields) {
		t.Errorf("expected ErrInvalidFields, got %v", err)
	}
}

// Factory Tests

func newTestFactory() *Factory {
	n := 0
	return NewFactory(FactoryConfig{
		TenantID: "tenant-1",
		Clock:    func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
		NewID: func() string {
			n++
			return []string{"s-1", "s-2", "s-3"}[n-1]
		},
	})
}

func TestFactory_Create(t *testing.T) {
	f := newTestFactory()
	expiry := int64(1769904000)

	step, err := f.Create("run-1", domain.DeclarativeStep{
		Action:            "send",
		Ref:               "welcome",
		IdempotencyKey:    "idem-1",
		IdempotencyExpiry: &expiry,
		Fields:            map[string]any{"recipient": "u1", "template": "welcome"},
		Data:              map[string]any{"campaign": "spring"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Генерируемые поля
	if step.StepID != "s-1" {
		t.Errorf("expected generated step id, got %q", step.StepID)
	}
	if step.TenantID != "tenant-1" || step.RunID != "run-1" {
		t.Errorf("unexpected ownership: %s/%s", step.TenantID, step.RunID)
	}
	if step.Status != domain.StatusProcessing {
		t.Errorf("expected processing, got %s", step.Status)
	}
	if !step.Created.Equal(step.Updated) {
		t.Errorf("created and updated must match: %v vs %v", step.Created, step.Updated)
	}

	// Переносимые без изменений поля
	if step.IdempotencyKey != "idem-1" {
		t.Errorf("idempotency key must pass through, got %q", step.IdempotencyKey)
	}
	if step.IdempotencyExpiry == nil || *step.IdempotencyExpiry != expiry {
		t.Errorf("idempotency expiry must pass through, got %v", step.IdempotencyExpiry)
	}
	if step.Ref != "welcome" {
		t.Errorf("ref must pass through, got %q", step.Ref)
	}
	if step.Data["campaign"] != "spring" {
		t.Errorf("data must pass through, got %v", step.Data)
	}
	if step.ActionType() != domain.ActionSend {
		t.Errorf("expected send action, got %s", step.ActionType())
	}
}

func TestFactory_CreatePassesThroughInvokePayload(t *testing.T) {
	payload := []byte(`{
		"tenant_id": "tenant-1",
		"steps": [{
			"action": "send",
			"idempotency_key": "k",
			"idempotency_expiry": 123,
			"fields": {"recipient": "r", "template": "t"}
		}]
	}`)

	var invoke domain.InvokeRun
	if err := json.Unmarshal(payload, &invoke); err != nil {
		t.Fatalf("unmarshal invoke: %v", err)
	}

	step, err := newTestFactory().Create("run-1", invoke.Steps[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if step.IdempotencyKey != "k" {
		t.Errorf("expected idempotency key k, got %q", step.IdempotencyKey)
	}
	if step.IdempotencyExpiry == nil || *step.IdempotencyExpiry != 123 {
		t.Errorf("expected idempotency expiry 123, got %v", step.IdempotencyExpiry)
	}
	if step.Status != domain.StatusProcessing || step.StepID == "" {
		t.Errorf("unexpected generated fields: status=%s id=%q", step.Status, step.StepID)
	}

	out, err := json.Marshal(step)
	if err != nil {
		t.Fatalf("marshal step: %v", err)
	}
	if !strings.Contains(string(out), `"idempotency_expiry":123`) {
		t.Errorf("expected expiry to stay numeric, got %s", out)
	}
}

func TestFactory_CreateUnknownAction(t *testing.T) {
	f := newTestFactory()

	_, err := f.Create("run-1", domain.DeclarativeStep{Action: "teleport"})
	if !errors.Is(err, ErrUnknownAction) {
		t.Errorf("expected ErrUnknownAction, got %v", err)
	}
}

func TestFactory_CreateAllAssignsPositions(t *testing.T) {
	f := newTestFactory()

	steps, err := f.CreateAll("run-1", []domain.DeclarativeStep{
		{Action: "send", Fields: map[string]any{"recipient": "u1", "template": "a"}},
		{Action: "delay", Fields: map[string]any{"duration": "1h"}},
		{Action: "wait", Ref: "reply"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, s := range steps {
		if s.Position != i {
			t.Errorf("step %d has position %d", i, s.Position)
		}
	}
	if steps[2].StepID != "s-3" {
		t.Errorf("expected s-3, got %s", steps[2].StepID)
	}
}
