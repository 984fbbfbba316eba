package domain

import (
	"encoding/json"
	"testing"
	"time"
)

// --- Timer Tests ---

func TestTimer_Expired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Minute)

	tests := []struct {
		name  string
		timer Timer
		want  bool
	}{
		{"ttl in past", Timer{Kind: TimerDelay, TTL: &past}, true},
		{"ttl equals now", Timer{Kind: TimerDelay, TTL: &now}, true},
		{"ttl in future", Timer{Kind: TimerDelay, TTL: &future}, false},
		{"legacy delay without ttl", Timer{Kind: TimerDelay}, true},
		{"disabled schedule", Timer{Kind: TimerSchedule}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.timer.Expired(now); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}

// --- Run Tests ---

func TestRun_Finish(t *testing.T) {
	now := time.Now().UTC()

	run := &Run{Status: StatusProcessing}
	if run.IsFinished() {
		t.Fatal("processing run should not be finished")
	}

	run.MarkFailed("delivery rejected", now)
	if !run.IsFinished() || run.Status != StatusFailed {
		t.Errorf("expected failed run, got %s", run.Status)
	}
	if run.Error != "delivery rejected" {
		t.Errorf("Error = %q", run.Error)
	}
	if run.FinishedAt == nil || !run.FinishedAt.Equal(now) {
		t.Errorf("FinishedAt = %v, want %v", run.FinishedAt, now)
	}
}

// --- Step Tests ---

func TestStep_JSONKeepsAction(t *testing.T) {
	step := Step{
		TenantID: "t1",
		RunID:    "r1",
		StepID:   "s1",
		Action:   BranchAction{If: "Data.vip", Then: "vip"},
		Status:   StatusProcessing,
	}

	data, err := json.Marshal(step)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var got Step
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}

	branch, ok := got.Action.(BranchAction)
	if !ok {
		t.Fatalf("Action = %T, want BranchAction", got.Action)
	}
	if branch.If != "Data.vip" || branch.Then != "vip" {
		t.Errorf("unexpected branch: %+v", branch)
	}
	if got.ActionType() != ActionBranch {
		t.Errorf("ActionType() = %q", got.ActionType())
	}
}

func TestStep_Resumed(t *testing.T) {
	var step Step
	if step.Resumed() {
		t.Fatal("new step should not be resumed")
	}

	step.SetContext(ContextResume, map[string]any{"answer": "yes"})
	if !step.Resumed() {
		t.Error("step with resume payload should be resumed")
	}
}

// --- Action Tests ---

func TestDelayAction_WakeAt(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if got := (DelayAction{Duration: time.Hour}).WakeAt(now); !got.Equal(now.Add(time.Hour)) {
		t.Errorf("WakeAt(duration) = %v", got)
	}

	until := now.Add(48 * time.Hour)
	if got := (DelayAction{Until: &until}).WakeAt(now); !got.Equal(until) {
		t.Errorf("WakeAt(until) = %v", got)
	}
}

func TestUnmarshalAction_Unknown(t *testing.T) {
	if _, err := UnmarshalAction("teleport", []byte(`{}`)); err == nil {
		t.Error("expected error for unknown action")
	}
}

func TestLockRecord_Held(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)

	if !(&LockRecord{}).Held(now) {
		t.Error("explicit lock should be held")
	}
	if (&LockRecord{TTL: &past}).Held(now) {
		t.Error("expired auto lock should not be held")
	}
}
