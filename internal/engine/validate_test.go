package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/Relay/internal/domain"
)

func send(ref string) domain.DeclarativeStep {
	return domain.DeclarativeStep{
		Action: "send",
		Ref:    ref,
		Fields: map[string]any{"recipient": "u1", "template": "t"},
	}
}

func TestValidateSteps_Valid(t *testing.T) {
	defs := []domain.DeclarativeStep{
		send("welcome"),
		{Action: "wait", Ref: "reply", Fields: map[string]any{"timeout": "48h"}},
		{Action: "branch", Fields: map[string]any{"if": `steps.reply.context.resume.answer == "yes"`, "then": "thanks"}},
		{Action: "delay", Fields: map[string]any{"duration": "1h"}},
		send("thanks"),
	}

	if err := ValidateSteps(defs, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateSteps_Errors(t *testing.T) {
	tests := []struct {
		name string
		defs []domain.DeclarativeStep
		want error
	}{
		{
			name: "empty",
			defs: nil,
			want: ErrEmptySteps,
		},
		{
			name: "duplicate ref",
			defs: []domain.DeclarativeStep{send("a"), send("a")},
			want: ErrDuplicateRef,
		},
		{
			name: "missing required send field",
			defs: []domain.DeclarativeStep{{Action: "send", Fields: map[string]any{"recipient": "u1"}}},
			want: ErrInvalidStep,
		},
		{
			name: "unknown branch target",
			defs: []domain.DeclarativeStep{
				{Action: "branch", Fields: map[string]any{"if": "true", "then": "nowhere"}},
			},
			want: ErrUnknownBranchTarget,
		},
		{
			name: "backward branch",
			defs: []domain.DeclarativeStep{
				send("first"),
				{Action: "branch", Fields: map[string]any{"if": "true", "then": "first"}},
			},
			want: ErrBackwardBranch,
		},
		{
			name: "wait without ref or timeout",
			defs: []domain.DeclarativeStep{{Action: "wait"}},
			want: ErrUnreachableWait,
		},
		{
			name: "bad condition",
			defs: []domain.DeclarativeStep{{Action: "branch", Fields: map[string]any{"if": "data.x =="}}},
			want: ErrCondition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSteps(tt.defs, nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateSteps_ErrorHasPosition(t *testing.T) {
	err := ValidateSteps([]domain.DeclarativeStep{send("a"), send("a")}, nil)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if verr.Index != 1 || verr.Ref != "a" {
		t.Errorf("unexpected error context: %+v", verr)
	}
}

func TestParseTemplate(t *testing.T) {
	data := []byte(`
id: onboarding
name: Onboarding
steps:
  - action: send
    ref: welcome
    fields:
      recipient: "{{ .Data.user_id }}"
      template: welcome
  - action: delay
    fields:
      duration: 24h
  - action: wait
    ref: reply
`)

	tmpl, err := ParseTemplate(data, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tmpl.ID != "onboarding" || len(tmpl.Steps) != 3 {
		t.Errorf("unexpected template: %+v", tmpl)
	}
	if tmpl.Steps[1].Fields["duration"] != "24h" {
		t.Errorf("expected raw duration field, got %v", tmpl.Steps[1].Fields["duration"])
	}
}

func TestParseTemplate_MissingID(t *testing.T) {
	_, err := ParseTemplate([]byte("steps:\n  - action: wait\n    ref: r\n"), nil)
	if !errors.Is(err, ErrInvalidTemplate) {
		t.Errorf("expected ErrInvalidTemplate, got %v", err)
	}
}
