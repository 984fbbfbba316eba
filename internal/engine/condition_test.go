package engine

import (
	"errors"
	"testing"
)

func TestEvalCondition(t *testing.T) {
	ctx := NewContext(map[string]any{
		"plan":  "pro",
		"score": 8,
	})
	ctx.AddStep("reply", "completed", nil, map[string]any{
		"resume": map[string]any{"answer": "yes"},
	})
	env := ctx.Env()

	tests := []struct {
		name      string
		condition string
		expected  bool
	}{
		{"empty condition", "", true},
		{"string equality", `data.plan == "pro"`, true},
		{"comparison false", "data.score > 10", false},
		{"resume payload", `steps.reply.context.resume.answer == "yes"`, true},
		{"logical and", `data.score > 5 && data.plan == "pro"`, true},
		{"undefined is false", "data.missing", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvalCondition(tt.condition, env)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestEvalCondition_NonBool(t *testing.T) {
	env := NewContext(map[string]any{"plan": "pro"}).Env()

	_, err := EvalCondition("data.plan", env)
	if !errors.Is(err, ErrCondition) {
		t.Errorf("expected ErrCondition, got %v", err)
	}
}

func TestCompileCondition(t *testing.T) {
	if err := CompileCondition(`data.plan == "pro"`); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := CompileCondition("data.plan =="); !errors.Is(err, ErrCondition) {
		t.Errorf("expected ErrCondition, got %v", err)
	}
}
