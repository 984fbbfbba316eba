package engine

import (
	"strings"
	"testing"
)

func TestNewContext(t *testing.T) {
	ctx := NewContext(nil)
	if ctx.Data == nil || ctx.Steps == nil || ctx.Event == nil {
		t.Fatal("context maps should be initialized")
	}

	ctx = NewContext(map[string]any{"user_id": "u1"})
	if ctx.Data["user_id"] != "u1" {
		t.Error("Data should contain run context")
	}
}

func TestContext_AddStep(t *testing.T) {
	ctx := NewContext(nil)

	ctx.AddStep("reply", "completed", nil, map[string]any{"resume": map[string]any{"answer": "yes"}})

	sc := ctx.Steps["reply"]
	if sc == nil {
		t.Fatal("reply should be in Steps")
	}
	if sc.Status != "completed" {
		t.Errorf("expected completed, got %s", sc.Status)
	}
	if sc.Data == nil {
		t.Error("Data should not be nil even when passed nil")
	}

	env := ctx.Env()
	steps := env["steps"].(map[string]any)
	reply := steps["reply"].(map[string]any)
	if reply["status"] != "completed" {
		t.Errorf("env should expose step status, got %v", reply["status"])
	}
}

func TestRender_SimpleInput(t *testing.T) {
	ctx := NewContext(map[string]any{
		"name":  "test",
		"count": 42,
	})

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{
			name:     "string input",
			template: "Hello, {{ .Data.name }}!",
			expected: "Hello, test!",
		},
		{
			name:     "number input",
			template: "Count: {{ .Data.count }}",
			expected: "Count: 42",
		},
		{
			name:     "no template",
			template: "Plain text",
			expected: "Plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Render(tt.template, ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestRender_StepContext(t *testing.T) {
	ctx := NewContext(nil)
	ctx.AddStep("reply", "completed", map[string]any{"channel": "sms"}, map[string]any{
		"resume": map[string]any{"text": "hi", "count": 3},
	})
	ctx.Event["source"] = "webhook"

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{
			name:     "step status",
			template: "{{ .Steps.reply.Status }}",
			expected: "completed",
		},
		{
			name:     "nested resume payload",
			template: "{{ .Steps.reply.Context.resume.count }}",
			expected: "3",
		},
		{
			name:     "step data",
			template: "{{ .Steps.reply.Data.channel }}",
			expected: "sms",
		},
		{
			name:     "event",
			template: "{{ .Event.source }}",
			expected: "webhook",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Render(tt.template, ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestRender_TemplateFunctions(t *testing.T) {
	ctx := NewContext(map[string]any{
		"text": "Hello World",
		"list": []string{"a", "b", "c"},
	})

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{
			name:     "lower",
			template: "{{ lower .Data.text }}",
			expected: "hello world",
		},
		{
			name:     "upper",
			template: "{{ upper .Data.text }}",
			expected: "HELLO WORLD",
		},
		{
			name:     "contains",
			template: "{{ contains .Data.text \"World\" }}",
			expected: "true",
		},
		{
			name:     "hasPrefix",
			template: "{{ hasPrefix .Data.text \"Hello\" }}",
			expected: "true",
		},
		{
			name:     "default with value",
			template: "{{ default \"fallback\" .Data.text }}",
			expected: "Hello World",
		},
		{
			name:     "default with nil",
			template: "{{ default \"fallback\" .Data.missing }}",
			expected: "fallback",
		},
		{
			name:     "json",
			template: `{{ json .Data.list }}`,
			expected: `["a","b","c"]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Render(tt.template, ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestRender_InvalidTemplate(t *testing.T) {
	ctx := NewContext(nil)

	// Некорректный синтаксис
	_, err := Render("{{ .Invalid syntax", ctx)
	if err == nil {
		t.Error("expected error for invalid template")
	}
	if !strings.Contains(err.Error(), "template parse") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestRenderValue(t *testing.T) {
	ctx := NewContext(map[string]any{"name": "test"})

	tests := []struct {
		name     string
		value    any
		expected any
	}{
		{
			name:     "nil",
			value:    nil,
			expected: nil,
		},
		{
			name:     "string without template",
			value:    "plain",
			expected: "plain",
		},
		{
			name:     "string with template",
			value:    "Hello, {{ .Data.name }}",
			expected: "Hello, test",
		},
		{
			name:     "int",
			value:    42,
			expected: 42,
		},
		{
			name:     "bool",
			value:    true,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := RenderValue(tt.value, ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestRenderValue_Map(t *testing.T) {
	ctx := NewContext(map[string]any{
		"first_name": "Ada",
		"plan":       "pro",
	})

	value := map[string]any{
		"channel": "email",
		"subject": "Hi {{ .Data.first_name }}",
		"vars": map[string]any{
			"plan": "{{ upper .Data.plan }}",
		},
	}

	result, err := RenderValue(value, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resultMap, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("expected map, got %T", result)
	}
	if resultMap["subject"] != "Hi Ada" {
		t.Errorf("expected rendered subject, got %v", resultMap["subject"])
	}

	vars, ok := resultMap["vars"].(map[string]any)
	if !ok {
		t.Fatalf("expected vars to be map")
	}
	if vars["plan"] != "PRO" {
		t.Errorf("expected rendered plan, got %v", vars["plan"])
	}
}

func TestRenderValue_Slice(t *testing.T) {
	ctx := NewContext(map[string]any{"prefix": "item"})

	value := []any{
		"{{ .Data.prefix }}_1",
		"{{ .Data.prefix }}_2",
		42,
	}

	result, err := RenderValue(value, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resultSlice, ok := result.([]any)
	if !ok {
		t.Fatalf("expected slice, got %T", result)
	}

	if len(resultSlice) != 3 {
		t.Errorf("expected 3 items, got %d", len(resultSlice))
	}
	if resultSlice[0] != "item_1" {
		t.Errorf("expected item_1, got %v", resultSlice[0])
	}
	if resultSlice[1] != "item_2" {
		t.Errorf("expected item_2, got %v", resultSlice[1])
	}
	if resultSlice[2] != 42 {
		t.Errorf("expected 42, got %v", resultSlice[2])
	}
}

func TestRenderMap(t *testing.T) {
	ctx := NewContext(map[string]any{"email": "ada@example.com"})
	ctx.Event["locale"] = "de"

	override := map[string]any{
		"to":     "{{ .Data.email }}",
		"locale": "{{ default \"en\" .Event.locale }}",
	}

	result, err := RenderMap(override, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result["to"] != "ada@example.com" {
		t.Errorf("expected rendered recipient, got %v", result["to"])
	}
	if result["locale"] != "de" {
		t.Errorf("expected locale from event, got %v", result["locale"])
	}
}

func TestRenderMap_Nil(t *testing.T) {
	ctx := NewContext(nil)

	result, err := RenderMap(nil, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil {
		t.Error("result should not be nil")
	}
	if len(result) != 0 {
		t.Error("result should be empty")
	}
}
