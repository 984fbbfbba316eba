package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

// Context: контекст рендеринга шаблонов и вычисления условий branch.
//
// В Go templates доступны:
//   - {{ .Data.field }}                : контекст run
//   - {{ .Steps.ref.Status }}          : статус шага с ref
//   - {{ .Steps.ref.Context.resume }}  : данные, накопленные шагом
//   - {{ .Event.field }}               : payload resume-события текущего шага
type Context struct {
	Data  map[string]any          `json:"data"`
	Steps map[string]*StepContext `json:"steps"`
	Event map[string]any          `json:"event"`
}

// StepContext: состояние шага, доступное шаблонам по ref.
type StepContext struct {
	Status  string         `json:"status"`
	Data    map[string]any `json:"data"`
	Context map[string]any `json:"context"`
}

// NewContext создаёт новый контекст с данными run.
func NewContext(data map[string]any) *Context {
	if data == nil {
		data = make(map[string]any)
	}
	return &Context{
		Data:  data,
		Steps: make(map[string]*StepContext),
		Event: make(map[string]any),
	}
}

// AddStep добавляет состояние шага в контекст.
func (c *Context) AddStep(ref, status string, data, stepCtx map[string]any) {
	if data == nil {
		data = make(map[string]any)
	}
	if stepCtx == nil {
		stepCtx = make(map[string]any)
	}
	c.Steps[ref] = &StepContext{
		Status:  status,
		Data:    data,
		Context: stepCtx,
	}
}

// Env возвращает окружение для выражений expr:
// data, steps (по ref) и event.
func (c *Context) Env() map[string]any {
	steps := make(map[string]any, len(c.Steps))
	for ref, sc := range c.Steps {
		steps[ref] = map[string]any{
			"status":  sc.Status,
			"data":    sc.Data,
			"context": sc.Context,
		}
	}
	return map[string]any{
		"data":  c.Data,
		"steps": steps,
		"event": c.Event,
	}
}

// templateFuncs: дополнительные функции для шаблонов.
var templateFuncs = template.FuncMap{
	// json: сериализует значение в JSON строку
	"json": func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return string(b)
	},

	// default: возвращает значение по умолчанию, если первый аргумент пустой
	"default": func(def, val any) any {
		if val == nil {
			return def
		}
		if s, ok := val.(string); ok && s == "" {
			return def
		}
		return val
	},

	// coalesce: возвращает первое непустое значение
	"coalesce": func(values ...any) any {
		for _, v := range values {
			if v != nil {
				if s, ok := v.(string); ok && s == "" {
					continue
				}
				return v
			}
		}
		return nil
	},

	// toJSON: алиас для json
	"toJSON": func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	},

	// fromJSON: парсит JSON строку
	"fromJSON": func(s string) any {
		var result any
		if err := json.Unmarshal([]byte(s), &result); err != nil {
			return nil
		}
		return result
	},

	// join: объединяет слайс строк
	"join": func(sep string, items []string) string {
		return strings.Join(items, sep)
	},

	// split: разбивает строку на слайс
	"split": func(sep, s string) []string {
		return strings.Split(s, sep)
	},

	// contains: проверяет, содержит ли строка подстроку
	"contains": strings.Contains,

	// hasPrefix: проверяет префикс строки
	"hasPrefix": strings.HasPrefix,

	// hasSuffix: проверяет суффикс строки
	"hasSuffix": strings.HasSuffix,

	// lower: приводит к нижнему регистру
	"lower": strings.ToLower,

	// upper: приводит к верхнему регистру
	"upper": strings.ToUpper,

	// trim: удаляет пробелы по краям
	"trim": strings.TrimSpace,

	// replace: заменяет подстроку
	"replace": strings.ReplaceAll,
}

// Render рендерит строковый шаблон с контекстом.
//
// Шаблон может содержать Go template выражения:
//
//	{{ .Data.name }}
//	{{ .Steps.reply.Context.resume.text }}
//	{{ if .Data.vip }}...{{ end }}
func Render(tmpl string, ctx *Context) (string, error) {
	// Проверяем, содержит ли строка шаблонные выражения
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("").Funcs(templateFuncs).Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}

	return buf.String(), nil
}

// RenderValue рендерит произвольное значение.
// Рекурсивно обрабатывает map и slice.
func RenderValue(value any, ctx *Context) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch v := value.(type) {
	case string:
		return Render(v, ctx)

	case map[string]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			rendered, err := RenderValue(val, ctx)
			if err != nil {
				return nil, err
			}
			result[key] = rendered
		}
		return result, nil

	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			rendered, err := RenderValue(val, ctx)
			if err != nil {
				return nil, err
			}
			result[i] = rendered
		}
		return result, nil

	case map[string]string:
		result := make(map[string]string, len(v))
		for key, val := range v {
			rendered, err := Render(val, ctx)
			if err != nil {
				return nil, err
			}
			result[key] = rendered
		}
		return result, nil

	case []string:
		result := make([]string, len(v))
		for i, val := range v {
			rendered, err := Render(val, ctx)
			if err != nil {
				return nil, err
			}
			result[i] = rendered
		}
		return result, nil

	default:
		// Для остальных типов (int, float, bool) возвращаем как есть
		return value, nil
	}
}

// RenderMap рендерит map (profile, override шага send).
// Это обёртка над RenderValue для map[string]any.
func RenderMap(config map[string]any, ctx *Context) (map[string]any, error) {
	if config == nil {
		return make(map[string]any), nil
	}

	rendered, err := RenderValue(config, ctx)
	if err != nil {
		return nil, err
	}

	result, ok := rendered.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected map, got %T", ErrTemplateRender, rendered)
	}

	return result, nil
}
