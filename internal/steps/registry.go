package steps

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/shaiso/Relay/internal/domain"
)

// Decoder собирает вариант действия из полей определения шага.
type Decoder func(fields map[string]any) (domain.Action, error)

// Registry: реестр декодеров действий по тегу.
//
// Потокобезопасен.
type Registry struct {
	mu       sync.RWMutex
	decoders map[domain.ActionType]Decoder
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		decoders: make(map[domain.ActionType]Decoder),
	}
}

// DefaultRegistry создаёт реестр со всеми стандартными действиями.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(domain.ActionSend, decodeInto[domain.SendAction])
	r.Register(domain.ActionDelay, decodeInto[domain.DelayAction])
	r.Register(domain.ActionWait, decodeInto[domain.WaitAction])
	r.Register(domain.ActionBranch, decodeInto[domain.BranchAction])

	return r
}

// Register регистрирует декодер. Существующий декодер перезаписывается.
func (r *Registry) Register(t domain.ActionType, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[t] = d
}

// Decode собирает действие по тегу. Неизвестный тег: ErrUnknownAction.
func (r *Registry) Decode(action string, fields map[string]any) (domain.Action, error) {
	r.mu.RLock()
	d, ok := r.decoders[domain.ActionType(action)]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	a, err := d(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFields, action, err)
	}
	return a, nil
}

// Has проверяет, зарегистрировано ли действие.
func (r *Registry) Has(action string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.decoders[domain.ActionType(action)]
	return ok
}

// Types возвращает отсортированный список зарегистрированных действий.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.decoders))
	for t := range r.decoders {
		types = append(types, string(t))
	}
	sort.Strings(types)
	return types
}

// decodeInto декодирует свободную map в конкретный вариант действия.
// Длительности принимаются строкой ("5m") или числом секунд,
// моменты времени: строкой RFC 3339.
func decodeInto[T domain.Action](fields map[string]any) (domain.Action, error) {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           &out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			secondsToDurationHook,
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(fields); err != nil {
		return nil, err
	}
	return out, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// secondsToDurationHook: число без единиц в поле длительности означает секунды.
func secondsToDurationHook(from, to reflect.Type, data any) (any, error) {
	if to != durationType || from == durationType {
		return data, nil
	}

	v := reflect.ValueOf(data)
	switch from.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return time.Duration(v.Int()) * time.Second, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return time.Duration(v.Uint()) * time.Second, nil
	case reflect.Float32, reflect.Float64:
		return time.Duration(v.Float() * float64(time.Second)), nil
	}
	return data, nil
}
