package delivery

import (
	"fmt"
	"maps"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/engine"
)

// Render подставляет контекст run в поля send-шага.
// Recipient, Template и Brand рендерятся как строки, Profile и Override рекурсивно.
func Render(action domain.SendAction, ctx *engine.Context) (Message, error) {
	recipient, err := engine.Render(action.Recipient, ctx)
	if err != nil {
		return Message{}, fmt.Errorf("render recipient: %w", err)
	}
	tmpl, err := engine.Render(action.Template, ctx)
	if err != nil {
		return Message{}, fmt.Errorf("render template: %w", err)
	}
	brand, err := engine.Render(action.Brand, ctx)
	if err != nil {
		return Message{}, fmt.Errorf("render brand: %w", err)
	}
	profile, err := renderOptional(action.Profile, ctx)
	if err != nil {
		return Message{}, fmt.Errorf("render profile: %w", err)
	}
	override, err := renderOptional(action.Override, ctx)
	if err != nil {
		return Message{}, fmt.Errorf("render override: %w", err)
	}

	return Message{
		Recipient: recipient,
		Template:  tmpl,
		Brand:     brand,
		Profile:   profile,
		Override:  override,
		Data:      maps.Clone(ctx.Data),
	}, nil
}

func renderOptional(m map[string]any, ctx *engine.Context) (map[string]any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return engine.RenderMap(m, ctx)
}
