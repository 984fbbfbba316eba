// Package steps строит шаги run из декларативных определений.
//
// # Registry
//
// Registry хранит декодеры действий по тегу:
//
//	registry := steps.DefaultRegistry()  // send, delay, wait, branch
//	action, err := registry.Decode("delay", map[string]any{"duration": "5m"})
//	if errors.Is(err, steps.ErrUnknownAction) {
//	    // неизвестный тег
//	}
//
// Поля декодируются через mapstructure: длительности строкой ("5m"),
// моменты времени строкой RFC 3339. Лишние поля считаются ошибкой.
//
// # Factory
//
// Factory.Create генерирует StepID (uuid), Created/Updated, Status=processing
// и TenantID. Все остальные поля определения переносятся без изменений:
//
//	f := steps.NewFactory(steps.FactoryConfig{TenantID: "t1"})
//	step, err := f.Create(runID, domain.DeclarativeStep{
//	    Action: "send",
//	    Ref:    "welcome",
//	    Fields: map[string]any{"recipient": "u1", "template": "welcome"},
//	})
//
// # Файлы пакета
//
//   - registry.go : Registry и декодеры действий
//   - factory.go  : Factory
//   - errors.go   : ошибки
package steps
