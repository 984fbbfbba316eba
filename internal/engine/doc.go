// Package engine содержит логику обработки шаблонов workflow.
//
// Структура:
//   - template.go  : рендеринг Go templates по контексту run
//   - condition.go : вычисление условий branch (expr)
//   - validate.go  : валидация шаблонов и определений шагов
//   - loader.go    : разбор шаблонов из YAML/JSON
//   - errors.go    : ошибки
//
// Использование:
//
//	tmpl, err := engine.ParseTemplate(data, steps.DefaultRegistry())
//
//	ctx := engine.NewContext(run.Context)
//	ctx.AddStep("reply", "completed", step.Data, step.Context)
//	ok, err := engine.EvalCondition(`steps.reply.context.resume.answer == "yes"`, ctx.Env())
package engine
