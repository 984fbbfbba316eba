package engine

import (
	"fmt"

	"github.com/expr-lang/expr"
)

// EvalCondition вычисляет условие branch в окружении env (см. Context.Env).
//
// Примеры выражений:
//
//	data.plan == "pro"
//	steps.reply.context.resume.answer == "yes"
//	event.score > 7 && data.vip
//
// Неопределённые переменные дают nil, nil-результат считается false.
func EvalCondition(expression string, env map[string]any) (bool, error) {
	if expression == "" {
		return true, nil
	}

	program, err := expr.Compile(expression, expr.Env(env), expr.AllowUndefinedVariables())
	if err != nil {
		return false, fmt.Errorf("%w: compile %q: %v", ErrCondition, expression, err)
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("%w: run %q: %v", ErrCondition, expression, err)
	}

	switch v := out.(type) {
	case bool:
		return v, nil
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q returned %T, expected bool", ErrCondition, expression, out)
	}
}

// CompileCondition проверяет синтаксис условия без данных run.
func CompileCondition(expression string) error {
	_, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return fmt.Errorf("%w: compile %q: %v", ErrCondition, expression, err)
	}
	return nil
}
