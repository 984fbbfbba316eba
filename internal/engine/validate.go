package engine

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/steps"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateTemplate выполняет полную валидацию шаблона workflow.
func ValidateTemplate(tmpl *domain.WorkflowTemplate, registry *steps.Registry) error {
	if tmpl == nil {
		return ErrEmptySteps
	}
	if err := validate.Struct(tmpl); err != nil {
		if len(tmpl.Steps) == 0 {
			return ErrEmptySteps
		}
		return fmt.Errorf("%w: %s", ErrInvalidTemplate, formatValidationErrors(err))
	}
	return ValidateSteps(tmpl.Steps, registry)
}

// ValidateSteps проверяет определения шагов run.
//
// Проверяет:
//   - Наличие шагов
//   - Известность действия и корректность его полей
//   - Уникальность ref
//   - Цели branch: существуют и идут после branch-шага
//   - Достижимость завершения wait-шагов (ref или timeout)
func ValidateSteps(defs []domain.DeclarativeStep, registry *steps.Registry) error {
	if len(defs) == 0 {
		return ErrEmptySteps
	}
	if registry == nil {
		registry = steps.DefaultRegistry()
	}

	refs := make(map[string]int, len(defs))
	actions := make([]domain.Action, len(defs))

	for i := range defs {
		def := &defs[i]

		action, err := registry.Decode(def.Action, def.Fields)
		if err != nil {
			return NewValidationError(i, def.Ref, err.Error(), err)
		}
		if err := validate.Struct(action); err != nil {
			return NewValidationError(i, def.Ref, formatValidationErrors(err), ErrInvalidStep)
		}
		actions[i] = action

		if def.Ref != "" {
			if prev, exists := refs[def.Ref]; exists {
				return NewValidationError(i, def.Ref,
					fmt.Sprintf("ref already used by step %d", prev), ErrDuplicateRef)
			}
			refs[def.Ref] = i
		}
	}

	for i, action := range actions {
		switch a := action.(type) {
		case domain.BranchAction:
			if err := CompileCondition(a.If); err != nil {
				return NewValidationError(i, defs[i].Ref, err.Error(), err)
			}
			for _, target := range []string{a.Then, a.Else} {
				if err := validateBranchTarget(i, target, refs); err != nil {
					return NewValidationError(i, defs[i].Ref, err.Error(), err)
				}
			}
		case domain.WaitAction:
			if defs[i].Ref == "" && a.Timeout == 0 {
				return NewValidationError(i, "", ErrUnreachableWait.Error(), ErrUnreachableWait)
			}
		}
	}

	return nil
}

func validateBranchTarget(index int, target string, refs map[string]int) error {
	if target == "" {
		return nil
	}
	pos, ok := refs[target]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBranchTarget, target)
	}
	if pos <= index {
		return fmt.Errorf("%w: %s", ErrBackwardBranch, target)
	}
	return nil
}

// formatValidationErrors форматирует ошибки validator в одну строку.
func formatValidationErrors(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msg := ""
	for i, fe := range verrs {
		if i > 0 {
			msg += "; "
		}
		msg += fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag())
	}
	return msg
}
