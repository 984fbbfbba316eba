package orchestrator

import (
	"fmt"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/engine"
)

// RunState: снимок run и его шагов, загруженный из хранилища.
//
// RunState строится заново на каждый триггер и не переживает
// вызов: вся координация идёт через хранилище.
type RunState struct {
	Run   *domain.Run
	Steps []domain.Step // по Position
}

// NewRunState создаёт RunState.
func NewRunState(run *domain.Run, steps []domain.Step) *RunState {
	return &RunState{Run: run, Steps: steps}
}

// Context строит контекст шаблонов: данные run, шаги по ref
// и resume-payload текущего шага в Event.
func (s *RunState) Context(current *domain.Step) *engine.Context {
	ctx := engine.NewContext(s.Run.Context)
	for i := range s.Steps {
		step := &s.Steps[i]
		if step.Ref == "" {
			continue
		}
		ctx.AddStep(step.Ref, string(step.Status), step.Data, step.Context)
	}

	if current != nil {
		if event, ok := current.Context[domain.ContextResume].(map[string]any); ok {
			ctx.Event = event
		}
	}
	return ctx
}

// Next возвращает следующий шаг после шага с позицией after.
//
// Пустой target означает ближайший ожидающий шаг; иначе шаг с этим ref.
// Пропущенные ожидающие шаги между ними возвращаются в skipped.
// Nil next означает, что run закончился.
func (s *RunState) Next(after int, target string) (next *domain.Step, skipped []*domain.Step, err error) {
	for i := range s.Steps {
		step := &s.Steps[i]
		if step.Position <= after {
			continue
		}

		if target != "" && step.Ref != target {
			if pending(step) {
				skipped = append(skipped, step)
			}
			continue
		}
		if target == "" && !pending(step) {
			continue
		}
		return step, skipped, nil
	}

	if target != "" {
		return nil, nil, fmt.Errorf("%w: %s", ErrBranchTargetNotFound, target)
	}
	return nil, nil, nil
}

// Pending возвращает ожидающие шаги после позиции after.
func (s *RunState) Pending(after int) []*domain.Step {
	var result []*domain.Step
	for i := range s.Steps {
		step := &s.Steps[i]
		if step.Position > after && pending(step) {
			result = append(result, step)
		}
	}
	return result
}

// First возвращает первый шаг run, если он ещё не начат.
func (s *RunState) First() *domain.Step {
	for i := range s.Steps {
		if s.Steps[i].Position == 0 && pending(&s.Steps[i]) {
			return &s.Steps[i]
		}
	}
	return nil
}

// Successor возвращает шаг, к которому ведёт переход после позиции after:
// ближайший по позиции или, для непустого target, шаг с этим ref.
// В отличие от Next, статус шага не учитывается.
func (s *RunState) Successor(after int, target string) *domain.Step {
	for i := range s.Steps {
		step := &s.Steps[i]
		if step.Position <= after {
			continue
		}
		if target == "" || step.Ref == target {
			return step
		}
	}
	return nil
}

func pending(step *domain.Step) bool {
	return step.Status == domain.StatusProcessing && step.StartedAt == nil
}

// branchTarget возвращает ref, выбранный завершённым branch-шагом.
func branchTarget(step *domain.Step) string {
	action, ok := step.Action.(domain.BranchAction)
	if !ok {
		return ""
	}
	if step.Context["branch"] == "then" {
		return action.Then
	}
	return action.Else
}

// Step возвращает шаг по идентификатору.
func (s *RunState) Step(stepID string) *domain.Step {
	for i := range s.Steps {
		if s.Steps[i].StepID == stepID {
			return &s.Steps[i]
		}
	}
	return nil
}

// Replace заменяет шаг в снимке обновлённой копией.
func (s *RunState) Replace(step *domain.Step) {
	for i := range s.Steps {
		if s.Steps[i].StepID == step.StepID {
			if &s.Steps[i] != step {
				s.Steps[i] = *step
			}
			return
		}
	}
}
