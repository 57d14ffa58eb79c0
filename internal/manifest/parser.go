package manifest

import (
	"encoding/json"
	"fmt"

	"github.com/shaiso/Flowline/internal/domain"
)

// Manifest — корневой документ манифеста: набор определений workflow.
type Manifest struct {
	Workflows []domain.WorkflowDefinition `json:"workflows"`
}

// Parse разбирает манифест из JSON и полностью валидирует его.
//
// Валидация фатальна: при любой ошибке манифест отклоняется целиком.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}

	if err := Validate(&m); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate выполняет полную валидацию манифеста.
//
// Проверяет:
//   - Наличие workflow и уникальность их имён
//   - Уникальность ID шагов внутри definition
//   - Ссылочную целостность transition_to (во время загрузки,
//     не во время выполнения)
//   - Что предшественников не имеют ровно шаги с trigger=true
//   - Наличие params.interval у time-trigger шагов
func Validate(m *Manifest) error {
	if m == nil || len(m.Workflows) == 0 {
		return ErrEmptyManifest
	}

	names := make(map[string]bool, len(m.Workflows))
	for i := range m.Workflows {
		def := &m.Workflows[i]

		if def.Name == "" {
			return NewValidationError("", "", "name", "workflow has empty name", ErrEmptyWorkflowName)
		}
		if names[def.Name] {
			return NewValidationError(def.Name, "", "name",
				fmt.Sprintf("duplicate workflow name: %s", def.Name), ErrDuplicateWorkflow)
		}
		names[def.Name] = true

		if err := validateWorkflow(def); err != nil {
			return err
		}
	}

	return nil
}

// validateWorkflow валидирует одно определение workflow.
func validateWorkflow(def *domain.WorkflowDefinition) error {
	// Опечатка в start_method молча подменила бы политику допуска
	// на умолчание, поэтому неизвестное значение фатально при загрузке.
	if def.StartMethod != "" && !def.StartMethod.IsValid() {
		return NewValidationError(def.Name, "", "start_method",
			fmt.Sprintf("unknown start method: %s", def.StartMethod), ErrUnknownStartMethod)
	}

	if len(def.Steps) == 0 {
		return NewValidationError(def.Name, "", "steps", "workflow has no steps", ErrEmptySteps)
	}

	// Первый проход: уникальность ID и локальные свойства шагов
	stepIDs := make(map[string]bool, len(def.Steps))
	for i := range def.Steps {
		step := &def.Steps[i]

		if step.ID == "" {
			return NewValidationError(def.Name, "", "id", "step has empty ID", ErrEmptyStepID)
		}
		if stepIDs[step.ID] {
			return NewValidationError(def.Name, step.ID, "id",
				fmt.Sprintf("duplicate step ID: %s", step.ID), ErrDuplicateStepID)
		}
		stepIDs[step.ID] = true

		if step.Type == "" {
			return NewValidationError(def.Name, step.ID, "stype", "step has empty type", ErrEmptyStepType)
		}

		if step.Type == domain.StepTypeTimeTrigger {
			if interval, ok := step.ParamString("interval"); !ok || interval == "" {
				return NewValidationError(def.Name, step.ID, "params.interval",
					"time-trigger step requires params.interval", ErrMissingInterval)
			}
		}
	}

	// Второй проход: ссылочная целостность переходов
	predecessors := make(map[string]int, len(def.Steps))
	for i := range def.Steps {
		step := &def.Steps[i]

		for _, target := range step.TransitionTo {
			if target == step.ID {
				return NewValidationError(def.Name, step.ID, "transition_to",
					"step transitions to itself", ErrSelfTransition)
			}
			if !stepIDs[target] {
				return NewValidationError(def.Name, step.ID, "transition_to",
					fmt.Sprintf("transition to unknown step: %s", target), ErrUnknownTransition)
			}
			predecessors[target]++
		}
	}

	// Третий проход: точки входа.
	// Предшественников не имеют ровно шаги с trigger=true.
	hasTrigger := false
	for i := range def.Steps {
		step := &def.Steps[i]

		if step.Trigger {
			hasTrigger = true
			if predecessors[step.ID] > 0 {
				return NewValidationError(def.Name, step.ID, "trigger",
					"trigger step must not have predecessors", ErrTriggerHasPredecessor)
			}
		} else if predecessors[step.ID] == 0 {
			return NewValidationError(def.Name, step.ID, "trigger",
				"step is unreachable: not a trigger and has no predecessor", ErrOrphanStep)
		}
	}

	if !hasTrigger {
		return NewValidationError(def.Name, "", "trigger",
			"workflow has no trigger step", ErrNoTrigger)
	}

	return nil
}

// Workflow возвращает определение workflow по имени.
func (m *Manifest) Workflow(name string) (*domain.WorkflowDefinition, bool) {
	for i := range m.Workflows {
		if m.Workflows[i].Name == name {
			return &m.Workflows[i], true
		}
	}
	return nil, false
}

// Names возвращает имена workflow в порядке объявления.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Workflows))
	for i := range m.Workflows {
		names = append(names, m.Workflows[i].Name)
	}
	return names
}
