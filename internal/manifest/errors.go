package manifest

import (
	"errors"
	"fmt"
)

// Ошибки загрузки и валидации манифеста.
var (
	// ErrEmptyManifest — манифест не содержит workflow.
	ErrEmptyManifest = errors.New("manifest has no workflows")

	// ErrEmptyWorkflowName — workflow без имени.
	ErrEmptyWorkflowName = errors.New("workflow has empty name")

	// ErrDuplicateWorkflow — повторяющееся имя workflow в манифесте.
	ErrDuplicateWorkflow = errors.New("duplicate workflow name")

	// ErrEmptySteps — workflow без шагов.
	ErrEmptySteps = errors.New("workflow has no steps")

	// ErrEmptyStepID — шаг с пустым ID.
	ErrEmptyStepID = errors.New("step has empty ID")

	// ErrDuplicateStepID — повторяющийся ID шага.
	ErrDuplicateStepID = errors.New("duplicate step ID")

	// ErrEmptyStepType — шаг с пустым stype.
	ErrEmptyStepType = errors.New("step has empty type")

	// ErrUnknownTransition — transition_to ссылается на несуществующий шаг.
	ErrUnknownTransition = errors.New("transition to unknown step")

	// ErrSelfTransition — шаг ссылается сам на себя.
	ErrSelfTransition = errors.New("step transitions to itself")

	// ErrTriggerHasPredecessor — шаг с trigger=true имеет предшественника.
	ErrTriggerHasPredecessor = errors.New("trigger step has a predecessor")

	// ErrOrphanStep — шаг без trigger=true не имеет предшественников.
	ErrOrphanStep = errors.New("non-trigger step has no predecessor")

	// ErrNoTrigger — workflow без единой точки входа.
	ErrNoTrigger = errors.New("workflow has no trigger step")

	// ErrMissingInterval — time-trigger без params.interval.
	ErrMissingInterval = errors.New("time-trigger step has no interval")

	// ErrUnknownStartMethod — нераспознанная политика start_method.
	ErrUnknownStartMethod = errors.New("unknown start method")

	// ErrWorkflowNotFound — workflow не найден в активном поколении.
	ErrWorkflowNotFound = errors.New("workflow not found")
)

// ValidationError — ошибка валидации с привязкой к workflow и шагу.
//
// Валидация фатальна: манифест отклоняется целиком, частичная
// загрузка невозможна.
type ValidationError struct {
	Workflow string
	StepID   string
	Field    string
	Message  string
	Err      error
}

// NewValidationError создаёт ValidationError.
func NewValidationError(workflow, stepID, field, message string, err error) *ValidationError {
	return &ValidationError{
		Workflow: workflow,
		StepID:   stepID,
		Field:    field,
		Message:  message,
		Err:      err,
	}
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("workflow %q step %q (%s): %s", e.Workflow, e.StepID, e.Field, e.Message)
	}
	return fmt.Sprintf("workflow %q: %s", e.Workflow, e.Message)
}

// Unwrap возвращает базовую ошибку для errors.Is.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
