package manifest

import (
	"errors"
	"testing"

	"github.com/shaiso/Flowline/internal/domain"
)

// validManifest — минимальный валидный манифест для тестов.
const validManifest = `{
	"workflows": [
		{
			"name": "report",
			"steps": [
				{"id": "start", "stype": "http-trigger", "enabled": true, "trigger": true, "transition_to": ["build"]},
				{"id": "build", "stype": "function-step", "enabled": true}
			]
		}
	]
}`

func TestParse_Valid(t *testing.T) {
	m, err := Parse([]byte(validManifest))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(m.Workflows) != 1 {
		t.Fatalf("expected 1 workflow, got %d", len(m.Workflows))
	}

	def, ok := m.Workflow("report")
	if !ok {
		t.Fatal("workflow report not found")
	}
	if len(def.Steps) != 2 {
		t.Errorf("expected 2 steps, got %d", len(def.Steps))
	}
	if def.EffectiveStartMethod() != domain.StartPersistentBlocking {
		t.Errorf("default start method must be persistent_blocking, got %s", def.EffectiveStartMethod())
	}
}

func TestParse_BadJSON(t *testing.T) {
	if _, err := Parse([]byte("{not json")); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		wantErr  error
	}{
		{
			name:     "empty manifest",
			manifest: `{"workflows": []}`,
			wantErr:  ErrEmptyManifest,
		},
		{
			name: "empty workflow name",
			manifest: `{"workflows": [
				{"name": "", "steps": [{"id": "a", "stype": "http-trigger", "trigger": true}]}
			]}`,
			wantErr: ErrEmptyWorkflowName,
		},
		{
			name: "duplicate workflow name",
			manifest: `{"workflows": [
				{"name": "w", "steps": [{"id": "a", "stype": "http-trigger", "trigger": true}]},
				{"name": "w", "steps": [{"id": "a", "stype": "http-trigger", "trigger": true}]}
			]}`,
			wantErr: ErrDuplicateWorkflow,
		},
		{
			name:     "no steps",
			manifest: `{"workflows": [{"name": "w", "steps": []}]}`,
			wantErr:  ErrEmptySteps,
		},
		{
			name: "duplicate step id",
			manifest: `{"workflows": [{"name": "w", "steps": [
				{"id": "a", "stype": "http-trigger", "trigger": true},
				{"id": "a", "stype": "function-step"}
			]}]}`,
			wantErr: ErrDuplicateStepID,
		},
		{
			name: "empty step type",
			manifest: `{"workflows": [{"name": "w", "steps": [
				{"id": "a", "stype": "", "trigger": true}
			]}]}`,
			wantErr: ErrEmptyStepType,
		},
		{
			name: "transition to unknown step",
			manifest: `{"workflows": [{"name": "w", "steps": [
				{"id": "a", "stype": "http-trigger", "trigger": true, "transition_to": ["ghost"]}
			]}]}`,
			wantErr: ErrUnknownTransition,
		},
		{
			name: "self transition",
			manifest: `{"workflows": [{"name": "w", "steps": [
				{"id": "a", "stype": "http-trigger", "trigger": true, "transition_to": ["a"]}
			]}]}`,
			wantErr: ErrSelfTransition,
		},
		{
			name: "trigger with predecessor",
			manifest: `{"workflows": [{"name": "w", "steps": [
				{"id": "a", "stype": "http-trigger", "trigger": true, "transition_to": ["b"]},
				{"id": "b", "stype": "http-trigger", "trigger": true}
			]}]}`,
			wantErr: ErrTriggerHasPredecessor,
		},
		{
			name: "orphan step",
			manifest: `{"workflows": [{"name": "w", "steps": [
				{"id": "a", "stype": "http-trigger", "trigger": true},
				{"id": "b", "stype": "function-step"}
			]}]}`,
			wantErr: ErrOrphanStep,
		},
		{
			// Взаимные переходы дают обоим шагам предшественников,
			// поэтому срабатывает именно ErrNoTrigger, а не ErrOrphanStep
			name: "no trigger",
			manifest: `{"workflows": [{"name": "w", "steps": [
				{"id": "a", "stype": "function-step", "transition_to": ["b"]},
				{"id": "b", "stype": "function-step", "transition_to": ["a"]}
			]}]}`,
			wantErr: ErrNoTrigger,
		},
		{
			name: "time trigger without interval",
			manifest: `{"workflows": [{"name": "w", "steps": [
				{"id": "a", "stype": "time-trigger", "trigger": true}
			]}]}`,
			wantErr: ErrMissingInterval,
		},
		{
			// Опечатка не должна молча подменять политику допуска
			// на persistent_blocking
			name: "unknown start method",
			manifest: `{"workflows": [{"name": "w", "start_method": "ephemeral", "steps": [
				{"id": "a", "stype": "http-trigger", "trigger": true}
			]}]}`,
			wantErr: ErrUnknownStartMethod,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.manifest))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	_, err := Parse([]byte(`{"workflows": [{"name": "w", "steps": [
		{"id": "a", "stype": "http-trigger", "trigger": true, "transition_to": ["ghost"]}
	]}]}`))

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if ve.Workflow != "w" || ve.StepID != "a" {
		t.Errorf("expected workflow w step a, got %s/%s", ve.Workflow, ve.StepID)
	}
}

func TestLoader_SwapBytesGeneration(t *testing.T) {
	l, err := NewLoaderFromBytes([]byte(validManifest))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Generation() != 1 {
		t.Fatalf("expected generation 1, got %d", l.Generation())
	}

	def1, gen1, err := l.Workflow("report")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen1 != 1 {
		t.Errorf("expected generation 1, got %d", gen1)
	}

	// Подмена: новое поколение, старая ссылка def1 не мутируется
	updated := `{
		"workflows": [
			{
				"name": "report",
				"description": "updated",
				"steps": [
					{"id": "start", "stype": "http-trigger", "enabled": true, "trigger": true}
				]
			}
		]
	}`
	gen2, err := l.SwapBytes([]byte(updated))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen2 != 2 {
		t.Errorf("expected generation 2, got %d", gen2)
	}
	if len(def1.Steps) != 2 {
		t.Error("reload must not mutate previously returned definitions")
	}

	def2, _, err := l.Workflow("report")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def2.Description != "updated" {
		t.Errorf("expected updated definition, got %q", def2.Description)
	}
}

func TestLoader_SwapBytesKeepsOldOnError(t *testing.T) {
	l, err := NewLoaderFromBytes([]byte(validManifest))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := l.SwapBytes([]byte(`{"workflows": []}`)); err == nil {
		t.Fatal("expected validation error")
	}

	// Активное поколение не тронуто
	if l.Generation() != 1 {
		t.Errorf("generation must stay 1, got %d", l.Generation())
	}
	if _, _, err := l.Workflow("report"); err != nil {
		t.Errorf("old generation must remain active: %v", err)
	}
}

func TestLoader_WorkflowNotFound(t *testing.T) {
	l, err := NewLoaderFromBytes([]byte(validManifest))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, _, err = l.Workflow("ghost")
	if !errors.Is(err, ErrWorkflowNotFound) {
		t.Fatalf("expected ErrWorkflowNotFound, got %v", err)
	}
}
