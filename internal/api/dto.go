package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Flowline/internal/domain"
	"github.com/shaiso/Flowline/internal/engine"
)

// StartRequest — тело запроса запуска/срабатывания/resume.
type StartRequest struct {
	// Payload — начальный payload сообщения (любой JSON).
	Payload any `json:"payload,omitempty"`
}

// InstanceResponse — представление инстанса в API.
type InstanceResponse struct {
	ID            uuid.UUID  `json:"id"`
	Workflow      string     `json:"workflow"`
	Generation    int        `json:"generation"`
	State         string     `json:"state"`
	CurrentStepID string     `json:"current_step_id,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	ElapsedMs     int64      `json:"elapsed_ms"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// InstanceFromDomain конвертирует domain.WorkflowInstance в DTO.
func InstanceFromDomain(inst domain.WorkflowInstance) InstanceResponse {
	return InstanceResponse{
		ID:            inst.ID,
		Workflow:      inst.Workflow,
		Generation:    inst.Generation,
		State:         string(inst.State),
		CurrentStepID: inst.CurrentStepID,
		LastError:     inst.LastError,
		ElapsedMs:     inst.Elapsed().Milliseconds(),
		StartedAt:     inst.StartedAt,
		FinishedAt:    inst.FinishedAt,
		CreatedAt:     inst.CreatedAt,
	}
}

// HistoryEntryResponse — представление записи журнала в API.
type HistoryEntryResponse struct {
	StepID     string    `json:"step_id"`
	State      string    `json:"state"`
	Timestamp  time.Time `json:"timestamp"`
	ElapsedMs  int64     `json:"elapsed_ms,omitempty"`
	Error      string    `json:"error,omitempty"`
	OutputText string    `json:"output_text,omitempty"`
	Payload    any       `json:"payload,omitempty"`
}

// HistoryFromDomain конвертирует записи журнала в DTO.
func HistoryFromDomain(entries []domain.HistoryEntry) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = HistoryEntryResponse{
			StepID:     e.StepID,
			State:      string(e.State),
			Timestamp:  e.Timestamp,
			ElapsedMs:  e.Elapsed.Milliseconds(),
			Error:      e.Error,
			OutputText: e.OutputText,
			Payload:    e.Payload,
		}
	}
	return out
}

// HistoryResponse — инстанс вместе с журналом.
type HistoryResponse struct {
	Instance InstanceResponse       `json:"instance"`
	Entries  []HistoryEntryResponse `json:"entries"`
}

// StatsResponse — live-статистика текущего инстанса workflow.
type StatsResponse struct {
	InstanceID    uuid.UUID              `json:"instance_id"`
	Workflow      string                 `json:"workflow"`
	State         string                 `json:"state"`
	CurrentStepID string                 `json:"current_step_id,omitempty"`
	ElapsedMs     int64                  `json:"elapsed_ms"`
	LastError     string                 `json:"last_error,omitempty"`
	Log           []HistoryEntryResponse `json:"log"`
}

// StatsFromEngine конвертирует engine.Stats в DTO.
func StatsFromEngine(s *engine.Stats) StatsResponse {
	return StatsResponse{
		InstanceID:    s.InstanceID,
		Workflow:      s.Workflow,
		State:         string(s.State),
		CurrentStepID: s.CurrentStepID,
		ElapsedMs:     s.Elapsed.Milliseconds(),
		LastError:     s.LastError,
		Log:           HistoryFromDomain(s.Log),
	}
}

// WorkflowSummary — краткое описание workflow для списка.
type WorkflowSummary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	StartMethod string `json:"start_method"`
	Steps       int    `json:"steps"`
	Triggers    int    `json:"triggers"`
}

// WorkflowSummaryFromDomain конвертирует definition в краткое DTO.
func WorkflowSummaryFromDomain(def domain.WorkflowDefinition) WorkflowSummary {
	return WorkflowSummary{
		Name:        def.Name,
		Description: def.Description,
		StartMethod: string(def.EffectiveStartMethod()),
		Steps:       len(def.Steps),
		Triggers:    len(def.TriggerSteps()),
	}
}

// WorkflowDetail — полное definition с номером поколения.
type WorkflowDetail struct {
	Generation int                       `json:"generation"`
	Definition domain.WorkflowDefinition `json:"definition"`
}

// ReloadResponse — результат reload манифеста.
type ReloadResponse struct {
	Generation int      `json:"generation"`
	Workflows  []string `json:"workflows"`
}
