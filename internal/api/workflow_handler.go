package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/shaiso/Flowline/internal/domain"
	"github.com/shaiso/Flowline/internal/manifest"
)

// ListWorkflows возвращает workflow активного поколения манифеста.
// GET /api/v1/workflows
func (h *Handler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	defs := h.engine.Loader().Workflows()

	result := make([]WorkflowSummary, len(defs))
	for i, def := range defs {
		result[i] = WorkflowSummaryFromDomain(def)
	}
	List(w, result, len(result))
}

// GetWorkflow возвращает полное definition workflow.
// GET /api/v1/workflows/{name}
func (h *Handler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	def, gen, err := h.engine.Loader().Workflow(r.PathValue("name"))
	if HandleEngineError(w, h.logger, err) {
		return
	}

	Success(w, WorkflowDetail{Generation: gen, Definition: *def})
}

// StartWorkflow запускает workflow с его первой включённой точки входа.
// POST /api/v1/workflows/{name}/start
func (h *Handler) StartWorkflow(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	def, _, err := h.engine.Loader().Workflow(name)
	if HandleEngineError(w, h.logger, err) {
		return
	}

	triggers := def.TriggerSteps()
	if len(triggers) == 0 {
		InvalidState(w, manifest.ErrNoTrigger.Error())
		return
	}

	h.fire(w, r, def, triggers[0].ID)
}

// FireTrigger обрабатывает внешнее срабатывание конкретного триггера.
// POST /api/v1/workflows/{name}/triggers/{step}/fire
func (h *Handler) FireTrigger(w http.ResponseWriter, r *http.Request) {
	def, _, err := h.engine.Loader().Workflow(r.PathValue("name"))
	if HandleEngineError(w, h.logger, err) {
		return
	}

	h.fire(w, r, def, r.PathValue("step"))
}

// fire запускает инстанс и отвечает по политике start_method:
// persistent_blocking ждёт завершения и возвращает итог (200),
// остальные режимы отвечают 202 сразу после допуска.
func (h *Handler) fire(w http.ResponseWriter, r *http.Request, def *domain.WorkflowDefinition, stepID string) {
	req, ok := decodeStartRequest(w, r)
	if !ok {
		return
	}

	inst, err := h.engine.Fire(r.Context(), def.Name, stepID, req.Payload)
	if HandleEngineError(w, h.logger, err) {
		return
	}

	if def.EffectiveStartMethod() == domain.StartPersistentBlocking {
		select {
		case <-inst.Done():
			Success(w, InstanceFromDomain(inst.Snapshot()))
		case <-r.Context().Done():
			// Клиент отключился; инстанс продолжает выполняться
			Accepted(w, InstanceFromDomain(inst.Snapshot()))
		}
		return
	}

	Accepted(w, InstanceFromDomain(inst.Snapshot()))
}

// ResumeStep будит инстанс, приостановленный на wait-for-event шаге.
// POST /api/v1/workflows/{name}/steps/{step}/resume
func (h *Handler) ResumeStep(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeStartRequest(w, r)
	if !ok {
		return
	}

	instanceID, err := h.engine.Resume(r.Context(), r.PathValue("name"), r.PathValue("step"), req.Payload)
	if HandleEngineError(w, h.logger, err) {
		return
	}

	Success(w, map[string]any{"instance_id": instanceID})
}

// GetStats возвращает live-статистику текущего инстанса workflow.
// GET /api/v1/workflows/{name}/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.PathValue("name"))
	if HandleEngineError(w, h.logger, err) {
		return
	}

	Success(w, StatsFromEngine(stats))
}

// Reload перечитывает манифест и перезапускает таймеры триггеров.
// POST /api/v1/reload
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	gen, err := h.engine.Reload()
	if err != nil {
		// Активное поколение не тронуто — ошибка клиентская
		BadRequest(w, err.Error())
		return
	}

	if h.dispatcher != nil {
		if err := h.dispatcher.Restart(h.baseCtx); err != nil {
			InternalError(w, h.logger, err)
			return
		}
	}

	Success(w, ReloadResponse{
		Generation: gen,
		Workflows:  h.engine.Loader().Names(),
	})
}

// decodeStartRequest разбирает тело запроса; пустое тело допустимо.
func decodeStartRequest(w http.ResponseWriter, r *http.Request) (StartRequest, bool) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return req, false
	}
	return req, true
}
