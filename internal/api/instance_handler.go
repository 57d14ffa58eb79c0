package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shaiso/Flowline/internal/domain"
)

// GetInstanceHistory возвращает инстанс и его журнал выполнения.
// GET /api/v1/instances/{id}/history?filtered=1
//
// filtered=1 схлопывает пары STARTED+COMPLETED одного шага
// в одну COMPLETED-запись (вид по умолчанию для UI).
func (h *Handler) GetInstanceHistory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid instance id")
		return
	}

	inst, entries, err := h.engine.InstanceHistory(r.Context(), id)
	if HandleEngineError(w, h.logger, err) {
		return
	}

	if r.URL.Query().Get("filtered") == "1" {
		entries = domain.FilterEntries(entries)
	}

	Success(w, HistoryResponse{
		Instance: InstanceFromDomain(*inst),
		Entries:  HistoryFromDomain(entries),
	})
}
