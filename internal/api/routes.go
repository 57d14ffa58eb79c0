package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Workflows
	mux.Handle("GET /api/v1/workflows", chain(http.HandlerFunc(h.ListWorkflows)))
	mux.Handle("GET /api/v1/workflows/{name}", chain(http.HandlerFunc(h.GetWorkflow)))
	mux.Handle("POST /api/v1/workflows/{name}/start", chain(http.HandlerFunc(h.StartWorkflow)))
	mux.Handle("POST /api/v1/workflows/{name}/triggers/{step}/fire", chain(http.HandlerFunc(h.FireTrigger)))
	mux.Handle("POST /api/v1/workflows/{name}/steps/{step}/resume", chain(http.HandlerFunc(h.ResumeStep)))
	mux.Handle("GET /api/v1/workflows/{name}/stats", chain(http.HandlerFunc(h.GetStats)))

	// Instances
	mux.Handle("GET /api/v1/instances/{id}/history", chain(http.HandlerFunc(h.GetInstanceHistory)))

	// Manifest
	mux.Handle("POST /api/v1/reload", chain(http.HandlerFunc(h.Reload)))
}
