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
		Metrics(),
	)

	// Flows
	mux.Handle("GET /api/v1/flows", chain(http.HandlerFunc(h.ListFlows)))
	mux.Handle("POST /api/v1/flows", chain(http.HandlerFunc(h.CreateFlow)))
	mux.Handle("POST /api/v1/flows/compile", chain(http.HandlerFunc(h.CompileFlow)))
	mux.Handle("GET /api/v1/flows/{id}", chain(http.HandlerFunc(h.GetFlow)))
	mux.Handle("PUT /api/v1/flows/{id}", chain(http.HandlerFunc(h.UpdateFlow)))
	mux.Handle("DELETE /api/v1/flows/{id}", chain(http.HandlerFunc(h.DeleteFlow)))
	mux.Handle("PUT /api/v1/flows/{id}/enabled", chain(http.HandlerFunc(h.SetFlowEnabled)))
	mux.Handle("POST /api/v1/flows/{id}/execute", chain(http.HandlerFunc(h.ExecuteFlow)))
	mux.Handle("POST /api/v1/flows/{id}/validate", chain(http.HandlerFunc(h.ValidateFlow)))
	mux.Handle("GET /api/v1/flows/{id}/export", chain(http.HandlerFunc(h.ExportFlow)))

	// Runs (только чтение: запуск — через POST /flows/{id}/execute)
	mux.Handle("GET /api/v1/runs", chain(http.HandlerFunc(h.ListRuns)))
	mux.Handle("GET /api/v1/runs/{id}", chain(http.HandlerFunc(h.GetRun)))
	mux.Handle("GET /api/v1/runs/{id}/records", chain(http.HandlerFunc(h.ListRunRecords)))

	// Interfaces
	mux.Handle("GET /api/v1/interfaces", chain(http.HandlerFunc(h.ListInterfaces)))
	mux.Handle("POST /api/v1/interfaces", chain(http.HandlerFunc(h.CreateInterface)))
	mux.Handle("GET /api/v1/interfaces/{id}", chain(http.HandlerFunc(h.GetInterface)))
	mux.Handle("PUT /api/v1/interfaces/{id}", chain(http.HandlerFunc(h.UpdateInterface)))
	mux.Handle("DELETE /api/v1/interfaces/{id}", chain(http.HandlerFunc(h.DeleteInterface)))
	mux.Handle("PUT /api/v1/interfaces/{id}/enabled", chain(http.HandlerFunc(h.SetInterfaceEnabled)))
	mux.Handle("POST /api/v1/interfaces/{id}/test", chain(http.HandlerFunc(h.TestInterface)))

	// Credentials
	mux.Handle("GET /api/v1/credentials", chain(http.HandlerFunc(h.ListCredentials)))
	mux.Handle("POST /api/v1/credentials", chain(http.HandlerFunc(h.CreateCredential)))
	mux.Handle("GET /api/v1/credentials/{id}", chain(http.HandlerFunc(h.GetCredential)))
	mux.Handle("PUT /api/v1/credentials/{id}", chain(http.HandlerFunc(h.UpdateCredential)))
	mux.Handle("DELETE /api/v1/credentials/{id}", chain(http.HandlerFunc(h.DeleteCredential)))

	// Schedules
	mux.Handle("GET /api/v1/schedules", chain(http.HandlerFunc(h.ListSchedules)))
	mux.Handle("POST /api/v1/flows/{id}/schedules", chain(http.HandlerFunc(h.CreateSchedule)))
	mux.Handle("GET /api/v1/schedules/{id}", chain(http.HandlerFunc(h.GetSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}", chain(http.HandlerFunc(h.UpdateSchedule)))
	mux.Handle("DELETE /api/v1/schedules/{id}", chain(http.HandlerFunc(h.DeleteSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}/enabled", chain(http.HandlerFunc(h.SetScheduleEnabled)))

	// Node kinds
	mux.Handle("GET /api/v1/kinds", chain(http.HandlerFunc(h.ListKinds)))
}
