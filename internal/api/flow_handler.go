package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/torbel/Interflow/internal/domain"
	"github.com/torbel/Interflow/internal/engine"
	"github.com/torbel/Interflow/internal/graph"
	"github.com/torbel/Interflow/internal/repo"
)

// ListFlows возвращает список всех flows.
// GET /api/v1/flows
func (h *Handler) ListFlows(w http.ResponseWriter, r *http.Request) {
	flows, err := h.flowRepo.List(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]FlowResponse, len(flows))
	for i, f := range flows {
		result[i] = FlowFromDomain(f)
	}

	List(w, result, len(result))
}

// CreateFlow создаёт новый flow. Структура графа проверяется сразу,
// типы узлов — нет: определение можно сохранить раньше, чем доступен
// его executor. Flow создаётся выключенным.
// POST /api/v1/flows
func (h *Handler) CreateFlow(w http.ResponseWriter, r *http.Request) {
	var req CreateFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	now := time.Now()
	def := &domain.FlowDefinition{
		ID:        uuid.New(),
		Name:      req.Name,
		Version:   1,
		IsEnabled: false,
		Nodes:     req.Nodes,
		Edges:     req.Edges,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := engine.Validate(def); err != nil {
		BadRequest(w, err.Error())
		return
	}

	if err := h.flowRepo.Create(r.Context(), def); err != nil {
		if HandleRepoError(w, h.logger, err, "") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	Created(w, FlowFromDomain(*def))
}

// GetFlow возвращает flow по ID.
// GET /api/v1/flows/{id}
func (h *Handler) GetFlow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid flow id")
		return
	}

	flow, err := h.flowRepo.GetFlow(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "flow not found") {
		return
	}

	Success(w, FlowFromDomain(*flow))
}

// UpdateFlow обновляет имя и/или граф flow, инкрементируя версию.
// PUT /api/v1/flows/{id}
func (h *Handler) UpdateFlow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid flow id")
		return
	}

	var req UpdateFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	flow, err := h.flowRepo.GetFlow(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "flow not found") {
		return
	}

	if req.Name != nil {
		flow.Name = *req.Name
	}
	if req.Nodes != nil {
		flow.Nodes = *req.Nodes
	}
	if req.Edges != nil {
		flow.Edges = *req.Edges
	}

	if err := engine.Validate(flow); err != nil {
		BadRequest(w, err.Error())
		return
	}

	if err := h.flowRepo.Update(r.Context(), flow); err != nil {
		if HandleRepoError(w, h.logger, err, "flow not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	Success(w, FlowFromDomain(*flow))
}

// DeleteFlow удаляет flow вместе с его runs и schedules.
// DELETE /api/v1/flows/{id}
func (h *Handler) DeleteFlow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid flow id")
		return
	}

	if err := h.flowRepo.Delete(r.Context(), id); err != nil {
		if HandleRepoError(w, h.logger, err, "flow not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	NoContent(w)
}

// SetFlowEnabled включает или выключает flow.
// PUT /api/v1/flows/{id}/enabled
func (h *Handler) SetFlowEnabled(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid flow id")
		return
	}

	var req SetEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if err := h.flowRepo.SetEnabled(r.Context(), id, req.Enabled); err != nil {
		if HandleRepoError(w, h.logger, err, "flow not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	flow, err := h.flowRepo.GetFlow(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "flow not found") {
		return
	}

	Success(w, FlowFromDomain(*flow))
}

// ExecuteFlow запускает flow синхронно и возвращает завершённый run
// с полным трейсом. Пустое тело запроса — запуск без входных данных.
//
// Упавший run — это ответ 200 со статусом FAILED: ошибка выполнения
// живёт внутри run. Кодами ошибок отвечают только отказы до запуска.
// POST /api/v1/flows/{id}/execute
func (h *Handler) ExecuteFlow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid flow id")
		return
	}

	var req ExecuteFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return
	}

	triggeredBy := req.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = "api"
	}

	run, err := h.engine.Execute(r.Context(), id, req.Input, triggeredBy)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			NotFound(w, "flow not found")
		case engine.IsRejected(err):
			InvalidState(w, err.Error())
		default:
			InternalError(w, h.logger, err)
		}
		return
	}

	Success(w, RunFromDomain(*run))
}

// ValidateFlow проверяет сохранённое определение: структуру графа
// и типы узлов. Результат проверки — данные, а не код ответа.
// POST /api/v1/flows/{id}/validate
func (h *Handler) ValidateFlow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid flow id")
		return
	}

	flow, err := h.flowRepo.GetFlow(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "flow not found") {
		return
	}

	if err := h.engine.ValidateDefinition(flow); err != nil {
		resp := ValidateFlowResponse{Valid: false, Error: err.Error()}
		var graphErr *engine.GraphError
		if errors.As(err, &graphErr) {
			resp.NodeID = graphErr.NodeID
		}
		Success(w, resp)
		return
	}

	Success(w, ValidateFlowResponse{Valid: true})
}

// CompileFlow собирает граф из списка шагов, не сохраняя его.
// POST /api/v1/flows/compile
func (h *Handler) CompileFlow(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	list, err := graph.ParseJSON(body)
	if err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	def, err := graph.Compile(list)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	Success(w, CompiledFlowResponse{
		Name:  def.Name,
		Nodes: def.Nodes,
		Edges: def.Edges,
	})
}

// ExportFlow отдаёт flow в форме списка шагов: YAML по умолчанию,
// JSON через ?format=json. Ответ — сам документ, без envelope:
// его сохраняют в файл и скармливают обратно import'у.
// GET /api/v1/flows/{id}/export
func (h *Handler) ExportFlow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid flow id")
		return
	}

	flow, err := h.flowRepo.GetFlow(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "flow not found") {
		return
	}

	list, err := graph.Export(flow)
	if err != nil {
		InvalidState(w, err.Error())
		return
	}

	if r.URL.Query().Get("format") == "json" {
		JSON(w, http.StatusOK, list)
		return
	}

	data, err := list.EncodeYAML()
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ListKinds возвращает зарегистрированные типы узлов.
// GET /api/v1/kinds
func (h *Handler) ListKinds(w http.ResponseWriter, r *http.Request) {
	kinds := h.kinds.Kinds()
	List(w, kinds, len(kinds))
}
