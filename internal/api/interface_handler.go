package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/torbel/Interflow/internal/dispatch"
	"github.com/torbel/Interflow/internal/domain"
	"github.com/torbel/Interflow/internal/repo"
)

// ListInterfaces возвращает список зарегистрированных интерфейсов.
// GET /api/v1/interfaces
func (h *Handler) ListInterfaces(w http.ResponseWriter, r *http.Request) {
	interfaces, err := h.ifaceRepo.List(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]InterfaceResponse, len(interfaces))
	for i, iface := range interfaces {
		result[i] = InterfaceFromDomain(iface)
	}

	List(w, result, len(result))
}

// CreateInterface регистрирует внешнюю систему.
// POST /api/v1/interfaces
func (h *Handler) CreateInterface(w http.ResponseWriter, r *http.Request) {
	var req CreateInterfaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}
	if req.BaseURL == "" {
		BadRequest(w, "base_url is required")
		return
	}

	protocol, err := parseProtocol(req.Protocol)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	now := time.Now()
	iface := &domain.InterfaceConfig{
		ID:              uuid.New(),
		Name:            req.Name,
		Protocol:        protocol,
		BaseURL:         req.BaseURL,
		Headers:         req.Headers,
		Query:           req.Query,
		ContentType:     req.ContentType,
		TimeoutSec:      req.TimeoutSec,
		InsecureSkipTLS: req.InsecureSkipTLS,
		Schema:          req.Schema,
		IsEnabled:       req.IsEnabled,
		Emulate:         req.Emulate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.Retry != nil {
		iface.Retry = *req.Retry
	}
	if req.Auth != nil {
		iface.Auth = *req.Auth
	} else {
		iface.Auth = domain.AuthConfig{Type: domain.AuthNone}
	}

	if err := validateAuth(iface.Auth); err != nil {
		BadRequest(w, err.Error())
		return
	}

	if err := h.ifaceRepo.Create(r.Context(), iface); err != nil {
		if HandleRepoError(w, h.logger, err, "") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	Created(w, InterfaceFromDomain(*iface))
}

// GetInterface возвращает интерфейс по ID.
// GET /api/v1/interfaces/{id}
func (h *Handler) GetInterface(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid interface id")
		return
	}

	iface, err := h.ifaceRepo.GetInterface(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "interface not found") {
		return
	}

	Success(w, InterfaceFromDomain(*iface))
}

// UpdateInterface обновляет интерфейс.
// PUT /api/v1/interfaces/{id}
func (h *Handler) UpdateInterface(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid interface id")
		return
	}

	var req UpdateInterfaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	iface, err := h.ifaceRepo.GetInterface(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "interface not found") {
		return
	}

	if req.Name != nil {
		iface.Name = *req.Name
	}
	if req.Protocol != nil {
		protocol, err := parseProtocol(*req.Protocol)
		if err != nil {
			BadRequest(w, err.Error())
			return
		}
		iface.Protocol = protocol
	}
	if req.BaseURL != nil {
		iface.BaseURL = *req.BaseURL
	}
	if req.Headers != nil {
		iface.Headers = *req.Headers
	}
	if req.Query != nil {
		iface.Query = *req.Query
	}
	if req.ContentType != nil {
		iface.ContentType = *req.ContentType
	}
	if req.TimeoutSec != nil {
		iface.TimeoutSec = *req.TimeoutSec
	}
	if req.InsecureSkipTLS != nil {
		iface.InsecureSkipTLS = *req.InsecureSkipTLS
	}
	if req.Retry != nil {
		iface.Retry = *req.Retry
	}
	if req.Auth != nil {
		iface.Auth = *req.Auth
	}
	if req.Schema != nil {
		iface.Schema = req.Schema
	}
	if req.Emulate != nil {
		iface.Emulate = *req.Emulate
	}

	if err := validateAuth(iface.Auth); err != nil {
		BadRequest(w, err.Error())
		return
	}

	if err := h.ifaceRepo.Update(r.Context(), iface); err != nil {
		if HandleRepoError(w, h.logger, err, "interface not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	Success(w, InterfaceFromDomain(*iface))
}

// DeleteInterface удаляет интерфейс.
// DELETE /api/v1/interfaces/{id}
func (h *Handler) DeleteInterface(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid interface id")
		return
	}

	if err := h.ifaceRepo.Delete(r.Context(), id); err != nil {
		if HandleRepoError(w, h.logger, err, "interface not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	NoContent(w)
}

// SetInterfaceEnabled включает или выключает интерфейс.
// PUT /api/v1/interfaces/{id}/enabled
func (h *Handler) SetInterfaceEnabled(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid interface id")
		return
	}

	var req SetEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if err := h.ifaceRepo.SetEnabled(r.Context(), id, req.Enabled); err != nil {
		if HandleRepoError(w, h.logger, err, "interface not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	iface, err := h.ifaceRepo.GetInterface(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "interface not found") {
		return
	}

	Success(w, InterfaceFromDomain(*iface))
}

// TestInterface выполняет пробный вызов интерфейса и возвращает
// результат с попытками. Исчерпанные попытки — это тоже результат:
// ответ 200 с текстом ошибки и трейсом попыток внутри.
// POST /api/v1/interfaces/{id}/test
func (h *Handler) TestInterface(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid interface id")
		return
	}

	var req TestCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	result, callErr := h.dispatcher.Call(r.Context(), id, dispatch.CallOptions{
		Method:           req.Method,
		Path:             req.Path,
		Query:            req.Query,
		Headers:          req.Headers,
		Body:             req.Body,
		SOAPAction:       req.SOAPAction,
		GraphQLQuery:     req.GraphQLQuery,
		GraphQLVariables: req.GraphQLVariables,
		TimeoutSec:       req.TimeoutSec,
	})
	if callErr != nil && result == nil {
		switch {
		case errors.Is(callErr, repo.ErrNotFound):
			NotFound(w, "interface not found")
		case errors.Is(callErr, dispatch.ErrInterfaceDisabled):
			InvalidState(w, callErr.Error())
		case errors.Is(callErr, dispatch.ErrAuthentication):
			Success(w, TestCallResponse{Error: callErr.Error()})
		default:
			InternalError(w, h.logger, callErr)
		}
		return
	}

	resp := TestCallResponse{
		StatusCode: result.StatusCode,
		Headers:    result.Headers,
		Body:       result.Body,
		Attempts:   result.Attempts,
		Emulated:   result.Emulated,
	}
	if callErr != nil {
		resp.Error = callErr.Error()
	}

	Success(w, resp)
}

// parseProtocol проверяет протокол интерфейса. Пустой — rest.
func parseProtocol(s string) (domain.Protocol, error) {
	switch domain.Protocol(s) {
	case "":
		return domain.ProtocolREST, nil
	case domain.ProtocolREST, domain.ProtocolSOAP, domain.ProtocolGraphQL:
		return domain.Protocol(s), nil
	default:
		return "", errors.New("protocol must be one of: rest, soap, graphql")
	}
}

// validateAuth проверяет привязку аутентификации: всем типам кроме
// none нужен credential.
func validateAuth(auth domain.AuthConfig) error {
	switch auth.Type {
	case "", domain.AuthNone:
		return nil
	case domain.AuthAPIKey, domain.AuthBasic, domain.AuthBearer,
		domain.AuthOAuth2Client, domain.AuthJWTAssertion:
		if auth.CredentialID == nil {
			return errors.New("auth credential_id is required for type " + string(auth.Type))
		}
		return nil
	default:
		return errors.New("unknown auth type: " + string(auth.Type))
	}
}
