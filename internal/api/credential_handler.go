package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/torbel/Interflow/internal/domain"
)

// ListCredentials возвращает список credentials без секретных значений.
// GET /api/v1/credentials
func (h *Handler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	credentials, err := h.credRepo.List(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]CredentialResponse, len(credentials))
	for i, cred := range credentials {
		result[i] = CredentialFromDomain(cred)
	}

	List(w, result, len(result))
}

// CreateCredential создаёт credential. Секретные значения принимаются
// в теле запроса и обратно уже не отдаются.
// POST /api/v1/credentials
func (h *Handler) CreateCredential(w http.ResponseWriter, r *http.Request) {
	var req CreateCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}
	credType, err := parseCredentialType(req.Type)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	if len(req.Data) == 0 {
		BadRequest(w, "data is required")
		return
	}

	cred := &domain.Credential{
		ID:        uuid.New(),
		Name:      req.Name,
		Type:      credType,
		Data:      req.Data,
		CreatedAt: time.Now(),
	}

	if err := h.credRepo.Create(r.Context(), cred); err != nil {
		if HandleRepoError(w, h.logger, err, "") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	Created(w, CredentialFromDomain(*cred))
}

// GetCredential возвращает credential без секретных значений.
// GET /api/v1/credentials/{id}
func (h *Handler) GetCredential(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid credential id")
		return
	}

	cred, err := h.credRepo.GetCredential(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "credential not found") {
		return
	}

	Success(w, CredentialFromDomain(*cred))
}

// UpdateCredential обновляет credential. Новые данные заменяют
// старые целиком.
// PUT /api/v1/credentials/{id}
func (h *Handler) UpdateCredential(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid credential id")
		return
	}

	var req UpdateCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	cred, err := h.credRepo.GetCredential(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "credential not found") {
		return
	}

	if req.Name != nil {
		cred.Name = *req.Name
	}
	if req.Type != nil {
		credType, err := parseCredentialType(*req.Type)
		if err != nil {
			BadRequest(w, err.Error())
			return
		}
		cred.Type = credType
	}
	if req.Data != nil {
		if len(*req.Data) == 0 {
			BadRequest(w, "data must not be empty")
			return
		}
		cred.Data = *req.Data
	}

	if err := h.credRepo.Update(r.Context(), cred); err != nil {
		if HandleRepoError(w, h.logger, err, "credential not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	Success(w, CredentialFromDomain(*cred))
}

// DeleteCredential удаляет credential.
// DELETE /api/v1/credentials/{id}
func (h *Handler) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid credential id")
		return
	}

	if err := h.credRepo.Delete(r.Context(), id); err != nil {
		if HandleRepoError(w, h.logger, err, "credential not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	NoContent(w)
}

// parseCredentialType проверяет тип credential.
func parseCredentialType(s string) (domain.CredentialType, error) {
	switch domain.CredentialType(s) {
	case domain.CredentialAPIKey, domain.CredentialBasic, domain.CredentialBearer,
		domain.CredentialOAuth2Client, domain.CredentialJWTAssertion:
		return domain.CredentialType(s), nil
	default:
		return "", errors.New("type must be one of: api_key, basic, bearer, oauth2_client, jwt_assertion")
	}
}
