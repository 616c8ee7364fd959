package domain

import (
	"time"

	"github.com/google/uuid"
)

// CredentialType — тип секретного материала.
type CredentialType string

const (
	// CredentialAPIKey — одиночный ключ. Data: "api_key".
	CredentialAPIKey CredentialType = "api_key"

	// CredentialBasic — пара логин/пароль. Data: "username", "password".
	CredentialBasic CredentialType = "basic"

	// CredentialBearer — статический токен. Data: "token".
	CredentialBearer CredentialType = "bearer"

	// CredentialOAuth2Client — OAuth2 client credentials.
	// Data: "token_url", "client_id", "client_secret", "scopes"
	// (scopes — через пробел).
	CredentialOAuth2Client CredentialType = "oauth2_client"

	// CredentialJWTAssertion — подпись JWT assertion.
	// Data: "signing_key", "issuer", "audience", "subject",
	// "ttl_sec" (опционально).
	CredentialJWTAssertion CredentialType = "jwt_assertion"
)

// Credential — секретный материал для аутентификации интерфейса.
//
// Хранится отдельно от определений flow и интерфейсов; flow ссылается
// на интерфейс, интерфейс — на credential. Наружу (API, логи, трейс)
// секретные значения не отдаются никогда.
type Credential struct {
	// ID — уникальный идентификатор credential.
	ID uuid.UUID `json:"id"`

	// Name — человекочитаемое имя ("crm-oauth", "billing-key").
	Name string `json:"name"`

	// Type — тип секретного материала.
	Type CredentialType `json:"type"`

	// Data — ключ-значение с секретами. Состав зависит от Type.
	Data map[string]string `json:"data,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`
}

// Get возвращает значение по ключу или пустую строку.
func (c *Credential) Get(key string) string {
	if c == nil || c.Data == nil {
		return ""
	}
	return c.Data[key]
}

// Redacted возвращает копию без секретных значений — для ответов API.
func (c *Credential) Redacted() Credential {
	out := *c
	out.Data = nil
	return out
}
