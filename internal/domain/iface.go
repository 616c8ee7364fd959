package domain

import (
	"time"

	"github.com/google/uuid"
)

// Protocol — семейство протоколов зарегистрированного интерфейса.
type Protocol string

const (
	// ProtocolREST — обычный HTTP/JSON.
	ProtocolREST Protocol = "rest"

	// ProtocolSOAP — XML поверх HTTP с заголовком SOAPAction.
	ProtocolSOAP Protocol = "soap"

	// ProtocolGraphQL — POST с телом {query, variables}.
	ProtocolGraphQL Protocol = "graphql"
)

// InterfaceConfig — зарегистрированная внешняя система.
//
// Интерфейс описывает, КАК разговаривать с внешним API: базовый URL,
// заголовки по умолчанию, таймаут, политику retry и способ
// аутентификации. Узлы flow ссылаются на интерфейс только по ID —
// секреты и настройки подключения в определение flow не попадают.
type InterfaceConfig struct {
	// ID — уникальный идентификатор интерфейса.
	ID uuid.UUID `json:"id"`

	// Name — человекочитаемое имя ("crm-production", "billing-api").
	Name string `json:"name"`

	// Protocol — семейство протокола: rest, soap, graphql.
	Protocol Protocol `json:"protocol"`

	// BaseURL — базовый адрес внешней системы.
	BaseURL string `json:"base_url"`

	// Headers — заголовки по умолчанию, добавляются к каждому вызову.
	// Переопределяются заголовками конкретного вызова.
	Headers map[string]string `json:"headers,omitempty"`

	// Query — query-параметры по умолчанию.
	Query map[string]string `json:"query,omitempty"`

	// ContentType — Content-Type по умолчанию.
	// Пустой — "application/json" (для SOAP — "text/xml; charset=utf-8").
	ContentType string `json:"content_type,omitempty"`

	// TimeoutSec — таймаут одного вызова в секундах. 0 — значение
	// по умолчанию (30 секунд).
	TimeoutSec int `json:"timeout_sec,omitempty"`

	// InsecureSkipTLS — отключить проверку TLS-сертификата.
	InsecureSkipTLS bool `json:"insecure_skip_tls,omitempty"`

	// Retry — политика повторных попыток для вызовов этого интерфейса.
	Retry RetryPolicy `json:"retry"`

	// Auth — способ аутентификации исходящих вызовов.
	Auth AuthConfig `json:"auth"`

	// Schema — опциональная схема допустимых условий.
	// Если задана, все условия, привязанные к интерфейсу, проверяются
	// против неё до вычисления. Nil — "открытый" интерфейс без схемы.
	Schema *ConditionSchema `json:"schema,omitempty"`

	// IsEnabled — административный флаг. Выключенный интерфейс
	// недоступен для dispatch.
	IsEnabled bool `json:"is_enabled"`

	// Emulate — режим эмуляции: вызовы не уходят в сеть, возвращается
	// синтетический ответ с mock-учёткой. Для тестовых прогонов flow.
	Emulate bool `json:"emulate,omitempty"`

	// CreatedAt — время регистрации.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// RetryPolicy — политика повторных попыток исходящего вызова.
type RetryPolicy struct {
	// Attempts — общее количество попыток, включая первую.
	Attempts int `json:"attempts,omitempty"`

	// DelayMs — задержка между попытками в миллисекундах.
	DelayMs int `json:"delay_ms,omitempty"`

	// OnStatus — HTTP статусы, при которых делается retry.
	// Пустой список — набор по умолчанию (408, 429, 5xx).
	OnStatus []int `json:"on_status,omitempty"`
}

// Значения retry по умолчанию.
const (
	DefaultRetryAttempts = 3
	DefaultRetryDelayMs  = 1000
)

// Normalized возвращает политику с заполненными значениями по умолчанию.
func (p RetryPolicy) Normalized() RetryPolicy {
	out := p
	if out.Attempts <= 0 {
		out.Attempts = DefaultRetryAttempts
	}
	if out.DelayMs <= 0 {
		out.DelayMs = DefaultRetryDelayMs
	}
	return out
}

// Delay возвращает задержку между попытками.
func (p RetryPolicy) Delay() time.Duration {
	return time.Duration(p.DelayMs) * time.Millisecond
}

// AuthType — способ аутентификации интерфейса.
type AuthType string

const (
	// AuthNone — без аутентификации.
	AuthNone AuthType = "none"

	// AuthAPIKey — legacy inline: ключ в заголовке.
	AuthAPIKey AuthType = "api_key"

	// AuthBasic — legacy inline: HTTP Basic.
	AuthBasic AuthType = "basic"

	// AuthBearer — legacy inline: статический bearer-токен.
	AuthBearer AuthType = "bearer"

	// AuthOAuth2Client — адаптер OAuth2 client credentials.
	AuthOAuth2Client AuthType = "oauth2_client"

	// AuthJWTAssertion — адаптер с самоподписанным JWT assertion.
	AuthJWTAssertion AuthType = "jwt_assertion"
)

// IsAdapter возвращает true для типов, работающих через auth-адаптер
// и кеш токенов (в отличие от legacy inline секретов).
func (t AuthType) IsAdapter() bool {
	return t == AuthOAuth2Client || t == AuthJWTAssertion
}

// AuthConfig — привязка интерфейса к способу аутентификации.
//
// Сам секретный материал живёт в Credential и подтягивается по
// CredentialID в момент dispatch.
type AuthConfig struct {
	// Type — способ аутентификации.
	Type AuthType `json:"type"`

	// CredentialID — ссылка на credential с секретным материалом.
	// Обязателен для всех типов кроме none.
	CredentialID *uuid.UUID `json:"credential_id,omitempty"`

	// HeaderName — имя заголовка для api_key.
	// Пустое — "X-API-Key".
	HeaderName string `json:"header_name,omitempty"`
}

// ConditionSchema — схема допустимых условий интерфейса.
//
// Ограничивает, по каким полям и какими операторами можно ветвиться
// в условиях, привязанных к этому интерфейсу. Проверка выполняется
// на сервере до вычисления условия, чтобы клиент не мог обойти
// ограничения, отправив сырое условие напрямую в API.
type ConditionSchema struct {
	// Fields — допустимые поля и их ограничения.
	Fields map[string]FieldSchema `json:"fields"`
}

// FieldSchema — ограничения одного поля схемы.
type FieldSchema struct {
	// Operators — допустимые операторы для поля.
	// Пустой список — разрешены все операторы из whitelist.
	Operators []string `json:"operators,omitempty"`

	// Values — допустимые значения сравнения (enum).
	// Пустой список — любое значение.
	Values []string `json:"values,omitempty"`
}

// Field возвращает схему поля и признак его присутствия.
func (s *ConditionSchema) Field(name string) (FieldSchema, bool) {
	if s == nil || s.Fields == nil {
		return FieldSchema{}, false
	}
	fs, ok := s.Fields[name]
	return fs, ok
}
