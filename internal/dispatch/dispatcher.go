package dispatch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/torbel/Interflow/internal/domain"
	"github.com/torbel/Interflow/internal/telemetry"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseBody = 10 * 1024 * 1024 // 10 MB
)

// InterfaceStore читает зарегистрированные интерфейсы.
type InterfaceStore interface {
	GetInterface(ctx context.Context, id uuid.UUID) (*domain.InterfaceConfig, error)
}

// CredentialStore читает секретный материал по ID.
type CredentialStore interface {
	GetCredential(ctx context.Context, id uuid.UUID) (*domain.Credential, error)
}

// Dispatcher выполняет вызовы зарегистрированных интерфейсов.
//
// Для HTTP-семейства протоколов (REST/SOAP/GraphQL) запрос собирается
// слиянием настроек интерфейса с параметрами конкретного вызова,
// аутентифицируется и выполняется с таймаутом и retry.
type Dispatcher struct {
	interfaces  InterfaceStore
	credentials CredentialStore
	tokens      *TokenCache
	logger      *slog.Logger
}

// Config — конфигурация Dispatcher.
type Config struct {
	// Interfaces — хранилище интерфейсов.
	Interfaces InterfaceStore

	// Credentials — хранилище секретов.
	Credentials CredentialStore

	// Tokens — кеш токенов. Nil — создаётся новый.
	Tokens *TokenCache

	// Logger — логгер. Nil — slog.Default().
	Logger *slog.Logger
}

// New создаёт Dispatcher.
func New(cfg Config) *Dispatcher {
	tokens := cfg.Tokens
	if tokens == nil {
		tokens = NewTokenCache()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		interfaces:  cfg.Interfaces,
		credentials: cfg.Credentials,
		tokens:      tokens,
		logger:      logger,
	}
}

// Tokens возвращает кеш токенов (для прогрева и инспекции в тестах).
func (d *Dispatcher) Tokens() *TokenCache {
	return d.tokens
}

// CallOptions — параметры одного вызова поверх настроек интерфейса.
type CallOptions struct {
	// Method — HTTP метод. Пустой — GET для REST, POST для SOAP/GraphQL.
	Method string

	// Path — путь относительно BaseURL интерфейса.
	Path string

	// Query — query-параметры вызова. Перекрывают параметры интерфейса.
	Query map[string]string

	// Headers — заголовки вызова. Перекрывают заголовки интерфейса.
	Headers map[string]string

	// Body — тело запроса: string/[]byte как есть, прочее — JSON.
	Body any

	// SOAPAction — значение заголовка SOAPAction для SOAP.
	SOAPAction string

	// GraphQLQuery и GraphQLVariables — запрос для GraphQL интерфейсов.
	GraphQLQuery     string
	GraphQLVariables map[string]any

	// TimeoutSec — таймаут вызова. 0 — таймаут интерфейса.
	TimeoutSec int

	// Retry — переопределение политики retry интерфейса.
	Retry *domain.RetryPolicy
}

// Result — нормализованный результат вызова.
//
// При исчерпании попыток Result возвращается ВМЕСТЕ с ошибкой:
// список Attempts нужен трейсу и в случае провала.
type Result struct {
	// StatusCode — HTTP статус последнего ответа.
	StatusCode int

	// Headers — заголовки ответа.
	Headers map[string]string

	// Body — распарсенное тело: JSON → значение, иначе строка.
	Body any

	// Attempts — все выполненные попытки по порядку.
	Attempts []domain.CallAttempt

	// Emulated — вызов выполнен в режиме эмуляции, сеть не затронута.
	Emulated bool
}

// Call выполняет вызов интерфейса.
//
// Порядок: поиск интерфейса (NotFound/Disabled), эмуляция, сборка
// запроса, аутентификация, попытки с retry. На 401/403 кешированный
// токен инвалидируется и обновляется до следующей попытки; прочие
// провалы ждут настроенную задержку. После исчерпания попыток —
// ErrConnectivity с последней причиной внутри.
func (d *Dispatcher) Call(ctx context.Context, id uuid.UUID, opts CallOptions) (*Result, error) {
	// Во время run движок кладёт в контекст логгер с run_id, trace_id
	// и node_id; вызовы вне run (тестовый вызов из API) идут со своим.
	logger := d.logger
	if l, ok := telemetry.FromContext(ctx); ok {
		logger = l
	}

	iface, err := d.interfaces.GetInterface(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("interface %s: %w", id, err)
	}
	if !iface.IsEnabled {
		return nil, fmt.Errorf("%w: %s", ErrInterfaceDisabled, iface.Name)
	}

	// Шаг 1 порядка аутентификации: режим эмуляции.
	// Синтетическая учётка, ответ без сетевого вызова.
	if iface.Emulate {
		return d.emulate(logger, iface, opts), nil
	}

	auth, err := d.resolveAuth(ctx, iface)
	if err != nil {
		return nil, err
	}

	retry := iface.Retry
	if opts.Retry != nil {
		retry = *opts.Retry
	}
	retry = retry.Normalized()

	var (
		attempts []domain.CallAttempt
		lastErr  error
		lastRes  *Result
	)

	for attempt := 1; attempt <= retry.Attempts; attempt++ {
		res, info, err := d.doAttempt(ctx, iface, opts, auth, attempt)
		attempts = append(attempts, info)
		telemetry.DispatchAttempts.Inc()

		if err == nil {
			retriable := needsRetry(res.StatusCode, retry.OnStatus)
			// 401/403 повторяется только когда адаптер способен
			// выдать свежий токен. Inline-секрет не изменится.
			if isAuthStatus(res.StatusCode) && auth.isAdapter() {
				retriable = true
			}
			if !retriable {
				res.Attempts = attempts
				return res, nil
			}
		}

		if err != nil {
			lastErr = err
		} else {
			lastRes = res
			lastErr = fmt.Errorf("http status %d", res.StatusCode)
		}

		if attempt == retry.Attempts {
			break
		}

		if res != nil && isAuthStatus(res.StatusCode) && auth.isAdapter() {
			// 401/403: сбрасываем токен и получаем новый до того,
			// как следующая попытка будет израсходована.
			if rerr := d.refreshToken(ctx, logger, auth); rerr != nil {
				return &Result{Attempts: attempts}, rerr
			}
			continue
		}

		select {
		case <-time.After(retry.Delay()):
		case <-ctx.Done():
			return &Result{Attempts: attempts}, ctx.Err()
		}
	}

	out := &Result{Attempts: attempts}
	if lastRes != nil {
		out.StatusCode = lastRes.StatusCode
		out.Headers = lastRes.Headers
		out.Body = lastRes.Body
	}
	return out, fmt.Errorf("%w: %s after %d attempts: %v",
		ErrConnectivity, iface.Name, len(attempts), lastErr)
}

// emulate возвращает синтетический результат тестового вызова.
func (d *Dispatcher) emulate(logger *slog.Logger, iface *domain.InterfaceConfig, opts CallOptions) *Result {
	logger.Info("interface call emulated",
		"interface", iface.Name,
		"protocol", iface.Protocol,
		"path", opts.Path,
	)
	body := map[string]any{
		"emulated":  true,
		"interface": iface.Name,
		"protocol":  string(iface.Protocol),
		"path":      opts.Path,
		"auth":      string(iface.Auth.Type) + ":mock",
	}
	return &Result{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
		Attempts: []domain.CallAttempt{
			{Number: 1, StatusCode: http.StatusOK},
		},
		Emulated: true,
	}
}

// authState — разрешённый способ аутентификации вызова.
type authState struct {
	typ        domain.AuthType
	cred       *domain.Credential
	provider   TokenProvider
	cacheKey   string
	headerName string
}

func (a *authState) isAdapter() bool {
	return a.typ.IsAdapter()
}

// resolveAuth разрешает способ аутентификации интерфейса.
//
// Порядок (эмуляция обработана раньше): auth-адаптер с провайдером
// токенов; legacy inline секрет (api_key/bearer/basic); none.
func (d *Dispatcher) resolveAuth(ctx context.Context, iface *domain.InterfaceConfig) (*authState, error) {
	st := &authState{typ: iface.Auth.Type, headerName: iface.Auth.HeaderName}
	if st.typ == "" || st.typ == domain.AuthNone {
		st.typ = domain.AuthNone
		return st, nil
	}

	if iface.Auth.CredentialID == nil {
		return nil, fmt.Errorf("%w: interface %s: auth %s requires a credential",
			ErrAuthentication, iface.Name, st.typ)
	}

	cred, err := d.credentials.GetCredential(ctx, *iface.Auth.CredentialID)
	if err != nil {
		return nil, fmt.Errorf("%w: interface %s: credential: %v",
			ErrAuthentication, iface.Name, err)
	}
	st.cred = cred

	if st.isAdapter() {
		provider, err := providerFor(cred)
		if err != nil {
			return nil, err
		}
		st.provider = provider
		st.cacheKey = cred.ID.String()
	}
	return st, nil
}

// applyAuth добавляет учётные данные в запрос.
// Для адаптеров токен берётся через кеш (single-flight внутри).
func (d *Dispatcher) applyAuth(ctx context.Context, req *http.Request, st *authState) error {
	switch st.typ {
	case domain.AuthNone:
		return nil

	case domain.AuthAPIKey:
		header := st.headerName
		if header == "" {
			header = "X-API-Key"
		}
		req.Header.Set(header, st.cred.Get("api_key"))
		return nil

	case domain.AuthBearer:
		req.Header.Set("Authorization", "Bearer "+st.cred.Get("token"))
		return nil

	case domain.AuthBasic:
		req.SetBasicAuth(st.cred.Get("username"), st.cred.Get("password"))
		return nil

	case domain.AuthOAuth2Client, domain.AuthJWTAssertion:
		tok, err := d.tokens.Get(ctx, st.cacheKey, st.provider.FetchToken)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", tok.AuthorizationValue())
		return nil

	default:
		return fmt.Errorf("%w: unknown auth type %q", ErrAuthentication, st.typ)
	}
}

// refreshToken сбрасывает кешированный токен адаптера и получает новый.
func (d *Dispatcher) refreshToken(ctx context.Context, logger *slog.Logger, st *authState) error {
	d.tokens.Invalidate(st.cacheKey)
	_, err := d.tokens.Get(ctx, st.cacheKey, st.provider.FetchToken)
	if err != nil {
		telemetry.TokenRefreshes.WithLabelValues("error").Inc()
		logger.Warn("token refresh failed", "adapter", st.cacheKey, "error", err)
		return err
	}
	telemetry.TokenRefreshes.WithLabelValues("ok").Inc()
	logger.Debug("token refreshed after auth failure", "adapter", st.cacheKey)
	return nil
}

// doAttempt выполняет одну попытку вызова.
func (d *Dispatcher) doAttempt(ctx context.Context, iface *domain.InterfaceConfig, opts CallOptions, st *authState, number int) (*Result, domain.CallAttempt, error) {
	info := domain.CallAttempt{Number: number}

	req, err := d.buildRequest(ctx, iface, opts)
	if err != nil {
		info.Error = err.Error()
		return nil, info, err
	}

	if err := d.applyAuth(ctx, req, st); err != nil {
		info.Error = err.Error()
		return nil, info, err
	}

	timeout := defaultTimeout
	if iface.TimeoutSec > 0 {
		timeout = time.Duration(iface.TimeoutSec) * time.Second
	}
	if opts.TimeoutSec > 0 {
		timeout = time.Duration(opts.TimeoutSec) * time.Second
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := d.buildClient(iface, timeout)
	start := time.Now()
	resp, err := client.Do(req.WithContext(callCtx))
	info.DurationMs = time.Since(start).Milliseconds()

	if err != nil {
		info.Error = err.Error()
		return nil, info, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	res, err := parseResponse(resp)
	if err != nil {
		info.Error = err.Error()
		return nil, info, err
	}

	info.StatusCode = res.StatusCode
	if res.StatusCode >= 400 {
		info.Error = fmt.Sprintf("HTTP %d: %s", res.StatusCode, truncateBody(res.Body))
	}
	return res, info, nil
}

// buildClient создаёт HTTP клиент под настройки интерфейса.
func (d *Dispatcher) buildClient(iface *domain.InterfaceConfig, timeout time.Duration) *http.Client {
	client := &http.Client{Timeout: timeout}
	if iface.InsecureSkipTLS {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return client
}

// buildRequest собирает запрос, сливая настройки интерфейса
// с параметрами вызова. Параметры вызова сильнее.
func (d *Dispatcher) buildRequest(ctx context.Context, iface *domain.InterfaceConfig, opts CallOptions) (*http.Request, error) {
	target, err := joinURL(iface.BaseURL, opts.Path)
	if err != nil {
		return nil, fmt.Errorf("build url: %w", err)
	}

	query := url.Values{}
	for k, v := range iface.Query {
		query.Set(k, v)
	}
	for k, v := range opts.Query {
		query.Set(k, v)
	}
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	method, body, contentType, err := d.protocolPayload(iface, opts)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}

	for k, v := range iface.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}
	if iface.Protocol == domain.ProtocolSOAP && opts.SOAPAction != "" {
		req.Header.Set("SOAPAction", opts.SOAPAction)
	}

	return req, nil
}

// protocolPayload возвращает метод, тело и Content-Type по протоколу.
func (d *Dispatcher) protocolPayload(iface *domain.InterfaceConfig, opts CallOptions) (string, []byte, string, error) {
	switch iface.Protocol {
	case domain.ProtocolGraphQL:
		payload := map[string]any{"query": opts.GraphQLQuery}
		if len(opts.GraphQLVariables) > 0 {
			payload["variables"] = opts.GraphQLVariables
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return "", nil, "", fmt.Errorf("marshal graphql payload: %w", err)
		}
		return http.MethodPost, body, "application/json", nil

	case domain.ProtocolSOAP:
		body, err := serializeBody(opts.Body)
		if err != nil {
			return "", nil, "", err
		}
		contentType := iface.ContentType
		if contentType == "" {
			contentType = "text/xml; charset=utf-8"
		}
		return http.MethodPost, body, contentType, nil

	default: // REST
		method := strings.ToUpper(opts.Method)
		if method == "" {
			method = http.MethodGet
			if opts.Body != nil {
				method = http.MethodPost
			}
		}
		body, err := serializeBody(opts.Body)
		if err != nil {
			return "", nil, "", err
		}
		contentType := iface.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		return method, body, contentType, nil
	}
}

// serializeBody приводит тело к байтам: строки как есть, прочее — JSON.
func serializeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		return data, nil
	}
}

// parseResponse нормализует HTTP ответ.
func parseResponse(resp *http.Response) (*Result, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var body any
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &body); err != nil {
			body = string(raw)
		}
	} else {
		body = string(raw)
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	return &Result{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Body:       body,
	}, nil
}

// isAuthStatus — статусы, требующие обновления учётных данных.
func isAuthStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// needsRetry решает, требует ли статус повторной попытки.
func needsRetry(status int, onStatus []int) bool {
	if len(onStatus) > 0 {
		for _, s := range onStatus {
			if s == status {
				return true
			}
		}
		return false
	}
	return status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= 500
}

// joinURL склеивает базовый URL и путь вызова.
func joinURL(base, path string) (string, error) {
	if path == "" {
		return base, nil
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path, nil
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/"), nil
}

// truncateBody обрезает тело для текста ошибки.
func truncateBody(body any) string {
	s := fmt.Sprintf("%v", body)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
