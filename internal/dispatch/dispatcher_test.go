package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/torbel/Interflow/internal/domain"
)

var errIfaceMissing = errors.New("interface not found")

type fakeInterfaceStore struct {
	ifaces map[uuid.UUID]*domain.InterfaceConfig
}

func (s *fakeInterfaceStore) GetInterface(ctx context.Context, id uuid.UUID) (*domain.InterfaceConfig, error) {
	iface, ok := s.ifaces[id]
	if !ok {
		return nil, errIfaceMissing
	}
	return iface, nil
}

type fakeCredentialStore struct {
	creds map[uuid.UUID]*domain.Credential
}

func (s *fakeCredentialStore) GetCredential(ctx context.Context, id uuid.UUID) (*domain.Credential, error) {
	cred, ok := s.creds[id]
	if !ok {
		return nil, errors.New("credential not found")
	}
	return cred, nil
}

func newTestDispatcher(ifaces []*domain.InterfaceConfig, creds []*domain.Credential) *Dispatcher {
	is := &fakeInterfaceStore{ifaces: map[uuid.UUID]*domain.InterfaceConfig{}}
	for _, i := range ifaces {
		is.ifaces[i.ID] = i
	}
	cs := &fakeCredentialStore{creds: map[uuid.UUID]*domain.Credential{}}
	for _, c := range creds {
		cs.creds[c.ID] = c
	}
	return New(Config{Interfaces: is, Credentials: cs})
}

func restIface(baseURL string) *domain.InterfaceConfig {
	return &domain.InterfaceConfig{
		ID:        uuid.New(),
		Name:      "orders",
		Protocol:  domain.ProtocolREST,
		BaseURL:   baseURL,
		IsEnabled: true,
		Retry:     domain.RetryPolicy{Attempts: 1},
	}
}

// --- Lookup Tests ---

func TestDispatcher_Call_NotFound(t *testing.T) {
	d := newTestDispatcher(nil, nil)

	_, err := d.Call(context.Background(), uuid.New(), CallOptions{})
	if !errors.Is(err, errIfaceMissing) {
		t.Errorf("expected store error to propagate, got %v", err)
	}
}

func TestDispatcher_Call_Disabled(t *testing.T) {
	iface := restIface("http://unused.invalid")
	iface.IsEnabled = false
	d := newTestDispatcher([]*domain.InterfaceConfig{iface}, nil)

	_, err := d.Call(context.Background(), iface.ID, CallOptions{})
	if !errors.Is(err, ErrInterfaceDisabled) {
		t.Errorf("expected ErrInterfaceDisabled, got %v", err)
	}
}

// --- REST Tests ---

func TestDispatcher_Call_REST(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/v1/orders" {
			t.Errorf("expected /v1/orders, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"total": 3})
	}))
	defer server.Close()

	iface := restIface(server.URL)
	d := newTestDispatcher([]*domain.InterfaceConfig{iface}, nil)

	res, err := d.Call(context.Background(), iface.ID, CallOptions{Path: "/v1/orders"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StatusCode != 200 {
		t.Errorf("expected 200, got %d", res.StatusCode)
	}

	body, ok := res.Body.(map[string]any)
	if !ok {
		t.Fatalf("expected JSON body as map, got %T", res.Body)
	}
	if body["total"] != float64(3) {
		t.Errorf("expected total 3, got %v", body["total"])
	}
	if len(res.Attempts) != 1 {
		t.Errorf("expected 1 attempt, got %d", len(res.Attempts))
	}
}

func TestDispatcher_Call_HeaderQueryMerge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Base") != "iface" {
			t.Errorf("expected interface header, got %q", r.Header.Get("X-Base"))
		}
		// Параметры вызова перекрывают настройки интерфейса
		if r.Header.Get("X-Both") != "call" {
			t.Errorf("expected call override, got %q", r.Header.Get("X-Both"))
		}
		q := r.URL.Query()
		if q.Get("env") != "prod" || q.Get("page") != "3" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	iface := restIface(server.URL)
	iface.Headers = map[string]string{"X-Base": "iface", "X-Both": "iface"}
	iface.Query = map[string]string{"env": "prod"}
	d := newTestDispatcher([]*domain.InterfaceConfig{iface}, nil)

	_, err := d.Call(context.Background(), iface.ID, CallOptions{
		Headers: map[string]string{"X-Both": "call"},
		Query:   map[string]string{"page": "3"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDispatcher_Call_PostBody(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST for body without method, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %q", ct)
		}
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	iface := restIface(server.URL)
	d := newTestDispatcher([]*domain.InterfaceConfig{iface}, nil)

	res, err := d.Call(context.Background(), iface.ID, CallOptions{
		Body: map[string]any{"sku": "A-1", "qty": 2},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StatusCode != http.StatusCreated {
		t.Errorf("expected 201, got %d", res.StatusCode)
	}
	if received["sku"] != "A-1" {
		t.Errorf("expected body to reach server, got %v", received)
	}
}

// --- Retry Tests ---

func TestDispatcher_Call_RetryExhausted(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	iface := restIface(server.URL)
	iface.Retry = domain.RetryPolicy{Attempts: 3, DelayMs: 1}
	d := newTestDispatcher([]*domain.InterfaceConfig{iface}, nil)

	res, err := d.Call(context.Background(), iface.ID, CallOptions{})
	if !errors.Is(err, ErrConnectivity) {
		t.Fatalf("expected ErrConnectivity, got %v", err)
	}

	// Результат с попытками возвращается и при провале: трейсу
	// нужен список попыток
	if res == nil {
		t.Fatal("result with attempts should accompany the error")
	}
	if len(res.Attempts) != 3 {
		t.Errorf("expected 3 attempts, got %d", len(res.Attempts))
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("expected 3 server hits, got %d", got)
	}
	for i, a := range res.Attempts {
		if a.Number != i+1 {
			t.Errorf("attempt %d: expected number %d, got %d", i, i+1, a.Number)
		}
		if a.StatusCode != 500 {
			t.Errorf("attempt %d: expected 500, got %d", i, a.StatusCode)
		}
	}
}

func TestDispatcher_Call_RetryRecovers(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer server.Close()

	iface := restIface(server.URL)
	iface.Retry = domain.RetryPolicy{Attempts: 3, DelayMs: 1}
	d := newTestDispatcher([]*domain.InterfaceConfig{iface}, nil)

	res, err := d.Call(context.Background(), iface.ID, CallOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StatusCode != 200 {
		t.Errorf("expected 200, got %d", res.StatusCode)
	}
	if len(res.Attempts) != 3 {
		t.Errorf("expected 3 attempts, got %d", len(res.Attempts))
	}
}

func TestDispatcher_Call_NonRetriable4xx(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	iface := restIface(server.URL)
	iface.Retry = domain.RetryPolicy{Attempts: 3, DelayMs: 1}
	d := newTestDispatcher([]*domain.InterfaceConfig{iface}, nil)

	// 404 не входит в retriable статусы: одна попытка, без ошибки.
	// Решение о провале узла принимает вызывающий по статусу.
	res, err := d.Call(context.Background(), iface.ID, CallOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StatusCode != 404 {
		t.Errorf("expected 404, got %d", res.StatusCode)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("expected 1 server hit, got %d", got)
	}
}

func TestDispatcher_Call_RetryOnStatusOverride(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	iface := restIface(server.URL)
	// Свой список retriable статусов вытесняет дефолтный: 500 в нём нет
	iface.Retry = domain.RetryPolicy{Attempts: 3, DelayMs: 1, OnStatus: []int{418}}
	d := newTestDispatcher([]*domain.InterfaceConfig{iface}, nil)

	res, err := d.Call(context.Background(), iface.ID, CallOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StatusCode != 500 {
		t.Errorf("expected 500 without retry, got %d", res.StatusCode)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("expected 1 server hit, got %d", got)
	}
}

func TestDispatcher_Call_ContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	iface := restIface(server.URL)
	d := newTestDispatcher([]*domain.InterfaceConfig{iface}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res, err := d.Call(ctx, iface.ID, CallOptions{})
	if !errors.Is(err, ErrConnectivity) {
		t.Fatalf("expected ErrConnectivity, got %v", err)
	}
	if res == nil || len(res.Attempts) != 1 {
		t.Fatalf("expected 1 recorded attempt, got %+v", res)
	}
	if res.Attempts[0].Error == "" {
		t.Error("attempt error should be recorded")
	}
}

// --- Auth Tests ---

func TestDispatcher_Call_APIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Service-Key"); got != "k-123" {
			t.Errorf("expected api key header, got %q", got)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cred := &domain.Credential{
		ID:   uuid.New(),
		Name: "orders-key",
		Type: domain.CredentialAPIKey,
		Data: map[string]string{"api_key": "k-123"},
	}
	iface := restIface(server.URL)
	iface.Auth = domain.AuthConfig{
		Type:         domain.AuthAPIKey,
		CredentialID: &cred.ID,
		HeaderName:   "X-Service-Key",
	}
	d := newTestDispatcher([]*domain.InterfaceConfig{iface}, []*domain.Credential{cred})

	if _, err := d.Call(context.Background(), iface.ID, CallOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDispatcher_Call_BasicAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "svc" || pass != "pw" {
			t.Errorf("expected basic auth svc:pw, got %s:%s", user, pass)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cred := &domain.Credential{
		ID:   uuid.New(),
		Type: domain.CredentialBasic,
		Data: map[string]string{"username": "svc", "password": "pw"},
	}
	iface := restIface(server.URL)
	iface.Auth = domain.AuthConfig{Type: domain.AuthBasic, CredentialID: &cred.ID}
	d := newTestDispatcher([]*domain.InterfaceConfig{iface}, []*domain.Credential{cred})

	if _, err := d.Call(context.Background(), iface.ID, CallOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDispatcher_Call_MissingCredential(t *testing.T) {
	iface := restIface("http://unused.invalid")
	iface.Auth = domain.AuthConfig{Type: domain.AuthAPIKey} // CredentialID нет
	d := newTestDispatcher([]*domain.InterfaceConfig{iface}, nil)

	_, err := d.Call(context.Background(), iface.ID, CallOptions{})
	if !errors.Is(err, ErrAuthentication) {
		t.Errorf("expected ErrAuthentication, got %v", err)
	}
}

func TestDispatcher_Call_LegacyAuth401NotRetried(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	cred := &domain.Credential{
		ID:   uuid.New(),
		Type: domain.CredentialBearer,
		Data: map[string]string{"token": "static"},
	}
	iface := restIface(server.URL)
	iface.Auth = domain.AuthConfig{Type: domain.AuthBearer, CredentialID: &cred.ID}
	iface.Retry = domain.RetryPolicy{Attempts: 3, DelayMs: 1}
	d := newTestDispatcher([]*domain.InterfaceConfig{iface}, []*domain.Credential{cred})

	// Inline-секрет не обновить: повтор с тем же токеном бессмысленен
	res, err := d.Call(context.Background(), iface.ID, CallOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StatusCode != 401 {
		t.Errorf("expected 401, got %d", res.StatusCode)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("expected 1 server hit, got %d", got)
	}
}

func TestDispatcher_Call_AdapterRefreshOn401(t *testing.T) {
	var (
		hits    atomic.Int32
		first   string
		second  string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch hits.Add(1) {
		case 1:
			first = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusUnauthorized)
		default:
			second = r.Header.Get("Authorization")
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{"ok": true})
		}
	}))
	defer server.Close()

	cred := &domain.Credential{
		ID:   uuid.New(),
		Type: domain.CredentialJWTAssertion,
		Data: map[string]string{
			"signing_key": "test-secret",
			"issuer":      "interflow-test",
			"audience":    "orders",
		},
	}
	iface := restIface(server.URL)
	iface.Auth = domain.AuthConfig{Type: domain.AuthJWTAssertion, CredentialID: &cred.ID}
	iface.Retry = domain.RetryPolicy{Attempts: 3, DelayMs: 1}
	d := newTestDispatcher([]*domain.InterfaceConfig{iface}, []*domain.Credential{cred})

	// Подсовываем в кеш протухший на стороне сервера токен
	stale := func(ctx context.Context) (Token, error) {
		return Token{Value: "stale-token", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	if _, err := d.Tokens().Get(context.Background(), cred.ID.String(), stale); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	res, err := d.Call(context.Background(), iface.ID, CallOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StatusCode != 200 {
		t.Errorf("expected 200 after refresh, got %d", res.StatusCode)
	}
	if len(res.Attempts) != 2 {
		t.Errorf("expected 2 attempts, got %d", len(res.Attempts))
	}

	// Повтор идёт уже со свежим токеном
	if first != "Bearer stale-token" {
		t.Errorf("first attempt should carry cached token, got %q", first)
	}
	if second == first {
		t.Error("second attempt should carry a refreshed token")
	}
	if !strings.HasPrefix(second, "Bearer ey") {
		t.Errorf("refreshed token should be a signed JWT, got %q", second)
	}
}

// --- Emulation Tests ---

func TestDispatcher_Call_Emulation(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	iface := restIface(server.URL)
	iface.Emulate = true
	d := newTestDispatcher([]*domain.InterfaceConfig{iface}, nil)

	res, err := d.Call(context.Background(), iface.ID, CallOptions{Path: "/v1/ping"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Emulated {
		t.Error("result should be marked emulated")
	}
	if res.StatusCode != 200 {
		t.Errorf("expected synthetic 200, got %d", res.StatusCode)
	}

	// Сеть не затрагивается
	if got := hits.Load(); got != 0 {
		t.Errorf("expected 0 server hits, got %d", got)
	}

	body, ok := res.Body.(map[string]any)
	if !ok || body["emulated"] != true {
		t.Errorf("expected emulated body, got %v", res.Body)
	}
}

// --- Protocol Tests ---

func TestDispatcher_Call_SOAP(t *testing.T) {
	envelope := `<soap:Envelope><soap:Body><GetOrder/></soap:Body></soap:Envelope>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("SOAP must POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); !strings.Contains(ct, "text/xml") {
			t.Errorf("expected text/xml, got %q", ct)
		}
		if got := r.Header.Get("SOAPAction"); got != "GetOrder" {
			t.Errorf("expected SOAPAction GetOrder, got %q", got)
		}
		w.Header().Set("Content-Type", "text/xml")
		w.Write([]byte(`<soap:Envelope><soap:Body><Order id="1"/></soap:Body></soap:Envelope>`))
	}))
	defer server.Close()

	iface := restIface(server.URL)
	iface.Protocol = domain.ProtocolSOAP
	d := newTestDispatcher([]*domain.InterfaceConfig{iface}, nil)

	res, err := d.Call(context.Background(), iface.ID, CallOptions{
		Body:       envelope,
		SOAPAction: "GetOrder",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Не-JSON тело возвращается строкой
	body, ok := res.Body.(string)
	if !ok || !strings.Contains(body, "<Order") {
		t.Errorf("expected XML string body, got %v", res.Body)
	}
}

func TestDispatcher_Call_GraphQL(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("GraphQL must POST, got %s", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"order": map[string]any{"id": "1"}},
		})
	}))
	defer server.Close()

	iface := restIface(server.URL)
	iface.Protocol = domain.ProtocolGraphQL
	d := newTestDispatcher([]*domain.InterfaceConfig{iface}, nil)

	res, err := d.Call(context.Background(), iface.ID, CallOptions{
		GraphQLQuery:     `query($id: ID!) { order(id: $id) { id } }`,
		GraphQLVariables: map[string]any{"id": "1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StatusCode != 200 {
		t.Errorf("expected 200, got %d", res.StatusCode)
	}

	if received["query"] == nil {
		t.Error("query should reach server")
	}
	vars, ok := received["variables"].(map[string]any)
	if !ok || vars["id"] != "1" {
		t.Errorf("expected variables to reach server, got %v", received["variables"])
	}
}
