package executor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/torbel/Interflow/internal/dispatch"
	"github.com/torbel/Interflow/internal/domain"
)

type fakeCredStore struct{}

func (s *fakeCredStore) GetCredential(ctx context.Context, id uuid.UUID) (*domain.Credential, error) {
	return nil, errors.New("credential not found")
}

// callFixture поднимает dispatcher с одним REST-интерфейсом.
func callFixture(serverURL string) (*InterfaceCallExecutor, *InterfaceCallExecutor, *domain.InterfaceConfig) {
	iface := &domain.InterfaceConfig{
		ID:        uuid.New(),
		Name:      "orders",
		Protocol:  domain.ProtocolREST,
		BaseURL:   serverURL,
		IsEnabled: true,
		Retry:     domain.RetryPolicy{Attempts: 1},
	}
	store := &fakeIfaceStore{ifaces: map[uuid.UUID]*domain.InterfaceConfig{iface.ID: iface}}
	d := dispatch.New(dispatch.Config{Interfaces: store, Credentials: &fakeCredStore{}})
	return NewInterfaceSourceExecutor(d), NewInterfaceDestinationExecutor(d), iface
}

func TestInterfaceSource_Execute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("source without body must GET, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"items": []any{"a", "b"}})
	}))
	defer server.Close()

	source, _, iface := callFixture(server.URL)

	res, err := source.Execute(context.Background(), &Request{
		Config: map[string]any{"interface_id": iface.ID.String(), "path": "/v1/items"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := res.Output.(map[string]any)
	if out["status_code"] != 200 {
		t.Errorf("expected status_code 200, got %v", out["status_code"])
	}
	body := out["body"].(map[string]any)
	if body["items"] == nil {
		t.Errorf("expected items in body, got %v", body)
	}
	if len(res.Attempts) != 1 {
		t.Errorf("expected 1 attempt, got %d", len(res.Attempts))
	}
}

func TestInterfaceDestination_SendsInput(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("destination with body must POST, got %s", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	_, dest, iface := callFixture(server.URL)

	res, err := dest.Execute(context.Background(), &Request{
		Input:  map[string]any{"sku": "A-1"},
		Config: map[string]any{"interface_id": iface.ID.String()},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Вход узла стал телом запроса
	if received["sku"] != "A-1" {
		t.Errorf("expected input as request body, got %v", received)
	}
	out := res.Output.(map[string]any)
	if out["status_code"] != 201 {
		t.Errorf("expected 201, got %v", out["status_code"])
	}
}

func TestInterfaceCall_HTTPErrorFailsNode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	source, _, iface := callFixture(server.URL)

	res, err := source.Execute(context.Background(), &Request{
		Config: map[string]any{"interface_id": iface.ID.String()},
	})
	if err == nil {
		t.Fatal("4xx response must fail the node")
	}

	// Попытки и тело остаются в результате для трейса
	if res == nil || len(res.Attempts) != 1 {
		t.Fatalf("expected attempts in result, got %+v", res)
	}
	out := res.Output.(map[string]any)
	if out["status_code"] != 400 {
		t.Errorf("expected status_code 400 in output, got %v", out["status_code"])
	}
}

func TestInterfaceCall_RetriesRecorded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	source, _, iface := callFixture(server.URL)

	res, err := source.Execute(context.Background(), &Request{
		Config: map[string]any{
			"interface_id":   iface.ID.String(),
			"retry_attempts": 3,
			"retry_delay_ms": 1,
		},
	})
	if !errors.Is(err, dispatch.ErrConnectivity) {
		t.Fatalf("expected ErrConnectivity, got %v", err)
	}
	if res == nil || len(res.Attempts) != 3 {
		t.Fatalf("all attempts must reach the trace, got %+v", res)
	}
}

func TestInterfaceCall_MissingID(t *testing.T) {
	source, _, _ := callFixture("http://unused.invalid")

	_, err := source.Execute(context.Background(), &Request{Config: map[string]any{}})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestInterfaceCall_Emulated(t *testing.T) {
	source, _, iface := callFixture("http://unused.invalid")
	iface.Emulate = true

	res, err := source.Execute(context.Background(), &Request{
		Config: map[string]any{"interface_id": iface.ID.String()},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Meta["emulated"] != true {
		t.Errorf("expected emulated meta, got %v", res.Meta)
	}
}
