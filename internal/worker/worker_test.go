package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/torbel/Interflow/internal/domain"
	"github.com/torbel/Interflow/internal/engine"
	"github.com/torbel/Interflow/internal/mq"
	"github.com/torbel/Interflow/internal/repo"
)

// --- Фейки ---

type fakeRunner struct {
	calls       int
	flowID      uuid.UUID
	input       map[string]any
	triggeredBy string

	err error
	run *domain.FlowRun
}

func (f *fakeRunner) Execute(_ context.Context, flowID uuid.UUID, input map[string]any, triggeredBy string) (*domain.FlowRun, error) {
	f.calls++
	f.flowID = flowID
	f.input = input
	f.triggeredBy = triggeredBy

	if f.err != nil {
		return nil, f.err
	}
	if f.run != nil {
		return f.run, nil
	}
	return &domain.FlowRun{
		ID:     uuid.New(),
		FlowID: flowID,
		Status: domain.RunStatusCompleted,
	}, nil
}

type fakeDirectory struct {
	flows map[string]*domain.FlowDefinition
	err   error
}

func (f *fakeDirectory) GetByName(_ context.Context, name string) (*domain.FlowDefinition, error) {
	if f.err != nil {
		return nil, f.err
	}
	flow, ok := f.flows[name]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return flow, nil
}

type fakeSweeper struct {
	stale     []domain.FlowRun
	listErr   error
	updated   []domain.FlowRun
	updateErr map[uuid.UUID]error
}

func (f *fakeSweeper) ListStale(_ context.Context, _ time.Time, _ int) ([]domain.FlowRun, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.stale, nil
}

func (f *fakeSweeper) UpdateRun(_ context.Context, run *domain.FlowRun) error {
	if err := f.updateErr[run.ID]; err != nil {
		return err
	}
	f.updated = append(f.updated, *run)
	return nil
}

func newTestWorker(runner Runner, flows FlowDirectory, runs RunSweeper) *Worker {
	return New(Config{
		Runner: runner,
		Flows:  flows,
		Runs:   runs,
	})
}

func triggerDelivery(payload any) *mq.Delivery {
	return &mq.Delivery{
		Message: mq.Message{
			ID:        uuid.New().String(),
			Type:      mq.MessageTypeFlowTrigger,
			Payload:   payload,
			Timestamp: time.Now(),
		},
	}
}

// --- Конструктор ---

func TestNew_DefaultConfig(t *testing.T) {
	w := New(Config{})

	if w.prefetch != defaultPrefetch {
		t.Errorf("expected prefetch %d, got %d", defaultPrefetch, w.prefetch)
	}
	if w.pollInterval != defaultPollInterval {
		t.Errorf("expected poll interval %s, got %s", defaultPollInterval, w.pollInterval)
	}
	if w.maxRunAge != defaultMaxRunAge {
		t.Errorf("expected max run age %s, got %s", defaultMaxRunAge, w.maxRunAge)
	}
	if w.batchSize != defaultBatchSize {
		t.Errorf("expected batch size %d, got %d", defaultBatchSize, w.batchSize)
	}
	if w.logger == nil {
		t.Error("logger should default to slog.Default()")
	}
}

func TestNew_CustomConfig(t *testing.T) {
	w := New(Config{
		Prefetch:     10,
		PollInterval: 5 * time.Second,
		MaxRunAge:    time.Hour,
		BatchSize:    7,
	})

	if w.prefetch != 10 {
		t.Errorf("expected prefetch 10, got %d", w.prefetch)
	}
	if w.pollInterval != 5*time.Second {
		t.Errorf("expected poll interval 5s, got %s", w.pollInterval)
	}
	if w.maxRunAge != time.Hour {
		t.Errorf("expected max run age 1h, got %s", w.maxRunAge)
	}
	if w.batchSize != 7 {
		t.Errorf("expected batch size 7, got %d", w.batchSize)
	}
}

func TestWorker_IsStopped(t *testing.T) {
	w := New(Config{})

	if w.IsStopped() {
		t.Error("worker should not be stopped initially")
	}

	w.Stop()

	if !w.IsStopped() {
		t.Error("worker should be stopped after Stop()")
	}
}

// --- Обработка триггеров ---

func TestHandleTrigger_ByID(t *testing.T) {
	runner := &fakeRunner{}
	w := newTestWorker(runner, &fakeDirectory{}, nil)

	flowID := uuid.New()
	err := w.handleTrigger(context.Background(), triggerDelivery(map[string]any{
		"flow":  flowID.String(),
		"input": map[string]any{"total": 42},
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if runner.calls != 1 {
		t.Fatalf("expected 1 execute call, got %d", runner.calls)
	}
	if runner.flowID != flowID {
		t.Errorf("expected flow ID %s, got %s", flowID, runner.flowID)
	}
	if runner.input["total"] != float64(42) {
		t.Errorf("expected input total=42, got %v", runner.input["total"])
	}
	if runner.triggeredBy != "mq" {
		t.Errorf("expected triggered_by mq, got %q", runner.triggeredBy)
	}
}

func TestHandleTrigger_ByName(t *testing.T) {
	flowID := uuid.New()
	runner := &fakeRunner{}
	flows := &fakeDirectory{flows: map[string]*domain.FlowDefinition{
		"invoice-sync": {ID: flowID, Name: "invoice-sync"},
	}}
	w := newTestWorker(runner, flows, nil)

	err := w.handleTrigger(context.Background(), triggerDelivery(map[string]any{
		"flow":         "invoice-sync",
		"triggered_by": "erp",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if runner.flowID != flowID {
		t.Errorf("expected resolved flow ID %s, got %s", flowID, runner.flowID)
	}
	if runner.triggeredBy != "erp" {
		t.Errorf("expected triggered_by erp, got %q", runner.triggeredBy)
	}
}

func TestHandleTrigger_UnknownName(t *testing.T) {
	runner := &fakeRunner{}
	w := newTestWorker(runner, &fakeDirectory{}, nil)

	err := w.handleTrigger(context.Background(), triggerDelivery(map[string]any{
		"flow": "no-such-flow",
	}))
	if err == nil {
		t.Fatal("expected error for unknown flow")
	}
	if !errors.Is(err, mq.ErrPermanent) {
		t.Errorf("unknown flow should be permanent, got %v", err)
	}
	if !errors.Is(err, ErrUnknownFlow) {
		t.Errorf("expected ErrUnknownFlow in chain, got %v", err)
	}
	if runner.calls != 0 {
		t.Errorf("runner should not be called, got %d calls", runner.calls)
	}
}

func TestHandleTrigger_MissingFlow(t *testing.T) {
	w := newTestWorker(&fakeRunner{}, &fakeDirectory{}, nil)

	err := w.handleTrigger(context.Background(), triggerDelivery(map[string]any{
		"input": map[string]any{"x": 1},
	}))
	if !errors.Is(err, ErrMissingFlow) {
		t.Fatalf("expected ErrMissingFlow, got %v", err)
	}
	if !errors.Is(err, mq.ErrPermanent) {
		t.Errorf("missing flow should be permanent, got %v", err)
	}
}

func TestHandleTrigger_BadPayload(t *testing.T) {
	w := newTestWorker(&fakeRunner{}, &fakeDirectory{}, nil)

	// Payload-строка не парсится в TriggerPayload
	err := w.handleTrigger(context.Background(), triggerDelivery("not an object"))
	if err == nil {
		t.Fatal("expected error for malformed payload")
	}
	if !errors.Is(err, mq.ErrPermanent) {
		t.Errorf("malformed payload should be permanent, got %v", err)
	}
}

func TestHandleTrigger_TransientResolveError(t *testing.T) {
	flows := &fakeDirectory{err: fmt.Errorf("connection refused")}
	w := newTestWorker(&fakeRunner{}, flows, nil)

	err := w.handleTrigger(context.Background(), triggerDelivery(map[string]any{
		"flow": "invoice-sync",
	}))
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, mq.ErrPermanent) {
		t.Errorf("db error should be transient, got %v", err)
	}
}

func TestHandleTrigger_DisabledFlow(t *testing.T) {
	flowID := uuid.New()
	runner := &fakeRunner{err: fmt.Errorf("flow %s: %w", flowID, engine.ErrFlowDisabled)}
	w := newTestWorker(runner, &fakeDirectory{}, nil)

	err := w.handleTrigger(context.Background(), triggerDelivery(map[string]any{
		"flow": flowID.String(),
	}))
	if !errors.Is(err, mq.ErrPermanent) {
		t.Errorf("disabled flow should be permanent, got %v", err)
	}
	if !errors.Is(err, engine.ErrFlowDisabled) {
		t.Errorf("expected ErrFlowDisabled in chain, got %v", err)
	}
}

func TestHandleTrigger_TransientExecuteError(t *testing.T) {
	runner := &fakeRunner{err: fmt.Errorf("create run: connection reset")}
	w := newTestWorker(runner, &fakeDirectory{}, nil)

	err := w.handleTrigger(context.Background(), triggerDelivery(map[string]any{
		"flow": uuid.New().String(),
	}))
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, mq.ErrPermanent) {
		t.Errorf("create run failure should be transient, got %v", err)
	}
}

func TestHandleTrigger_FailedRunIsAcked(t *testing.T) {
	// Упавший run — это успешно обработанный триггер
	runner := &fakeRunner{run: &domain.FlowRun{
		ID:     uuid.New(),
		Status: domain.RunStatusFailed,
		Error:  "request timeout",
	}}
	w := newTestWorker(runner, &fakeDirectory{}, nil)

	err := w.handleTrigger(context.Background(), triggerDelivery(map[string]any{
		"flow": uuid.New().String(),
	}))
	if err != nil {
		t.Fatalf("failed run should still ack the trigger, got %v", err)
	}
}

// --- Sweep ---

func staleRun(age time.Duration) domain.FlowRun {
	return domain.FlowRun{
		ID:        uuid.New(),
		FlowID:    uuid.New(),
		Status:    domain.RunStatusRunning,
		StartedAt: time.Now().Add(-age),
	}
}

func TestSweep_MarksStaleRunsFailed(t *testing.T) {
	sweeper := &fakeSweeper{stale: []domain.FlowRun{
		staleRun(time.Hour),
		staleRun(2 * time.Hour),
	}}
	w := newTestWorker(&fakeRunner{}, &fakeDirectory{}, sweeper)

	w.sweep(context.Background())

	if len(sweeper.updated) != 2 {
		t.Fatalf("expected 2 updated runs, got %d", len(sweeper.updated))
	}
	for _, run := range sweeper.updated {
		if run.Status != domain.RunStatusFailed {
			t.Errorf("expected FAILED, got %s", run.Status)
		}
		if run.Error == "" {
			t.Error("expected error text on swept run")
		}
		if run.FinishedAt == nil {
			t.Error("expected FinishedAt to be set")
		}
	}
}

func TestSweep_ContinuesAfterUpdateFailure(t *testing.T) {
	first := staleRun(time.Hour)
	second := staleRun(time.Hour)
	sweeper := &fakeSweeper{
		stale:     []domain.FlowRun{first, second},
		updateErr: map[uuid.UUID]error{first.ID: fmt.Errorf("connection reset")},
	}
	w := newTestWorker(&fakeRunner{}, &fakeDirectory{}, sweeper)

	w.sweep(context.Background())

	if len(sweeper.updated) != 1 {
		t.Fatalf("expected 1 updated run, got %d", len(sweeper.updated))
	}
	if sweeper.updated[0].ID != second.ID {
		t.Errorf("expected second run to be swept, got %s", sweeper.updated[0].ID)
	}
}

func TestSweep_ListFailure(t *testing.T) {
	sweeper := &fakeSweeper{listErr: fmt.Errorf("connection refused")}
	w := newTestWorker(&fakeRunner{}, &fakeDirectory{}, sweeper)

	// Не должно паниковать и ничего не обновляет
	w.sweep(context.Background())

	if len(sweeper.updated) != 0 {
		t.Errorf("expected no updates, got %d", len(sweeper.updated))
	}
}

// --- Классификация ошибок ---

func TestIsPermanentExecErr(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"flow not found", fmt.Errorf("flow x: %w", repo.ErrNotFound), true},
		{"flow disabled", fmt.Errorf("flow x: %w", engine.ErrFlowDisabled), true},
		{"unknown kind", engine.NewGraphError("n1", "kind", "unresolved", engine.ErrUnknownNodeKind), true},
		{"empty flow", engine.ErrEmptyFlow, true},
		{"db down", fmt.Errorf("create run: connection reset"), false},
		{"context canceled", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isPermanentExecErr(tt.err); got != tt.permanent {
				t.Errorf("isPermanentExecErr(%v) = %v, want %v", tt.err, got, tt.permanent)
			}
		})
	}
}
