package scheduler

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/torbel/Interflow/internal/domain"
	"github.com/torbel/Interflow/internal/engine"
	"github.com/torbel/Interflow/internal/repo"
)

// --- Вычисление следующего срабатывания ---

func TestCalculateNextDue_Cron(t *testing.T) {
	sched := &domain.Schedule{
		CronExpr: "0 9 * * *",
		Timezone: "UTC",
	}

	from := time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC)
	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %s, got %s", want, next)
	}

	// После 9:00 — следующий день
	from = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	next, err = CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want = time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %s, got %s", want, next)
	}
}

func TestCalculateNextDue_CronTimezone(t *testing.T) {
	sched := &domain.Schedule{
		CronExpr: "0 9 * * *",
		Timezone: "Europe/Moscow", // UTC+3
	}

	// 05:00 UTC = 08:00 MSK, ближайшие 09:00 MSK = 06:00 UTC
	from := time.Date(2026, 3, 10, 5, 0, 0, 0, time.UTC)
	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %s, got %s", want, next)
	}
}

func TestCalculateNextDue_Interval(t *testing.T) {
	sched := &domain.Schedule{IntervalSec: 300}

	from := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := from.Add(5 * time.Minute)
	if !next.Equal(want) {
		t.Errorf("expected %s, got %s", want, next)
	}
}

func TestCalculateNextDue_InvalidTimezoneFallsBackToUTC(t *testing.T) {
	sched := &domain.Schedule{
		IntervalSec: 60,
		Timezone:    "Mars/Olympus",
	}

	from := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.Equal(from.Add(time.Minute)) {
		t.Errorf("expected fallback to UTC, got %s", next)
	}
}

func TestCalculateNextDue_NeitherCronNorInterval(t *testing.T) {
	sched := &domain.Schedule{}

	_, err := CalculateNextDue(sched, time.Now())
	if err == nil {
		t.Fatal("expected error for schedule without cron or interval")
	}
}

func TestValidateCronExpr(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"0 9 * * *", false},
		{"*/5 * * * *", false},
		{"0 0 1 1 0", false},
		{"* * *", true},
		{"61 * * * *", true},
		{"not a cron", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			err := ValidateCronExpr(tt.expr)
			if tt.wantErr && err == nil {
				t.Errorf("expected error for %q", tt.expr)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for %q: %v", tt.expr, err)
			}
		})
	}
}

// --- Tick ---

type fakeScheduleStore struct {
	due       []domain.Schedule
	listErr   error
	updated   []domain.Schedule
	updateErr error
}

func (f *fakeScheduleStore) ListDue(_ context.Context, _ time.Time, _ int) ([]domain.Schedule, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.due, nil
}

func (f *fakeScheduleStore) Update(_ context.Context, sched *domain.Schedule) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = append(f.updated, *sched)
	return nil
}

type runnerCall struct {
	flowID      uuid.UUID
	triggeredBy string
	runID       uuid.UUID
}

type fakeRunner struct {
	calls     []runnerCall
	errByFlow map[uuid.UUID]error
}

func (f *fakeRunner) Execute(_ context.Context, flowID uuid.UUID, _ map[string]any, triggeredBy string) (*domain.FlowRun, error) {
	if err := f.errByFlow[flowID]; err != nil {
		f.calls = append(f.calls, runnerCall{flowID: flowID, triggeredBy: triggeredBy})
		return nil, err
	}

	run := &domain.FlowRun{
		ID:     uuid.New(),
		FlowID: flowID,
		Status: domain.RunStatusCompleted,
	}
	f.calls = append(f.calls, runnerCall{flowID: flowID, triggeredBy: triggeredBy, runID: run.ID})
	return run, nil
}

func dueSchedule(name string) domain.Schedule {
	past := time.Now().Add(-time.Minute)
	return domain.Schedule{
		ID:          uuid.New(),
		FlowID:      uuid.New(),
		Name:        name,
		IntervalSec: 60,
		Enabled:     true,
		NextDueAt:   &past,
	}
}

func TestTick_FiresDueSchedule(t *testing.T) {
	store := &fakeScheduleStore{due: []domain.Schedule{dueSchedule("nightly")}}
	runner := &fakeRunner{}
	s := New(Config{Schedules: store, Runner: runner})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(runner.calls) != 1 {
		t.Fatalf("expected 1 execute call, got %d", len(runner.calls))
	}
	call := runner.calls[0]
	if call.flowID != store.due[0].FlowID {
		t.Errorf("expected flow %s, got %s", store.due[0].FlowID, call.flowID)
	}
	if call.triggeredBy != "schedule:nightly" {
		t.Errorf("expected triggered_by schedule:nightly, got %q", call.triggeredBy)
	}

	if len(store.updated) != 1 {
		t.Fatalf("expected 1 schedule update, got %d", len(store.updated))
	}
	upd := store.updated[0]
	if upd.LastRunID == nil || *upd.LastRunID != call.runID {
		t.Errorf("expected LastRunID %s, got %v", call.runID, upd.LastRunID)
	}
	if upd.NextDueAt == nil || !upd.NextDueAt.After(time.Now()) {
		t.Errorf("expected NextDueAt in the future, got %v", upd.NextDueAt)
	}
	if !upd.Enabled {
		t.Error("schedule should stay enabled")
	}
}

func TestTick_NoDueSchedules(t *testing.T) {
	store := &fakeScheduleStore{}
	runner := &fakeRunner{}
	s := New(Config{Schedules: store, Runner: runner})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runner.calls) != 0 {
		t.Errorf("expected no execute calls, got %d", len(runner.calls))
	}
}

func TestTick_ListError(t *testing.T) {
	store := &fakeScheduleStore{listErr: fmt.Errorf("connection refused")}
	s := New(Config{Schedules: store, Runner: &fakeRunner{}})

	err := s.Tick(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "list due schedules") {
		t.Errorf("expected wrapped list error, got %v", err)
	}
}

func TestTick_SkipsMissingFlow(t *testing.T) {
	sched := dueSchedule("orphan")
	runner := &fakeRunner{errByFlow: map[uuid.UUID]error{
		sched.FlowID: fmt.Errorf("flow %s: %w", sched.FlowID, repo.ErrNotFound),
	}}
	store := &fakeScheduleStore{due: []domain.Schedule{sched}}
	s := New(Config{Schedules: store, Runner: runner})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.updated) != 1 {
		t.Fatalf("expected schedule update, got %d", len(store.updated))
	}
	upd := store.updated[0]
	if upd.LastRunID != nil {
		t.Error("no run started, LastRunID should stay nil")
	}
	if upd.NextDueAt == nil || !upd.NextDueAt.After(time.Now()) {
		t.Errorf("expected NextDueAt advanced, got %v", upd.NextDueAt)
	}
}

func TestTick_SkipsDisabledFlow(t *testing.T) {
	sched := dueSchedule("paused")
	runner := &fakeRunner{errByFlow: map[uuid.UUID]error{
		sched.FlowID: fmt.Errorf("flow %s: %w", sched.FlowID, engine.ErrFlowDisabled),
	}}
	store := &fakeScheduleStore{due: []domain.Schedule{sched}}
	s := New(Config{Schedules: store, Runner: runner})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.updated) != 1 {
		t.Fatalf("expected schedule update, got %d", len(store.updated))
	}
	if !store.updated[0].Enabled {
		t.Error("schedule itself should stay enabled when the flow is disabled")
	}
}

func TestTick_DisablesInvalidSchedule(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	sched := domain.Schedule{
		ID:        uuid.New(),
		FlowID:    uuid.New(),
		Name:      "broken",
		Enabled:   true,
		NextDueAt: &past,
		// Ни cron, ни interval
	}
	store := &fakeScheduleStore{due: []domain.Schedule{sched}}
	runner := &fakeRunner{}
	s := New(Config{Schedules: store, Runner: runner})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(runner.calls) != 0 {
		t.Errorf("broken schedule should not start a run, got %d calls", len(runner.calls))
	}
	if len(store.updated) != 1 {
		t.Fatalf("expected schedule update, got %d", len(store.updated))
	}
	if store.updated[0].Enabled {
		t.Error("invalid schedule should be disabled")
	}
}

func TestTick_TransientErrorLeavesScheduleDue(t *testing.T) {
	sched := dueSchedule("retry-me")
	runner := &fakeRunner{errByFlow: map[uuid.UUID]error{
		sched.FlowID: fmt.Errorf("create run: connection reset"),
	}}
	store := &fakeScheduleStore{due: []domain.Schedule{sched}}
	s := New(Config{Schedules: store, Runner: runner})

	// Ошибка логируется, Tick не падает
	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.updated) != 0 {
		t.Errorf("transient failure should not touch the schedule, got %d updates", len(store.updated))
	}
}

func TestTick_ContinuesAfterFailure(t *testing.T) {
	failing := dueSchedule("failing")
	healthy := dueSchedule("healthy")
	runner := &fakeRunner{errByFlow: map[uuid.UUID]error{
		failing.FlowID: fmt.Errorf("create run: connection reset"),
	}}
	store := &fakeScheduleStore{due: []domain.Schedule{failing, healthy}}
	s := New(Config{Schedules: store, Runner: runner})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(runner.calls) != 2 {
		t.Fatalf("expected both schedules attempted, got %d calls", len(runner.calls))
	}
	if len(store.updated) != 1 {
		t.Fatalf("expected 1 schedule update, got %d", len(store.updated))
	}
	if store.updated[0].ID != healthy.ID {
		t.Errorf("expected healthy schedule updated, got %s", store.updated[0].ID)
	}
}
