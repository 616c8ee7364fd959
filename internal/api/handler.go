package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/torbel/Interflow/internal/dispatch"
	"github.com/torbel/Interflow/internal/domain"
	"github.com/torbel/Interflow/internal/repo"
)

// Engine — движок flow, каким его видит API: синхронный запуск
// и проверка определения без выполнения.
type Engine interface {
	Execute(ctx context.Context, flowID uuid.UUID, input map[string]any, triggeredBy string) (*domain.FlowRun, error)
	ValidateDefinition(def *domain.FlowDefinition) error
}

// Caller — dispatch-подсистема для тестовых вызовов интерфейсов.
type Caller interface {
	Call(ctx context.Context, id uuid.UUID, opts dispatch.CallOptions) (*dispatch.Result, error)
}

// KindSource — источник списка зарегистрированных типов узлов.
type KindSource interface {
	Kinds() []string
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	flowRepo     *repo.FlowRepo
	runRepo      *repo.RunRepo
	ifaceRepo    *repo.InterfaceRepo
	credRepo     *repo.CredentialRepo
	scheduleRepo *repo.ScheduleRepo
	engine       Engine
	dispatcher   Caller
	kinds        KindSource
	logger       *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	FlowRepo     *repo.FlowRepo
	RunRepo      *repo.RunRepo
	IfaceRepo    *repo.InterfaceRepo
	CredRepo     *repo.CredentialRepo
	ScheduleRepo *repo.ScheduleRepo
	Engine       Engine
	Dispatcher   Caller
	Kinds        KindSource
	Logger       *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		flowRepo:     cfg.FlowRepo,
		runRepo:      cfg.RunRepo,
		ifaceRepo:    cfg.IfaceRepo,
		credRepo:     cfg.CredRepo,
		scheduleRepo: cfg.ScheduleRepo,
		engine:       cfg.Engine,
		dispatcher:   cfg.Dispatcher,
		kinds:        cfg.Kinds,
		logger:       logger,
	}
}
