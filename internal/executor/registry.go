package executor

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/torbel/Interflow/internal/dispatch"
)

// Registry — реестр исполнителей узлов.
//
// Позволяет регистрировать и получать реализации Executor по типу узла.
// Потокобезопасен.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[string]Executor),
	}
}

// RegistryConfig — зависимости стандартного набора исполнителей.
type RegistryConfig struct {
	// Dispatcher — диспетчер исходящих вызовов для interface-узлов.
	Dispatcher *dispatch.Dispatcher

	// Interfaces — хранилище интерфейсов. Нужно conditional-узлу
	// для проверки условий против схемы интерфейса.
	Interfaces dispatch.InterfaceStore

	// Mailer — отправщик почты для email-узлов.
	// Nil — email работает в режиме эмуляции.
	Mailer Mailer

	// Logger — логгер. Nil — slog.Default().
	Logger *slog.Logger
}

// DefaultRegistry создаёт реестр со всеми стандартными исполнителями.
func DefaultRegistry(cfg RegistryConfig) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := NewRegistry()

	r.Register(NewTriggerExecutor())
	r.Register(NewXMLParserExecutor())
	r.Register(NewCSVParserExecutor())
	r.Register(NewMapperExecutor())
	r.Register(NewValidationExecutor())
	r.Register(NewConditionalExecutor(cfg.Interfaces))
	r.Register(NewInterfaceSourceExecutor(cfg.Dispatcher))
	r.Register(NewInterfaceDestinationExecutor(cfg.Dispatcher))
	r.Register(NewEmailExecutor(cfg.Mailer, cfg.Logger))
	r.Register(NewCodeExecutor())

	return r
}

// Register регистрирует исполнителя.
// Исполнитель с тем же типом перезаписывается.
func (r *Registry) Register(e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[e.Kind()] = e
}

// Get возвращает исполнителя по типу узла.
// Возвращает ErrUnknownKind, если тип не зарегистрирован.
func (r *Registry) Get(kind string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.executors[kind]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return e, nil
}

// Has проверяет, зарегистрирован ли тип узла.
func (r *Registry) Has(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.executors[kind]
	return exists
}

// Kinds возвращает список всех зарегистрированных типов узлов.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.executors))
	for k := range r.executors {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Count возвращает количество зарегистрированных исполнителей.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.executors)
}

// Unregister удаляет исполнителя из реестра.
func (r *Registry) Unregister(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.executors, kind)
}
