package engine

import "errors"

// Ошибки, отклоняющие запуск до каких-либо побочных эффектов.
var (
	// ErrFlowDisabled — flow выключен.
	ErrFlowDisabled = errors.New("flow is disabled")

	// ErrEmptyFlow — flow не содержит узлов.
	ErrEmptyFlow = errors.New("flow has no nodes")

	// ErrEmptyNodeID — узел без ID.
	ErrEmptyNodeID = errors.New("node has empty ID")

	// ErrDuplicateNodeID — несколько узлов с одинаковым ID.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownEdgeNode — ребро ссылается на несуществующий узел.
	ErrUnknownEdgeNode = errors.New("edge references unknown node")

	// ErrNoEntryNode — нет узла без входящих рёбер.
	ErrNoEntryNode = errors.New("flow has no entry node")

	// ErrMultipleEntryNodes — больше одного узла без входящих рёбер.
	ErrMultipleEntryNodes = errors.New("flow has multiple entry nodes")

	// ErrUnknownNodeKind — тип узла не зарегистрирован в реестре.
	ErrUnknownNodeKind = errors.New("node kind not registered")
)

// rejectErrs — ошибки, при которых повторный Execute с теми же
// аргументами упадёт снова.
var rejectErrs = []error{
	ErrFlowDisabled,
	ErrEmptyFlow,
	ErrEmptyNodeID,
	ErrDuplicateNodeID,
	ErrUnknownEdgeNode,
	ErrNoEntryNode,
	ErrMultipleEntryNodes,
	ErrUnknownNodeKind,
}

// IsRejected сообщает, что Execute отклонил запуск из-за состояния самого
// flow: он выключен или его граф некорректен. Повтор с теми же аргументами
// бессмыслен. Временные ошибки (недоступная БД) сюда не попадают.
func IsRejected(err error) bool {
	for _, target := range rejectErrs {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// GraphError — ошибка структуры графа с контекстом.
type GraphError struct {
	NodeID  string // ID узла, где обнаружена проблема
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *GraphError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *GraphError) Unwrap() error {
	return e.Err
}

// NewGraphError создаёт новую ошибку структуры графа.
func NewGraphError(nodeID, field, message string, err error) *GraphError {
	return &GraphError{
		NodeID:  nodeID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// NodeError — провал конкретного узла во время выполнения.
type NodeError struct {
	NodeID string // ID провалившегося узла
	Err    error  // причина
}

// Error реализует интерфейс error.
func (e *NodeError) Error() string {
	return "node " + e.NodeID + ": " + e.Err.Error()
}

// Unwrap возвращает причину провала.
func (e *NodeError) Unwrap() error {
	return e.Err
}
