package worker

import "errors"

// Ошибки обработки триггеров.
var (
	// ErrMissingFlow — в trigger-сообщении нет ссылки на flow.
	ErrMissingFlow = errors.New("trigger has no flow reference")

	// ErrUnknownFlow — flow с таким именем или ID не существует.
	ErrUnknownFlow = errors.New("flow not found")
)
