package dispatch

import "errors"

// Ошибки dispatch-подсистемы.
var (
	// ErrInterfaceDisabled — интерфейс административно выключен.
	ErrInterfaceDisabled = errors.New("interface is disabled")

	// ErrConnectivity — вызов не удался после всех попыток.
	// Оборачивает последнюю причину провала.
	ErrConnectivity = errors.New("connectivity failure")

	// ErrAuthentication — не удалось получить или обновить учётные
	// данные для вызова.
	ErrAuthentication = errors.New("authentication failure")
)
