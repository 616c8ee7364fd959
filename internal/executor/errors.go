package executor

import "errors"

// Ошибки исполнителей.
var (
	// ErrUnknownKind — тип узла не зарегистрирован в реестре.
	ErrUnknownKind = errors.New("node kind not registered")

	// ErrInvalidConfig — невалидная конфигурация узла.
	ErrInvalidConfig = errors.New("invalid node config")

	// ErrFormat — входные данные не разбираются заявленным форматом.
	ErrFormat = errors.New("input format error")

	// ErrMissingField — обязательное поле отсутствует во входных данных.
	ErrMissingField = errors.New("required field missing")

	// ErrValidation — входные данные не прошли проверку правил.
	ErrValidation = errors.New("validation failed")

	// ErrFeatureDisabled — тип узла известен, но отключён навсегда.
	ErrFeatureDisabled = errors.New("node kind disabled")
)
